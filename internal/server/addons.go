package server

import (
	"fmt"
	"net/http"

	"github.com/mesaops/mesa/internal/notify"
	"github.com/gin-gonic/gin"
)

type workingViewQuery struct {
	Refresh bool `form:"refresh"`
}

func (s *Server) GetWorkingView(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}

	var query workingViewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.addonSvc.WorkingView(c.Request.Context(), hostID, query.Refresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addons": rows})
}

type assignAddonRequest struct {
	AddonProductID int64 `json:"addonProductId" binding:"required"`
}

func (s *Server) AssignAddon(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}

	var req assignAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.addonSvc.Assign(c.Request.Context(), hostID, req.AddonProductID)
	if err != nil {
		s.notifyFailure(err)
		AbortWithError(c, err)
		return
	}
	s.notifySuccess("addon assigned")
	c.JSON(http.StatusCreated, gin.H{"addons": rows})
}

func (s *Server) UnassignAddon(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}
	assignmentID, err := parsePathID(c, "assignmentId")
	if err != nil {
		AbortWithError(c, newValidationError("assignmentId", "invalid_assignment", "invalid assignment id"))
		return
	}

	rows, err := s.addonSvc.Unassign(c.Request.Context(), hostID, assignmentID)
	if err != nil {
		s.notifyFailure(err)
		AbortWithError(c, err)
		return
	}
	s.notifySuccess("addon removed")
	c.JSON(http.StatusOK, gin.H{"addons": rows})
}

type editDraftRequest struct {
	Field string `json:"field" binding:"required"`
	Value any    `json:"value"`
}

func (s *Server) EditDraftField(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}
	addonProductID, err := parsePathID(c, "addonProductId")
	if err != nil {
		AbortWithError(c, newValidationError("addonProductId", "invalid_addon_product", "invalid addon product id"))
		return
	}

	var req editDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	row, err := s.addonSvc.EditField(c.Request.Context(), hostID, addonProductID, req.Field, req.Value)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addon": row})
}

type saveAssignmentRequest struct {
	HostProductID int64 `json:"hostProductId" binding:"required"`
}

func (s *Server) SaveAssignment(c *gin.Context) {
	assignmentID, err := parsePathID(c, "assignmentId")
	if err != nil {
		AbortWithError(c, newValidationError("assignmentId", "invalid_assignment", "invalid assignment id"))
		return
	}

	var req saveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.addonSvc.Save(c.Request.Context(), req.HostProductID, assignmentID)
	if err != nil {
		s.notifyFailure(err)
		AbortWithError(c, err)
		return
	}
	s.notifySuccess("addon configuration saved")
	c.JSON(http.StatusOK, gin.H{"addons": rows})
}

func (s *Server) BatchSaveAddons(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}

	rows, err := s.addonSvc.BatchSave(c.Request.Context(), hostID)
	if err != nil {
		s.notifyFailure(err)
		AbortWithError(c, err)
		return
	}
	s.notifySuccess("addon changes saved")
	c.JSON(http.StatusOK, gin.H{"addons": rows})
}

type reorderRequest struct {
	AssignmentIDs []int64 `json:"assignmentIds" binding:"required"`
}

func (s *Server) ReorderAddons(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.addonSvc.Reorder(c.Request.Context(), hostID, req.AssignmentIDs)
	if err != nil {
		s.notifyFailure(err)
		AbortWithError(c, err)
		return
	}
	s.notifySuccess("addon order saved")
	c.JSON(http.StatusOK, gin.H{"addons": rows})
}

func (s *Server) GetGroupedAssignments(c *gin.Context) {
	hostID, err := parsePathID(c, "hostId")
	if err != nil {
		AbortWithError(c, newValidationError("hostId", "invalid_host_product", "invalid host product id"))
		return
	}

	groups, err := s.addonSvc.Grouped(c.Request.Context(), hostID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (s *Server) GetAssignment(c *gin.Context) {
	assignmentID, err := parsePathID(c, "assignmentId")
	if err != nil {
		AbortWithError(c, newValidationError("assignmentId", "invalid_assignment", "invalid assignment id"))
		return
	}

	assignment, err := s.addonSvc.Assignment(c.Request.Context(), assignmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

func (s *Server) notifySuccess(message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Push(notify.LevelInfo, message)
}

func (s *Server) notifyFailure(err error) {
	if s.notifier == nil || err == nil {
		return
	}
	// Draft-level validation failures stay inline; only remote mutation
	// failures surface through the notifier.
	if terr := asTransportError(err); terr != nil {
		s.notifier.Push(notify.LevelError, fmt.Sprintf("addon change failed: %s", terr.Message))
		return
	}
	if isValidationError(err) {
		return
	}
	s.notifier.Push(notify.LevelError, "addon change failed")
}
