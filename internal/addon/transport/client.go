package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/branch"
	"github.com/mesaops/mesa/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const resourceRoot = "/BranchProductAddons"

// Client talks to the remote /BranchProductAddons resource. It does request
// building, response decoding and error classification; nothing else.
type Client struct {
	baseURL  string
	token    string
	httpc    *http.Client
	branches *branch.Resolver
	log      *zap.Logger
}

type Params struct {
	fx.In

	Cfg      config.Config
	Branches *branch.Resolver
	Log      *zap.Logger
}

func New(p Params) domain.Contract {
	return NewClient(p.Cfg.MenuAPIBaseURL, p.Cfg.MenuAPIToken, p.Cfg.MenuAPITimeout, p.Branches, p.Log.Named("addon.transport"))
}

func NewClient(baseURL, token string, timeout time.Duration, branches *branch.Resolver, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  baseURL,
		token:    token,
		httpc:    &http.Client{Timeout: timeout},
		branches: branches,
		log:      log,
	}
}

func (c *Client) ListCatalog(ctx context.Context) ([]domain.CatalogAddon, error) {
	var out []domain.CatalogAddon
	if err := c.do(ctx, http.MethodGet, "/available", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAssignments(ctx context.Context, hostProductID int64) ([]domain.Assignment, error) {
	var out []domain.Assignment
	path := fmt.Sprintf("/branch-product/%d", hostProductID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListGrouped(ctx context.Context, hostProductID int64) ([]domain.AssignmentGroup, error) {
	var out []domain.AssignmentGroup
	path := fmt.Sprintf("/branch-product/%d/grouped", hostProductID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAssignment(ctx context.Context, assignmentID int64) (*domain.Assignment, error) {
	var out domain.Assignment
	path := fmt.Sprintf("/%d", assignmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAssignment(ctx context.Context, dto domain.CreateAssignmentDto) (*domain.Assignment, error) {
	var out domain.Assignment
	if err := c.do(ctx, http.MethodPost, "/", dto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAssignment(ctx context.Context, assignmentID int64, dto domain.UpdateAssignmentDto) (*domain.Assignment, error) {
	var out domain.Assignment
	path := fmt.Sprintf("/%d", assignmentID)
	if err := c.do(ctx, http.MethodPut, path, dto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAssignment(ctx context.Context, assignmentID int64) error {
	path := fmt.Sprintf("/%d", assignmentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) BatchUpdate(ctx context.Context, dto domain.BatchUpdateDto) error {
	return c.do(ctx, http.MethodPost, "/batch-update", dto, nil)
}

func (c *Client) Reorder(ctx context.Context, hostProductID int64, entries []domain.ReorderEntry) error {
	path := fmt.Sprintf("/branch-product/%d/reorder", hostProductID)
	return c.do(ctx, http.MethodPut, path, entries, nil)
}

type errorEnvelope struct {
	Error struct {
		Message string       `json:"message"`
		Errors  []FieldError `json:"errors"`
	} `json:"error"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	endpoint := c.baseURL + resourceRoot + path

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if branchID := c.branches.EffectiveID(ctx); branchID != "" {
		query := req.URL.Query()
		query.Set("branchId", branchID)
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		message, fields := decodeErrorBody(resp.Body)
		terr := classify(resp.StatusCode, message, fields)
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("class", string(terr.Class)),
		)
		return terr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Class:   ClassUnknown,
			Status:  resp.StatusCode,
			Message: "addon service request failed: malformed response",
			cause:   err,
		}
	}
	return nil
}

func decodeErrorBody(body io.Reader) (string, []FieldError) {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<16))
	if err != nil || len(raw) == 0 {
		return "", nil
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", nil
	}
	message := envelope.Error.Message
	fields := envelope.Error.Errors
	if message == "" {
		message = envelope.Message
	}
	if len(fields) == 0 {
		fields = envelope.Errors
	}
	return message, fields
}
