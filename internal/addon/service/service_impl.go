package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/mesaops/mesa/internal/addon/cache"
	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/addon/draft"
	"github.com/mesaops/mesa/internal/addon/merge"
	"github.com/mesaops/mesa/internal/addon/transport"
	auditdomain "github.com/mesaops/mesa/internal/audit/domain"
	"github.com/mesaops/mesa/internal/branch"
	"github.com/mesaops/mesa/internal/config"
	obsmetrics "github.com/mesaops/mesa/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Contract domain.Contract
	Defaults *config.AddonDefaultsHolder
	Branches *branch.Resolver
	Catalog  *cache.CatalogCache
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// hostView is the held working state for one (branch, host product) pair.
//
// mu guards rows and inFlight. loadMu serializes reload+swap cycles: a
// reload always fetches after acquiring it, so a swap can never publish a
// snapshot taken before an earlier mutation committed, regardless of how
// mutations on different rows interleave.
type hostView struct {
	mu       sync.Mutex
	loadMu   sync.Mutex
	loaded   bool
	rows     []domain.WorkingRow
	inFlight map[int64]struct{}
}

type Service struct {
	log      *zap.Logger
	contract domain.Contract
	defaults *config.AddonDefaultsHolder
	branches *branch.Resolver
	catalog  *cache.CatalogCache
	audit    auditdomain.Service
	metrics  *obsmetrics.Metrics

	mu    sync.Mutex
	views map[viewKey]*hostView
}

type viewKey struct {
	branchID      string
	hostProductID int64
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("addon.service"),
		contract: p.Contract,
		defaults: p.Defaults,
		branches: p.Branches,
		catalog:  p.Catalog,
		audit:    p.AuditSvc,
		metrics:  p.Metrics,
		views:    make(map[viewKey]*hostView),
	}
}

func (s *Service) WorkingView(ctx context.Context, hostProductID int64, refresh bool) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	hv := s.view(ctx, hostProductID)

	hv.mu.Lock()
	loaded := hv.loaded
	hv.mu.Unlock()

	if !loaded || refresh {
		if err := s.reload(ctx, hv, hostProductID); err != nil {
			return nil, err
		}
	}
	return s.snapshot(hv), nil
}

func (s *Service) EditField(ctx context.Context, hostProductID, addonProductID int64, field string, value any) (*domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	if addonProductID <= 0 {
		return nil, domain.ErrInvalidAddonProduct
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	defer hv.mu.Unlock()

	idx := rowIndexByAddon(hv.rows, addonProductID)
	if idx < 0 {
		return nil, domain.ErrRowNotFound
	}
	if _, busy := hv.inFlight[addonProductID]; busy {
		return nil, domain.ErrRowBusy
	}

	updated, err := draft.SetField(hv.rows[idx], field, value)
	if err != nil {
		return nil, err
	}
	hv.rows[idx] = updated
	copied := updated
	return &copied, nil
}

func (s *Service) Assign(ctx context.Context, hostProductID, addonProductID int64) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	if addonProductID <= 0 {
		return nil, domain.ErrInvalidAddonProduct
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	idx := rowIndexByAddon(hv.rows, addonProductID)
	if idx < 0 {
		hv.mu.Unlock()
		return nil, domain.ErrRowNotFound
	}
	if hv.rows[idx].IsAssigned() {
		hv.mu.Unlock()
		return nil, domain.ErrAlreadyAssigned
	}
	if !s.beginRowLocked(hv, addonProductID) {
		hv.mu.Unlock()
		return nil, domain.ErrRowBusy
	}
	payload := draft.BuildCreatePayload(catalogEntry(hv.rows[idx]), s.rowDefaults())
	hv.mu.Unlock()
	defer s.endRow(hv, addonProductID)

	created, err := s.contract.CreateAssignment(ctx, payload)
	if err != nil {
		return nil, s.fail(ctx, "assign", err)
	}
	if err := s.reload(ctx, hv, hostProductID); err != nil {
		return nil, s.fail(ctx, "assign", err)
	}

	s.recordAudit(ctx, auditdomain.ActionAssign, auditdomain.TargetAssignment, formatID(created.ID), map[string]any{
		"host_product_id":  hostProductID,
		"addon_product_id": addonProductID,
	})
	s.metrics.RecordMutation(ctx, "assign", true)
	return s.snapshot(hv), nil
}

func (s *Service) Unassign(ctx context.Context, hostProductID, assignmentID int64) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	if assignmentID <= 0 {
		return nil, domain.ErrInvalidAssignment
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	idx := rowIndexByAssignment(hv.rows, assignmentID)
	if idx < 0 {
		hv.mu.Unlock()
		return nil, domain.ErrNotAssigned
	}
	addonProductID := hv.rows[idx].AddonProductID
	if !s.beginRowLocked(hv, addonProductID) {
		hv.mu.Unlock()
		return nil, domain.ErrRowBusy
	}
	hv.mu.Unlock()
	defer s.endRow(hv, addonProductID)

	if err := s.contract.DeleteAssignment(ctx, assignmentID); err != nil {
		return nil, s.fail(ctx, "unassign", err)
	}
	if err := s.reload(ctx, hv, hostProductID); err != nil {
		return nil, s.fail(ctx, "unassign", err)
	}

	s.recordAudit(ctx, auditdomain.ActionUnassign, auditdomain.TargetAssignment, formatID(assignmentID), map[string]any{
		"host_product_id":  hostProductID,
		"addon_product_id": addonProductID,
	})
	s.metrics.RecordMutation(ctx, "unassign", true)
	return s.snapshot(hv), nil
}

func (s *Service) Save(ctx context.Context, hostProductID, assignmentID int64) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	if assignmentID <= 0 {
		return nil, domain.ErrInvalidAssignment
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	idx := rowIndexByAssignment(hv.rows, assignmentID)
	if idx < 0 {
		hv.mu.Unlock()
		return nil, domain.ErrNotAssigned
	}
	row := hv.rows[idx]
	if err := draft.Validate(row.Edited); err != nil {
		hv.mu.Unlock()
		return nil, err
	}
	if !s.beginRowLocked(hv, row.AddonProductID) {
		hv.mu.Unlock()
		return nil, domain.ErrRowBusy
	}
	payload := draft.BuildUpdatePayload(row)
	hv.mu.Unlock()
	defer s.endRow(hv, row.AddonProductID)

	if _, err := s.contract.UpdateAssignment(ctx, assignmentID, payload); err != nil {
		return nil, s.fail(ctx, "save", err)
	}
	if err := s.reload(ctx, hv, hostProductID); err != nil {
		return nil, s.fail(ctx, "save", err)
	}

	s.recordAudit(ctx, auditdomain.ActionSave, auditdomain.TargetAssignment, formatID(assignmentID), map[string]any{
		"host_product_id":  hostProductID,
		"addon_product_id": row.AddonProductID,
	})
	s.metrics.RecordMutation(ctx, "save", true)
	return s.snapshot(hv), nil
}

func (s *Service) BatchSave(ctx context.Context, hostProductID int64) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	var gated []int64
	var entries []domain.BatchAddonUpdate
	for _, row := range hv.rows {
		if !row.IsAssigned() || !draft.IsDirty(row) {
			continue
		}
		if err := draft.Validate(row.Edited); err != nil {
			releaseRowsLocked(hv, gated)
			hv.mu.Unlock()
			return nil, err
		}
		if !s.beginRowLocked(hv, row.AddonProductID) {
			releaseRowsLocked(hv, gated)
			hv.mu.Unlock()
			return nil, domain.ErrRowBusy
		}
		gated = append(gated, row.AddonProductID)
		entries = append(entries, draft.BuildBatchEntry(row))
	}
	hv.mu.Unlock()

	if len(entries) == 0 {
		return nil, domain.ErrNothingToSave
	}
	defer func() {
		hv.mu.Lock()
		releaseRowsLocked(hv, gated)
		hv.mu.Unlock()
	}()

	dto := domain.BatchUpdateDto{HostProductID: hostProductID, Addons: entries}
	if err := s.contract.BatchUpdate(ctx, dto); err != nil {
		return nil, s.fail(ctx, "batch_save", err)
	}
	if err := s.reload(ctx, hv, hostProductID); err != nil {
		return nil, s.fail(ctx, "batch_save", err)
	}

	s.recordAudit(ctx, auditdomain.ActionBatchSave, auditdomain.TargetHostProduct, formatID(hostProductID), map[string]any{
		"rows": len(entries),
	})
	s.metrics.RecordMutation(ctx, "batch_save", true)
	return s.snapshot(hv), nil
}

func (s *Service) Reorder(ctx context.Context, hostProductID int64, orderedAssignmentIDs []int64) ([]domain.WorkingRow, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	hv, err := s.loadedView(ctx, hostProductID)
	if err != nil {
		return nil, err
	}

	hv.mu.Lock()
	assigned := make(map[int64]struct{})
	for _, row := range hv.rows {
		if row.IsAssigned() {
			assigned[*row.AssignmentID] = struct{}{}
		}
	}
	hv.mu.Unlock()

	// Exactly one (assignmentId, displayOrder) pair per assigned row.
	if len(orderedAssignmentIDs) != len(assigned) {
		return nil, domain.ErrInvalidAssignment
	}
	seen := make(map[int64]struct{}, len(orderedAssignmentIDs))
	entries := make([]domain.ReorderEntry, 0, len(orderedAssignmentIDs))
	for position, id := range orderedAssignmentIDs {
		if _, ok := assigned[id]; !ok {
			return nil, domain.ErrInvalidAssignment
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ErrInvalidAssignment
		}
		seen[id] = struct{}{}
		entries = append(entries, domain.ReorderEntry{AssignmentID: id, DisplayOrder: position})
	}

	if err := s.contract.Reorder(ctx, hostProductID, entries); err != nil {
		return nil, s.fail(ctx, "reorder", err)
	}
	// The caller owns the new order already, but the reload guards against
	// server-side renormalization.
	if err := s.reload(ctx, hv, hostProductID); err != nil {
		return nil, s.fail(ctx, "reorder", err)
	}

	s.recordAudit(ctx, auditdomain.ActionReorder, auditdomain.TargetHostProduct, formatID(hostProductID), map[string]any{
		"rows": len(entries),
	})
	s.metrics.RecordMutation(ctx, "reorder", true)
	return s.snapshot(hv), nil
}

func (s *Service) Grouped(ctx context.Context, hostProductID int64) ([]domain.AssignmentGroup, error) {
	if hostProductID <= 0 {
		return nil, domain.ErrInvalidHostProduct
	}
	return s.contract.ListGrouped(ctx, hostProductID)
}

func (s *Service) Assignment(ctx context.Context, assignmentID int64) (*domain.Assignment, error) {
	if assignmentID <= 0 {
		return nil, domain.ErrInvalidAssignment
	}
	return s.contract.GetAssignment(ctx, assignmentID)
}

func (s *Service) view(ctx context.Context, hostProductID int64) *hostView {
	key := viewKey{
		branchID:      s.branches.EffectiveID(ctx),
		hostProductID: hostProductID,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hv, ok := s.views[key]
	if !ok {
		hv = &hostView{inFlight: make(map[int64]struct{})}
		s.views[key] = hv
	}
	return hv
}

func (s *Service) loadedView(ctx context.Context, hostProductID int64) (*hostView, error) {
	hv := s.view(ctx, hostProductID)
	hv.mu.Lock()
	loaded := hv.loaded
	hv.mu.Unlock()
	if !loaded {
		if err := s.reload(ctx, hv, hostProductID); err != nil {
			return nil, err
		}
	}
	return hv, nil
}

// reload re-fetches catalog and assignments and swaps in a fresh merge.
// Serialized per host view: the fetch happens after loadMu is acquired, so
// a later mutation's reload can never be overwritten by an earlier, staler
// snapshot.
func (s *Service) reload(ctx context.Context, hv *hostView, hostProductID int64) error {
	hv.loadMu.Lock()
	defer hv.loadMu.Unlock()

	branchID := s.branches.EffectiveID(ctx)
	catalog, hit := s.catalog.Get(ctx, branchID)
	s.metrics.RecordCatalogCache(ctx, hit)
	if !hit {
		fetched, err := s.contract.ListCatalog(ctx)
		if err != nil {
			return err
		}
		catalog = fetched
		s.catalog.Set(ctx, branchID, catalog)
	}

	assignments, err := s.contract.ListAssignments(ctx, hostProductID)
	if err != nil {
		return err
	}

	rows := merge.Merge(hostProductID, catalog, assignments, s.rowDefaults())

	hv.mu.Lock()
	hv.rows = rows
	hv.loaded = true
	hv.mu.Unlock()

	s.metrics.RecordViewReload(ctx)
	return nil
}

func (s *Service) snapshot(hv *hostView) []domain.WorkingRow {
	hv.mu.Lock()
	defer hv.mu.Unlock()
	return append([]domain.WorkingRow(nil), hv.rows...)
}

func (s *Service) rowDefaults() domain.Defaults {
	cfg := s.defaults.Get()
	return domain.Defaults{
		MinQuantity: cfg.MinQuantity,
		MaxQuantity: cfg.MaxQuantity,
	}
}

func (s *Service) beginRowLocked(hv *hostView, addonProductID int64) bool {
	if _, busy := hv.inFlight[addonProductID]; busy {
		return false
	}
	hv.inFlight[addonProductID] = struct{}{}
	return true
}

func (s *Service) endRow(hv *hostView, addonProductID int64) {
	hv.mu.Lock()
	delete(hv.inFlight, addonProductID)
	hv.mu.Unlock()
}

func releaseRowsLocked(hv *hostView, addonProductIDs []int64) {
	for _, id := range addonProductIDs {
		delete(hv.inFlight, id)
	}
}

// fail leaves the held working state untouched and propagates the
// classified error to the caller.
func (s *Service) fail(ctx context.Context, operation string, err error) error {
	s.metrics.RecordMutation(ctx, operation, false)
	var terr *transport.Error
	if errors.As(err, &terr) {
		s.metrics.RecordTransportError(ctx, string(terr.Class))
	}
	s.log.Warn("mutation failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return err
}

func (s *Service) recordAudit(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	// Auditing is best-effort; a failed record never fails the mutation.
	_ = s.audit.Record(ctx, action, targetType, targetID, metadata)
}

func catalogEntry(row domain.WorkingRow) domain.CatalogAddon {
	return domain.CatalogAddon{
		HostProductID:  row.HostProductID,
		AddonProductID: row.AddonProductID,
		Name:           row.Name,
		Description:    row.Description,
		ImageURL:       row.ImageURL,
		Price:          row.CatalogPrice,
		Category:       row.Category,
		Recommended:    row.Recommended,
		DefaultPhrase:  row.CatalogPhrase,
		SuggestedOrder: row.DisplayOrder,
	}
}

func rowIndexByAddon(rows []domain.WorkingRow, addonProductID int64) int {
	for i, row := range rows {
		if row.AddonProductID == addonProductID {
			return i
		}
	}
	return -1
}

func rowIndexByAssignment(rows []domain.WorkingRow, assignmentID int64) int {
	for i, row := range rows {
		if row.IsAssigned() && *row.AssignmentID == assignmentID {
			return i
		}
	}
	return -1
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
