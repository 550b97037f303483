package domain

import (
	"context"
	"errors"
)

// Contract is the remote /BranchProductAddons resource. Implementations do
// request/response mapping and error classification only; no business
// rules. The effective branch id travels on the context and, when present,
// is forwarded unchanged as the branchId query parameter.
type Contract interface {
	ListCatalog(ctx context.Context) ([]CatalogAddon, error)
	ListAssignments(ctx context.Context, hostProductID int64) ([]Assignment, error)
	ListGrouped(ctx context.Context, hostProductID int64) ([]AssignmentGroup, error)
	GetAssignment(ctx context.Context, assignmentID int64) (*Assignment, error)
	CreateAssignment(ctx context.Context, dto CreateAssignmentDto) (*Assignment, error)
	UpdateAssignment(ctx context.Context, assignmentID int64, dto UpdateAssignmentDto) (*Assignment, error)
	DeleteAssignment(ctx context.Context, assignmentID int64) error
	BatchUpdate(ctx context.Context, dto BatchUpdateDto) error
	Reorder(ctx context.Context, hostProductID int64, entries []ReorderEntry) error
}

// Service owns the per-branch working views and performs all assignment
// mutations. Every mutation is remote-first: the working state is only
// rewritten from a fresh reload+merge after the remote call succeeds.
type Service interface {
	// WorkingView returns the merged rows for a host product, loading from
	// the remote source when no view is held yet or refresh is set.
	WorkingView(ctx context.Context, hostProductID int64, refresh bool) ([]WorkingRow, error)

	// EditField updates one edited field of a held row. Local only; the
	// confirmed state is untouched.
	EditField(ctx context.Context, hostProductID, addonProductID int64, field string, value any) (*WorkingRow, error)

	Assign(ctx context.Context, hostProductID, addonProductID int64) ([]WorkingRow, error)
	Unassign(ctx context.Context, hostProductID, assignmentID int64) ([]WorkingRow, error)
	Save(ctx context.Context, hostProductID, assignmentID int64) ([]WorkingRow, error)
	BatchSave(ctx context.Context, hostProductID int64) ([]WorkingRow, error)
	Reorder(ctx context.Context, hostProductID int64, orderedAssignmentIDs []int64) ([]WorkingRow, error)

	Grouped(ctx context.Context, hostProductID int64) ([]AssignmentGroup, error)
	Assignment(ctx context.Context, assignmentID int64) (*Assignment, error)
}

var (
	ErrInvalidHostProduct  = errors.New("invalid_host_product")
	ErrInvalidAddonProduct = errors.New("invalid_addon_product")
	ErrInvalidAssignment   = errors.New("invalid_assignment")
	ErrViewNotLoaded       = errors.New("working_view_not_loaded")
	ErrRowNotFound         = errors.New("addon_row_not_found")
	ErrNotAssigned         = errors.New("addon_not_assigned")
	ErrAlreadyAssigned     = errors.New("addon_already_assigned")
	ErrRowBusy             = errors.New("addon_row_busy")
	ErrNothingToSave       = errors.New("nothing_to_save")
	ErrUnknownField        = errors.New("unknown_field")
	ErrInvalidFieldValue   = errors.New("invalid_field_value")
	ErrQuantityRange       = errors.New("invalid_quantity_range")
	ErrNegativePrice       = errors.New("invalid_special_price")
)
