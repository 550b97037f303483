package domain

import "github.com/shopspring/decimal"

// CreateAssignmentDto is the full payload for POST /BranchProductAddons.
type CreateAssignmentDto struct {
	HostProductID   int64           `json:"hostProductId"`
	AddonProductID  int64           `json:"addonProductId"`
	IsActive        bool            `json:"isActive"`
	SpecialPrice    decimal.Decimal `json:"specialPrice"`
	MarketingText   string          `json:"marketingText"`
	MaxQuantity     int             `json:"maxQuantity"`
	MinQuantity     int             `json:"minQuantity"`
	GroupTag        string          `json:"groupTag"`
	IsGroupRequired bool            `json:"isGroupRequired"`
}

// UpdateAssignmentDto is the full-replace payload for PUT
// /BranchProductAddons/{assignmentId}. It always carries the complete
// configuration, never a partial patch.
type UpdateAssignmentDto struct {
	IsActive        bool            `json:"isActive"`
	SpecialPrice    decimal.Decimal `json:"specialPrice"`
	MarketingText   string          `json:"marketingText"`
	MaxQuantity     int             `json:"maxQuantity"`
	MinQuantity     int             `json:"minQuantity"`
	GroupTag        string          `json:"groupTag"`
	IsGroupRequired bool            `json:"isGroupRequired"`
}

// BatchAddonUpdate is one element of a batch-update request.
type BatchAddonUpdate struct {
	AddonProductID  int64           `json:"addonProductId"`
	IsActive        bool            `json:"isActive"`
	SpecialPrice    decimal.Decimal `json:"specialPrice"`
	DisplayOrder    int             `json:"displayOrder"`
	MarketingText   string          `json:"marketingText"`
	MaxQuantity     int             `json:"maxQuantity"`
	MinQuantity     int             `json:"minQuantity"`
	GroupTag        string          `json:"groupTag"`
	IsGroupRequired bool            `json:"isGroupRequired"`
}

// BatchUpdateDto is the payload for POST /BranchProductAddons/batch-update.
type BatchUpdateDto struct {
	HostProductID int64              `json:"hostProductId"`
	Addons        []BatchAddonUpdate `json:"addons"`
}

// ReorderEntry pairs an assignment with its new display order. A reorder
// request submits exactly one entry per currently assigned row.
type ReorderEntry struct {
	AssignmentID int64 `json:"assignmentId"`
	DisplayOrder int   `json:"displayOrder"`
}
