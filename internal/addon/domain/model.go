package domain

import (
	"github.com/shopspring/decimal"
)

// CatalogAddon is a candidate pairing between a host product and a product
// that may be offered as its addon. It is owned by product management and
// read-only from this service's perspective.
type CatalogAddon struct {
	HostProductID  int64           `json:"hostProductId"`
	AddonProductID int64           `json:"addonProductId"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	ImageURL       string          `json:"imageUrl"`
	Price          decimal.Decimal `json:"price"`
	Category       string          `json:"category"`
	Recommended    bool            `json:"recommended"`
	DefaultPhrase  string          `json:"defaultPhrase"`
	SuggestedOrder int             `json:"suggestedOrder"`
}

// Assignment is the confirmed, persisted binding between a host product and
// an addon product for a branch. SpecialPrice and MarketingText are
// overrides of the catalog values; nil means "no override", which is
// distinct from a zero price or an empty text.
type Assignment struct {
	ID              int64            `json:"assignmentId"`
	HostProductID   int64            `json:"hostProductId"`
	AddonProductID  int64            `json:"addonProductId"`
	DisplayOrder    int              `json:"displayOrder"`
	IsActive        bool             `json:"isActive"`
	SpecialPrice    *decimal.Decimal `json:"specialPrice,omitempty"`
	MarketingText   *string          `json:"marketingText,omitempty"`
	MinQuantity     int              `json:"minQuantity"`
	MaxQuantity     int              `json:"maxQuantity"`
	GroupTag        string           `json:"groupTag"`
	IsGroupRequired bool             `json:"isGroupRequired"`
}

// AddonConfig is the set of per-row configurable fields. WorkingRow carries
// two copies: the last server-confirmed values and the locally edited draft.
type AddonConfig struct {
	SpecialPrice    decimal.Decimal `json:"special_price"`
	MarketingText   string          `json:"marketing_text"`
	MinQuantity     int             `json:"min_quantity"`
	MaxQuantity     int             `json:"max_quantity"`
	GroupTag        string          `json:"group_tag"`
	IsGroupRequired bool            `json:"is_group_required"`
}

// Equal compares field-wise. Decimal comparison is by value, so 8.50 and
// 8.5 are equal and a no-op edit clears dirtiness.
func (c AddonConfig) Equal(other AddonConfig) bool {
	return c.SpecialPrice.Equal(other.SpecialPrice) &&
		c.MarketingText == other.MarketingText &&
		c.MinQuantity == other.MinQuantity &&
		c.MaxQuantity == other.MaxQuantity &&
		c.GroupTag == other.GroupTag &&
		c.IsGroupRequired == other.IsGroupRequired
}

// WorkingRow is the client-only merged representation of one catalog addon
// for a host product: catalog fields, the confirmed assignment state if one
// exists, and the in-progress draft.
type WorkingRow struct {
	HostProductID  int64           `json:"host_product_id"`
	AddonProductID int64           `json:"addon_product_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	ImageURL       string          `json:"image_url"`
	Category       string          `json:"category"`
	Recommended    bool            `json:"recommended"`
	CatalogPrice   decimal.Decimal `json:"catalog_price"`
	CatalogPhrase  string          `json:"catalog_phrase"`

	AssignmentID *int64 `json:"assignment_id,omitempty"`
	IsActive     bool   `json:"is_active"`
	DisplayOrder int    `json:"display_order"`

	Confirmed AddonConfig `json:"confirmed"`
	Edited    AddonConfig `json:"edited"`
}

func (r WorkingRow) IsAssigned() bool {
	return r.AssignmentID != nil
}

// Defaults are the branch-level fallbacks applied when a catalog addon has
// no assignment yet.
type Defaults struct {
	MinQuantity int
	MaxQuantity int
}

// AssignmentGroup clusters a host product's assignments by group tag. The
// empty tag collects ungrouped assignments.
type AssignmentGroup struct {
	GroupTag        string       `json:"groupTag"`
	IsGroupRequired bool         `json:"isGroupRequired"`
	Assignments     []Assignment `json:"assignments"`
}
