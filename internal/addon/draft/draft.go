// Package draft holds the reconciliation logic between a working row's
// confirmed snapshot and its locally edited configuration.
package draft

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/shopspring/decimal"
)

// Editable field names accepted by SetField.
const (
	FieldSpecialPrice    = "special_price"
	FieldMarketingText   = "marketing_text"
	FieldMinQuantity     = "min_quantity"
	FieldMaxQuantity     = "max_quantity"
	FieldGroupTag        = "group_tag"
	FieldIsGroupRequired = "is_group_required"
)

// IsDirty reports whether any edited field differs from its confirmed
// counterpart. Comparison is field-wise, so setting a field back to its
// original value clears dirtiness.
func IsDirty(row domain.WorkingRow) bool {
	return !row.Edited.Equal(row.Confirmed)
}

// SetField returns a copy of row with the single named edited field
// replaced. The confirmed snapshot is never touched.
func SetField(row domain.WorkingRow, field string, value any) (domain.WorkingRow, error) {
	switch strings.TrimSpace(field) {
	case FieldSpecialPrice:
		price, err := toDecimal(value)
		if err != nil {
			return row, err
		}
		row.Edited.SpecialPrice = price
	case FieldMarketingText:
		text, err := toString(value)
		if err != nil {
			return row, err
		}
		row.Edited.MarketingText = text
	case FieldMinQuantity:
		quantity, err := toInt(value)
		if err != nil {
			return row, err
		}
		row.Edited.MinQuantity = quantity
	case FieldMaxQuantity:
		quantity, err := toInt(value)
		if err != nil {
			return row, err
		}
		row.Edited.MaxQuantity = quantity
	case FieldGroupTag:
		tag, err := toString(value)
		if err != nil {
			return row, err
		}
		row.Edited.GroupTag = strings.TrimSpace(tag)
	case FieldIsGroupRequired:
		required, err := toBool(value)
		if err != nil {
			return row, err
		}
		row.Edited.IsGroupRequired = required
	default:
		return row, fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	return row, nil
}

// Validate checks the edited configuration before any save is accepted. A
// zero special price is legal; only a negative one is rejected.
func Validate(cfg domain.AddonConfig) error {
	if cfg.MinQuantity < 0 || cfg.MaxQuantity < cfg.MinQuantity {
		return domain.ErrQuantityRange
	}
	if cfg.SpecialPrice.IsNegative() {
		return domain.ErrNegativePrice
	}
	return nil
}

// BuildUpdatePayload constructs the full-replace configuration sent on
// save, taken verbatim from the edited fields. The merger materializes
// every field on load, so there is no unset state to fall back from.
func BuildUpdatePayload(row domain.WorkingRow) domain.UpdateAssignmentDto {
	return domain.UpdateAssignmentDto{
		IsActive:        row.IsActive,
		SpecialPrice:    row.Edited.SpecialPrice,
		MarketingText:   row.Edited.MarketingText,
		MaxQuantity:     row.Edited.MaxQuantity,
		MinQuantity:     row.Edited.MinQuantity,
		GroupTag:        row.Edited.GroupTag,
		IsGroupRequired: row.Edited.IsGroupRequired,
	}
}

// BuildCreatePayload constructs the create payload for a not-yet-assigned
// catalog addon from catalog defaults.
func BuildCreatePayload(entry domain.CatalogAddon, defaults domain.Defaults) domain.CreateAssignmentDto {
	return domain.CreateAssignmentDto{
		HostProductID:   entry.HostProductID,
		AddonProductID:  entry.AddonProductID,
		IsActive:        true,
		SpecialPrice:    entry.Price,
		MarketingText:   entry.DefaultPhrase,
		MaxQuantity:     defaults.MaxQuantity,
		MinQuantity:     defaults.MinQuantity,
		GroupTag:        "",
		IsGroupRequired: false,
	}
}

// BuildBatchEntry maps a working row onto one element of a batch-update
// request.
func BuildBatchEntry(row domain.WorkingRow) domain.BatchAddonUpdate {
	return domain.BatchAddonUpdate{
		AddonProductID:  row.AddonProductID,
		IsActive:        row.IsActive,
		SpecialPrice:    row.Edited.SpecialPrice,
		DisplayOrder:    row.DisplayOrder,
		MarketingText:   row.Edited.MarketingText,
		MaxQuantity:     row.Edited.MaxQuantity,
		MinQuantity:     row.Edited.MinQuantity,
		GroupTag:        row.Edited.GroupTag,
		IsGroupRequired: row.Edited.IsGroupRequired,
	}
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch cast := value.(type) {
	case decimal.Decimal:
		return cast, nil
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(cast))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidFieldValue, cast)
		}
		return parsed, nil
	case float64:
		return decimal.NewFromFloat(cast), nil
	case int:
		return decimal.NewFromInt(int64(cast)), nil
	case int64:
		return decimal.NewFromInt(cast), nil
	case json.Number:
		parsed, err := decimal.NewFromString(cast.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidFieldValue, cast)
		}
		return parsed, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", domain.ErrInvalidFieldValue, value)
	}
}

func toInt(value any) (int, error) {
	switch cast := value.(type) {
	case int:
		return cast, nil
	case int64:
		return int(cast), nil
	case float64:
		if cast != float64(int(cast)) {
			return 0, fmt.Errorf("%w: %v", domain.ErrInvalidFieldValue, cast)
		}
		return int(cast), nil
	case json.Number:
		parsed, err := cast.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidFieldValue, cast)
		}
		return int(parsed), nil
	default:
		return 0, fmt.Errorf("%w: %T", domain.ErrInvalidFieldValue, value)
	}
}

func toBool(value any) (bool, error) {
	cast, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %T", domain.ErrInvalidFieldValue, value)
	}
	return cast, nil
}

func toString(value any) (string, error) {
	cast, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %T", domain.ErrInvalidFieldValue, value)
	}
	return cast, nil
}
