// Package merge builds the unified working view of a host product's addons
// out of the catalog of candidates and the confirmed assignments.
package merge

import (
	"github.com/mesaops/mesa/internal/addon/domain"
)

// Merge combines the catalog entries for hostProductID with the confirmed
// assignments into one WorkingRow per candidate addon. Pure and idempotent:
// same inputs, same output, no side effects. Absence of the host product or
// an empty catalog yields an empty slice, never an error.
//
// Immediately after a merge every row's edited fields equal its confirmed
// fields, so no row is dirty.
func Merge(hostProductID int64, catalog []domain.CatalogAddon, assignments []domain.Assignment, defaults domain.Defaults) []domain.WorkingRow {
	byAddon := make(map[int64]domain.Assignment, len(assignments))
	for _, a := range assignments {
		byAddon[a.AddonProductID] = a
	}

	rows := make([]domain.WorkingRow, 0, len(catalog))
	for _, entry := range catalog {
		if entry.HostProductID != hostProductID {
			continue
		}

		row := domain.WorkingRow{
			HostProductID:  entry.HostProductID,
			AddonProductID: entry.AddonProductID,
			Name:           entry.Name,
			Description:    entry.Description,
			ImageURL:       entry.ImageURL,
			Category:       entry.Category,
			Recommended:    entry.Recommended,
			CatalogPrice:   entry.Price,
			CatalogPhrase:  entry.DefaultPhrase,
			DisplayOrder:   entry.SuggestedOrder,
		}

		if assignment, ok := byAddon[entry.AddonProductID]; ok {
			id := assignment.ID
			row.AssignmentID = &id
			row.IsActive = assignment.IsActive
			row.DisplayOrder = assignment.DisplayOrder
			row.Confirmed = confirmedFromAssignment(entry, assignment)
		} else {
			row.Confirmed = confirmedFromCatalog(entry, defaults)
		}

		row.Edited = row.Confirmed
		rows = append(rows, row)
	}
	return rows
}

// confirmedFromAssignment mirrors the assignment, falling back to the
// catalog description and price only where the assignment carries no value
// of its own. The fallback is on explicit absence, never on zero: a zero
// special price is a real override.
func confirmedFromAssignment(entry domain.CatalogAddon, assignment domain.Assignment) domain.AddonConfig {
	cfg := domain.AddonConfig{
		SpecialPrice:    entry.Price,
		MarketingText:   entry.Description,
		MinQuantity:     assignment.MinQuantity,
		MaxQuantity:     assignment.MaxQuantity,
		GroupTag:        assignment.GroupTag,
		IsGroupRequired: assignment.IsGroupRequired,
	}
	if assignment.SpecialPrice != nil {
		cfg.SpecialPrice = *assignment.SpecialPrice
	}
	if assignment.MarketingText != nil {
		cfg.MarketingText = *assignment.MarketingText
	}
	return cfg
}

func confirmedFromCatalog(entry domain.CatalogAddon, defaults domain.Defaults) domain.AddonConfig {
	return domain.AddonConfig{
		SpecialPrice:    entry.Price,
		MarketingText:   entry.DefaultPhrase,
		MinQuantity:     defaults.MinQuantity,
		MaxQuantity:     defaults.MaxQuantity,
		GroupTag:        "",
		IsGroupRequired: false,
	}
}
