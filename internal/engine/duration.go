/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"time"

	"github.com/opsfloor/lineplan/internal/models"
)

// ProcessingMinutes computes the total processing time for quantity units of
// a product on a line: the sum of the product's per-unit minutes over the
// line's equipment sequence, times quantity. Equipment ids absent from the
// profile contribute zero. Returns 0 for non-positive quantities, empty
// lines, and empty profiles; never negative.
func ProcessingMinutes(product models.Product, line models.ProductionLine, quantity int) int {
	if quantity <= 0 || len(line.EquipmentIDs) == 0 || len(product.Profile) == 0 {
		return 0
	}

	perUnit := 0
	for _, equipmentID := range line.EquipmentIDs {
		if minutes := product.Profile[equipmentID]; minutes > 0 {
			perUnit += minutes
		}
	}
	return perUnit * quantity
}

// ProcessingDuration is ProcessingMinutes as a time.Duration.
func ProcessingDuration(product models.Product, line models.ProductionLine, quantity int) time.Duration {
	return time.Duration(ProcessingMinutes(product, line, quantity)) * time.Minute
}
