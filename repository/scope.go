package repository

import (
	"supply-service/scope"

	"gorm.io/gorm"
)

// applyScope turns a scope predicate into WHERE conditions. Callers handle
// pred.Deny() before building a query.
func applyScope(db *gorm.DB, pred scope.Predicate) *gorm.DB {
	switch {
	case pred.Unrestricted:
		return db
	case pred.FranchiseID != "":
		return db.Where("franchise_id = ?", pred.FranchiseID)
	default:
		return db.Where("vendor_id IN ?", pred.VendorIDs)
	}
}
