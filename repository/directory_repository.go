package repository

import (
	"context"
	"strings"

	"supply-service/models"

	"gorm.io/gorm"
)

// UserDirectory reads the account table to find notification recipients.
type UserDirectory interface {
	// ListActiveCandidates returns active users that could be interested in
	// an order of franchiseID served by vendorID, plus every active admin.
	// The result is a superset; scope.Recipients does the exact match.
	ListActiveCandidates(ctx context.Context, franchiseID, vendorID string) ([]models.User, error)
}

// VendorDirectory reads franchise and vendor master data.
type VendorDirectory interface {
	FindFranchise(ctx context.Context, id string) (*models.Franchise, error)
	FindVendor(ctx context.Context, id string) (*models.Vendor, error)
}

type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) UserDirectory {
	return &GormUserDirectory{db: db}
}

func (r *GormUserDirectory) ListActiveCandidates(ctx context.Context, franchiseID, vendorID string) ([]models.User, error) {
	conds := []string{"role = ?"}
	args := []interface{}{models.RoleAdmin}
	if franchiseID != "" {
		conds = append(conds, "franchise_id = ?")
		args = append(args, franchiseID)
	}
	if vendorID != "" {
		// The owning kitchen account may carry the vendor id as its own id.
		conds = append(conds, "vendor_id = ?", "id = ?")
		args = append(args, vendorID, vendorID)
	}

	users := []models.User{}
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

type GormVendorDirectory struct {
	db *gorm.DB
}

func NewGormVendorDirectory(db *gorm.DB) VendorDirectory {
	return &GormVendorDirectory{db: db}
}

func (r *GormVendorDirectory) FindFranchise(ctx context.Context, id string) (*models.Franchise, error) {
	var f models.Franchise
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *GormVendorDirectory) FindVendor(ctx context.Context, id string) (*models.Vendor, error) {
	var v models.Vendor
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}
