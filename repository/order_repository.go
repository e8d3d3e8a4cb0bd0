package repository

import (
	"context"

	"supply-service/models"
	"supply-service/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderMutation changes a locked order in place. Returning an error aborts
// the surrounding transaction and is passed back to the caller unchanged.
type OrderMutation func(order *models.Order) error

// TransitionOptions are the preconditions checked under the row lock.
type TransitionOptions struct {
	From                       []models.OrderStatus
	RequireNoOpenDiscrepancies bool
}

// OrderRepository defines data-access operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, pred scope.Predicate, filter models.OrderFilter) ([]models.Order, int64, error)
	// Transition locks the order, checks opts, applies mutate and writes the
	// row back only if its status is still the one that was read.
	Transition(ctx context.Context, id uuid.UUID, opts TransitionOptions, mutate OrderMutation) (*models.Order, error)
	// Delete soft-deletes the order under the same lock-and-compare rules.
	Delete(ctx context.Context, id uuid.UUID, from []models.OrderStatus, guard OrderMutation) error
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormOrderRepository) List(ctx context.Context, pred scope.Predicate, filter models.OrderFilter) ([]models.Order, int64, error) {
	orders := []models.Order{}
	if pred.Deny() {
		return orders, 0, nil
	}

	query := applyScope(r.db.WithContext(ctx).Model(&models.Order{}), pred)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FranchiseID != "" {
		query = query.Where("franchise_id = ?", filter.FranchiseID)
	}
	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) Transition(ctx context.Context, id uuid.UUID, opts TransitionOptions, mutate OrderMutation) (*models.Order, error) {
	var result *models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		if !statusIn(order.Status, opts.From) {
			return ErrStatusConflict
		}
		if opts.RequireNoOpenDiscrepancies {
			var open int64
			if err := tx.Model(&models.Discrepancy{}).
				Where("order_id = ? AND resolved = ?", id, false).
				Count(&open).Error; err != nil {
				return err
			}
			if open > 0 {
				return ErrOpenDiscrepancies
			}
		}

		prev := order.Status
		if err := mutate(order); err != nil {
			return err
		}
		if order.Status != prev && !models.ValidStatusTransition(prev, order.Status) {
			return ErrStatusConflict
		}

		res := tx.Model(order).
			Where("status = ?", prev).
			Select("*").Omit("id", "created_at", "deleted_at").
			Updates(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID, from []models.OrderStatus, guard OrderMutation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		if !statusIn(order.Status, from) {
			return ErrStatusConflict
		}
		if err := guard(order); err != nil {
			return err
		}
		res := tx.Where("status = ?", order.Status).Delete(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		return nil
	})
}

// lockOrder reads the order row with SELECT ... FOR UPDATE.
func lockOrder(tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func statusIn(s models.OrderStatus, set []models.OrderStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
