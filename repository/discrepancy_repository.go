package repository

import (
	"context"
	"time"

	"supply-service/models"
	"supply-service/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportBuilder turns a report into new discrepancy rows. It sees the locked
// order and the discrepancies still open on it.
type ReportBuilder func(order *models.Order, open []models.Discrepancy) ([]models.Discrepancy, error)

// DiscrepancyRepository defines data-access operations for discrepancies.
type DiscrepancyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discrepancy, error)
	ListUnresolvedByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Discrepancy, error)
	List(ctx context.Context, pred scope.Predicate, filter models.DiscrepancyFilter) ([]models.Discrepancy, error)
	// Report inserts the built discrepancies and marks the order DISCREPANCY
	// in one transaction holding the order row lock, so it serialises with
	// receive.
	Report(ctx context.Context, orderID uuid.UUID, from []models.OrderStatus, build ReportBuilder) (*models.Order, []models.Discrepancy, error)
	// Resolve sets the resolution fields only if the row is still unresolved.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy, notes string, at time.Time) (*models.Discrepancy, error)
}

// GormDiscrepancyRepository implements DiscrepancyRepository using GORM.
type GormDiscrepancyRepository struct {
	db *gorm.DB
}

// NewGormDiscrepancyRepository creates a new GormDiscrepancyRepository.
func NewGormDiscrepancyRepository(db *gorm.DB) DiscrepancyRepository {
	return &GormDiscrepancyRepository{db: db}
}

func (r *GormDiscrepancyRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discrepancy, error) {
	var d models.Discrepancy
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *GormDiscrepancyRepository) ListUnresolvedByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Discrepancy, error) {
	return findUnresolved(r.db.WithContext(ctx), orderID)
}

func (r *GormDiscrepancyRepository) List(ctx context.Context, pred scope.Predicate, filter models.DiscrepancyFilter) ([]models.Discrepancy, error) {
	items := []models.Discrepancy{}
	if pred.Deny() {
		return items, nil
	}

	query := applyScope(r.db.WithContext(ctx).Model(&models.Discrepancy{}), pred)
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormDiscrepancyRepository) Report(ctx context.Context, orderID uuid.UUID, from []models.OrderStatus, build ReportBuilder) (*models.Order, []models.Discrepancy, error) {
	var (
		order   *models.Order
		created []models.Discrepancy
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !statusIn(locked.Status, from) {
			return ErrStatusConflict
		}

		open, err := findUnresolved(tx, orderID)
		if err != nil {
			return err
		}
		rows, err := build(locked, open)
		if err != nil {
			return err
		}
		order = locked
		if len(rows) == 0 {
			return nil
		}

		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, locked.Status).
			Update("status", models.OrderStatusDiscrepancy)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		order.Status = models.OrderStatusDiscrepancy
		created = rows
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, created, nil
}

func (r *GormDiscrepancyRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, notes string, at time.Time) (*models.Discrepancy, error) {
	res := r.db.WithContext(ctx).Model(&models.Discrepancy{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":         true,
			"resolved_by":      resolvedBy,
			"resolved_at":      at,
			"resolution_notes": notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the id is unknown or another resolve got there first.
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyResolved
	}
	return r.FindByID(ctx, id)
}

func findUnresolved(db *gorm.DB, orderID uuid.UUID) ([]models.Discrepancy, error) {
	items := []models.Discrepancy{}
	if err := db.Where("order_id = ? AND resolved = ?", orderID, false).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
