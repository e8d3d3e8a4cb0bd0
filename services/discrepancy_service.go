package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "supply-service/common/errors"
	"supply-service/models"
	awspkg "supply-service/pkg/aws"
	"supply-service/repository"
	"supply-service/scope"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DiscrepancyService reports and arbitrates quantity mismatches.
type DiscrepancyService interface {
	Report(ctx context.Context, claim models.Claim, req *models.ReportDiscrepancyRequest) (*models.ReportResult, error)
	HasUnresolved(ctx context.Context, orderID uuid.UUID) (*models.UnresolvedSummary, error)
	// CheckOrder is HasUnresolved behind the caller's scope.
	CheckOrder(ctx context.Context, claim models.Claim, orderID uuid.UUID) (*models.UnresolvedSummary, error)
	Resolve(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.ResolveDiscrepancyRequest) (*models.Discrepancy, error)
	List(ctx context.Context, claim models.Claim, filter models.DiscrepancyFilter) ([]models.Discrepancy, error)
}

var reportableStatuses = []models.OrderStatus{models.OrderStatusDispatched, models.OrderStatusDiscrepancy}

type discrepancyServiceImpl struct {
	orders  repository.OrderRepository
	repo    repository.DiscrepancyRepository
	events  EventSink
	metrics awspkg.MetricsRecorder
	now     func() time.Time
	logger  *zap.Logger
}

// NewDiscrepancyService creates a new DiscrepancyService. now defaults to
// time.Now.
func NewDiscrepancyService(
	orders repository.OrderRepository,
	repo repository.DiscrepancyRepository,
	events EventSink,
	metrics awspkg.MetricsRecorder,
	now func() time.Time,
	logger *zap.Logger,
) DiscrepancyService {
	if now == nil {
		now = time.Now
	}
	return &discrepancyServiceImpl{
		orders:  orders,
		repo:    repo,
		events:  events,
		metrics: metrics,
		now:     now,
		logger:  logger,
	}
}

// reportLine is one validated report item, keyed to its order line.
type reportLine struct {
	line  models.OrderItem
	input models.DiscrepancyItemInput
}

// Report records one discrepancy per mismatched item and flags the order.
// Items that already have an open discrepancy are skipped so a retried
// report does not duplicate rows.
func (s *discrepancyServiceImpl) Report(ctx context.Context, claim models.Claim, req *models.ReportDiscrepancyRequest) (*models.ReportResult, error) {
	if req.OrderID == uuid.Nil {
		return nil, apperrors.Validation("order_id is required")
	}
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("At least one item is required")
	}

	order, err := loadOrder(ctx, s.orders, s.logger, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := requireFranchiseOwner(claim, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDispatched && order.Status != models.OrderStatusDiscrepancy {
		return nil, apperrors.InvalidTransition("Order %s is %s; discrepancies can only be reported after dispatch", order.OrderNumber, order.Status)
	}

	lines, err := mismatchedLines(order, req.Items)
	if err != nil {
		return nil, err
	}

	var skipped []string
	at := s.now()
	updated, created, err := s.repo.Report(ctx, order.ID, reportableStatuses,
		func(locked *models.Order, open []models.Discrepancy) ([]models.Discrepancy, error) {
			openItems := make(map[string]struct{}, len(open))
			for _, d := range open {
				openItems[strings.ToLower(d.ItemName)] = struct{}{}
			}
			skipped = skipped[:0]
			rows := make([]models.Discrepancy, 0, len(lines))
			for _, l := range lines {
				if _, dup := openItems[strings.ToLower(l.line.ItemName)]; dup {
					skipped = append(skipped, l.line.ItemName)
					continue
				}
				rows = append(rows, newDiscrepancy(locked, l, claim.UserID, at))
			}
			return rows, nil
		})
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperrors.InvalidTransition("Order %s changed while reporting; reload and retry", order.OrderNumber)
	}
	if err != nil {
		return nil, storeError(s.logger, err, apperrors.NotFound("Order %s not found", order.ID), "Failed to report discrepancy")
	}

	result := &models.ReportResult{
		Order:         updated,
		Discrepancies: created,
		Skipped:       skipped,
	}
	if result.Discrepancies == nil {
		result.Discrepancies = []models.Discrepancy{}
	}
	if result.Skipped == nil {
		result.Skipped = []string{}
	}
	if len(created) == 0 {
		s.logger.Info("Discrepancy report had nothing new",
			zap.String("order_id", order.ID.String()),
			zap.Strings("skipped", skipped),
		)
		return result, nil
	}

	for _, d := range created {
		s.logger.Info("Discrepancy reported",
			zap.String("discrepancy_id", d.ID.String()),
			zap.String("order_id", d.OrderID.String()),
			zap.String("item_name", d.ItemName),
			zap.String("difference", d.Difference.String()),
			zap.String("kind", string(d.Kind())),
			zap.String("user_id", claim.UserID),
		)
		recordCount(ctx, s.metrics, s.logger, awspkg.MetricDiscrepanciesReported)
	}

	if s.events != nil {
		snapshot := *updated
		event := models.NewDomainEvent(models.EventDiscrepancyReported, claim, s.now())
		event.Order = &snapshot
		event.Discrepancies = append([]models.Discrepancy(nil), created...)
		s.events.Emit(ctx, event)
	}
	return result, nil
}

// mismatchedLines validates report items against the order and keeps only
// those whose received quantity differs from the ordered one. The order line
// is authoritative for ordered_qty and uom.
func mismatchedLines(order *models.Order, items []models.DiscrepancyItemInput) ([]reportLine, error) {
	seen := make(map[string]struct{}, len(items))
	lines := make([]reportLine, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.ItemName)
		if name == "" {
			return nil, apperrors.Validation("Every reported item needs an item_name")
		}
		line, ok := order.Item(name)
		if !ok {
			return nil, apperrors.Validation("Item %q is not on order %s", name, order.OrderNumber)
		}
		key := strings.ToLower(line.ItemName)
		if _, dup := seen[key]; dup {
			return nil, apperrors.Validation("Item %q is reported more than once", line.ItemName)
		}
		seen[key] = struct{}{}
		if it.ReceivedQty.IsNegative() || it.OrderedQty.IsNegative() {
			return nil, apperrors.Validation("Item %q has a negative quantity", line.ItemName)
		}
		if it.ReceivedQty.Equal(line.OrderedQty) {
			continue
		}
		lines = append(lines, reportLine{line: *line, input: it})
	}
	if len(lines) == 0 {
		return nil, apperrors.Validation("Every reported item matches the ordered quantity; nothing to report")
	}
	return lines, nil
}

func newDiscrepancy(o *models.Order, l reportLine, reportedBy string, at time.Time) models.Discrepancy {
	uom := l.line.UOM
	if uom == "" {
		uom = strings.TrimSpace(l.input.UOM)
	}
	return models.Discrepancy{
		ID:            uuid.New(),
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		FranchiseID:   o.FranchiseID,
		FranchiseName: o.FranchiseName,
		VendorID:      o.VendorID,
		ItemName:      l.line.ItemName,
		OrderedQty:    l.line.OrderedQty,
		ReceivedQty:   l.input.ReceivedQty,
		Difference:    l.line.OrderedQty.Sub(l.input.ReceivedQty),
		UOM:           uom,
		Notes:         strings.TrimSpace(l.input.Notes),
		Photos:        cleanURLs(l.input.Photos),
		ReportedBy:    reportedBy,
		CreatedAt:     at,
	}
}

func (s *discrepancyServiceImpl) HasUnresolved(ctx context.Context, orderID uuid.UUID) (*models.UnresolvedSummary, error) {
	open, err := s.repo.ListUnresolvedByOrder(ctx, orderID)
	if err != nil {
		return nil, storeError(s.logger, err, nil, "Failed to check unresolved discrepancies")
	}
	return &models.UnresolvedSummary{
		HasUnresolved:   len(open) > 0,
		UnresolvedCount: len(open),
		Discrepancies:   open,
	}, nil
}

func (s *discrepancyServiceImpl) CheckOrder(ctx context.Context, claim models.Claim, orderID uuid.UUID) (*models.UnresolvedSummary, error) {
	if _, err := loadVisibleOrder(ctx, s.orders, s.logger, claim, orderID); err != nil {
		return nil, err
	}
	summary, err := s.HasUnresolved(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary.Discrepancies = scope.Filter(claim, summary.Discrepancies)
	summary.UnresolvedCount = len(summary.Discrepancies)
	summary.HasUnresolved = summary.UnresolvedCount > 0
	return summary, nil
}

// Resolve closes a discrepancy. A second resolve is rejected and leaves the
// first resolution untouched.
func (s *discrepancyServiceImpl) Resolve(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.ResolveDiscrepancyRequest) (*models.Discrepancy, error) {
	if claim.Role != models.RoleAdmin {
		return nil, apperrors.Forbidden("Only admins can resolve discrepancies")
	}

	d, err := s.repo.Resolve(ctx, id, claim.UserID, strings.TrimSpace(req.ResolutionNotes), s.now())
	switch {
	case errors.Is(err, repository.ErrAlreadyResolved):
		return nil, apperrors.AlreadyResolved("Discrepancy %s is already resolved", id)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.NotFound("Discrepancy %s not found", id)
	case err != nil:
		return nil, storeError(s.logger, err, nil, "Failed to resolve discrepancy")
	}

	s.logger.Info("Discrepancy resolved",
		zap.String("discrepancy_id", d.ID.String()),
		zap.String("order_id", d.OrderID.String()),
		zap.String("user_id", claim.UserID),
	)
	recordCount(ctx, s.metrics, s.logger, awspkg.MetricDiscrepanciesResolved)

	if s.events != nil {
		event := models.NewDomainEvent(models.EventDiscrepancyResolved, claim, s.now())
		event.Discrepancies = []models.Discrepancy{*d}
		s.events.Emit(ctx, event)
	}
	return d, nil
}

func (s *discrepancyServiceImpl) List(ctx context.Context, claim models.Claim, filter models.DiscrepancyFilter) ([]models.Discrepancy, error) {
	items, err := s.repo.List(ctx, scope.For(claim), filter)
	if err != nil {
		return nil, storeError(s.logger, err, nil, "Failed to list discrepancies")
	}
	return items, nil
}
