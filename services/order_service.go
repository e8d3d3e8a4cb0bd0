package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "supply-service/common/errors"
	"supply-service/common/logger"
	"supply-service/models"
	awspkg "supply-service/pkg/aws"
	"supply-service/repository"
	"supply-service/scope"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultEditWindow = 24 * time.Hour
	defaultPageSize   = 10
	maxPageSize       = 100
)

// OrderService enforces the order state machine.
type OrderService interface {
	Create(ctx context.Context, claim models.Claim, req *models.CreateOrderRequest) (*models.Order, error)
	Get(ctx context.Context, claim models.Claim, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, claim models.Claim, filter models.OrderFilter) (*models.OrderList, error)
	Accept(ctx context.Context, claim models.Claim, id uuid.UUID) (*models.Order, error)
	Dispatch(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.DispatchOrderRequest) (*models.Order, error)
	Receive(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.ReceiveOrderRequest) (*models.Order, error)
	Edit(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.EditOrderRequest) (*models.Order, error)
	Delete(ctx context.Context, claim models.Claim, id uuid.UUID) error
}

// UnresolvedChecker is the receive gate.
type UnresolvedChecker interface {
	HasUnresolved(ctx context.Context, orderID uuid.UUID) (*models.UnresolvedSummary, error)
}

// OrderServiceConfig holds tunables. Zero values fall back to defaults.
type OrderServiceConfig struct {
	EditWindow time.Duration
	Now        func() time.Time
}

type orderServiceImpl struct {
	repo          repository.OrderRepository
	vendors       repository.VendorDirectory
	discrepancies UnresolvedChecker
	events        EventSink
	metrics       awspkg.MetricsRecorder
	editWindow    time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	repo repository.OrderRepository,
	vendors repository.VendorDirectory,
	discrepancies UnresolvedChecker,
	events EventSink,
	metrics awspkg.MetricsRecorder,
	cfg OrderServiceConfig,
	logger *zap.Logger,
) OrderService {
	if cfg.EditWindow <= 0 {
		cfg.EditWindow = DefaultEditWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if metrics == nil {
		metrics = awspkg.NopMetrics{}
	}
	return &orderServiceImpl{
		repo:          repo,
		vendors:       vendors,
		discrepancies: discrepancies,
		events:        events,
		metrics:       metrics,
		editWindow:    cfg.EditWindow,
		now:           cfg.Now,
		logger:        logger,
	}
}

// Create places a new order in PLACED.
func (s *orderServiceImpl) Create(ctx context.Context, claim models.Claim, req *models.CreateOrderRequest) (*models.Order, error) {
	if err := requireFranchiseActor(claim); err != nil {
		return nil, err
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	franchise, err := s.vendors.FindFranchise(ctx, claim.FranchiseID)
	if err != nil {
		return nil, storeError(s.logger, err,
			apperrors.Validation("Unknown franchise %s", claim.FranchiseID), "Franchise lookup failed")
	}
	vendor, err := s.resolveVendor(ctx, franchise, req.VendorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := uuid.New()
	order := &models.Order{
		ID:             id,
		OrderNumber:    models.NewOrderNumber(now, id),
		FranchiseID:    franchise.ID,
		FranchiseName:  franchise.Name,
		VendorID:       vendor.ID,
		VendorName:     vendor.Name,
		Items:          items,
		Status:         models.OrderStatusPlaced,
		CreatedBy:      claim.UserID,
		DispatchPhotos: datatypes.JSONSlice[string]{},
		ReceivePhotos:  datatypes.JSONSlice[string]{},
		CreatedAt:      now,
	}
	order.RecomputeTotals()

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, storeError(s.logger, err, nil, "Failed to persist order")
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("franchise_id", order.FranchiseID),
		zap.String("vendor_id", order.VendorID),
		zap.String("total_amount", order.TotalAmount.String()),
	)
	s.count(ctx, awspkg.MetricOrdersCreated)
	s.emit(ctx, models.EventOrderCreated, claim, order)
	return order, nil
}

func (s *orderServiceImpl) resolveVendor(ctx context.Context, franchise *models.Franchise, requested string) (*models.Vendor, error) {
	vendorID := strings.TrimSpace(requested)
	if vendorID == "" {
		vendorID = franchise.VendorID
	}
	if vendorID == "" {
		return nil, apperrors.Validation("No vendor is assigned to franchise %s", franchise.ID)
	}
	vendor, err := s.vendors.FindVendor(ctx, vendorID)
	if err != nil {
		return nil, storeError(s.logger, err, apperrors.Validation("Unknown vendor %s", vendorID), "Vendor lookup failed")
	}
	return vendor, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, claim models.Claim, id uuid.UUID) (*models.Order, error) {
	return loadVisibleOrder(ctx, s.repo, s.logger, claim, id)
}

// List returns the caller's orders, newest first.
func (s *orderServiceImpl) List(ctx context.Context, claim models.Claim, filter models.OrderFilter) (*models.OrderList, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	orders, total, err := s.repo.List(ctx, scope.For(claim), filter)
	if err != nil {
		return nil, storeError(s.logger, err, nil, "Failed to list orders")
	}
	return &models.OrderList{
		Orders: orders,
		Meta:   models.NewPageMeta(filter.Page, filter.Limit, total),
	}, nil
}

// Accept moves PLACED to ACCEPTED.
func (s *orderServiceImpl) Accept(ctx context.Context, claim models.Claim, id uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireVendorActor(claim, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPlaced {
		return nil, apperrors.InvalidTransition("Order %s is %s; only PLACED orders can be accepted", order.OrderNumber, order.Status)
	}

	updated, err := s.repo.Transition(ctx, id,
		repository.TransitionOptions{From: []models.OrderStatus{models.OrderStatusPlaced}},
		func(o *models.Order) error {
			at := s.stamp(o)
			o.Status = models.OrderStatusAccepted
			o.AcceptedAt = &at
			o.AcceptedByName = claim.DisplayName()
			return nil
		})
	if err != nil {
		return nil, s.transitionError(err, "accept")
	}

	s.logTransition(ctx, "Order accepted", updated, claim)
	s.emit(ctx, models.EventOrderAccepted, claim, updated)
	return updated, nil
}

// Dispatch moves ACCEPTED to DISPATCHED. At least one photo is required.
func (s *orderServiceImpl) Dispatch(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.DispatchOrderRequest) (*models.Order, error) {
	photos := cleanURLs(req.DispatchPhotos)
	if len(photos) == 0 {
		return nil, apperrors.Validation("At least one dispatch photo is required")
	}

	order, err := loadOrder(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireVendorActor(claim, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusAccepted {
		return nil, apperrors.InvalidTransition("Order %s is %s; only ACCEPTED orders can be dispatched", order.OrderNumber, order.Status)
	}

	updated, err := s.repo.Transition(ctx, id,
		repository.TransitionOptions{From: []models.OrderStatus{models.OrderStatusAccepted}},
		func(o *models.Order) error {
			at := s.stamp(o)
			o.Status = models.OrderStatusDispatched
			o.DispatchedAt = &at
			o.DispatchedByName = claim.DisplayName()
			o.DispatchPhotos = photos
			o.DispatchNotes = strings.TrimSpace(req.Notes)
			return nil
		})
	if err != nil {
		return nil, s.transitionError(err, "dispatch")
	}

	s.logTransition(ctx, "Order dispatched", updated, claim)
	s.emit(ctx, models.EventOrderDispatched, claim, updated)
	return updated, nil
}

// Receive closes a dispatched order. Unresolved discrepancies block it; the
// check is repeated under the row lock so a concurrent report cannot slip in.
func (s *orderServiceImpl) Receive(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.ReceiveOrderRequest) (*models.Order, error) {
	order, err := loadOrder(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireFranchiseOwner(claim, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDispatched && order.Status != models.OrderStatusDiscrepancy {
		return nil, apperrors.Forbidden("Order %s is %s; only dispatched orders can be received", order.OrderNumber, order.Status)
	}
	received, err := reconcile(order, req.Items)
	if err != nil {
		return nil, err
	}

	summary, err := s.discrepancies.HasUnresolved(ctx, id)
	if err != nil {
		return nil, err
	}
	if summary.HasUnresolved {
		return nil, blockedError(summary)
	}

	photos := cleanURLs(req.ReceivePhotos)
	updated, err := s.repo.Transition(ctx, id,
		repository.TransitionOptions{
			From:                       []models.OrderStatus{models.OrderStatusDispatched, models.OrderStatusDiscrepancy},
			RequireNoOpenDiscrepancies: true,
		},
		func(o *models.Order) error {
			at := s.stamp(o)
			o.Status = models.OrderStatusReceived
			o.ReceivedAt = &at
			o.ReceivedByName = claim.DisplayName()
			o.ReceivePhotos = photos
			o.ReceiveNotes = strings.TrimSpace(req.Notes)
			for i := range o.Items {
				o.Items[i].ReceivedQty = o.Items[i].OrderedQty
				if qty, ok := received[strings.ToLower(o.Items[i].ItemName)]; ok {
					o.Items[i].ReceivedQty = qty
				}
			}
			o.RecomputeTotals()
			return nil
		})
	if errors.Is(err, repository.ErrOpenDiscrepancies) {
		// A report landed between the check and the write.
		if latest, checkErr := s.discrepancies.HasUnresolved(ctx, id); checkErr == nil {
			return nil, blockedError(latest)
		}
		return nil, apperrors.BlockedByDiscrepancy("Order has unresolved discrepancies; resolve them before confirming receipt")
	}
	if err != nil {
		return nil, s.transitionError(err, "receive")
	}

	s.logTransition(ctx, "Order received", updated, claim)
	s.count(ctx, awspkg.MetricOrdersReceived)
	s.emit(ctx, models.EventOrderReceived, claim, updated)
	return updated, nil
}

// Edit replaces the items of an order still inside its edit window.
func (s *orderServiceImpl) Edit(ctx context.Context, claim models.Claim, id uuid.UUID, req *models.EditOrderRequest) (*models.Order, error) {
	order, err := loadOrder(ctx, s.repo, s.logger, id)
	if err != nil {
		return nil, err
	}
	if err := requireFranchiseOwner(claim, order); err != nil {
		return nil, err
	}
	if err := s.checkEditWindow(order); err != nil {
		return nil, err
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, id,
		repository.TransitionOptions{From: []models.OrderStatus{models.OrderStatusPlaced}},
		func(o *models.Order) error {
			if err := s.checkEditWindow(o); err != nil {
				return err
			}
			o.Items = items
			o.RecomputeTotals()
			return nil
		})
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperrors.EditWindowExpired("Order %s is no longer PLACED and cannot be changed", order.OrderNumber)
	}
	if err != nil {
		return nil, s.transitionError(err, "edit")
	}

	s.logTransition(ctx, "Order edited", updated, claim)
	return updated, nil
}

// Delete soft-deletes an order still inside its edit window.
func (s *orderServiceImpl) Delete(ctx context.Context, claim models.Claim, id uuid.UUID) error {
	order, err := loadOrder(ctx, s.repo, s.logger, id)
	if err != nil {
		return err
	}
	if err := requireFranchiseOwner(claim, order); err != nil {
		return err
	}
	if err := s.checkEditWindow(order); err != nil {
		return err
	}

	err = s.repo.Delete(ctx, id, []models.OrderStatus{models.OrderStatusPlaced}, s.checkEditWindow)
	if errors.Is(err, repository.ErrStatusConflict) {
		return apperrors.EditWindowExpired("Order %s is no longer PLACED and cannot be deleted", order.OrderNumber)
	}
	if err != nil {
		return s.transitionError(err, "delete")
	}

	s.logTransition(ctx, "Order deleted", order, claim)
	return nil
}

func (s *orderServiceImpl) checkEditWindow(o *models.Order) error {
	if o.Status != models.OrderStatusPlaced {
		return apperrors.EditWindowExpired("Order %s is %s; only PLACED orders can be changed", o.OrderNumber, o.Status)
	}
	if s.now().Sub(o.CreatedAt) > s.editWindow {
		return apperrors.EditWindowExpired("Order %s can only be changed within %s of placement", o.OrderNumber, s.editWindow)
	}
	return nil
}

// loadOrder reads an order for a mutation. Callers follow it with the actor
// and ownership checks, so another vendor's or franchise's order is
// Forbidden rather than hidden.
func loadOrder(ctx context.Context, repo repository.OrderRepository, log *zap.Logger, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(log, err, apperrors.NotFound("Order %s not found", id), "Failed to load order")
	}
	return order, nil
}

// loadVisibleOrder hides orders outside the caller's scope behind NotFound.
func loadVisibleOrder(ctx context.Context, repo repository.OrderRepository, log *zap.Logger, claim models.Claim, id uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(ctx, repo, log, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanSee(claim, order) {
		return nil, apperrors.NotFound("Order %s not found", id)
	}
	return order, nil
}

// stamp returns now, clamped so lifecycle timestamps never go backwards.
func (s *orderServiceImpl) stamp(o *models.Order) time.Time {
	at := s.now()
	if last := o.LastTransitionAt(); at.Before(last) {
		at = last
	}
	return at
}

func (s *orderServiceImpl) transitionError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.InvalidTransition("Order changed while trying to %s it; reload and retry", action)
	case errors.Is(err, repository.ErrOpenDiscrepancies):
		return apperrors.BlockedByDiscrepancy("Order has unresolved discrepancies; resolve them before confirming receipt")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("Order not found")
	}
	return storeError(s.logger, err, nil, fmt.Sprintf("Failed to %s order", action))
}

func (s *orderServiceImpl) emit(ctx context.Context, eventType models.EventType, claim models.Claim, order *models.Order) {
	if s.events == nil {
		return
	}
	snapshot := *order
	event := models.NewDomainEvent(eventType, claim, s.now())
	event.Order = &snapshot
	s.events.Emit(ctx, event)
}

func (s *orderServiceImpl) count(ctx context.Context, metric string) {
	recordCount(ctx, s.metrics, s.logger, metric)
}

func (s *orderServiceImpl) logTransition(ctx context.Context, msg string, o *models.Order, claim models.Claim) {
	logger.ForRequest(ctx, s.logger).Info(msg,
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("status", string(o.Status)),
		zap.String("user_id", claim.UserID),
		zap.String("role", string(claim.Role)),
	)
}

func blockedError(summary *models.UnresolvedSummary) error {
	return apperrors.BlockedByDiscrepancy(
		"Order has %d unresolved discrepancy(ies); an admin must resolve them before receipt can be confirmed",
		summary.UnresolvedCount,
	).WithDetails(map[string]any{
		"unresolved_count": summary.UnresolvedCount,
		"discrepancies":    summary.Discrepancies,
	})
}

func requireFranchiseActor(claim models.Claim) error {
	if !claim.Role.IsFranchiseSide() || claim.FranchiseID == "" {
		return apperrors.Forbidden("Only franchise users can do this")
	}
	return nil
}

func requireFranchiseOwner(claim models.Claim, o *models.Order) error {
	if err := requireFranchiseActor(claim); err != nil {
		return err
	}
	if !claim.ActsForFranchise(o.FranchiseID) {
		return apperrors.Forbidden("Order %s belongs to another franchise", o.OrderNumber)
	}
	return nil
}

func requireVendorActor(claim models.Claim, o *models.Order) error {
	if !claim.Role.IsVendorSide() {
		return apperrors.Forbidden("Only kitchen users can do this")
	}
	if !claim.ActsForVendor(o.VendorID) {
		return apperrors.Forbidden("Order %s is assigned to another vendor", o.OrderNumber)
	}
	return nil
}

// buildItems validates item input and prices every line.
func buildItems(in []models.OrderItemInput) (datatypes.JSONSlice[models.OrderItem], error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("Order must contain at least one item")
	}
	seen := make(map[string]struct{}, len(in))
	items := make(datatypes.JSONSlice[models.OrderItem], 0, len(in))
	for i, it := range in {
		name := strings.TrimSpace(it.ItemName)
		if name == "" {
			return nil, apperrors.Validation("Item %d has no name", i+1)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, apperrors.Validation("Item %q appears more than once", name)
		}
		seen[key] = struct{}{}
		if !it.OrderedQty.IsPositive() {
			return nil, apperrors.Validation("Item %q must have ordered_qty greater than zero", name)
		}
		if it.UnitPrice.IsNegative() || it.VendorPrice.IsNegative() {
			return nil, apperrors.Validation("Item %q has a negative price", name)
		}
		items = append(items, models.OrderItem{
			ItemName:    name,
			OrderedQty:  it.OrderedQty,
			ReceivedQty: it.OrderedQty,
			UOM:         strings.TrimSpace(it.UOM),
			UnitPrice:   it.UnitPrice,
			VendorPrice: it.VendorPrice,
		})
	}
	return items, nil
}

// reconcile validates receipt quantities against the order lines. Keys are
// lower-cased item names.
func reconcile(o *models.Order, in []models.ReceivedItemInput) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for _, it := range in {
		line, ok := o.Item(strings.TrimSpace(it.ItemName))
		if !ok {
			return nil, apperrors.Validation("Item %q is not on order %s", it.ItemName, o.OrderNumber)
		}
		if it.ReceivedQty.IsNegative() {
			return nil, apperrors.Validation("Item %q has a negative received_qty", line.ItemName)
		}
		out[strings.ToLower(line.ItemName)] = it.ReceivedQty
	}
	return out, nil
}

func cleanURLs(urls []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
