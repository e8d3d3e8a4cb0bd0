package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	apperrors "supply-service/common/errors"
	"supply-service/models"
	awspkg "supply-service/pkg/aws"
	"supply-service/repository"
	"supply-service/scope"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFanoutConcurrency = 8
	defaultReadBatchSize     = 100
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

var (
	// ErrNoRecipientsWritten means every notification write of a fan-out failed.
	ErrNoRecipientsWritten = errors.New("no notification could be written")
	// ErrMalformedEvent marks events that can never be dispatched.
	ErrMalformedEvent = errors.New("malformed domain event")
)

// NotificationService writes and serves per-user notifications.
type NotificationService interface {
	Dispatch(ctx context.Context, event models.DomainEvent) (models.DispatchResult, error)
	MarkRead(ctx context.Context, claim models.Claim, id uuid.UUID) error
	MarkAllRead(ctx context.Context, claim models.Claim) (int64, error)
	List(ctx context.Context, claim models.Claim, filter models.NotificationFilter) (*models.NotificationList, error)
	UnreadCount(ctx context.Context, claim models.Claim) (int64, error)
}

type NotificationServiceConfig struct {
	Concurrency int
	BatchSize   int
	Now         func() time.Time
}

type notificationServiceImpl struct {
	repo        repository.NotificationRepository
	users       repository.UserDirectory
	metrics     awspkg.MetricsRecorder
	concurrency int
	batchSize   int
	now         func() time.Time
	logger      *zap.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserDirectory,
	metrics awspkg.MetricsRecorder,
	cfg NotificationServiceConfig,
	logger *zap.Logger,
) NotificationService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultFanoutConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultReadBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &notificationServiceImpl{
		repo:        repo,
		users:       users,
		metrics:     metrics,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		now:         cfg.Now,
		logger:      logger,
	}
}

// Dispatch writes one notification per recipient of event. Writes run
// concurrently and a failed write never stops the others. An error is
// returned only when recipients could not be resolved or nothing was written,
// so a queue consumer can retry the whole event.
func (s *notificationServiceImpl) Dispatch(ctx context.Context, event models.DomainEvent) (models.DispatchResult, error) {
	var result models.DispatchResult

	rows, err := s.build(ctx, event)
	if err != nil {
		return result, err
	}
	result.Recipients = len(rows)
	if len(rows) == 0 {
		s.logger.Info("No recipients for event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
		)
		return result, nil
	}

	var written, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range rows {
		n := &rows[i]
		g.Go(func() error {
			if err := s.repo.Create(ctx, n); err != nil {
				failed.Add(1)
				s.logger.Error("Failed to write notification",
					zap.String("event_type", string(event.Type)),
					zap.String("user_id", n.UserID),
					zap.String("reference_id", n.ReferenceID.String()),
					zap.Error(err),
				)
				recordCount(ctx, s.metrics, s.logger, awspkg.MetricNotificationsFailed)
				return nil
			}
			written.Add(1)
			recordCount(ctx, s.metrics, s.logger, awspkg.MetricNotificationsWritten)
			return nil
		})
	}
	_ = g.Wait()

	result.Written = int(written.Load())
	result.Failed = int(failed.Load())
	if result.Written == 0 {
		return result, fmt.Errorf("%s: %d recipient(s): %w", event.Type, result.Recipients, ErrNoRecipientsWritten)
	}
	return result, nil
}

// build renders the notification rows for event without writing them.
func (s *notificationServiceImpl) build(ctx context.Context, event models.DomainEvent) ([]models.Notification, error) {
	notifType := event.Type.NotificationType()
	at := s.now()

	if event.Type == models.EventDiscrepancyResolved {
		rows := make([]models.Notification, 0, len(event.Discrepancies))
		for _, d := range event.Discrepancies {
			if d.ReportedBy == "" {
				continue
			}
			rows = append(rows, newNotification(event.ID, d.ReportedBy, notifType, d.ID, renderDiscrepancyResolved(d), at))
		}
		return rows, nil
	}

	order := event.Order
	if order == nil {
		return nil, fmt.Errorf("event %s (%s) carries no order: %w", event.ID, event.Type, ErrMalformedEvent)
	}

	var (
		audience scope.Audience
		content  notificationContent
	)
	switch event.Type {
	case models.EventOrderCreated, models.EventOrderReceived:
		audience = scope.AudienceVendor
		content = renderOrderEvent(event.Type, order)
	case models.EventOrderAccepted, models.EventOrderDispatched:
		audience = scope.AudienceFranchise
		content = renderOrderEvent(event.Type, order)
	case models.EventDiscrepancyReported:
		if len(event.Discrepancies) == 0 {
			return nil, nil
		}
		audience = scope.AudienceVendor | scope.AudienceAdmin
		content = renderDiscrepancyReported(order, event.Discrepancies)
	default:
		return nil, fmt.Errorf("unknown event type %q: %w", event.Type, ErrMalformedEvent)
	}

	users, err := s.users.ListActiveCandidates(ctx, order.FranchiseID, order.VendorID)
	if err != nil {
		return nil, fmt.Errorf("resolving recipients for %s: %w", event.Type, err)
	}
	recipients := scope.Recipients(users, order, audience)
	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, newNotification(event.ID, userID, notifType, order.ID, content, at))
	}
	return rows, nil
}

// notificationID is stable per (event, recipient, reference) so a redelivered
// event maps onto the rows it already wrote.
func notificationID(eventID uuid.UUID, userID string, ref uuid.UUID) uuid.UUID {
	if eventID == uuid.Nil {
		return uuid.New()
	}
	return uuid.NewSHA1(eventID, []byte(userID+"/"+ref.String()))
}

func newNotification(eventID uuid.UUID, userID string, t models.NotificationType, ref uuid.UUID, c notificationContent, at time.Time) models.Notification {
	return models.Notification{
		ID:          notificationID(eventID, userID, ref),
		UserID:      userID,
		Type:        t,
		Title:       c.Title,
		Message:     c.Message,
		Link:        c.Link,
		ReferenceID: ref,
		CreatedAt:   at,
	}
}

// MarkRead marks one of the caller's notifications read. Repeating it is a
// no-op.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, claim models.Claim, id uuid.UUID) error {
	notFound := apperrors.NotFound("Notification %s not found", id)
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return storeError(s.logger, err, notFound, "Failed to load notification")
	}
	if n.UserID != claim.UserID {
		return apperrors.Forbidden("Notification %s belongs to another user", id)
	}
	if n.IsRead {
		return nil
	}
	if err := s.repo.MarkRead(ctx, id, claim.UserID); err != nil {
		return storeError(s.logger, err, notFound, "Failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks the caller's unread notifications read in concurrent
// batches and returns how many rows changed. Failed batches are logged and
// left unread.
func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, claim models.Claim) (int64, error) {
	ids, err := s.repo.ListUnreadIDs(ctx, claim.UserID)
	if err != nil {
		return 0, storeError(s.logger, err, nil, "Failed to list unread notifications")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var updated atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(ids); start += s.batchSize {
		batch := ids[start:min(start+s.batchSize, len(ids))]
		g.Go(func() error {
			n, err := s.repo.MarkReadBatch(ctx, claim.UserID, batch)
			if err != nil {
				s.logger.Error("Failed to mark notification batch read",
					zap.String("user_id", claim.UserID),
					zap.Int("batch_size", len(batch)),
					zap.Error(err),
				)
				return nil
			}
			updated.Add(n)
			return nil
		})
	}
	_ = g.Wait()

	total := updated.Load()
	s.logger.Info("Marked notifications read",
		zap.String("user_id", claim.UserID),
		zap.Int("unread", len(ids)),
		zap.Int64("updated", total),
	)
	return total, nil
}

// List returns the caller's newest notifications. UnreadCount is taken over
// the returned page only.
func (s *notificationServiceImpl) List(ctx context.Context, claim models.Claim, filter models.NotificationFilter) (*models.NotificationList, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultNotificationLimit
	}
	if filter.Limit > maxNotificationLimit {
		filter.Limit = maxNotificationLimit
	}

	items, err := s.repo.ListByUser(ctx, claim.UserID, filter)
	if err != nil {
		return nil, storeError(s.logger, err, nil, "Failed to list notifications")
	}
	unread := 0
	for _, n := range items {
		if !n.IsRead {
			unread++
		}
	}
	return &models.NotificationList{Notifications: items, UnreadCount: unread}, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, claim models.Claim) (int64, error) {
	n, err := s.repo.CountUnread(ctx, claim.UserID)
	if err != nil {
		return 0, storeError(s.logger, err, nil, "Failed to count unread notifications")
	}
	return n, nil
}
