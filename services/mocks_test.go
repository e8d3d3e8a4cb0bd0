package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"supply-service/models"
	"supply-service/repository"
	"supply-service/scope"
	"supply-service/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- in-memory store ----

// memStore backs both the order and discrepancy mocks so that transitions
// see discrepancies, like the real tables do.
type memStore struct {
	mu            sync.Mutex
	orders        map[uuid.UUID]models.Order
	discrepancies map[uuid.UUID]models.Discrepancy

	findErr       error
	transitionErr error
	// beforeWrite runs inside Transition after the status check, simulating
	// a concurrent writer.
	beforeWrite func(id uuid.UUID)
	writes      []string
}

func newMemStore() *memStore {
	return &memStore{
		orders:        map[uuid.UUID]models.Order{},
		discrepancies: map[uuid.UUID]models.Discrepancy{},
	}
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append(o.Items[:0:0], o.Items...)
	o.DispatchPhotos = append(o.DispatchPhotos[:0:0], o.DispatchPhotos...)
	o.ReceivePhotos = append(o.ReceivePhotos[:0:0], o.ReceivePhotos...)
	return o
}

func (s *memStore) put(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

func (s *memStore) get(id uuid.UUID) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrder(s.orders[id])
}

func (s *memStore) openCount(orderID uuid.UUID) int {
	n := 0
	for _, d := range s.discrepancies {
		if d.OrderID == orderID && !d.Resolved {
			n++
		}
	}
	return n
}

func (s *memStore) log(op string) { s.writes = append(s.writes, op) }

type memOrderRepo struct{ *memStore }

func (r memOrderRepo) Create(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = cloneOrder(*o)
	r.log("order.create")
	return nil
}

func (r memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r memOrderRepo) List(_ context.Context, pred scope.Predicate, filter models.OrderFilter) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	if pred.Deny() {
		return out, 0, nil
	}
	for _, o := range r.orders {
		switch {
		case pred.Unrestricted:
		case pred.FranchiseID != "":
			if o.FranchiseID != pred.FranchiseID {
				continue
			}
		default:
			found := false
			for _, v := range pred.VendorIDs {
				found = found || v == o.VendorID
			}
			if !found {
				continue
			}
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := min((filter.Page-1)*filter.Limit, len(out))
	end := min(start+filter.Limit, len(out))
	return out[start:end], total, nil
}

func (r memOrderRepo) Transition(_ context.Context, id uuid.UUID, opts repository.TransitionOptions, mutate repository.OrderMutation) (*models.Order, error) {
	r.mu.Lock()
	if r.transitionErr != nil {
		r.mu.Unlock()
		return nil, r.transitionErr
	}
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	prev := o.Status
	found := false
	for _, st := range opts.From {
		found = found || st == prev
	}
	if !found {
		r.mu.Unlock()
		return nil, repository.ErrStatusConflict
	}
	hook := r.beforeWrite
	r.mu.Unlock()

	if hook != nil {
		hook(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if opts.RequireNoOpenDiscrepancies && r.openCount(id) > 0 {
		return nil, repository.ErrOpenDiscrepancies
	}
	working := cloneOrder(o)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	if r.orders[id].Status != prev {
		return nil, repository.ErrStatusConflict
	}
	r.orders[id] = cloneOrder(working)
	r.log("order." + strings.ToLower(string(working.Status)))
	return &working, nil
}

func (r memOrderRepo) Delete(_ context.Context, id uuid.UUID, from []models.OrderStatus, guard repository.OrderMutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	found := false
	for _, st := range from {
		found = found || st == o.Status
	}
	if !found {
		return repository.ErrStatusConflict
	}
	if err := guard(&o); err != nil {
		return err
	}
	delete(r.orders, id)
	r.log("order.delete")
	return nil
}

type memDiscrepancyRepo struct{ *memStore }

func (r memDiscrepancyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discrepancies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (r memDiscrepancyRepo) unresolved(orderID uuid.UUID) []models.Discrepancy {
	out := []models.Discrepancy{}
	for _, d := range r.discrepancies {
		if d.OrderID == orderID && !d.Resolved {
			out = append(out, d)
		}
	}
	return out
}

func (r memDiscrepancyRepo) ListUnresolvedByOrder(_ context.Context, orderID uuid.UUID) ([]models.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unresolved(orderID), nil
}

func (r memDiscrepancyRepo) List(_ context.Context, pred scope.Predicate, filter models.DiscrepancyFilter) ([]models.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Discrepancy{}
	if pred.Deny() {
		return out, nil
	}
	for _, d := range r.discrepancies {
		if pred.FranchiseID != "" && d.FranchiseID != pred.FranchiseID {
			continue
		}
		if filter.OrderID != nil && d.OrderID != *filter.OrderID {
			continue
		}
		if filter.Resolved != nil && d.Resolved != *filter.Resolved {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r memDiscrepancyRepo) Report(_ context.Context, orderID uuid.UUID, from []models.OrderStatus, build repository.ReportBuilder) (*models.Order, []models.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	found := false
	for _, st := range from {
		found = found || st == o.Status
	}
	if !found {
		return nil, nil, repository.ErrStatusConflict
	}
	locked := cloneOrder(o)
	rows, err := build(&locked, r.unresolved(orderID))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return &locked, nil, nil
	}
	for _, d := range rows {
		r.discrepancies[d.ID] = d
	}
	locked.Status = models.OrderStatusDiscrepancy
	r.orders[orderID] = cloneOrder(locked)
	r.log("discrepancy.report")
	return &locked, rows, nil
}

func (r memDiscrepancyRepo) Resolve(_ context.Context, id uuid.UUID, resolvedBy, notes string, at time.Time) (*models.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discrepancies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if d.Resolved {
		return nil, repository.ErrAlreadyResolved
	}
	d.Resolved = true
	d.ResolvedBy = &resolvedBy
	d.ResolvedAt = &at
	d.ResolutionNotes = &notes
	r.discrepancies[id] = d
	r.log("discrepancy.resolve")
	return &d, nil
}

// ---- mock directories ----

type mockDirectory struct {
	users      []models.User
	usersErr   error
	franchises map[string]models.Franchise
	vendors    map[string]models.Vendor
}

func (m *mockDirectory) ListActiveCandidates(_ context.Context, _, _ string) ([]models.User, error) {
	return m.users, m.usersErr
}

func (m *mockDirectory) FindFranchise(_ context.Context, id string) (*models.Franchise, error) {
	f, ok := m.franchises[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &f, nil
}

func (m *mockDirectory) FindVendor(_ context.Context, id string) (*models.Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

// ---- mock notification repository ----

type mockNotificationRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]models.Notification
	failFor map[string]bool
	// failBatches fails MarkReadBatch calls whose first id is listed.
	failBatches map[uuid.UUID]bool
	batchCalls  int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		rows:        map[uuid.UUID]models.Notification{},
		failFor:     map[string]bool{},
		failBatches: map[uuid.UUID]bool{},
	}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[n.UserID] {
		return errors.New("insert failed")
	}
	if _, exists := m.rows[n.ID]; exists {
		return nil
	}
	m.rows[n.ID] = *n
	return nil
}

func (m *mockNotificationRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &n, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.rows[id]
	if n.UserID == userID {
		n.IsRead = true
		m.rows[id] = n
	}
	return nil
}

func (m *mockNotificationRepo) ListUnreadIDs(_ context.Context, userID string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, n := range m.rows {
		if n.UserID == userID && !n.IsRead {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *mockNotificationRepo) MarkReadBatch(_ context.Context, userID string, ids []uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if len(ids) > 0 && m.failBatches[ids[0]] {
		return 0, errors.New("update timed out")
	}
	var n int64
	for _, id := range ids {
		row := m.rows[id]
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			m.rows[id] = row
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.rows {
		if n.UserID != userID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) forUser(userID string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// ---- recording sink ----

type recordingSink struct {
	mu     sync.Mutex
	store  *memStore
	events []models.DomainEvent
	// writesAtEmit is how many store writes had happened when each event
	// was emitted.
	writesAtEmit []int
}

func (s *recordingSink) Emit(_ context.Context, e models.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.store != nil {
		s.store.mu.Lock()
		s.writesAtEmit = append(s.writesAtEmit, len(s.store.writes))
		s.store.mu.Unlock()
	}
}

func (s *recordingSink) types() []models.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// ---- fake clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ---- helpers ----

var (
	franchiseClaim = models.Claim{UserID: "f-owner", Name: "Asha", Role: models.RoleFranchise, FranchiseID: "F1"}
	otherFranchise = models.Claim{UserID: "f-other", Name: "Ravi", Role: models.RoleFranchise, FranchiseID: "F2"}
	kitchenClaim   = models.Claim{UserID: "k-lead", Name: "Chef", Role: models.RoleKitchenStaff, VendorID: "V1"}
	adminClaim     = models.Claim{UserID: "admin-1", Name: "Ops", Role: models.RoleAdmin}
	auditorClaim   = models.Claim{UserID: "aud-1", Name: "Audit", Role: models.RoleAuditor}
)

func testDirectory() *mockDirectory {
	return &mockDirectory{
		franchises: map[string]models.Franchise{
			"F1": {ID: "F1", Name: "Indiranagar", VendorID: "V1"},
			"F2": {ID: "F2", Name: "Koramangala", VendorID: "V1"},
		},
		vendors: map[string]models.Vendor{
			"V1": {ID: "V1", Name: "Central Kitchen"},
		},
	}
}

type fixture struct {
	store         *memStore
	sink          *recordingSink
	clock         *fakeClock
	orders        services.OrderService
	discrepancies services.DiscrepancyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	sink := &recordingSink{store: store}
	clock := newFakeClock()
	logger := zap.NewNop()

	disc := services.NewDiscrepancyService(memOrderRepo{store}, memDiscrepancyRepo{store}, sink, nil, clock.Now, logger)
	orders := services.NewOrderService(memOrderRepo{store}, testDirectory(), disc, sink, nil,
		services.OrderServiceConfig{Now: clock.Now}, logger)
	return &fixture{store: store, sink: sink, clock: clock, orders: orders, discrepancies: disc}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// scenarioItems is 10 @ 5 (vendor 4) and 4 @ 20 (vendor 15).
func scenarioItems() []models.OrderItemInput {
	return []models.OrderItemInput{
		{ItemName: "Paneer", OrderedQty: dec("10"), UOM: "kg", UnitPrice: dec("5"), VendorPrice: dec("4")},
		{ItemName: "Tomato", OrderedQty: dec("4"), UOM: "kg", UnitPrice: dec("20"), VendorPrice: dec("15")},
	}
}

// placeAndDispatch drives a fresh order to DISPATCHED.
func (f *fixture) placeAndDispatch(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(time.Hour)
	if _, err := f.orders.Accept(ctx, kitchenClaim, o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.clock.Advance(time.Hour)
	o, err = f.orders.Dispatch(ctx, kitchenClaim, o.ID, &models.DispatchOrderRequest{DispatchPhotos: []string{"https://cdn/p1.jpg"}})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	f.clock.Advance(time.Hour)
	return o
}
