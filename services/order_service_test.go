package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "supply-service/common/errors"
	"supply-service/models"
	"supply-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreate_ScenarioA(t *testing.T) {
	f := newFixture(t)

	o, err := f.orders.Create(context.Background(), franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPlaced, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("130")), "total %s", o.TotalAmount)
	assert.True(t, o.TotalVendorCost.Equal(dec("100")), "vendor cost %s", o.TotalVendorCost)
	assert.Equal(t, "V1", o.VendorID)
	assert.Equal(t, "Central Kitchen", o.VendorName)
	assert.Equal(t, "Indiranagar", o.FranchiseName)
	assert.Regexp(t, `^ORD-20240315-[0-9A-F]{8}$`, o.OrderNumber)

	sum := dec("0")
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal)
	}
	assert.True(t, sum.Equal(o.TotalAmount))
	assert.Equal(t, []models.EventType{models.EventOrderCreated}, f.sink.types())
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		claim models.Claim
		req   *models.CreateOrderRequest
		kind  apperrors.Kind
	}{
		{"no items", franchiseClaim, &models.CreateOrderRequest{}, apperrors.KindValidation},
		{"zero qty", franchiseClaim, &models.CreateOrderRequest{Items: []models.OrderItemInput{
			{ItemName: "Paneer", OrderedQty: dec("0"), UnitPrice: dec("5")},
		}}, apperrors.KindValidation},
		{"duplicate item", franchiseClaim, &models.CreateOrderRequest{Items: []models.OrderItemInput{
			{ItemName: "Paneer", OrderedQty: dec("1")},
			{ItemName: "paneer ", OrderedQty: dec("2")},
		}}, apperrors.KindValidation},
		{"unknown vendor", franchiseClaim, &models.CreateOrderRequest{VendorID: "V9", Items: scenarioItems()}, apperrors.KindValidation},
		{"kitchen cannot place", kitchenClaim, &models.CreateOrderRequest{Items: scenarioItems()}, apperrors.KindForbidden},
		{"auditor is read-only", auditorClaim, &models.CreateOrderRequest{Items: scenarioItems()}, apperrors.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.orders.Create(context.Background(), tt.claim, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.From(err).Kind)
			assert.Empty(t, f.sink.types())
		})
	}
}

func TestCreate_NoVendorAssigned(t *testing.T) {
	store := newMemStore()
	dir := testDirectory()
	dir.franchises["F3"] = models.Franchise{ID: "F3", Name: "Whitefield"}
	svc := services.NewOrderService(memOrderRepo{store}, dir, nil, &recordingSink{}, nil, services.OrderServiceConfig{}, zap.NewNop())

	claim := models.Claim{UserID: "f3", Role: models.RoleFranchise, FranchiseID: "F3"}
	_, err := svc.Create(context.Background(), claim, &models.CreateOrderRequest{Items: scenarioItems()})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAcceptDispatch_ScenarioB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	o, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, o.Status)
	assert.Equal(t, "Chef", o.AcceptedByName)

	f.clock.Advance(time.Minute)
	o, err = f.orders.Dispatch(ctx, kitchenClaim, o.ID, &models.DispatchOrderRequest{
		DispatchPhotos: []string{"https://cdn.example.com/dispatch/1.jpg"},
		Notes:          "two crates",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDispatched, o.Status)
	require.NotNil(t, o.DispatchedAt)
	require.NotNil(t, o.AcceptedAt)
	assert.True(t, o.AcceptedAt.Before(*o.DispatchedAt))
	assert.Equal(t, []string{"https://cdn.example.com/dispatch/1.jpg"}, []string(o.DispatchPhotos))
	assert.Equal(t, "two crates", o.DispatchNotes)

	assert.Equal(t, []models.EventType{
		models.EventOrderCreated, models.EventOrderAccepted, models.EventOrderDispatched,
	}, f.sink.types())
}

func TestDispatch_RequiresPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)
	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	require.NoError(t, err)

	for _, photos := range [][]string{nil, {}, {"", "  "}} {
		_, err := f.orders.Dispatch(ctx, kitchenClaim, o.ID, &models.DispatchOrderRequest{DispatchPhotos: photos})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}
	// Photos are checked before anything else, even for unknown orders.
	_, err = f.orders.Dispatch(ctx, kitchenClaim, uuid.New(), &models.DispatchOrderRequest{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Equal(t, models.OrderStatusAccepted, f.store.get(o.ID).Status)
}

func TestAccept_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	_, err = f.orders.Accept(ctx, franchiseClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "franchise cannot accept")

	otherVendor := models.Claim{UserID: "k-2", Role: models.RoleKitchen, VendorID: "V2"}
	_, err = f.orders.Accept(ctx, otherVendor, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "order of another vendor")
	_, err = f.orders.Accept(ctx, kitchenClaim, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	require.NoError(t, err)

	photos := &models.DispatchOrderRequest{DispatchPhotos: []string{"https://cdn/p1.jpg"}}
	_, err = f.orders.Dispatch(ctx, otherVendor, o.ID, photos)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "dispatch by another vendor")
	assert.Equal(t, models.OrderStatusAccepted, f.store.get(o.ID).Status)

	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestAccept_ConcurrentCallsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.Accept(ctx, kitchenClaim, o.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	for _, err := range errs {
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	}
	stored := f.store.get(o.ID)
	assert.Equal(t, models.OrderStatusAccepted, stored.Status)
	assert.True(t, stored.TotalAmount.Equal(dec("130")))
}

func TestAccept_LostCompareAndSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	// Another writer accepts the order between the status check and the write.
	f.store.beforeWrite = func(id uuid.UUID) {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		row := f.store.orders[id]
		row.Status = models.OrderStatusAccepted
		f.store.orders[id] = row
	}

	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, []models.EventType{models.EventOrderCreated}, f.sink.types())
}

func TestReceive_ReconciliationRecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeAndDispatch(t)

	got, err := f.orders.Receive(ctx, franchiseClaim, o.ID, &models.ReceiveOrderRequest{
		ReceivePhotos: []string{"https://cdn.example.com/receive/1.jpg"},
		Items:         []models.ReceivedItemInput{{ItemName: "paneer", ReceivedQty: dec("7")}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusReceived, got.Status)
	assert.Equal(t, "Asha", got.ReceivedByName)
	paneer, _ := got.Item("Paneer")
	tomato, _ := got.Item("Tomato")
	assert.True(t, paneer.ReceivedQty.Equal(dec("7")))
	assert.True(t, tomato.ReceivedQty.Equal(dec("4")), "omitted items default to ordered_qty")
	assert.True(t, got.TotalAmount.Equal(dec("115")), "total %s", got.TotalAmount)
	require.NotNil(t, got.ReceivedAt)
	assert.True(t, got.ReceivedAt.After(*got.DispatchedAt))
}

func TestReceive_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placed, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	_, err = f.orders.Receive(ctx, franchiseClaim, placed.ID, &models.ReceiveOrderRequest{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "not dispatched yet")

	o := f.placeAndDispatch(t)
	_, err = f.orders.Receive(ctx, kitchenClaim, o.ID, &models.ReceiveOrderRequest{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "vendor cannot receive")

	_, err = f.orders.Receive(ctx, franchiseClaim, o.ID, &models.ReceiveOrderRequest{
		Items: []models.ReceivedItemInput{{ItemName: "Onion", ReceivedQty: dec("1")}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.orders.Receive(ctx, franchiseClaim, o.ID, &models.ReceiveOrderRequest{
		Items: []models.ReceivedItemInput{{ItemName: "Paneer", ReceivedQty: dec("-1")}},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEdit_WithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	f.clock.Advance(23 * time.Hour)
	got, err := f.orders.Edit(ctx, franchiseClaim, o.ID, &models.EditOrderRequest{Items: []models.OrderItemInput{
		{ItemName: "Paneer", OrderedQty: dec("2"), UnitPrice: dec("5"), VendorPrice: dec("4")},
	}})
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equal(dec("10")))
	assert.Equal(t, models.OrderStatusPlaced, got.Status)
}

func TestEdit_ScenarioE(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	_, err = f.orders.Edit(ctx, franchiseClaim, o.ID, &models.EditOrderRequest{Items: scenarioItems()})
	assert.ErrorIs(t, err, apperrors.ErrEditWindowExpired)

	err = f.orders.Delete(ctx, franchiseClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrEditWindowExpired)
}

func TestEdit_AfterAcceptIsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)
	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	require.NoError(t, err)

	_, err = f.orders.Edit(ctx, franchiseClaim, o.ID, &models.EditOrderRequest{Items: scenarioItems()})
	assert.ErrorIs(t, err, apperrors.ErrEditWindowExpired)
}

func TestEdit_OtherFranchiseForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	_, err = f.orders.Edit(ctx, otherFranchise, o.ID, &models.EditOrderRequest{Items: scenarioItems()})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.ErrorIs(t, f.orders.Delete(ctx, otherFranchise, o.ID), apperrors.ErrForbidden)

	// Reads still hide the order.
	_, err = f.orders.Get(ctx, otherFranchise, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDelete_WithinWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	require.NoError(t, f.orders.Delete(ctx, franchiseClaim, o.ID))
	_, err = f.orders.Get(ctx, franchiseClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet_Scope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	for _, c := range []models.Claim{franchiseClaim, kitchenClaim, adminClaim, auditorClaim} {
		_, err := f.orders.Get(ctx, c, o.ID)
		assert.NoError(t, err, string(c.Role))
	}
	_, err = f.orders.Get(ctx, otherFranchise, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestList_ScopedNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.orders.Create(ctx, otherFranchise, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	list, err := f.orders.List(ctx, franchiseClaim, models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	assert.Equal(t, second.ID, list.Orders[0].ID)
	assert.Equal(t, first.ID, list.Orders[1].ID)
	assert.Equal(t, int64(2), list.Meta.Total)
	assert.Equal(t, 10, list.Meta.Limit)

	all, err := f.orders.List(ctx, adminClaim, models.OrderFilter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 3)
	assert.Equal(t, 100, all.Meta.Limit)
}

func TestTransition_StoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)

	f.store.transitionErr = errors.New("connection reset")
	_, err = f.orders.Accept(ctx, kitchenClaim, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, []models.EventType{models.EventOrderCreated}, f.sink.types())
}

func TestEvents_EmittedAfterCommit(t *testing.T) {
	f := newFixture(t)
	o := f.placeAndDispatch(t)
	_, err := f.orders.Receive(context.Background(), franchiseClaim, o.ID, &models.ReceiveOrderRequest{})
	require.NoError(t, err)

	// Each event is emitted only once the write it describes is stored.
	require.Len(t, f.sink.writesAtEmit, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, f.sink.writesAtEmit)
	assert.Equal(t, []string{"order.create", "order.accepted", "order.dispatched", "order.received"}, f.store.writes)
}

func TestTimestamps_NeverGoBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.Create(ctx, franchiseClaim, &models.CreateOrderRequest{Items: scenarioItems()})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	accepted, err := f.orders.Accept(ctx, kitchenClaim, o.ID)
	require.NoError(t, err)

	f.clock.Advance(-2 * time.Hour)
	dispatched, err := f.orders.Dispatch(ctx, kitchenClaim, o.ID, &models.DispatchOrderRequest{DispatchPhotos: []string{"p.jpg"}})
	require.NoError(t, err)
	assert.False(t, dispatched.DispatchedAt.Before(*accepted.AcceptedAt))
}
