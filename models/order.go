package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	OrderStatusPlaced      OrderStatus = "PLACED"
	OrderStatusAccepted    OrderStatus = "ACCEPTED"
	OrderStatusDispatched  OrderStatus = "DISPATCHED"
	OrderStatusReceived    OrderStatus = "RECEIVED"
	OrderStatusDiscrepancy OrderStatus = "DISCREPANCY"
)

// DISCREPANCY sits beside DISPATCHED: it annotates a dispatched order with
// open or past reports and can still move on to RECEIVED.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:      {OrderStatusAccepted},
	OrderStatusAccepted:    {OrderStatusDispatched},
	OrderStatusDispatched:  {OrderStatusReceived, OrderStatusDiscrepancy},
	OrderStatusDiscrepancy: {OrderStatusReceived, OrderStatusDiscrepancy},
}

// ValidStatusTransition reports whether an order may move from one status to another.
func ValidStatusTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Stage is the position of a status along PLACED→ACCEPTED→DISPATCHED→RECEIVED.
func (s OrderStatus) Stage() int {
	switch s {
	case OrderStatusPlaced:
		return 0
	case OrderStatusAccepted:
		return 1
	case OrderStatusDispatched, OrderStatusDiscrepancy:
		return 2
	case OrderStatusReceived:
		return 3
	}
	return -1
}

// ParseOrderStatus accepts a status in any letter case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if status.Stage() < 0 {
		return "", false
	}
	return status, true
}

// OrderItem is one line of an order. Items are stored inside the order row
// and have no identity of their own.
type OrderItem struct {
	ItemName    string          `json:"item_name"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	UOM         string          `json:"uom"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VendorPrice decimal.Decimal `json:"vendor_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Order is the GORM model persisted in Postgres.
type Order struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber     string                         `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	FranchiseID     string                         `gorm:"type:varchar(128);not null;index" json:"franchise_id"`
	FranchiseName   string                         `gorm:"type:varchar(256)" json:"franchise_name"`
	VendorID        string                         `gorm:"type:varchar(128);not null;index" json:"vendor_id"`
	VendorName      string                         `gorm:"type:varchar(256)" json:"vendor_name"`
	Items           datatypes.JSONSlice[OrderItem] `gorm:"type:jsonb;not null" json:"items"`
	Status          OrderStatus                    `gorm:"type:varchar(16);not null;index" json:"status"`
	TotalAmount     decimal.Decimal                `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	TotalVendorCost decimal.Decimal                `gorm:"type:decimal(14,2);not null" json:"total_vendor_cost"`

	CreatedBy        string `gorm:"type:varchar(128);not null" json:"created_by"`
	AcceptedByName   string `gorm:"type:varchar(256)" json:"accepted_by_name,omitempty"`
	DispatchedByName string `gorm:"type:varchar(256)" json:"dispatched_by_name,omitempty"`
	ReceivedByName   string `gorm:"type:varchar(256)" json:"received_by_name,omitempty"`

	// Photo URLs come from the upload service and are stored verbatim.
	DispatchPhotos datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"dispatch_photos"`
	ReceivePhotos  datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"receive_photos"`
	DispatchNotes  string                      `gorm:"type:text" json:"dispatch_notes,omitempty"`
	ReceiveNotes   string                      `gorm:"type:text" json:"receive_notes,omitempty"`

	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	AcceptedAt   *time.Time     `json:"accepted_at"`
	DispatchedAt *time.Time     `json:"dispatched_at"`
	ReceivedAt   *time.Time     `json:"received_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// OwnerFranchiseID and OwnerVendorID let scope checks treat orders and
// discrepancies alike.
func (o Order) OwnerFranchiseID() string { return o.FranchiseID }
func (o Order) OwnerVendorID() string    { return o.VendorID }

// NewOrderNumber renders ORD-YYYYMMDD-XXXXXXXX from the creation date and the
// first eight hex digits of the order id.
func NewOrderNumber(createdAt time.Time, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", createdAt.Format("20060102"), strings.ToUpper(hex[:8]))
}

// RecomputeTotals refreshes every line total and both order totals. Before
// receipt quantities come from ordered_qty; once received they come from
// received_qty. Prices never change after placement.
func (o *Order) RecomputeTotals() {
	received := o.Status == OrderStatusReceived
	total := decimal.Zero
	vendorCost := decimal.Zero
	for i := range o.Items {
		qty := o.Items[i].OrderedQty
		if received {
			qty = o.Items[i].ReceivedQty
		}
		o.Items[i].LineTotal = qty.Mul(o.Items[i].UnitPrice)
		total = total.Add(o.Items[i].LineTotal)
		vendorCost = vendorCost.Add(qty.Mul(o.Items[i].VendorPrice))
	}
	o.TotalAmount = total
	o.TotalVendorCost = vendorCost
}

// Item returns the line with the given name.
func (o *Order) Item(name string) (*OrderItem, bool) {
	for i := range o.Items {
		if strings.EqualFold(o.Items[i].ItemName, name) {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// LastTransitionAt is the latest lifecycle timestamp set on the order.
func (o *Order) LastTransitionAt() time.Time {
	latest := o.CreatedAt
	for _, t := range []*time.Time{o.AcceptedAt, o.DispatchedAt, o.ReceivedAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}
