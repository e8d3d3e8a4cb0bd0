package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DiscrepancyKind tells a short delivery apart from an over-delivery.
type DiscrepancyKind string

const (
	DiscrepancyShortfall DiscrepancyKind = "shortfall"
	DiscrepancySurplus   DiscrepancyKind = "surplus"
)

// Discrepancy records a mismatch between ordered and received quantity for
// one item on a dispatched order. OrderNumber and FranchiseName are copied at
// report time and are not kept in sync with the order.
type Discrepancy struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	OrderNumber   string    `gorm:"type:varchar(32);not null" json:"order_number"`
	FranchiseID   string    `gorm:"type:varchar(128);not null;index" json:"franchise_id"`
	FranchiseName string    `gorm:"type:varchar(256)" json:"franchise_name"`
	VendorID      string    `gorm:"type:varchar(128);not null;index" json:"vendor_id"`
	ItemName      string    `gorm:"type:varchar(256);not null" json:"item_name"`

	OrderedQty  decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"ordered_qty"`
	ReceivedQty decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"received_qty"`
	// Difference is ordered minus received; positive means a shortfall.
	Difference decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"difference"`
	UOM        string          `gorm:"type:varchar(32)" json:"uom"`

	Notes  string                      `gorm:"type:text" json:"notes"`
	Photos datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"photos"`

	Resolved        bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedBy      *string    `gorm:"type:varchar(128)" json:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes *string    `gorm:"type:text" json:"resolution_notes"`

	ReportedBy string    `gorm:"type:varchar(128);not null" json:"reported_by"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

func (d Discrepancy) OwnerFranchiseID() string { return d.FranchiseID }
func (d Discrepancy) OwnerVendorID() string    { return d.VendorID }

// Kind is shortfall when fewer units arrived than ordered, surplus otherwise.
func (d Discrepancy) Kind() DiscrepancyKind {
	if d.Difference.IsNegative() {
		return DiscrepancySurplus
	}
	return DiscrepancyShortfall
}

// MarshalJSON adds the derived kind to the stored fields.
func (d Discrepancy) MarshalJSON() ([]byte, error) {
	type discrepancyJSON Discrepancy
	return json.Marshal(struct {
		discrepancyJSON
		Kind DiscrepancyKind `json:"kind"`
	}{discrepancyJSON(d), d.Kind()})
}
