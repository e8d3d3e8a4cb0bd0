package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemInput is one line of a create or edit payload. Prices come from the
// catalog lookup done by the caller.
type OrderItemInput struct {
	ItemName    string          `json:"item_name" binding:"required"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	UOM         string          `json:"uom"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VendorPrice decimal.Decimal `json:"vendor_price"`
}

// CreateOrderRequest is the payload for placing an order. VendorID is
// optional; the franchise's assigned vendor is used when it is empty.
type CreateOrderRequest struct {
	VendorID string           `json:"vendor_id"`
	Items    []OrderItemInput `json:"items" binding:"required,min=1,dive"`
}

type EditOrderRequest struct {
	Items []OrderItemInput `json:"items" binding:"required,min=1,dive"`
}

type DispatchOrderRequest struct {
	DispatchPhotos []string `json:"dispatch_photos" binding:"required,min=1"`
	Notes          string   `json:"notes"`
}

// ReceivedItemInput reconciles one line on receipt.
type ReceivedItemInput struct {
	ItemName    string          `json:"item_name" binding:"required"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
}

// ReceiveOrderRequest confirms delivery. Items left out keep received_qty
// equal to ordered_qty.
type ReceiveOrderRequest struct {
	ReceivePhotos []string            `json:"receive_photos"`
	Notes         string              `json:"notes"`
	Items         []ReceivedItemInput `json:"items" binding:"omitempty,dive"`
}

type DiscrepancyItemInput struct {
	ItemName    string          `json:"item_name" binding:"required"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	UOM         string          `json:"uom"`
	Notes       string          `json:"notes"`
	Photos      []string        `json:"photos"`
}

type ReportDiscrepancyRequest struct {
	OrderID uuid.UUID              `json:"order_id" binding:"required"`
	Items   []DiscrepancyItemInput `json:"items" binding:"required,min=1,dive"`
}

type ResolveDiscrepancyRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// OrderFilter narrows an order listing inside the caller's scope.
type OrderFilter struct {
	Status      OrderStatus
	FranchiseID string
	VendorID    string
	Page        int
	Limit       int
}

type DiscrepancyFilter struct {
	OrderID  *uuid.UUID
	Resolved *bool
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPageMeta computes paging totals.
func NewPageMeta(page, limit int, total int64) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}

type OrderList struct {
	Orders []Order  `json:"orders"`
	Meta   PageMeta `json:"meta"`
}

// UnresolvedSummary is the receive gate for an order.
type UnresolvedSummary struct {
	HasUnresolved   bool          `json:"hasUnresolved"`
	UnresolvedCount int           `json:"unresolvedCount"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
}

// ReportResult lists the discrepancies a report created and the item names it
// skipped because they already had an open discrepancy.
type ReportResult struct {
	Order         *Order        `json:"order"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Skipped       []string      `json:"skipped"`
}
