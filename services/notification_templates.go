package services

import (
	"fmt"
	"strings"

	"supply-service/models"
)

type notificationContent struct {
	Title   string
	Message string
	Link    string
}

func orderLink(o *models.Order) string {
	return fmt.Sprintf("/orders/%s", o.ID)
}

// renderOrderEvent builds the text for an order lifecycle event. Names are the
// snapshot taken when the order was placed.
func renderOrderEvent(eventType models.EventType, o *models.Order) notificationContent {
	switch eventType {
	case models.EventOrderCreated:
		return notificationContent{
			Title: "New order received",
			Message: fmt.Sprintf("%s placed order %s with %d item(s), total %s",
				o.FranchiseName, o.OrderNumber, len(o.Items), o.TotalVendorCost.StringFixed(2)),
			Link: orderLink(o),
		}
	case models.EventOrderAccepted:
		return notificationContent{
			Title:   "Order accepted",
			Message: fmt.Sprintf("Order %s was accepted by %s", o.OrderNumber, o.VendorName),
			Link:    orderLink(o),
		}
	case models.EventOrderDispatched:
		return notificationContent{
			Title:   "Order dispatched",
			Message: fmt.Sprintf("Order %s is on its way from %s", o.OrderNumber, o.VendorName),
			Link:    orderLink(o),
		}
	case models.EventOrderReceived:
		return notificationContent{
			Title:   "Order received",
			Message: fmt.Sprintf("%s confirmed receipt of order %s", o.FranchiseName, o.OrderNumber),
			Link:    orderLink(o),
		}
	}
	return notificationContent{
		Title:   "Order updated",
		Message: fmt.Sprintf("Order %s is now %s", o.OrderNumber, o.Status),
		Link:    orderLink(o),
	}
}

func renderDiscrepancyReported(o *models.Order, ds []models.Discrepancy) notificationContent {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, fmt.Sprintf("%s (%s %s %s)", d.ItemName, d.Kind(), d.Difference.Abs().String(), d.UOM))
	}
	return notificationContent{
		Title: "Discrepancy reported",
		Message: fmt.Sprintf("%s reported %d discrepancy(ies) on order %s: %s",
			o.FranchiseName, len(ds), o.OrderNumber, strings.Join(parts, ", ")),
		Link: orderLink(o),
	}
}

func renderDiscrepancyResolved(d models.Discrepancy) notificationContent {
	msg := fmt.Sprintf("The discrepancy for %s on order %s was resolved", d.ItemName, d.OrderNumber)
	if d.ResolutionNotes != nil && *d.ResolutionNotes != "" {
		msg += ": " + *d.ResolutionNotes
	}
	return notificationContent{
		Title:   "Discrepancy resolved",
		Message: msg,
		Link:    fmt.Sprintf("/orders/%s", d.OrderID),
	}
}
