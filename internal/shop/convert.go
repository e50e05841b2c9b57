package shop

import (
	"fmt"
	"time"
)

const orderDateLayout = "2006-01-02"

// buildOrderFromBudget constructs the order produced by approving a budget.
// Client details carry over verbatim; the budget's email is folded into the
// order notes because orders have no email field of their own. Entry value
// starts at zero and the full quoted total remains to receive.
func buildOrderFromBudget(budget Budget, orderID string, convertedAt time.Time) Order {
	email := budget.Email
	if email == "" {
		email = "N/A"
	}
	return Order{
		ID:             orderID,
		UserID:         budget.UserID,
		OrderDate:      convertedAt.UTC().Format(orderDateLayout),
		ClientName:     budget.ClientName,
		Phone:          budget.Phone,
		MaterialType:   budget.MaterialType,
		Measurements:   budget.Measurements,
		Quantity:       budget.Quantity,
		Color:          "",
		AdditionalInfo: fmt.Sprintf("%s\nEmail: %s", budget.Notes, email),
		EntryValue:     0,
		RemainingValue: budget.TotalValue,
		Status:         OrderStatusPending,
		Archived:       false,
	}
}
