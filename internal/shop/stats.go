package shop

import "github.com/samber/lo"

// DashboardStats summarizes the active (non-archived) workload.
type DashboardStats struct {
	TotalOrders    int     `json:"totalOrders"`
	PendingCount   int     `json:"pendingCount"`
	InProcessCount int     `json:"inProcessCount"`
	DeliveredCount int     `json:"deliveredCount"`
	TotalRevenue   float64 `json:"totalRevenue"`
	PendingBudgets int     `json:"pendingBudgets"`
}

// FinancialSummary is the revenue rollup over a caller-supplied order set.
type FinancialSummary struct {
	Total              float64            `json:"total"`
	Received           float64            `json:"received"`
	ToReceive          float64            `json:"toReceive"`
	ByMaterial         map[string]float64 `json:"byMaterial"`
	PercentageReceived float64            `json:"percentageReceived"`
}

func orderRevenue(order Order) float64 {
	return order.EntryValue + order.RemainingValue
}

// ActiveOrders filters out archived orders regardless of status.
func ActiveOrders(orders []Order) []Order {
	return lo.Filter(orders, func(order Order, _ int) bool {
		return !order.Archived
	})
}

// ComputeDashboardStats derives the dashboard aggregate from the current
// collections. Pure and recomputed on every call; archived orders are
// excluded from every figure.
func ComputeDashboardStats(orders []Order, budgets []Budget) DashboardStats {
	active := ActiveOrders(orders)
	byStatus := lo.CountValuesBy(active, func(order Order) OrderStatus {
		return order.Status
	})
	return DashboardStats{
		TotalOrders:    len(active),
		PendingCount:   byStatus[OrderStatusPending],
		InProcessCount: byStatus[OrderStatusInProcess],
		DeliveredCount: byStatus[OrderStatusDelivered],
		TotalRevenue:   lo.SumBy(active, orderRevenue),
		PendingBudgets: lo.CountBy(budgets, func(budget Budget) bool {
			return budget.Status == BudgetStatusWaiting
		}),
	}
}

// ComputeFinancialSummary derives the financial rollup over the given order
// set. Callers pass the full collection (archived included) unless they want
// a narrower scope.
func ComputeFinancialSummary(orders []Order) FinancialSummary {
	summary := FinancialSummary{
		Total:     lo.SumBy(orders, orderRevenue),
		Received:  lo.SumBy(orders, func(order Order) float64 { return order.EntryValue }),
		ToReceive: lo.SumBy(orders, func(order Order) float64 { return order.RemainingValue }),
		ByMaterial: lo.MapValues(
			lo.GroupBy(orders, func(order Order) string { return order.MaterialType }),
			func(group []Order, _ string) float64 { return lo.SumBy(group, orderRevenue) },
		),
	}
	if summary.Total > 0 {
		summary.PercentageReceived = summary.Received / summary.Total * 100
	}
	return summary
}
