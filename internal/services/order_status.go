package services

import "course-marketplace/internal/models"

// isValidOrderStatusTransition описывает строгий жизненный цикл заказа.
// CANCELLED и REFUNDED конечные, повтор текущего статуса допустим.
func isValidOrderStatusTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusCompleted || to == models.OrderStatusCancelled
	case models.OrderStatusCompleted:
		return to == models.OrderStatusCancelled || to == models.OrderStatusRefunded
	case models.OrderStatusCancelled, models.OrderStatusRefunded:
		return false
	default:
		return false
	}
}
