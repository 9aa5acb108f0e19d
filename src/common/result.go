package common

import (
	"cbs/src/models"
	"cbs/src/types"

	"gorm.io/gorm"
)

// Result is the envelope every mutating engine call returns: the
// machine-readable outcome plus the post-transition snapshot of the
// affected records.
type Result struct {
	Outcome  types.Outcome         `json:"outcome"`
	Order    *models.Order         `json:"order,omitempty"`
	Bookings []models.Booking      `json:"bookings,omitempty"`
	Entry    *models.WaitlistEntry `json:"waitlist_entry,omitempty"`
}

func snapshotOrder(tx *gorm.DB, orderID uint, kind types.OutcomeKind) (*Result, error) {
	var order models.Order
	if err := tx.
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Preload("CartItems").
		Preload("Bookings").
		First(&order).
		Error; err != nil {
		return nil, err
	}
	return &Result{
		Outcome:  types.Outcome{Kind: kind},
		Order:    &order,
		Bookings: order.Bookings,
	}, nil
}
