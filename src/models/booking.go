package models

import (
	"cbs/src/types"
	"time"
)

type Booking struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	OrderID       uint                `json:"order_id,omitempty"`
	CourtID       uint                `json:"court_id,omitempty"`
	UserID        uint                `json:"user_id,omitempty"`
	StartTime     time.Time           `json:"start_time,omitempty"`
	EndTime       time.Time           `json:"end_time,omitempty"`
	Price         float64             `json:"price"`
	Status        types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'unpaid'" json:"payment_status,omitempty"`
	NeedsReview   bool                `json:"needs_review,omitempty"`

	Court *Court `gorm:"foreignKey:court_id" json:"court,omitempty"`
	Order *Order `gorm:"foreignKey:order_id" json:"-"`
	User  *User  `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}
