package models

import (
	"cbs/src/types"
	"time"
)

type CartItem struct {
	ID              uint                 `gorm:"primarykey" json:"id"`
	OrderID         uint                 `json:"order_id,omitempty"`
	CourtID         uint                 `json:"court_id,omitempty"`
	BookingID       *uint                `json:"booking_id,omitempty"`
	Date            time.Time            `json:"date,omitempty"`
	StartTime       time.Time            `json:"start_time,omitempty"`
	EndTime         time.Time            `json:"end_time,omitempty"`
	Price           float64              `json:"price"`
	Players         uint8                `json:"players,omitempty"`
	Status          types.CartItemStatus `gorm:"default:'pending'" json:"status,omitempty"`
	WaitlistEntryID *uint                `json:"waitlist_entry_id,omitempty"`

	Court *Court `gorm:"foreignKey:court_id" json:"court,omitempty"`
	Order *Order `gorm:"foreignKey:order_id" json:"-"`

	types.Timestamps
}

func (i *CartItem) Active() bool {
	return i.Status == types.CART_ITEM_PENDING || i.Status == types.CART_ITEM_COMPLETED
}
