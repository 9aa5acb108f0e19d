package models

import (
	"cbs/src/types"
	"time"
)

// WaitlistEntry queues a contender behind the booking currently holding
// its court/time window. The recorded range is copied from the blocking
// booking, never from the requester's raw input. References are plain
// identifiers, set at most once, and only point forward: entry -> blocking
// booking, entry -> shadow order/item, entry -> converted order.
type WaitlistEntry struct {
	ID               uint                 `gorm:"primarykey" json:"id"`
	CourtID          uint                 `json:"court_id,omitempty"`
	BookingID        uint                 `json:"booking_id,omitempty"`
	UserID           uint                 `json:"user_id,omitempty"`
	StartTime        time.Time            `json:"start_time,omitempty"`
	EndTime          time.Time            `json:"end_time,omitempty"`
	Position         uint                 `json:"position,omitempty"`
	Status           types.WaitlistStatus `gorm:"default:'pending'" json:"status,omitempty"`
	NotifiedAt       *time.Time           `json:"notified_at,omitempty"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`
	ShadowOrderID    *uint                `json:"shadow_order_id,omitempty"`
	ShadowItemID     *uint                `json:"shadow_item_id,omitempty"`
	ConvertedOrderID *uint                `json:"converted_order_id,omitempty"`

	Court *Court `gorm:"foreignKey:court_id" json:"court,omitempty"`
	User  *User  `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}

func (e *WaitlistEntry) Queued() bool {
	return e.Status == types.WAITLIST_PENDING || e.Status == types.WAITLIST_NOTIFIED
}
