package models

import "cbs/src/types"

type Order struct {
	ID              uint                 `gorm:"primarykey" json:"id"`
	UserID          uint                 `json:"user_id,omitempty"`
	GuestName       *string              `json:"guest_name,omitempty"`
	ApprovalStatus  types.ApprovalStatus `gorm:"default:'pending'" json:"approval_status,omitempty"`
	Status          types.OrderStatus    `gorm:"default:'open'" json:"status,omitempty"`
	PaymentStatus   types.PaymentStatus  `gorm:"default:'unpaid'" json:"payment_status,omitempty"`
	PaymentProofRef *string              `json:"payment_proof_ref,omitempty"`
	TotalPrice      float64              `json:"total_price"`
	RejectReason    *string              `json:"reject_reason,omitempty"`
	CreatedBy       uint                 `json:"created_by,omitempty"`

	User      *User      `gorm:"foreignKey:user_id" json:"user,omitempty"`
	CartItems []CartItem `json:"cart_items,omitempty"`
	Bookings  []Booking  `json:"bookings,omitempty"`

	types.Timestamps
}

// HasProof is the payment-proof half of the expiration exemption
// predicate. The reference is opaque, only presence matters.
func (o *Order) HasProof() bool {
	return o.PaymentProofRef != nil && *o.PaymentProofRef != ""
}
