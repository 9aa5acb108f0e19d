package types

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UID      string `json:"uid"`
	jwt.RegisteredClaims
}

type Role string

const (
	ROLE_USER  Role = "user"
	ROLE_STAFF Role = "staff"
	ROLE_ADMIN Role = "admin"
)

// Privileged reports whether the role may create bookings on behalf of a
// walk-in guest. Privilege never bypasses an existing waitlist.
func (r Role) Privileged() bool {
	return r == ROLE_STAFF || r == ROLE_ADMIN
}

type ApprovalStatus string

const (
	APPROVAL_PENDING          ApprovalStatus = "pending"
	APPROVAL_PENDING_WAITLIST ApprovalStatus = "pending_waitlist"
	APPROVAL_APPROVED         ApprovalStatus = "approved"
	APPROVAL_REJECTED         ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Terminal() bool {
	return s == APPROVAL_APPROVED || s == APPROVAL_REJECTED
}

type OrderStatus string

const (
	ORDER_OPEN        OrderStatus = "open"
	ORDER_CHECKED_OUT OrderStatus = "checked_out"
	ORDER_CHECKED_IN  OrderStatus = "checked_in"
	ORDER_EXPIRED     OrderStatus = "expired"
	ORDER_CANCELED    OrderStatus = "canceled"
)

type PaymentStatus string

const (
	PAYMENT_UNPAID PaymentStatus = "unpaid"
	PAYMENT_PAID   PaymentStatus = "paid"
)

type CartItemStatus string

const (
	CART_ITEM_PENDING   CartItemStatus = "pending"
	CART_ITEM_COMPLETED CartItemStatus = "completed"
	CART_ITEM_CANCELED  CartItemStatus = "canceled"
	CART_ITEM_REJECTED  CartItemStatus = "rejected"
)

type BookingStatus string

const (
	BOOKING_PENDING    BookingStatus = "pending"
	BOOKING_APPROVED   BookingStatus = "approved"
	BOOKING_REJECTED   BookingStatus = "rejected"
	BOOKING_CANCELED   BookingStatus = "canceled"
	BOOKING_COMPLETED  BookingStatus = "completed"
	BOOKING_CHECKED_IN BookingStatus = "checked_in"
)

// Blocking reports whether a booking in this status holds its time window
// against all other contenders.
func (s BookingStatus) Blocking() bool {
	switch s {
	case BOOKING_PENDING, BOOKING_APPROVED, BOOKING_COMPLETED, BOOKING_CHECKED_IN:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case BOOKING_REJECTED, BOOKING_CANCELED, BOOKING_COMPLETED:
		return true
	}
	return false
}

type WaitlistStatus string

const (
	WAITLIST_PENDING   WaitlistStatus = "pending"
	WAITLIST_NOTIFIED  WaitlistStatus = "notified"
	WAITLIST_CONVERTED WaitlistStatus = "converted"
	WAITLIST_EXPIRED   WaitlistStatus = "expired"
	WAITLIST_CANCELED  WaitlistStatus = "canceled"
)

type SlotStatus string

const (
	SLOT_AVAILABLE            SlotStatus = "available"
	SLOT_QUEUEABLE            SlotStatus = "queueable"
	SLOT_BOOKED               SlotStatus = "booked"
	SLOT_WAITLISTED_BY_CALLER SlotStatus = "waitlisted_by_caller"
)

type SlotInfo struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Status SlotStatus `json:"status"`
}

// FeatureFlags is computed once per request and passed into both the
// availability query and the checkout validator so the two can never
// disagree on whether a slot is joinable.
type FeatureFlags struct {
	WaitlistEnabled bool `json:"waitlist_enabled"`
}

type OutcomeKind string

const (
	OUTCOME_ACCEPTED OutcomeKind = "accepted"
	OUTCOME_REJECTED OutcomeKind = "rejected"
	OUTCOME_QUEUED   OutcomeKind = "queued"
	OUTCOME_APPROVED OutcomeKind = "approved"
	OUTCOME_ERROR    OutcomeKind = "error"
)

type Outcome struct {
	Kind     OutcomeKind `json:"outcome"`
	Position uint        `json:"position,omitempty"`
	Error    string      `json:"error_kind,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type AddCartItemRequestBody struct {
	CourtID   uint   `json:"court" binding:"required"`
	Date      string `json:"date" binding:"required,bookabledate"`
	StartTime string `json:"start_time" binding:"required,clocktime"`
	EndTime   string `json:"end_time" binding:"required,clocktime"`
	Players   uint8  `json:"players,omitempty"`
}

type EditCartItemRequestBody struct {
	CourtID   uint   `json:"court,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type RejectOrderRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}

type WalkInRequestBody struct {
	GuestName string                   `json:"guest_name" binding:"required"`
	Items     []AddCartItemRequestBody `json:"items" binding:"required,min=1"`
}

type AttachProofRequestBody struct {
	Reference string `json:"reference" binding:"required"`
}

type CreateCourtRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description,omitempty"`
	OpenTime    string  `json:"open_time" binding:"required"`
	CloseTime   string  `json:"close_time" binding:"required"`
	HourlyRate  float64 `json:"hourly_rate" binding:"required"`
}
