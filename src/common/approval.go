package common

import (
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"log"

	"gorm.io/gorm"
)

// Approve flips an order and everything it owns to approved in one atomic
// unit: bookings, cart items, and every waitlist entry queued behind those
// bookings (cascade-cancelled, shadow pairs rejected for audit). Calling it
// on an already-terminal order is a no-op, not an error. Notifications fire
// only after commit.
func Approve(orderID uint) (*Result, error) {
	unlock := LockOrder(orderID)
	defer unlock()

	conn := db.GetDb()
	var result *Result
	var alreadyTerminal bool
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.ApprovalStatus.Terminal() {
			alreadyTerminal = true
			kind := types.OUTCOME_APPROVED
			if order.ApprovalStatus == types.APPROVAL_REJECTED {
				kind = types.OUTCOME_REJECTED
			}
			var err error
			result, err = snapshotOrder(tx, orderID, kind)
			return err
		}
		if order.Status != types.ORDER_CHECKED_OUT {
			return types.NewValidationError("order %d has not been checked out", orderID)
		}

		var bookingIDs []uint
		if err := tx.
			Model(&models.Booking{}).
			Where("order_id = ? AND status = ?", orderID, types.BOOKING_PENDING).
			Pluck("id", &bookingIDs).
			Error; err != nil {
			return err
		}

		// Approving must not create a second holder for any window.
		var bookings []models.Booking
		if err := tx.
			Where("id IN ?", bookingIDs).
			Find(&bookings).
			Error; err != nil {
			return err
		}
		for i := range bookings {
			var rival int64
			if err := tx.
				Model(&models.Booking{}).
				Where("court_id = ? AND id <> ? AND order_id <> ? AND start_time < ? AND end_time > ?",
					bookings[i].CourtID, bookings[i].ID, orderID, bookings[i].EndTime, bookings[i].StartTime).
				Where("status IN ?", []types.BookingStatus{types.BOOKING_APPROVED, types.BOOKING_COMPLETED, types.BOOKING_CHECKED_IN}).
				Count(&rival).
				Error; err != nil {
				return err
			}
			if rival > 0 {
				return types.NewConsistencyViolation("booking %d overlaps an already approved booking", bookings[i].ID)
			}
		}

		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("approval_status", types.APPROVAL_APPROVED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("order_id = ? AND status = ?", orderID, types.BOOKING_PENDING).
			Update("status", types.BOOKING_APPROVED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.CartItem{}).
			Where("order_id = ? AND status = ?", orderID, types.CART_ITEM_PENDING).
			Update("status", types.CART_ITEM_COMPLETED).
			Error; err != nil {
			return err
		}
		if len(bookingIDs) > 0 {
			if err := cascadeCancelQueues(tx, bookingIDs); err != nil {
				return err
			}
		}

		var err error
		result, err = snapshotOrder(tx, orderID, types.OUTCOME_APPROVED)
		return err
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	if !alreadyTerminal {
		go notifyOrderDecision(result.Order, true, "")
	}
	return result, nil
}

// cascadeCancelQueues cancels every entry queued behind the given bookings
// and rejects their shadow pairs. The shadow records stay for audit, they
// never materialize.
func cascadeCancelQueues(tx *gorm.DB, bookingIDs []uint) error {
	var entries []models.WaitlistEntry
	if err := tx.
		Where("booking_id IN ? AND status IN ?", bookingIDs, []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
		Find(&entries).
		Error; err != nil {
		return err
	}
	for i := range entries {
		if err := tx.
			Model(&models.WaitlistEntry{}).
			Where("id = ?", entries[i].ID).
			Update("status", types.WAITLIST_CANCELED).
			Error; err != nil {
			return err
		}
		if entries[i].ShadowItemID != nil {
			if err := tx.
				Model(&models.CartItem{}).
				Where("id = ?", *entries[i].ShadowItemID).
				Update("status", types.CART_ITEM_REJECTED).
				Error; err != nil {
				return err
			}
		}
		if entries[i].ShadowOrderID != nil {
			if err := tx.
				Model(&models.Order{}).
				Where("id = ?", *entries[i].ShadowOrderID).
				Updates(map[string]any{
					"approval_status": types.APPROVAL_REJECTED,
					"status":          types.ORDER_CANCELED,
				}).
				Error; err != nil {
				return err
			}
		}
		log.Printf("[approval] cascade-canceled waitlist entry %d behind booking %d\n", entries[i].ID, entries[i].BookingID)
	}
	return nil
}

// Reject is the symmetric transition. After commit the waitlist coordinator
// runs a notify pass for every freed booking.
func Reject(orderID uint, reason string) (*Result, error) {
	return rejectOrder(orderID, reason, false)
}

func rejectOrder(orderID uint, reason string, expire bool) (*Result, error) {
	unlock := LockOrder(orderID)
	defer unlock()

	conn := db.GetDb()
	var result *Result
	var freed []uint
	var alreadyTerminal bool
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.ApprovalStatus.Terminal() {
			alreadyTerminal = true
			kind := types.OUTCOME_REJECTED
			if order.ApprovalStatus == types.APPROVAL_APPROVED {
				kind = types.OUTCOME_APPROVED
			}
			var err error
			result, err = snapshotOrder(tx, orderID, kind)
			return err
		}

		if err := tx.
			Model(&models.Booking{}).
			Where("order_id = ? AND status IN ?", orderID, []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_APPROVED}).
			Pluck("id", &freed).
			Error; err != nil {
			return err
		}

		updates := map[string]any{
			"approval_status": types.APPROVAL_REJECTED,
			"reject_reason":   reason,
		}
		if expire {
			updates["status"] = types.ORDER_EXPIRED
		}
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(updates).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("id IN ?", freed).
			Update("status", types.BOOKING_REJECTED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.CartItem{}).
			Where("order_id = ? AND status = ?", orderID, types.CART_ITEM_PENDING).
			Update("status", types.CART_ITEM_REJECTED).
			Error; err != nil {
			return err
		}

		var err error
		result, err = snapshotOrder(tx, orderID, types.OUTCOME_REJECTED)
		return err
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	if !alreadyTerminal {
		go notifyOrderDecision(result.Order, false, reason)
		// The freed windows advance their queues outside the committed
		// transaction; a notify failure never rolls the rejection back.
		for _, bookingID := range freed {
			if _, err := NotifyNext(bookingID); err != nil {
				log.Printf("[approval] notify pass failed for booking %d: %s\n", bookingID, err.Error())
			}
		}
	}
	return result, nil
}

// CheckIn marks an approved order as claimed on site.
func CheckIn(orderID uint) (*Result, error) {
	unlock := LockOrder(orderID)
	defer unlock()

	conn := db.GetDb()
	var result *Result
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.ApprovalStatus != types.APPROVAL_APPROVED {
			return types.NewValidationError("order %d is not approved", orderID)
		}
		if order.Status == types.ORDER_CHECKED_IN {
			var err error
			result, err = snapshotOrder(tx, orderID, types.OUTCOME_APPROVED)
			return err
		}
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", types.ORDER_CHECKED_IN).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("order_id = ? AND status = ?", orderID, types.BOOKING_APPROVED).
			Update("status", types.BOOKING_CHECKED_IN).
			Error; err != nil {
			return err
		}
		var err error
		result, err = snapshotOrder(tx, orderID, types.OUTCOME_APPROVED)
		return err
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	return result, nil
}
