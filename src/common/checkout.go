package common

import (
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"
)

type bookingGroup struct {
	courtID uint
	start   time.Time
	end     time.Time
	price   float64
	items   []uint
}

// groupItems folds the surviving cart items into one group per court and
// contiguous-or-overlapping time block. Each group becomes one booking.
func groupItems(items []models.CartItem) []bookingGroup {
	sorted := make([]models.CartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CourtID != sorted[j].CourtID {
			return sorted[i].CourtID < sorted[j].CourtID
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	var groups []bookingGroup
	for _, item := range sorted {
		if n := len(groups); n > 0 {
			g := &groups[n-1]
			if g.courtID == item.CourtID && !item.StartTime.After(g.end) {
				if item.EndTime.After(g.end) {
					g.end = item.EndTime
				}
				g.price += item.Price
				g.items = append(g.items, item.ID)
				continue
			}
		}
		groups = append(groups, bookingGroup{
			courtID: item.CourtID,
			start:   item.StartTime,
			end:     item.EndTime,
			price:   item.Price,
			items:   []uint{item.ID},
		})
	}
	return groups
}

// Checkout re-validates every active item against the latest committed
// state, derives bookings, and commits the whole transition atomically. If
// the requester holds an unexpired notified waitlist entry for an identical
// court/window, that booking converts and approves without manual review.
func Checkout(orderID, userID uint, isAdmin bool, flags types.FeatureFlags) (*Result, error) {
	unlock := LockOrder(orderID)
	defer unlock()

	conn := db.GetDb()
	now := time.Now()
	var result *Result
	var converted []models.WaitlistEntry
	err := conn.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", orderID).
			First(&order).
			Error; err != nil {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.UserID != userID && !isAdmin {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.Status != types.ORDER_OPEN {
			return types.NewValidationError("order %d is not open for checkout", orderID)
		}
		var items []models.CartItem
		if err := tx.
			Where("order_id = ? AND status = ?", orderID, types.CART_ITEM_PENDING).
			Find(&items).
			Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return types.NewValidationError("order %d has no pending items", orderID)
		}
		courts := make([]uint, 0, len(items))
		for i := range items {
			courts = append(courts, items[i].CourtID)
		}
		if err := lockCourts(tx, courts...); err != nil {
			return err
		}

		// Time has passed since add-to-cart: every item goes back through
		// the conflict resolver. Any conflict aborts the whole checkout.
		for i := range items {
			ev, err := evaluate(tx, EvalInput{
				CourtID:      items[i].CourtID,
				Start:        items[i].StartTime,
				End:          items[i].EndTime,
				UserID:       order.UserID,
				OwnerOrderID: order.ID,
				Flags:        flags,
			})
			if err != nil {
				return err
			}
			if ev.Outcome != types.OUTCOME_ACCEPTED {
				// A conversion checkout races the freed slot like anyone
				// else; a notified entry is a claim window, not a hold.
				return types.NewConflictError("one or more time slots are no longer available, please refresh")
			}
		}

		groups := groupItems(items)
		approvedAll := true
		var bookings []models.Booking
		for _, g := range groups {
			booking := models.Booking{
				OrderID:       order.ID,
				CourtID:       g.courtID,
				UserID:        order.UserID,
				StartTime:     g.start,
				EndTime:       g.end,
				Price:         g.price,
				Status:        types.BOOKING_PENDING,
				PaymentStatus: order.PaymentStatus,
			}
			if err := tx.Create(&booking).Error; err != nil {
				return err
			}
			if err := tx.
				Model(&models.CartItem{}).
				Where("id IN ?", g.items).
				Update("booking_id", booking.ID).
				Error; err != nil {
				return err
			}

			entry := entryMatchingWindow(tx, order.UserID, g.courtID, g.start, g.end, now)
			if entry != nil {
				if err := tx.
					Model(&models.Booking{}).
					Where("id = ?", booking.ID).
					Update("status", types.BOOKING_APPROVED).
					Error; err != nil {
					return err
				}
				if err := tx.
					Model(&models.CartItem{}).
					Where("id IN ?", g.items).
					Update("status", types.CART_ITEM_COMPLETED).
					Error; err != nil {
					return err
				}
				if err := convertEntry(tx, entry, order.ID); err != nil {
					return err
				}
				booking.Status = types.BOOKING_APPROVED
				converted = append(converted, *entry)
			} else {
				approvedAll = false
			}
			bookings = append(bookings, booking)
		}

		updates := map[string]any{"status": types.ORDER_CHECKED_OUT}
		if approvedAll {
			updates["approval_status"] = types.APPROVAL_APPROVED
		} else if order.ApprovalStatus != types.APPROVAL_PENDING_WAITLIST {
			updates["approval_status"] = types.APPROVAL_PENDING
		}
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(updates).
			Error; err != nil {
			return err
		}
		if err := recalcOrderTotal(tx, orderID); err != nil {
			return err
		}

		kind := types.OUTCOME_ACCEPTED
		if approvedAll {
			kind = types.OUTCOME_APPROVED
		}
		var err error
		result, err = snapshotOrder(tx, orderID, kind)
		return err
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	for i := range converted {
		log.Printf("[checkout] waitlist entry %d converted into order %d\n", converted[i].ID, orderID)
	}
	if result.Outcome.Kind == types.OUTCOME_APPROVED {
		go notifyOrderDecision(result.Order, true, "")
	}
	return result, nil
}

// entryMatchingWindow finds the caller's unexpired notified entry for the
// identical court and time range, or nil.
func entryMatchingWindow(tx *gorm.DB, userID, courtID uint, start, end time.Time, now time.Time) *models.WaitlistEntry {
	var entry models.WaitlistEntry
	err := tx.
		Where("user_id = ? AND court_id = ? AND status = ?", userID, courtID, types.WAITLIST_NOTIFIED).
		Where("start_time = ? AND end_time = ?", start, end).
		Where("expires_at > ?", now).
		First(&entry).
		Error
	if err != nil {
		return nil
	}
	return &entry
}
