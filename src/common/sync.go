package common

import (
	"cbs/src/config"
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"log"

	"gorm.io/gorm"
)

// syncBooking re-derives a booking's time range and price from its
// remaining active items, inside the caller's transaction. Zero active
// items cancels the booking; the caller gets freed=true and owes the
// waitlist a notify pass after commit. Terminal bookings must have been
// rejected upstream, reaching one here is an invariant breach.
func syncBooking(tx *gorm.DB, bookingID uint) (freed bool, err error) {
	var booking models.Booking
	if err := tx.
		Where("id = ?", bookingID).
		First(&booking).
		Error; err != nil {
		return false, err
	}
	if booking.Status.Terminal() || booking.Status == types.BOOKING_REJECTED {
		return false, types.NewConsistencyViolation("booking %d is terminal and cannot be recomputed", bookingID)
	}

	var items []models.CartItem
	if err := tx.
		Where("booking_id = ? AND status IN ?", bookingID, activeItemStatuses).
		Find(&items).
		Error; err != nil {
		return false, err
	}
	if len(items) == 0 {
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", bookingID).
			Update("status", types.BOOKING_CANCELED).
			Error; err != nil {
			return false, err
		}
		log.Printf("[sync] booking %d has no active items left, canceled\n", bookingID)
		return true, nil
	}

	start, end := items[0].StartTime, items[0].EndTime
	var price float64
	for i := range items {
		if items[i].StartTime.Before(start) {
			start = items[i].StartTime
		}
		if items[i].EndTime.After(end) {
			end = items[i].EndTime
		}
		price += items[i].Price
	}
	return false, tx.
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]any{
			"start_time": start,
			"end_time":   end,
			"price":      price,
		}).
		Error
}

// CancelCartItem soft-retires one line item. On a checked-out order the
// owning booking is re-derived in the same transaction; a booking left with
// nothing cancels and frees its window for the queue.
func CancelCartItem(itemID, userID uint, isAdmin bool) (*Result, error) {
	conn := db.GetDb()
	var freedBooking *uint
	var vacatedClaim *uint
	var result *Result
	err := conn.Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		if err := forUpdate(tx).
			Where("id = ?", itemID).
			First(&item).
			Error; err != nil {
			return types.NewNotFoundError("cart item %d not found", itemID)
		}
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", item.OrderID).
			First(&order).
			Error; err != nil {
			return err
		}
		if order.UserID != userID && !isAdmin {
			return types.NewNotFoundError("cart item %d not found", itemID)
		}
		if !item.Active() {
			return types.NewValidationError("cart item %d is already inactive", itemID)
		}

		if item.BookingID != nil {
			var booking models.Booking
			if err := tx.
				Where("id = ?", *item.BookingID).
				First(&booking).
				Error; err != nil {
				return err
			}
			if booking.Status.Terminal() {
				return types.NewValidationError("booking %d can no longer be modified", booking.ID)
			}
		}

		if err := tx.
			Model(&models.CartItem{}).
			Where("id = ?", item.ID).
			Update("status", types.CART_ITEM_CANCELED).
			Error; err != nil {
			return err
		}
		// A queued item leaving the cart takes its waitlist entry along the
		// same way CancelEntry would. A departing claim holder advances the
		// queue after commit.
		if item.WaitlistEntryID != nil {
			var entry models.WaitlistEntry
			if err := tx.
				Where("id = ?", *item.WaitlistEntryID).
				First(&entry).
				Error; err == nil && entry.Queued() {
				if entry.Status == types.WAITLIST_NOTIFIED {
					b := entry.BookingID
					vacatedClaim = &b
				}
				if err := tx.
					Model(&models.WaitlistEntry{}).
					Where("id = ?", entry.ID).
					Update("status", types.WAITLIST_CANCELED).
					Error; err != nil {
					return err
				}
				if err := retireShadowPair(tx, &entry); err != nil {
					return err
				}
				if err := compactPositions(tx, entry.BookingID, entry.Position); err != nil {
					return err
				}
			}
		}
		if item.BookingID != nil && order.Status != types.ORDER_OPEN {
			freed, err := syncBooking(tx, *item.BookingID)
			if err != nil {
				return err
			}
			if freed {
				freedBooking = item.BookingID
			}
		}
		if err := recalcOrderTotal(tx, order.ID); err != nil {
			return err
		}
		var err error
		result, err = snapshotOrder(tx, order.ID, types.OUTCOME_ACCEPTED)
		return err
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	if vacatedClaim != nil {
		if _, err := NotifyNext(*vacatedClaim); err != nil {
			log.Printf("[sync] notify pass failed for booking %d: %s\n", *vacatedClaim, err.Error())
		}
	}
	if freedBooking != nil {
		if _, err := NotifyNext(*freedBooking); err != nil {
			log.Printf("[sync] notify pass failed for booking %d: %s\n", *freedBooking, err.Error())
		}
	}
	return result, nil
}

// EditCartItem moves a line item to another court or time. The new window
// goes back through the conflict resolver; on a checked-out order the old
// and new bookings are both re-derived, and a court move splits the item
// into a booking for the new court. Payment already recorded against the
// original booking is inherited as-is and both sides are flagged for
// manual reconciliation.
func EditCartItem(itemID uint, body *types.EditCartItemRequestBody, flags types.FeatureFlags) (*Result, error) {
	conn := db.GetDb()
	var freedBooking *uint
	var result *Result
	err := conn.Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		if err := forUpdate(tx).
			Where("id = ?", itemID).
			First(&item).
			Error; err != nil {
			return types.NewNotFoundError("cart item %d not found", itemID)
		}
		if !item.Active() {
			return types.NewValidationError("cart item %d is inactive", itemID)
		}
		var order models.Order
		if err := forUpdate(tx).
			Where("id = ?", item.OrderID).
			First(&order).
			Error; err != nil {
			return err
		}

		courtID := item.CourtID
		if body.CourtID != 0 {
			courtID = body.CourtID
		}
		var court models.Court
		if err := tx.
			Where("id = ? AND status = ?", courtID, "active").
			First(&court).
			Error; err != nil {
			return types.NewValidationError("unknown court %d", courtID)
		}

		date, start, end := item.Date, item.StartTime, item.EndTime
		if body.Date != "" || body.StartTime != "" || body.EndTime != "" {
			dateStr := item.Date.Format(config.DATE_PARSE_FORMAT)
			startStr := item.StartTime.Format(config.CLOCK_PARSE_FORMAT)
			endStr := item.EndTime.Format(config.CLOCK_PARSE_FORMAT)
			if body.Date != "" {
				dateStr = body.Date
			}
			if body.StartTime != "" {
				startStr = body.StartTime
			}
			if body.EndTime != "" {
				endStr = body.EndTime
			}
			var err error
			date, start, end, err = parseWindow(&court, dateStr, startStr, endStr)
			if err != nil {
				return err
			}
		} else if err := checkOperatingHours(&court, start, end); err != nil {
			return err
		}

		oldBookingID := item.BookingID
		if oldBookingID != nil {
			var booking models.Booking
			if err := tx.
				Where("id = ?", *oldBookingID).
				First(&booking).
				Error; err != nil {
				return err
			}
			if booking.Status.Terminal() {
				return types.NewValidationError("booking %d can no longer be modified", booking.ID)
			}
		}

		// Admission to the target window serializes on the court, same as
		// checkout. The old court locks too so the re-derive cannot race a
		// rival admission there.
		if err := lockCourts(tx, item.CourtID, court.ID); err != nil {
			return err
		}
		ev, err := evaluate(tx, EvalInput{
			CourtID:      court.ID,
			Start:        start,
			End:          end,
			UserID:       order.UserID,
			OwnerOrderID: order.ID,
			Flags:        flags,
		})
		if err != nil {
			return err
		}
		if ev.Outcome != types.OUTCOME_ACCEPTED {
			return types.NewConflictError("slot unavailable")
		}

		price := court.HourlyRate * end.Sub(start).Hours()
		if err := tx.
			Model(&models.CartItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"court_id":   court.ID,
				"date":       date,
				"start_time": start,
				"end_time":   end,
				"price":      price,
			}).
			Error; err != nil {
			return err
		}
		item.CourtID = court.ID
		item.StartTime = start
		item.EndTime = end

		if oldBookingID != nil && order.Status != types.ORDER_OPEN {
			if court.ID != courtOf(tx, *oldBookingID) {
				newID, err := splitToBooking(tx, &order, &item, *oldBookingID)
				if err != nil {
					return err
				}
				item.BookingID = &newID
				freed, err := syncBooking(tx, *oldBookingID)
				if err != nil {
					return err
				}
				if freed {
					freedBooking = oldBookingID
				}
				if _, err := syncBooking(tx, newID); err != nil {
					return err
				}
			} else if _, err := syncBooking(tx, *oldBookingID); err != nil {
				return err
			}
		}
		if err := recalcOrderTotal(tx, order.ID); err != nil {
			return err
		}
		var serr error
		result, serr = snapshotOrder(tx, order.ID, types.OUTCOME_ACCEPTED)
		return serr
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	if freedBooking != nil {
		if _, err := NotifyNext(*freedBooking); err != nil {
			log.Printf("[sync] notify pass failed for booking %d: %s\n", *freedBooking, err.Error())
		}
	}
	return result, nil
}

func courtOf(tx *gorm.DB, bookingID uint) uint {
	var booking models.Booking
	if err := tx.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return 0
	}
	return booking.CourtID
}

// splitToBooking re-homes an item whose court no longer matches its
// booking siblings: attach to an overlapping booking of the same order and
// court when one exists, otherwise split off a new booking that inherits
// the original payment status.
func splitToBooking(tx *gorm.DB, order *models.Order, item *models.CartItem, oldBookingID uint) (uint, error) {
	var old models.Booking
	if err := tx.Where("id = ?", oldBookingID).First(&old).Error; err != nil {
		return 0, err
	}
	var existing models.Booking
	err := tx.
		Where("order_id = ? AND court_id = ? AND id <> ?", order.ID, item.CourtID, oldBookingID).
		Where("status NOT IN ?", []types.BookingStatus{types.BOOKING_REJECTED, types.BOOKING_CANCELED, types.BOOKING_COMPLETED}).
		Where("start_time <= ? AND end_time >= ?", item.EndTime, item.StartTime).
		First(&existing).
		Error
	var targetID uint
	if err == nil {
		targetID = existing.ID
	} else if err != gorm.ErrRecordNotFound {
		return 0, err
	} else {
		split := models.Booking{
			OrderID:   order.ID,
			CourtID:   item.CourtID,
			UserID:    order.UserID,
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
			Price:     item.Price,
			Status:    old.Status,
			// Recorded payment cannot be divided automatically, carry it
			// over and leave the split for manual reconciliation.
			PaymentStatus: old.PaymentStatus,
			NeedsReview:   true,
		}
		if err := tx.Create(&split).Error; err != nil {
			return 0, err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", oldBookingID).
			Update("needs_review", true).
			Error; err != nil {
			return 0, err
		}
		targetID = split.ID
		log.Printf("[sync] item %d split from booking %d into booking %d, flagged for review\n", item.ID, oldBookingID, targetID)
	}
	if err := tx.
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Update("booking_id", targetID).
		Error; err != nil {
		return 0, err
	}
	return targetID, nil
}

