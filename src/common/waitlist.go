package common

import (
	"cbs/src/config"
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
)

// NotifyNext promotes the lowest-position pending entry behind a blocking
// booking to notified and starts its claim window. At most one entry per
// blocking booking is ever notified at a time; if one already holds the
// window this is a no-op.
func NotifyNext(bookingID uint) (*models.WaitlistEntry, error) {
	conn := db.GetDb()
	var notified *models.WaitlistEntry
	err := conn.Transaction(func(tx *gorm.DB) error {
		var existing models.WaitlistEntry
		err := tx.
			Where("booking_id = ? AND status = ?", bookingID, types.WAITLIST_NOTIFIED).
			First(&existing).
			Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var entry models.WaitlistEntry
		err = tx.
			Where("booking_id = ? AND status = ?", bookingID, types.WAITLIST_PENDING).
			Order("position ASC").
			First(&entry).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		expires := now.Add(config.WaitlistClaimWindow())
		if err := tx.
			Model(&models.WaitlistEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{
				"status":      types.WAITLIST_NOTIFIED,
				"notified_at": now,
				"expires_at":  expires,
			}).
			Error; err != nil {
			return err
		}
		entry.Status = types.WAITLIST_NOTIFIED
		entry.NotifiedAt = &now
		entry.ExpiresAt = &expires
		notified = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notified != nil {
		log.Printf("[waitlist] entry %d notified for booking %d, expires %s\n", notified.ID, bookingID, notified.ExpiresAt.Format(time.RFC3339))
		go notifyWaitlistEntry(notified)
	}
	return notified, nil
}

// SweepWaitlist expires notified entries past their deadline and advances
// each affected queue in the same pass.
func SweepWaitlist(now time.Time) (int, error) {
	conn := db.GetDb()
	var stale []models.WaitlistEntry
	if err := conn.
		Where("status = ? AND expires_at <= ?", types.WAITLIST_NOTIFIED, now).
		Find(&stale).
		Error; err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		entry := stale[i]
		err := conn.Transaction(func(tx *gorm.DB) error {
			// Re-read under the transaction, a concurrent conversion may
			// have claimed the entry since the scan.
			var current models.WaitlistEntry
			if err := forUpdate(tx).
				Where("id = ?", entry.ID).
				First(&current).
				Error; err != nil {
				return err
			}
			if current.Status != types.WAITLIST_NOTIFIED || current.ExpiresAt == nil || current.ExpiresAt.After(now) {
				return nil
			}
			if err := tx.
				Model(&models.WaitlistEntry{}).
				Where("id = ?", current.ID).
				Update("status", types.WAITLIST_EXPIRED).
				Error; err != nil {
				return err
			}
			if err := retireShadowPair(tx, &current); err != nil {
				return err
			}
			if err := compactPositions(tx, current.BookingID, current.Position); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			log.Printf("[waitlist] failed to expire entry %d: %s\n", entry.ID, err.Error())
			continue
		}
		if _, err := NotifyNext(entry.BookingID); err != nil {
			log.Printf("[waitlist] notify pass failed for booking %d: %s\n", entry.BookingID, err.Error())
		}
	}
	return expired, nil
}

// CancelEntry removes a queued entry on the requester's behalf and compacts
// the remaining positions. A cancelled notified entry advances the queue.
func CancelEntry(entryID, userID uint, isAdmin bool) (*Result, error) {
	conn := db.GetDb()
	var entry models.WaitlistEntry
	wasNotified := false
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).
			Where("id = ?", entryID).
			First(&entry).
			Error; err != nil {
			return types.NewNotFoundError("waitlist entry %d not found", entryID)
		}
		if entry.UserID != userID && !isAdmin {
			return types.NewNotFoundError("waitlist entry %d not found", entryID)
		}
		if !entry.Queued() {
			return types.NewValidationError("waitlist entry %d is no longer queued", entryID)
		}
		wasNotified = entry.Status == types.WAITLIST_NOTIFIED
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
		return compactPositions(tx, entry.BookingID, entry.Position)
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	if wasNotified {
		if _, err := NotifyNext(entry.BookingID); err != nil {
			log.Printf("[waitlist] notify pass failed for booking %d: %s\n", entry.BookingID, err.Error())
		}
	}
	entry.Status = types.WAITLIST_CANCELED
	return &Result{Outcome: types.Outcome{Kind: types.OUTCOME_ACCEPTED}, Entry: &entry}, nil
}

// convertEntry claims a notified entry during checkout. The converted order
// reference is set exactly once.
func convertEntry(tx *gorm.DB, entry *models.WaitlistEntry, orderID uint) error {
	if entry.ConvertedOrderID != nil {
		return types.NewConsistencyViolation("waitlist entry %d already converted into order %d", entry.ID, *entry.ConvertedOrderID)
	}
	if err := tx.
		Model(&models.WaitlistEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":             types.WAITLIST_CONVERTED,
			"converted_order_id": orderID,
		}).
		Error; err != nil {
		return err
	}
	// A conversion through a different order strands the shadow pair;
	// close it out. Converting through the shadow order keeps it live.
	if entry.ShadowOrderID != nil && *entry.ShadowOrderID != orderID {
		if err := retireShadowPair(tx, entry); err != nil {
			return err
		}
	}
	// The converted booking now holds the window, so the entries still
	// queued behind the old booking can never be served. No sweep or notify
	// path looks at them again; cancel them here the way Approve does.
	return cascadeCancelQueues(tx, []uint{entry.BookingID})
}

// compactPositions closes the gap a departing entry leaves so the queue
// stays a dense 1..N ordering.
func compactPositions(tx *gorm.DB, bookingID, fromPos uint) error {
	return tx.
		Model(&models.WaitlistEntry{}).
		Where("booking_id = ? AND position > ? AND status IN ?", bookingID, fromPos, []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
		Update("position", gorm.Expr("position - 1")).
		Error
}

// retireShadowPair closes out the never-materialized order/item backing a
// departing entry. Kept for audit.
func retireShadowPair(tx *gorm.DB, entry *models.WaitlistEntry) error {
	if entry.ShadowItemID != nil {
		if err := tx.
			Model(&models.CartItem{}).
			Where("id = ?", *entry.ShadowItemID).
			Update("status", types.CART_ITEM_CANCELED).
			Error; err != nil {
			return err
		}
	}
	if entry.ShadowOrderID != nil {
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", *entry.ShadowOrderID).
			Update("status", types.ORDER_CANCELED).
			Error; err != nil {
			return err
		}
	}
	return nil
}
