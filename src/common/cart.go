package common

import (
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

var activeItemStatuses = []types.CartItemStatus{
	types.CART_ITEM_PENDING,
	types.CART_ITEM_COMPLETED,
}

// SubmitRequest adds a court/time request to the user's open cart. The
// conflict resolver decides the disposition: accepted items join the cart,
// a queued request becomes a waitlist entry backed by a shadow order that
// only materializes on conversion.
func SubmitRequest(userID uint, body *types.AddCartItemRequestBody, flags types.FeatureFlags) (*Result, error) {
	conn := db.GetDb()

	var court models.Court
	if err := conn.
		Where("id = ? AND status = ?", body.CourtID, "active").
		First(&court).
		Error; err != nil {
		return nil, types.NewValidationError("unknown court %d", body.CourtID)
	}
	date, start, end, err := parseWindow(&court, body.Date, body.StartTime, body.EndTime)
	if err != nil {
		return nil, err
	}
	if start.Before(time.Now()) {
		return nil, types.NewValidationError("cannot request a slot in the past")
	}
	price := court.HourlyRate * end.Sub(start).Hours()

	var result *Result
	err = conn.Transaction(func(tx *gorm.DB) error {
		order, err := openCart(tx, userID)
		if err != nil {
			return err
		}
		// The disposition and the insert it justifies (cart item or queue
		// position) must both happen under the court lock.
		if err := lockCourts(tx, court.ID); err != nil {
			return err
		}
		ev, err := evaluate(tx, EvalInput{
			CourtID:      court.ID,
			Start:        start,
			End:          end,
			UserID:       userID,
			OwnerOrderID: order.ID,
			Flags:        flags,
		})
		if err != nil {
			return err
		}
		switch ev.Outcome {
		case types.OUTCOME_ACCEPTED:
			item := models.CartItem{
				OrderID:   order.ID,
				CourtID:   court.ID,
				Date:      date,
				StartTime: start,
				EndTime:   end,
				Price:     price,
				Players:   body.Players,
				Status:    types.CART_ITEM_PENDING,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			if err := recalcOrderTotal(tx, order.ID); err != nil {
				return err
			}
			result, err = snapshotOrder(tx, order.ID, types.OUTCOME_ACCEPTED)
			return err
		case types.OUTCOME_REJECTED:
			return types.NewConflictError("slot unavailable")
		case types.OUTCOME_QUEUED:
			if !flags.WaitlistEnabled {
				return types.NewConflictError("slot unavailable")
			}
			entry, err := enqueue(tx, ev.Blocking, userID, court.HourlyRate)
			if err != nil {
				return err
			}
			result = &Result{
				Outcome: types.Outcome{Kind: types.OUTCOME_QUEUED, Position: entry.Position},
				Entry:   entry,
			}
			return nil
		}
		return types.NewConsistencyViolation("unknown disposition %s", ev.Outcome)
	})
	if err != nil {
		return nil, asDomainError(err)
	}
	return result, nil
}

// openCart finds or creates the user's single open, non-waitlist order.
func openCart(tx *gorm.DB, userID uint) (*models.Order, error) {
	var order models.Order
	err := tx.
		Where("user_id = ? AND status = ? AND approval_status = ?", userID, types.ORDER_OPEN, types.APPROVAL_PENDING).
		First(&order).
		Error
	if err == nil {
		return &order, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	order = models.Order{
		UserID:         userID,
		CreatedBy:      userID,
		Status:         types.ORDER_OPEN,
		ApprovalStatus: types.APPROVAL_PENDING,
		PaymentStatus:  types.PAYMENT_UNPAID,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// enqueue creates a waitlist entry behind the blocking booking at the next
// dense position. The recorded range comes from the blocking booking, never
// from the raw request, so what the entry shows always matches the slot it
// waits for. The shadow order/item pair stays invisible until conversion.
func enqueue(tx *gorm.DB, blocking *models.Booking, userID uint, hourlyRate float64) (*models.WaitlistEntry, error) {
	shadowOrder := models.Order{
		UserID:         userID,
		CreatedBy:      userID,
		Status:         types.ORDER_OPEN,
		ApprovalStatus: types.APPROVAL_PENDING_WAITLIST,
		PaymentStatus:  types.PAYMENT_UNPAID,
	}
	if err := tx.Create(&shadowOrder).Error; err != nil {
		return nil, err
	}
	day := blocking.StartTime.Truncate(24 * time.Hour)
	shadowItem := models.CartItem{
		OrderID:   shadowOrder.ID,
		CourtID:   blocking.CourtID,
		Date:      day,
		StartTime: blocking.StartTime,
		EndTime:   blocking.EndTime,
		Price:     hourlyRate * blocking.EndTime.Sub(blocking.StartTime).Hours(),
		Status:    types.CART_ITEM_PENDING,
	}
	if err := tx.Create(&shadowItem).Error; err != nil {
		return nil, err
	}
	if err := recalcOrderTotal(tx, shadowOrder.ID); err != nil {
		return nil, err
	}

	var maxPos int64
	if err := tx.
		Model(&models.WaitlistEntry{}).
		Where("booking_id = ? AND status IN ?", blocking.ID, []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).
		Error; err != nil {
		return nil, err
	}

	entry := models.WaitlistEntry{
		CourtID:       blocking.CourtID,
		BookingID:     blocking.ID,
		UserID:        userID,
		StartTime:     blocking.StartTime,
		EndTime:       blocking.EndTime,
		Position:      uint(maxPos) + 1,
		Status:        types.WAITLIST_PENDING,
		ShadowOrderID: &shadowOrder.ID,
		ShadowItemID:  &shadowItem.ID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	if err := tx.
		Model(&models.CartItem{}).
		Where("id = ?", shadowItem.ID).
		Update("waitlist_entry_id", entry.ID).
		Error; err != nil {
		return nil, err
	}
	log.Printf("[waitlist] user %d queued at position %d behind booking %d\n", userID, entry.Position, blocking.ID)
	return &entry, nil
}

func recalcOrderTotal(tx *gorm.DB, orderID uint) error {
	var total float64
	if err := tx.
		Model(&models.CartItem{}).
		Where("order_id = ? AND status IN ?", orderID, activeItemStatuses).
		Select("COALESCE(SUM(price), 0)").
		Scan(&total).
		Error; err != nil {
		return err
	}
	return tx.
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_price", total).
		Error
}
