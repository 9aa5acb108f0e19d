package common

import (
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

// WalkIn lets a privileged actor book on behalf of a guest at the desk.
// Privilege gates only the creation of the order: every requested window
// still goes through the same conflict resolver, and an existing hold or
// queue is never skipped. A contested window refuses the walk-in outright
// rather than queue a guest who is standing at the desk.
func WalkIn(staffID uint, staffRole types.Role, body *types.WalkInRequestBody, flags types.FeatureFlags) (*Result, error) {
	if !staffRole.Privileged() {
		return nil, types.NewValidationError("walk-in booking requires staff privileges")
	}
	conn := db.GetDb()

	var orderID uint
	err := conn.Transaction(func(tx *gorm.DB) error {
		order := models.Order{
			UserID:         staffID,
			GuestName:      &body.GuestName,
			CreatedBy:      staffID,
			Status:         types.ORDER_OPEN,
			ApprovalStatus: types.APPROVAL_PENDING,
			PaymentStatus:  types.PAYMENT_UNPAID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		orderID = order.ID
		courts := make([]uint, 0, len(body.Items))
		for i := range body.Items {
			courts = append(courts, body.Items[i].CourtID)
		}
		if err := lockCourts(tx, courts...); err != nil {
			return err
		}
		for i := range body.Items {
			req := body.Items[i]
			var court models.Court
			if err := tx.
				Where("id = ? AND status = ?", req.CourtID, "active").
				First(&court).
				Error; err != nil {
				return types.NewValidationError("unknown court %d", req.CourtID)
			}
			date, start, end, err := parseWindow(&court, req.Date, req.StartTime, req.EndTime)
			if err != nil {
				return err
			}
			if start.Before(time.Now()) {
				return types.NewValidationError("cannot request a slot in the past")
			}
			ev, err := evaluate(tx, EvalInput{
				CourtID:      court.ID,
				Start:        start,
				End:          end,
				UserID:       staffID,
				OwnerOrderID: order.ID,
				Flags:        flags,
			})
			if err != nil {
				return err
			}
			if ev.Outcome != types.OUTCOME_ACCEPTED {
				return types.NewConflictError("slot unavailable")
			}
			item := models.CartItem{
				OrderID:   order.ID,
				CourtID:   court.ID,
				Date:      date,
				StartTime: start,
				EndTime:   end,
				Price:     court.HourlyRate * end.Sub(start).Hours(),
				Players:   req.Players,
				Status:    types.CART_ITEM_PENDING,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return recalcOrderTotal(tx, order.ID)
	})
	if err != nil {
		return nil, asDomainError(err)
	}

	if _, err := Checkout(orderID, staffID, true, flags); err != nil {
		return nil, err
	}
	result, err := Approve(orderID)
	if err != nil {
		return nil, err
	}
	log.Printf("[walkin] staff %d created approved order %d for guest %s\n", staffID, orderID, body.GuestName)
	return result, nil
}
