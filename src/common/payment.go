package common

import (
	"cbs/src/db"
	"cbs/src/models"
	"cbs/src/types"

	"gorm.io/gorm"
)

// AttachPaymentProof stores an opaque proof-of-payment reference on an
// order. The engine never inspects the proof, its presence only exempts
// the order from the expiration sweep.
func AttachPaymentProof(orderID, userID uint, isAdmin bool, reference string) (*Result, error) {
	if reference == "" {
		return nil, types.NewValidationError("payment proof reference is required")
	}
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
		if order.UserID != userID && !isAdmin {
			return types.NewNotFoundError("order %d not found", orderID)
		}
		if order.ApprovalStatus == types.APPROVAL_REJECTED {
			return types.NewValidationError("order %d has already been rejected", orderID)
		}
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("payment_proof_ref", reference).
			Error; err != nil {
			return err
		}
		var err error
		result, err = snapshotOrder(tx, orderID, types.OUTCOME_ACCEPTED)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaid records settled payment against an order and its bookings.
func MarkPaid(orderID uint) (*Result, error) {
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
		if err := tx.
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("payment_status", types.PAYMENT_PAID).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("order_id = ?", orderID).
			Update("payment_status", types.PAYMENT_PAID).
			Error; err != nil {
			return err
		}
		var err error
		result, err = snapshotOrder(tx, orderID, types.OUTCOME_ACCEPTED)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
