package common

import (
	"cbs/src/config"
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"cbs/src/types"
	"log"
	"time"
)

// SweepExpiredOrders rejects abandoned orders: unpaid, still pending, and
// older than the expiration window. The exemption predicate short-circuits
// first: a privileged creator, an attached payment proof, or an approval
// already granted all make an order immune. Rejection goes through the
// approval state machine so the freed slots drive waitlist notification.
func SweepExpiredOrders(now time.Time) (int, error) {
	conn := db.GetDb()
	cutoff := now.Add(-config.OrderExpirationWindow())

	var candidates []models.Order
	if err := conn.
		Model(&models.Order{}).
		Where("status IN ? AND approval_status = ? AND payment_status = ? AND created_at < ?",
			[]types.OrderStatus{types.ORDER_OPEN, types.ORDER_CHECKED_OUT},
			types.APPROVAL_PENDING,
			types.PAYMENT_UNPAID,
			cutoff).
		Find(&candidates).
		Error; err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		order := candidates[i]
		if exempt, reason := orderExempt(&order); exempt {
			log.Printf("[sweeper] order %d exempt from expiration: %s\n", order.ID, reason)
			continue
		}
		if _, err := rejectOrder(order.ID, "payment timeout", true); err != nil {
			log.Printf("[sweeper] failed to expire order %d: %s\n", order.ID, err.Error())
			continue
		}
		expired++
	}
	if expired > 0 {
		log.Printf("[sweeper] expired %d abandoned orders\n", expired)
	}
	return expired, nil
}

func orderExempt(order *models.Order) (bool, string) {
	if order.ApprovalStatus == types.APPROVAL_APPROVED {
		return true, "already approved"
	}
	if order.HasProof() {
		return true, "payment proof attached"
	}
	var creator models.User
	if err := db.GetDb().
		Where("id = ?", order.CreatedBy).
		First(&creator).
		Error; err == nil && creator.Role.Privileged() {
		return true, "created by privileged actor"
	}
	return false, ""
}

func runOrderSweep() {
	if _, err := SweepExpiredOrders(time.Now()); err != nil {
		log.Printf("[sweeper] order sweep failed: %s\n", err.Error())
	}
}

func runWaitlistSweep() {
	if _, err := SweepWaitlist(time.Now()); err != nil {
		log.Printf("[sweeper] waitlist sweep failed: %s\n", err.Error())
	}
}

// RegisterSweepers installs both periodic jobs on the shared scheduler.
func RegisterSweepers() error {
	if _, err := lib.CreateCronJob(runOrderSweep, config.SweepInterval()); err != nil {
		return err
	}
	if _, err := lib.CreateCronJob(runWaitlistSweep, config.SweepInterval()); err != nil {
		return err
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	return nil
}
