package common

import (
	"cbs/src/models"
	"cbs/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCheckoutDerivesBookings(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	courtA := makeCourt(t, conn)
	courtB := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	// Two contiguous hours on court A merge into one booking, the court B
	// hour stays its own.
	addItem(t, alice.ID, courtA.ID, date, "10:00", "11:00")
	addItem(t, alice.ID, courtA.ID, date, "11:00", "12:00")
	r := addItem(t, alice.ID, courtB.ID, date, "10:00", "11:00")

	r, err := Checkout(r.Order.ID, alice.ID, false, flagsOn)
	require.NoError(t, err)
	assert.Equal(t, types.OUTCOME_ACCEPTED, r.Outcome.Kind)
	assert.Equal(t, types.ORDER_CHECKED_OUT, r.Order.Status)
	assert.Equal(t, types.APPROVAL_PENDING, r.Order.ApprovalStatus)
	require.Len(t, r.Bookings, 2)

	var merged models.Booking
	require.NoError(t, conn.Where("court_id = ?", courtA.ID).First(&merged).Error)
	assert.Equal(t, types.BOOKING_PENDING, merged.Status)
	assert.Equal(t, 2*time.Hour, merged.EndTime.Sub(merged.StartTime))
	assert.Equal(t, float64(80), merged.Price)

	// Every item now points at its booking.
	var unlinked int64
	conn.Model(&models.CartItem{}).Where("order_id = ? AND booking_id IS NULL", r.Order.ID).Count(&unlinked)
	assert.Equal(t, int64(0), unlinked)
}

func TestCheckoutGuards(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	t.Run("unknown order", func(t *testing.T) {
		_, err := Checkout(9999, alice.ID, false, flagsOn)
		assert.Equal(t, types.ERR_NOT_FOUND, types.KindOf(err))
	})

	t.Run("foreign order hidden from non-admin", func(t *testing.T) {
		r := addItem(t, alice.ID, court.ID, date, "10:00", "11:00")
		_, err := Checkout(r.Order.ID, bob.ID, false, flagsOn)
		assert.Equal(t, types.ERR_NOT_FOUND, types.KindOf(err))
	})

	t.Run("double checkout", func(t *testing.T) {
		orderID := firstOpenOrder(t, conn, alice.ID)
		_, err := Checkout(orderID, alice.ID, false, flagsOn)
		require.NoError(t, err)
		_, err = Checkout(orderID, alice.ID, false, flagsOn)
		require.Error(t, err)
		assert.Equal(t, types.ERR_VALIDATION, types.KindOf(err))
	})

	t.Run("empty cart", func(t *testing.T) {
		var order models.Order
		require.NoError(t, conn.Create(&models.Order{
			UserID: bob.ID, CreatedBy: bob.ID,
			Status: types.ORDER_OPEN, ApprovalStatus: types.APPROVAL_PENDING,
			PaymentStatus: types.PAYMENT_UNPAID,
		}).Error)
		require.NoError(t, conn.Where("user_id = ? AND status = ?", bob.ID, types.ORDER_OPEN).First(&order).Error)
		_, err := Checkout(order.ID, bob.ID, false, flagsOn)
		require.Error(t, err)
		assert.Equal(t, types.ERR_VALIDATION, types.KindOf(err))
	})
}

func TestCheckoutRevalidatesAgainstLatestState(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	// Both carts hold the same window; Alice checks out and gets approved
	// first, so Bob's checkout has to abort entirely.
	addItem(t, alice.ID, court.ID, date, "10:00", "11:00")
	addItem(t, bob.ID, court.ID, date, "10:00", "11:00")
	r := addItem(t, bob.ID, court.ID, date, "15:00", "16:00")

	bookSlotFromCart(t, conn, alice.ID)

	_, err := Checkout(r.Order.ID, bob.ID, false, flagsOn)
	require.Error(t, err)
	assert.Equal(t, types.ERR_CONFLICT, types.KindOf(err))

	// The abort left nothing behind: no bookings, order still open.
	var order models.Order
	require.NoError(t, conn.Where("id = ?", r.Order.ID).First(&order).Error)
	assert.Equal(t, types.ORDER_OPEN, order.Status)
	var bookings int64
	conn.Model(&models.Booking{}).Where("order_id = ?", order.ID).Count(&bookings)
	assert.Equal(t, int64(0), bookings)
}

func TestCheckoutConvertsNotifiedEntry(t *testing.T) {
	conn := setupTestDB(t)
	rec := captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	hold := holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	r, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)
	entry := r.Entry

	// Alice's rejection frees the window and notifies Bob.
	_, err = Reject(hold.Order.ID, "no show history")
	require.NoError(t, err)
	rec.waitFor(t, 2) // rejection notice + waitlist notice

	var notified models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", entry.ID).First(&notified).Error)
	require.Equal(t, types.WAITLIST_NOTIFIED, notified.Status)
	require.NotNil(t, notified.ExpiresAt)

	// Bob checks out his shadow order: the booking approves without manual
	// review and the entry converts.
	require.NotNil(t, entry.ShadowOrderID)
	result, err := Checkout(*entry.ShadowOrderID, bob.ID, false, flagsOn)
	require.NoError(t, err)
	assert.Equal(t, types.OUTCOME_APPROVED, result.Outcome.Kind)
	assert.Equal(t, types.APPROVAL_APPROVED, result.Order.ApprovalStatus)
	require.Len(t, result.Bookings, 1)
	assert.Equal(t, types.BOOKING_APPROVED, result.Bookings[0].Status)

	var converted models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", entry.ID).First(&converted).Error)
	assert.Equal(t, types.WAITLIST_CONVERTED, converted.Status)
	require.NotNil(t, converted.ConvertedOrderID)
	assert.Equal(t, *entry.ShadowOrderID, *converted.ConvertedOrderID)
}

func TestConversionCancelsTrailingQueue(t *testing.T) {
	conn := setupTestDB(t)
	rec := captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	carol := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	hold := holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	rb, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)
	rc, err := SubmitRequest(carol.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)

	_, err = Reject(hold.Order.ID, "no show history")
	require.NoError(t, err)
	rec.waitFor(t, 2)

	result, err := Checkout(*rb.Entry.ShadowOrderID, bob.ID, false, flagsOn)
	require.NoError(t, err)
	require.Equal(t, types.OUTCOME_APPROVED, result.Outcome.Kind)

	// The window now belongs to Bob's approved booking; Carol's entry still
	// pointed at Alice's rejected one and could never be served again, so
	// the conversion closed it out the way an approval would.
	var trailing models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", rc.Entry.ID).First(&trailing).Error)
	assert.Equal(t, types.WAITLIST_CANCELED, trailing.Status)

	var shadow models.Order
	require.NoError(t, conn.Where("id = ?", *rc.Entry.ShadowOrderID).First(&shadow).Error)
	assert.Equal(t, types.ORDER_CANCELED, shadow.Status)
	assert.Equal(t, types.APPROVAL_REJECTED, shadow.ApprovalStatus)

	// Nothing on this court is left queued behind a window that cannot
	// come back.
	var queued int64
	conn.Model(&models.WaitlistEntry{}).
		Where("court_id = ? AND status IN ?", court.ID, []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
		Count(&queued)
	assert.Equal(t, int64(0), queued)
}

func TestCheckoutWithoutNotificationQueuesNormally(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	// Bob queues behind Alice but never gets notified; his shadow order
	// cannot check out while she still holds the window.
	holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	r, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)

	_, err = Checkout(*r.Entry.ShadowOrderID, bob.ID, false, flagsOn)
	require.Error(t, err)
	assert.Equal(t, types.ERR_CONFLICT, types.KindOf(err))
}

// bookSlotFromCart checks out and approves whatever is in the user's open
// cart.
func bookSlotFromCart(t *testing.T, conn *gorm.DB, userID uint) {
	t.Helper()
	orderID := firstOpenOrder(t, conn, userID)
	_, err := Checkout(orderID, userID, false, flagsOn)
	require.NoError(t, err)
	_, err = Approve(orderID)
	require.NoError(t, err)
}
