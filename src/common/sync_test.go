package common

import (
	"cbs/src/models"
	"cbs/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelCartItemOpenCart(t *testing.T) {
	conn := setupTestDB(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	addItem(t, alice.ID, court.ID, date, "10:00", "11:00")
	r := addItem(t, alice.ID, court.ID, date, "13:00", "14:00")
	require.Len(t, r.Order.CartItems, 2)

	itemID := r.Order.CartItems[0].ID
	r, err := CancelCartItem(itemID, alice.ID, false)
	require.NoError(t, err)
	assert.Equal(t, float64(20), r.Order.TotalPrice)

	var item models.CartItem
	require.NoError(t, conn.Where("id = ?", itemID).First(&item).Error)
	assert.Equal(t, types.CART_ITEM_CANCELED, item.Status)

	// Cancelling the same item again is refused.
	_, err = CancelCartItem(itemID, alice.ID, false)
	require.Error(t, err)
	assert.Equal(t, types.ERR_VALIDATION, types.KindOf(err))
}

func TestCancelQueuedItemRemovesEntry(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	carol := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	rb, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)
	rc, err := SubmitRequest(carol.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)

	// Dropping the shadow item takes Bob's entry out of the queue and
	// Carol moves up.
	_, err = CancelCartItem(*rb.Entry.ShadowItemID, bob.ID, false)
	require.NoError(t, err)

	var entry models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", rb.Entry.ID).First(&entry).Error)
	assert.Equal(t, types.WAITLIST_CANCELED, entry.Status)
	entry = models.WaitlistEntry{}
	require.NoError(t, conn.Where("id = ?", rc.Entry.ID).First(&entry).Error)
	assert.Equal(t, uint(1), entry.Position)
}

func TestCancelNotifiedItemAdvancesQueue(t *testing.T) {
	conn := setupTestDB(t)
	rec := captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	carol := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	rb, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)
	rc, err := SubmitRequest(carol.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)

	_, err = NotifyNext(rb.Entry.BookingID)
	require.NoError(t, err)
	rec.waitFor(t, 1)

	// Bob walks away from his claim by dropping the shadow item instead of
	// cancelling the entry. The queue must advance exactly as CancelEntry
	// would have: claim released, shadow pair retired, Carol notified.
	_, err = CancelCartItem(*rb.Entry.ShadowItemID, bob.ID, false)
	require.NoError(t, err)
	rec.waitFor(t, 2)

	var entry models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", rb.Entry.ID).First(&entry).Error)
	assert.Equal(t, types.WAITLIST_CANCELED, entry.Status)

	var shadow models.Order
	require.NoError(t, conn.Where("id = ?", *rb.Entry.ShadowOrderID).First(&shadow).Error)
	assert.Equal(t, types.ORDER_CANCELED, shadow.Status)

	entry = models.WaitlistEntry{}
	require.NoError(t, conn.Where("id = ?", rc.Entry.ID).First(&entry).Error)
	assert.Equal(t, types.WAITLIST_NOTIFIED, entry.Status)
	assert.Equal(t, uint(1), entry.Position)
	require.NotNil(t, entry.ExpiresAt)
}

func TestCancelCartItemRederivesBooking(t *testing.T) {
	conn := setupTestDB(t)
	rec := captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	addItem(t, alice.ID, court.ID, date, "10:00", "11:00")
	r := addItem(t, alice.ID, court.ID, date, "11:00", "12:00")
	r, err := Checkout(r.Order.ID, alice.ID, false, flagsOn)
	require.NoError(t, err)
	require.Len(t, r.Bookings, 1)
	booking := r.Bookings[0]

	// Bob queues behind the merged booking.
	rb, err := SubmitRequest(bob.ID, &types.AddCartItemRequestBody{
		CourtID: court.ID, Date: date, StartTime: "10:00", EndTime: "11:00",
	}, flagsOn)
	require.NoError(t, err)

	var items []models.CartItem
	require.NoError(t, conn.
		Where("order_id = ?", r.Order.ID).
		Order("start_time ASC").
		Find(&items).
		Error)
	require.Len(t, items, 2)

	// Dropping the first hour narrows the booking to the second.
	_, err = CancelCartItem(items[0].ID, alice.ID, false)
	require.NoError(t, err)
	var after models.Booking
	require.NoError(t, conn.Where("id = ?", booking.ID).First(&after).Error)
	assert.Equal(t, types.BOOKING_PENDING, after.Status)
	assert.Equal(t, time.Hour, after.EndTime.Sub(after.StartTime))
	assert.Equal(t, float64(20), after.Price)

	// Dropping the last hour cancels the booking and the freed window
	// notifies Bob.
	_, err = CancelCartItem(items[1].ID, alice.ID, false)
	require.NoError(t, err)
	require.NoError(t, conn.Where("id = ?", booking.ID).First(&after).Error)
	assert.Equal(t, types.BOOKING_CANCELED, after.Status)

	rec.waitFor(t, 1)
	var entry models.WaitlistEntry
	require.NoError(t, conn.Where("id = ?", rb.Entry.ID).First(&entry).Error)
	assert.Equal(t, types.WAITLIST_NOTIFIED, entry.Status)
}

func TestEditCartItemMoveTime(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	r := holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	var item models.CartItem
	require.NoError(t, conn.Where("order_id = ?", r.Order.ID).First(&item).Error)

	t.Run("conflicting target refused", func(t *testing.T) {
		bookSlot(t, conn, bob.ID, court.ID, date, "15:00", "16:00")
		_, err := EditCartItem(item.ID, &types.EditCartItemRequestBody{
			StartTime: "15:00", EndTime: "16:00",
		}, flagsOn)
		require.Error(t, err)
		assert.Equal(t, types.ERR_CONFLICT, types.KindOf(err))
	})

	t.Run("free target moves item and booking", func(t *testing.T) {
		res, err := EditCartItem(item.ID, &types.EditCartItemRequestBody{
			StartTime: "12:00", EndTime: "14:00",
		}, flagsOn)
		require.NoError(t, err)

		var moved models.CartItem
		require.NoError(t, conn.Where("id = ?", item.ID).First(&moved).Error)
		assert.Equal(t, 12, moved.StartTime.Hour())
		assert.Equal(t, float64(40), moved.Price)

		var booking models.Booking
		require.NoError(t, conn.Where("id = ?", *moved.BookingID).First(&booking).Error)
		assert.Equal(t, 12, booking.StartTime.Hour())
		assert.Equal(t, 14, booking.EndTime.Hour())
		assert.Equal(t, float64(40), res.Order.TotalPrice)
	})
}

func TestEditCartItemCourtMoveSplits(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	courtA := makeCourt(t, conn)
	courtB := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	addItem(t, alice.ID, courtA.ID, date, "10:00", "11:00")
	r := addItem(t, alice.ID, courtA.ID, date, "11:00", "12:00")
	r, err := Checkout(r.Order.ID, alice.ID, false, flagsOn)
	require.NoError(t, err)
	oldBooking := r.Bookings[0]

	var items []models.CartItem
	require.NoError(t, conn.
		Where("order_id = ?", r.Order.ID).
		Order("start_time ASC").
		Find(&items).
		Error)

	_, err = EditCartItem(items[1].ID, &types.EditCartItemRequestBody{CourtID: courtB.ID}, flagsOn)
	require.NoError(t, err)

	// The moved item split off a new booking on the other court; both
	// sides carry the review flag because recorded payment cannot be
	// divided automatically.
	var moved models.CartItem
	require.NoError(t, conn.Where("id = ?", items[1].ID).First(&moved).Error)
	require.NotNil(t, moved.BookingID)
	assert.NotEqual(t, oldBooking.ID, *moved.BookingID)

	var split models.Booking
	require.NoError(t, conn.Where("id = ?", *moved.BookingID).First(&split).Error)
	assert.Equal(t, courtB.ID, split.CourtID)
	assert.Equal(t, oldBooking.Status, split.Status)
	assert.True(t, split.NeedsReview)

	var old models.Booking
	require.NoError(t, conn.Where("id = ?", oldBooking.ID).First(&old).Error)
	assert.True(t, old.NeedsReview)
	assert.Equal(t, time.Hour, old.EndTime.Sub(old.StartTime))
}
