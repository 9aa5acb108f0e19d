package common

import (
	"cbs/src/models"
	"cbs/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachPaymentProof(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	bob := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	hold := holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")

	t.Run("owner only", func(t *testing.T) {
		_, err := AttachPaymentProof(hold.Order.ID, bob.ID, false, "ref-1")
		assert.Equal(t, types.ERR_NOT_FOUND, types.KindOf(err))
	})

	t.Run("stores opaque reference", func(t *testing.T) {
		r, err := AttachPaymentProof(hold.Order.ID, alice.ID, false, "bank-slip-77")
		require.NoError(t, err)
		require.NotNil(t, r.Order.PaymentProofRef)
		assert.Equal(t, "bank-slip-77", *r.Order.PaymentProofRef)
		assert.True(t, r.Order.HasProof())
	})

	t.Run("rejected order refuses proof", func(t *testing.T) {
		other := holdSlot(t, bob.ID, court.ID, date, "12:00", "13:00")
		_, err := Reject(other.Order.ID, "manual review failed")
		require.NoError(t, err)
		_, err = AttachPaymentProof(other.Order.ID, bob.ID, false, "ref-2")
		require.Error(t, err)
		assert.Equal(t, types.ERR_VALIDATION, types.KindOf(err))
	})
}

func TestMarkPaidPropagates(t *testing.T) {
	conn := setupTestDB(t)
	captureMail(t)
	court := makeCourt(t, conn)
	alice := makeUser(t, conn, types.ROLE_USER)
	date := futureDate(7)

	hold := holdSlot(t, alice.ID, court.ID, date, "10:00", "11:00")
	r, err := MarkPaid(hold.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PAYMENT_PAID, r.Order.PaymentStatus)

	var booking models.Booking
	require.NoError(t, conn.Where("id = ?", hold.Bookings[0].ID).First(&booking).Error)
	assert.Equal(t, types.PAYMENT_PAID, booking.PaymentStatus)
}
