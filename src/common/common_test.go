package common

import (
	"cbs/src/db"
	"cbs/src/lib"
	"cbs/src/models"
	"cbs/src/types"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var flagsOn = types.FeatureFlags{WaitlistEnabled: true}
var flagsOff = types.FeatureFlags{WaitlistEnabled: false}

// setupTestDB swaps the package singleton for an in-memory SQLite database
// unique to the test, so tests never share state.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(
		&models.User{},
		&models.Court{},
		&models.Order{},
		&models.CartItem{},
		&models.Booking{},
		&models.WaitlistEntry{},
	))
	db.NewDB(testDB)
	return testDB
}

// mailRecorder captures outgoing notices so tests can assert on them
// without a real SMTP server. Notifications fire from goroutines after
// commit, hence the mutex and the polling helper.
type mailRecorder struct {
	mu   sync.Mutex
	sent []lib.SendMailInput
}

func (r *mailRecorder) send(in *lib.SendMailInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *in)
	return nil
}

func (r *mailRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *mailRecorder) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d mails, got %d", n, r.count())
}

func captureMail(t *testing.T) *mailRecorder {
	t.Helper()
	rec := &mailRecorder{}
	SetMailSender(rec.send)
	t.Cleanup(func() { SetMailSender(lib.SendMail) })
	return rec
}

func makeCourt(t *testing.T, conn *gorm.DB) *models.Court {
	t.Helper()
	court := models.Court{
		Name:       "Court " + uuid.NewString()[:8],
		Slug:       uuid.NewString()[:8],
		OpenTime:   "07:00",
		CloseTime:  "22:00",
		HourlyRate: 20,
		Status:     "active",
	}
	require.NoError(t, conn.Create(&court).Error)
	return &court
}

func makeUser(t *testing.T, conn *gorm.DB, role types.Role) *models.User {
	t.Helper()
	user := models.User{
		Name:  "user-" + uuid.NewString()[:8],
		Email: uuid.NewString()[:8] + "@test.local",
		UID:   uuid.NewString(),
		Role:  role,
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

// futureDate formats a bookable date a week or more out, so the past-slot
// guard never trips in tests.
func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func addItem(t *testing.T, userID, courtID uint, date, start, end string) *Result {
	t.Helper()
	result, err := SubmitRequest(userID, &types.AddCartItemRequestBody{
		CourtID:   courtID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}, flagsOn)
	require.NoError(t, err)
	return result
}

func firstOpenOrder(t *testing.T, conn *gorm.DB, userID uint) uint {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.
		Where("user_id = ? AND status = ? AND approval_status = ?", userID, types.ORDER_OPEN, types.APPROVAL_PENDING).
		First(&order).
		Error)
	return order.ID
}

// bookSlot walks one user through submit, checkout, and approval, leaving
// an approved booking holding the window.
func bookSlot(t *testing.T, conn *gorm.DB, userID, courtID uint, date, start, end string) *models.Booking {
	t.Helper()
	r := addItem(t, userID, courtID, date, start, end)
	r, err := Checkout(r.Order.ID, userID, false, flagsOn)
	require.NoError(t, err)
	r, err = Approve(r.Order.ID)
	require.NoError(t, err)
	require.Len(t, r.Bookings, 1)
	return &r.Bookings[0]
}

// holdSlot stops after checkout, leaving a pending booking on the window.
func holdSlot(t *testing.T, userID, courtID uint, date, start, end string) *Result {
	t.Helper()
	r := addItem(t, userID, courtID, date, start, end)
	r, err := Checkout(r.Order.ID, userID, false, flagsOn)
	require.NoError(t, err)
	return r
}
