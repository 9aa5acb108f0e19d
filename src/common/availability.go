package common

import (
	"cbs/src/config"
	"cbs/src/models"
	"cbs/src/types"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var blockingBookingStatuses = []types.BookingStatus{
	types.BOOKING_PENDING,
	types.BOOKING_APPROVED,
	types.BOOKING_COMPLETED,
	types.BOOKING_CHECKED_IN,
}

type EvalInput struct {
	CourtID      uint
	Start        time.Time
	End          time.Time
	UserID       uint
	OwnerOrderID uint
	Flags        types.FeatureFlags
}

type EvalResult struct {
	Outcome  types.OutcomeKind
	Blocking *models.Booking
}

// evaluate is the single admission gate for the (court, time range) axis.
// It reads the latest committed state inside the caller's transaction and
// returns accept, reject, or queue. Items belonging to OwnerOrderID are
// excluded so a multi-slot submission never conflicts with its own earlier
// slots. The overlap test runs on full date-time values, ranges crossing
// midnight need no special case.
func evaluate(tx *gorm.DB, in EvalInput) (*EvalResult, error) {
	if !in.End.After(in.Start) {
		return nil, types.NewValidationError("start time must be before end time")
	}
	var blockers []models.Booking
	if err := tx.
		Model(&models.Booking{}).
		Where("court_id = ? AND order_id <> ? AND start_time < ? AND end_time > ?", in.CourtID, in.OwnerOrderID, in.End, in.Start).
		Where("status IN ?", blockingBookingStatuses).
		Order("start_time ASC").
		Find(&blockers).
		Error; err != nil {
		return nil, err
	}
	var pending *models.Booking
	for i := range blockers {
		switch blockers[i].Status {
		case types.BOOKING_APPROVED, types.BOOKING_COMPLETED, types.BOOKING_CHECKED_IN:
			return &EvalResult{Outcome: types.OUTCOME_REJECTED, Blocking: &blockers[i]}, nil
		case types.BOOKING_PENDING:
			if pending == nil {
				pending = &blockers[i]
			}
		}
	}
	if pending != nil {
		// A pending booking queues every later contender, no matter who
		// created it. Privilege controls who may originate a booking,
		// never who may skip an existing queue.
		return &EvalResult{Outcome: types.OUTCOME_QUEUED, Blocking: pending}, nil
	}
	return &EvalResult{Outcome: types.OUTCOME_ACCEPTED}, nil
}

// parseWindow turns a date plus opening/closing clocks into concrete
// date-times. An end clock at or before the start clock rolls over to the
// next day.
func parseWindow(court *models.Court, dateStr, startStr, endStr string) (date, start, end time.Time, err error) {
	date, err = time.ParseInLocation(config.DATE_PARSE_FORMAT, dateStr, time.Local)
	if err != nil {
		err = types.NewValidationError("invalid date %q", dateStr)
		return
	}
	startClock, perr := time.Parse(config.CLOCK_PARSE_FORMAT, startStr)
	if perr != nil {
		err = types.NewValidationError("invalid start time %q", startStr)
		return
	}
	endClock, perr := time.Parse(config.CLOCK_PARSE_FORMAT, endStr)
	if perr != nil {
		err = types.NewValidationError("invalid end time %q", endStr)
		return
	}
	start = date.Add(time.Duration(startClock.Hour())*time.Hour + time.Duration(startClock.Minute())*time.Minute)
	end = date.Add(time.Duration(endClock.Hour())*time.Hour + time.Duration(endClock.Minute())*time.Minute)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	if err = checkOperatingHours(court, start, end); err != nil {
		return
	}
	return
}

func clockMinutes(clock string) (int, error) {
	t, err := time.Parse(config.CLOCK_PARSE_FORMAT, clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func checkOperatingHours(court *models.Court, start, end time.Time) error {
	openMin, err := clockMinutes(court.OpenTime)
	if err != nil {
		return types.NewValidationError("court %d has malformed open time", court.ID)
	}
	closeMin, err := clockMinutes(court.CloseTime)
	if err != nil {
		return types.NewValidationError("court %d has malformed close time", court.ID)
	}
	if closeMin <= openMin {
		// Court stays open across midnight.
		closeMin += 24 * 60
	}
	startMin := start.Hour()*60 + start.Minute()
	if startMin < openMin {
		startMin += 24 * 60
	}
	endMin := startMin + int(end.Sub(start).Minutes())
	if startMin < openMin || endMin > closeMin {
		return types.NewValidationError("court is open %s to %s", court.OpenTime, court.CloseTime)
	}
	return nil
}

// EvaluateDay renders the per-slot status grid for one court and date.
// Shared with checkout validation through the flags value: a slot shown as
// queueable here can never be rejected as unjoinable at checkout, both
// sides read the same isWaitlistJoinable expression.
func EvaluateDay(tx *gorm.DB, court *models.Court, date time.Time, userID uint, flags types.FeatureFlags) ([]types.SlotInfo, error) {
	openMin, err := clockMinutes(court.OpenTime)
	if err != nil {
		return nil, types.NewValidationError("court %d has malformed open time", court.ID)
	}
	closeMin, err := clockMinutes(court.CloseTime)
	if err != nil {
		return nil, types.NewValidationError("court %d has malformed close time", court.ID)
	}
	if closeMin <= openMin {
		closeMin += 24 * 60
	}
	dayStart := date.Add(time.Duration(openMin) * time.Minute)
	dayEnd := date.Add(time.Duration(closeMin) * time.Minute)

	var bookings []models.Booking
	if err := tx.
		Model(&models.Booking{}).
		Where("court_id = ? AND start_time < ? AND end_time > ?", court.ID, dayEnd, dayStart).
		Where("status IN ?", blockingBookingStatuses).
		Find(&bookings).
		Error; err != nil {
		return nil, err
	}
	var entries []models.WaitlistEntry
	if userID != 0 {
		if err := tx.
			Model(&models.WaitlistEntry{}).
			Where("court_id = ? AND user_id = ? AND start_time < ? AND end_time > ?", court.ID, userID, dayEnd, dayStart).
			Where("status IN ?", []types.WaitlistStatus{types.WAITLIST_PENDING, types.WAITLIST_NOTIFIED}).
			Find(&entries).
			Error; err != nil {
			return nil, err
		}
	}

	slots := make([]types.SlotInfo, 0, (closeMin-openMin)/60)
	for m := openMin; m+60 <= closeMin; m += 60 {
		slotStart := date.Add(time.Duration(m) * time.Minute)
		slotEnd := slotStart.Add(time.Hour)
		slot := types.SlotInfo{Start: slotStart, End: slotEnd, Status: types.SLOT_AVAILABLE}

		fullyBooked := false
		pendingHold := false
		for i := range bookings {
			if bookings[i].StartTime.Before(slotEnd) && bookings[i].EndTime.After(slotStart) {
				if bookings[i].Status == types.BOOKING_PENDING {
					pendingHold = true
				} else {
					fullyBooked = true
				}
			}
		}
		waitlistedByCaller := false
		for i := range entries {
			if entries[i].StartTime.Before(slotEnd) && entries[i].EndTime.After(slotStart) {
				waitlistedByCaller = true
			}
		}

		joinable := !fullyBooked && flags.WaitlistEnabled
		switch {
		case fullyBooked:
			slot.Status = types.SLOT_BOOKED
		case waitlistedByCaller:
			slot.Status = types.SLOT_WAITLISTED_BY_CALLER
		case pendingHold && joinable:
			slot.Status = types.SLOT_QUEUEABLE
		case pendingHold:
			slot.Status = types.SLOT_BOOKED
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// AvailabilityCacheKey names the redis entry for a court/date grid.
func AvailabilityCacheKey(courtID uint, date time.Time) string {
	return fmt.Sprintf("availability:%d:%s", courtID, date.Format(config.DATE_PARSE_FORMAT))
}
