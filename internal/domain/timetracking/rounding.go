package timetracking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally/backend/internal/domain/shared"
)

const (
	// Quarter is the billing granularity.
	Quarter = 15 * time.Minute

	// roundUpFromRemainder is the first remainder (minutes past a quarter)
	// at which a start time moves to the next quarter.
	roundUpFromRemainder = 11

	// DurationPlaces is the number of decimal places durations are kept at.
	DurationPlaces int32 = 2
)

// MinimumDurationHours is the smallest duration a rounded entry can carry.
var MinimumDurationHours = decimal.RequireFromString("0.25")

// RoundedEntry is the result of snapping a raw timer interval to quarter hours.
//
// Invariants: EndTime is after StartTime, both fall on quarter boundaries of
// the calendar used, and DurationHours equals (EndTime-StartTime) in hours
// rounded to two places, never below 0.25.
type RoundedEntry struct {
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	DurationHours decimal.Decimal `json:"duration_hours"`
}

// Duration returns EndTime - StartTime.
func (e RoundedEntry) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// floorQuarter returns the quarter boundary at or before t in cal together
// with the remainder in minutes. Seconds and sub-seconds are dropped.
func floorQuarter(t time.Time, cal Calendar) (time.Time, int) {
	local := cal.Local(t)
	r := local.Minute() % 15
	floor := local.Add(-time.Duration(r)*time.Minute -
		time.Duration(local.Second())*time.Second -
		time.Duration(local.Nanosecond()))
	return floor, r
}

// RoundStartTime snaps a start instant to a quarter boundary of cal.
// Remainders 0..10 round down, 11..14 round up to the next quarter.
// The result is expressed in cal's location.
func RoundStartTime(t time.Time, cal Calendar) time.Time {
	floor, r := floorQuarter(t, cal)
	if r >= roundUpFromRemainder {
		return floor.Add(Quarter)
	}
	return floor
}

// RoundEndTime snaps an end instant to a quarter boundary of cal. Any
// instant past a boundary rounds up; a boundary minute stays where it is.
func RoundEndTime(t time.Time, cal Calendar) time.Time {
	floor, r := floorQuarter(t, cal)
	if r == 0 {
		return floor
	}
	return floor.Add(Quarter)
}

// RoundTimerToQuarters rounds a raw interval and enforces the 15 minute floor.
// rawEnd before rawStart is a precondition violation.
func RoundTimerToQuarters(rawStart, rawEnd time.Time, cal Calendar) (RoundedEntry, error) {
	if err := cal.validate(); err != nil {
		return RoundedEntry{}, err
	}
	if rawStart.IsZero() || rawEnd.IsZero() {
		return RoundedEntry{}, shared.NewPreconditionError("raw start and end must be set")
	}
	if rawEnd.Before(rawStart) {
		return RoundedEntry{}, shared.NewPreconditionError(fmt.Sprintf(
			"raw end %s is before raw start %s",
			rawEnd.Format(time.RFC3339), rawStart.Format(time.RFC3339)))
	}

	start := RoundStartTime(rawStart, cal)
	end := RoundEndTime(rawEnd, cal)

	if end.Sub(start) < Quarter {
		return RoundedEntry{
			StartTime:     start,
			EndTime:       start.Add(Quarter),
			DurationHours: MinimumDurationHours,
		}, nil
	}

	return RoundedEntry{
		StartTime:     start,
		EndTime:       end,
		DurationHours: durationHours(end.Sub(start)),
	}, nil
}

func durationHours(d time.Duration) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(d / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(DurationPlaces)
}
