package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSchedule is the platform fee configuration in force for a store at a
// point in time. Amounts are minor currency units; the rate is a fraction
// (0.08 = 8%).
type RateSchedule struct {
	Version string
	Rate    decimal.Decimal
	Floor   int64
	Ceiling int64
}

// CommissionSnapshot freezes the fee computation at intent creation so later
// schedule changes never alter historical intents.
type CommissionSnapshot struct {
	RateScheduleVersion string          `json:"rate_schedule_version"`
	Rate                decimal.Decimal `json:"rate"`
	Fee                 int64           `json:"fee"`
	Floor               int64           `json:"floor"`
	Ceiling             int64           `json:"ceiling"`
	CapturedAt          time.Time       `json:"captured_at"`
}

// ComputeCommission is a pure function from (amount, schedule) to an
// immutable snapshot. The fee is rate*amount rounded half-up to minor units,
// then clamped to the schedule's floor and ceiling. A ceiling of zero means
// no ceiling.
func ComputeCommission(amount int64, schedule RateSchedule, at time.Time) CommissionSnapshot {
	fee := schedule.Rate.Mul(decimal.NewFromInt(amount)).Round(0).IntPart()
	if fee < schedule.Floor {
		fee = schedule.Floor
	}
	if schedule.Ceiling > 0 && fee > schedule.Ceiling {
		fee = schedule.Ceiling
	}
	return CommissionSnapshot{
		RateScheduleVersion: schedule.Version,
		Rate:                schedule.Rate,
		Fee:                 fee,
		Floor:               schedule.Floor,
		Ceiling:             schedule.Ceiling,
		CapturedAt:          at,
	}
}

// ProportionalFeeReversal computes the slice of the frozen fee to reverse
// for a partial refund: round(fee * refundAmount / intentAmount). Uses the
// snapshot, never the live schedule.
func (c CommissionSnapshot) ProportionalFeeReversal(refundAmount, intentAmount int64) int64 {
	if intentAmount == 0 {
		return 0
	}
	fee := decimal.NewFromInt(c.Fee)
	ratio := decimal.NewFromInt(refundAmount).Div(decimal.NewFromInt(intentAmount))
	return fee.Mul(ratio).Round(0).IntPart()
}
