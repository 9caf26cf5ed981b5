package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func schedule(rate string, floor, ceiling int64) RateSchedule {
	return RateSchedule{
		Version: "2026-01",
		Rate:    decimal.RequireFromString(rate),
		Floor:   floor,
		Ceiling: ceiling,
	}
}

func TestComputeCommission(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		amount   int64
		schedule RateSchedule
		wantFee  int64
	}{
		{"eight_percent_of_10000", 10_000, schedule("0.08", 0, 0), 800},
		{"rounds_half_up", 1_250, schedule("0.034", 0, 0), 43}, // 42.5 rounds up
		{"rounds_down_below_half", 1_000, schedule("0.0333", 0, 0), 33},
		{"floor_applies_to_small_amounts", 100, schedule("0.05", 50, 0), 50},
		{"ceiling_caps_large_amounts", 10_000_000, schedule("0.08", 0, 100_000), 100_000},
		{"zero_ceiling_means_unlimited", 10_000_000, schedule("0.08", 0, 0), 800_000},
		{"zero_rate", 10_000, schedule("0", 0, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ComputeCommission(tt.amount, tt.schedule, now)
			assert.Equal(t, tt.wantFee, snap.Fee)
			assert.Equal(t, tt.schedule.Version, snap.RateScheduleVersion)
			assert.True(t, snap.Rate.Equal(tt.schedule.Rate))
			assert.Equal(t, now, snap.CapturedAt)
		})
	}
}

func TestComputeCommissionSnapshotIsFrozen(t *testing.T) {
	now := time.Now()
	sched := schedule("0.08", 0, 0)
	snap := ComputeCommission(10_000, sched, now)

	// Mutating the schedule afterwards must not affect the snapshot.
	sched.Rate = decimal.RequireFromString("0.99")
	sched.Floor = 5_000

	assert.Equal(t, int64(800), snap.Fee)
	assert.True(t, snap.Rate.Equal(decimal.RequireFromString("0.08")))
	assert.Equal(t, int64(0), snap.Floor)
}

func TestProportionalFeeReversal(t *testing.T) {
	tests := []struct {
		name         string
		fee          int64
		refundAmount int64
		intentAmount int64
		want         int64
	}{
		{"half_refund_halves_fee", 800, 5_000, 10_000, 400},
		{"full_refund_reverses_full_fee", 800, 10_000, 10_000, 800},
		{"tiny_refund_rounds", 800, 1, 10_000, 0},
		{"odd_split_rounds_half_up", 333, 5_000, 10_000, 167}, // 166.5
		{"zero_intent_amount_is_safe", 800, 5_000, 0, 0},
		{"zero_fee", 0, 5_000, 10_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := CommissionSnapshot{Fee: tt.fee}
			assert.Equal(t, tt.want, snap.ProportionalFeeReversal(tt.refundAmount, tt.intentAmount))
		})
	}
}

// Successive partial refunds over the whole amount never reverse more than
// the frozen fee, give or take one minor unit of rounding per slice.
func TestProportionalFeeReversalAcrossPartials(t *testing.T) {
	snap := CommissionSnapshot{Fee: 800}

	first := snap.ProportionalFeeReversal(3_000, 10_000)
	second := snap.ProportionalFeeReversal(7_000, 10_000)

	assert.Equal(t, int64(240), first)
	assert.Equal(t, int64(560), second)
	assert.Equal(t, snap.Fee, first+second)
}
