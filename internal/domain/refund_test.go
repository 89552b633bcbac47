package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

func TestComputeRefund_TierBoundaries(t *testing.T) {
	start := time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC)
	total := decimal.NewFromInt(1000)

	tests := []struct {
		name     string
		now      time.Time
		expected int64
		tier     domain.RefundTier
	}{
		{"exactly 24h before", start.Add(-24 * time.Hour), 1000, domain.RefundFull},
		{"well ahead", start.Add(-72 * time.Hour), 1000, domain.RefundFull},
		{"23h59m before", start.Add(-(23*time.Hour + 59*time.Minute)), 500, domain.RefundHalf},
		{"exactly 12h before", start.Add(-12 * time.Hour), 500, domain.RefundHalf},
		{"11h59m before", start.Add(-(11*time.Hour + 59*time.Minute)), 0, domain.RefundNone},
		{"at start", start, 0, domain.RefundNone},
		{"after start", start.Add(time.Hour), 0, domain.RefundNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refund := domain.ComputeRefund(total, start, tt.now)
			assert.True(t, refund.Equal(decimal.NewFromInt(tt.expected)), "got %s", refund)
			assert.Equal(t, tt.tier, domain.RefundTierFor(start, tt.now))
		})
	}
}

func TestComputeRefund_HalfRoundsUp(t *testing.T) {
	start := time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC)
	refund := domain.ComputeRefund(decimal.NewFromInt(1001), start, start.Add(-13*time.Hour))
	assert.Equal(t, "501", refund.String())
}
