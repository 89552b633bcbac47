package domain_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		hours    float64
		rate     string
		expected string
	}{
		{"two hours", 2, "8000", "16000"},
		{"half hour", 0.5, "8000", "4000"},
		{"half hour odd rate rounds up", 0.5, "8001", "4001"},
		{"fractional rate rounds half up", 1.5, "3.3", "5"},
		{"exact half rounds up", 0.5, "5", "3"},
		{"five hours", 5, "1200", "6000"},
		{"free slot", 3, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := domain.ComputeTotal(tt.hours, decimal.RequireFromString(tt.rate))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, total.String())
		})
	}
}

func TestComputeTotal_Deterministic(t *testing.T) {
	rate := decimal.RequireFromString("7350")
	for _, hours := range domain.AllowedDurations() {
		first, err := domain.ComputeTotal(hours, rate)
		require.NoError(t, err)
		second, err := domain.ComputeTotal(hours, rate)
		require.NoError(t, err)
		assert.True(t, first.Equal(second))
		assert.True(t, first.Equal(decimal.NewFromFloat(hours).Mul(rate).Round(0)))
	}
}

func TestComputeTotal_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		hours float64
		rate  string
	}{
		{"zero duration", 0, "100"},
		{"negative duration", -1, "100"},
		{"not a half hour multiple", 1.25, "100"},
		{"three and a half hours", 3.5, "100"},
		{"four and a half hours", 4.5, "100"},
		{"longer than five hours", 6, "100"},
		{"nan", math.NaN(), "100"},
		{"infinite", math.Inf(1), "100"},
		{"negative rate", 2, "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ComputeTotal(tt.hours, decimal.RequireFromString(tt.rate))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
		})
	}
}
