package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscout/backend/pkg/errs"
)

func TestParseCadence(t *testing.T) {
	cases := []struct {
		expr string
		want time.Duration
	}{
		{"hourly", time.Hour},
		{"daily", 24 * time.Hour},
		{"weekly", 7 * 24 * time.Hour},
		{"every hourly", time.Hour},
		{"Every Daily", 24 * time.Hour},
		{"15m", 15 * time.Minute},
		{"every 2h30m", 2*time.Hour + 30*time.Minute},
		{"  every 1h  ", time.Hour},
	}

	for _, tc := range cases {
		got, err := ParseCadence(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestParseCadenceRejectsGarbage(t *testing.T) {
	for _, expr := range []string{"", "sometimes", "every", "5 minutes", "-1h"} {
		_, err := ParseCadence(expr)
		require.Error(t, err, expr)
		assert.True(t, errs.IsKind(err, errs.KindValidation), expr)
	}
}

func TestParseCadenceFloorsAtOneMinute(t *testing.T) {
	_, err := ParseCadence("30s")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	d, err := ParseCadence("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}
