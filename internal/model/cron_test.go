package model_test

import (
	"testing"
	"time"

	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/stretchr/testify/require"
)

func TestParseISODuration(t *testing.T) {
	t.Parallel()
	type then struct {
		d   time.Duration
		err bool
	}
	cases := []struct {
		scenario string
		given    string
		then     then
	}{
		{"seconds", "PT30S", then{30 * time.Second, false}},
		{"fraction", "PT1.5S", then{1500 * time.Millisecond, false}},
		{"comma fraction", "PT0,25S", then{250 * time.Millisecond, false}},
		{"minutes", "PT2M", then{2 * time.Minute, false}},
		{"mixed", "P1DT2H3M4S", then{26*time.Hour + 3*time.Minute + 4*time.Second, false}},
		{"days", "P2D", then{48 * time.Hour, false}},
		{"months are ambiguous", "P2M", then{0, true}},
		{"dangling T", "P2DT", then{0, true}},
		{"empty", "", then{0, true}},
		{"only P", "P", then{0, true}},
		{"garbage", "2 minutes", then{0, true}},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			d, err := model.ParseISODuration(tc.given)
			if tc.then.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then.d, d)
		})
	}
}

func TestParseCron(t *testing.T) {
	t.Parallel()
	_, err := model.ParseCron("*/15 * * * *")
	require.NoError(t, err)
	_, err = model.ParseCron("@every 5m")
	require.NoError(t, err)
	_, err = model.ParseCron("")
	require.EqualError(t, err, "empty cron expression")
	_, err = model.ParseCron("* * 32 * *")
	require.Error(t, err)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	d, err := model.CronInterval("*/15 * * * *", now)
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, d)
}
