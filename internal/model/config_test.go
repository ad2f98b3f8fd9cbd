package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
process:
  path: /opt/mwc/mwc713
  config: /home/alice/.mwc/wallet713.toml
  args:
    - --floonet
  env:
    RUST_BACKTRACE: "1"
dispatch:
  task_timeout: PT45S
node:
  health:
    cron: "*/5 * * * *"
send:
  confirmations: 3
  fluff: true
service:
  verbose: true
  log: discard
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "/opt/mwc/mwc713", cfg.Process.Path)
	require.Equal(t, "/home/alice/.mwc/wallet713.toml", cfg.Process.Config)
	require.Equal(t, []string{"--floonet"}, cfg.Process.Args)
	require.Equal(t, "1", cfg.Process.Env["RUST_BACKTRACE"])
	require.Equal(t, 45*time.Second, cfg.Dispatch.Timeout())
	require.Equal(t, time.Second, cfg.Dispatch.TickEvery())
	require.True(t, cfg.Node.Health.Enabled)
	require.Equal(t, "*/5 * * * *", cfg.Node.Health.Cron)
	require.Equal(t, 3, cfg.Send.Confirmations)
	require.Equal(t, 1, cfg.Send.ChangeOutputs)
	require.True(t, cfg.Send.Fluff)
	require.Equal(t, 256, cfg.Send.SendLogSize)
	require.Equal(t, 10*time.Minute, cfg.Send.StaleAge())
	require.True(t, cfg.Service.Verbose)
	require.Equal(t, model.LogDiscard, cfg.Service.Log)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.Equal(t, model.BuildIn, cfg.Process.Path)
	require.Equal(t, "PT2M", cfg.Dispatch.TaskTimeout)
	require.Equal(t, 2*time.Minute, cfg.Dispatch.Timeout())
	require.Equal(t, 10, cfg.Send.Confirmations)
	require.Equal(t, "PT10M", cfg.Send.StaleAfter)
	require.Equal(t, model.LogStderr, cfg.Service.Log)
}

func TestSendStaleAge(t *testing.T) {
	t.Parallel()
	require.Equal(t, 10*time.Minute, model.Send{}.StaleAge())
	require.Equal(t, 90*time.Second, model.Send{StaleAfter: "PT1M30S"}.StaleAge())
	require.Equal(t, time.Duration(0), model.Send{StaleAfter: "PT0S"}.StaleAge())
	require.Equal(t, 10*time.Minute, model.Send{StaleAfter: "10m"}.StaleAge())
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
	}{
		{"bad duration", "version: 0\ndispatch:\n  task_timeout: 2 minutes\n"},
		{"unknown field", "version: 0\nwallet: {}\n"},
		{"zero confirmations", "version: 0\nsend:\n  confirmations: 0\n"},
		{"wrong version", "version: 3\n"},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
			for _, d := range details {
				require.NotEmpty(t, d.Code)
				require.NotEmpty(t, d.String())
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig(t.Context())
	require.Equal(t, model.BuildIn, cfg.Process.Path)
	require.Equal(t, 2*time.Minute, cfg.Dispatch.Timeout())
	require.Equal(t, "PT1M", cfg.Node.Health.Duration)
}
