package model

import (
	"context"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	BuildIn = "build in"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version  int      `json:"version" yaml:"version"` // fixed 0 for now
	Process  Process  `json:"process" yaml:"process"`
	Dispatch Dispatch `json:"dispatch" yaml:"dispatch"`
	Node     Node     `json:"node" yaml:"node"`
	Send     Send     `json:"send" yaml:"send"`
	Service  Service  `json:"service" yaml:"service"`
}

// Process describes how the mwc713 binary is started.
type Process struct {
	Path     string            `json:"path" yaml:"path"` // binary or "build in"
	Config   string            `json:"config,omitempty" yaml:"config,omitempty"`
	Args     []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir      string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	SeedFile string            `json:"seed_file,omitempty" yaml:"seed_file,omitempty"`
}

type Dispatch struct {
	TaskTimeout string `json:"task_timeout" yaml:"task_timeout"` // ISO8601
	Tick        string `json:"tick" yaml:"tick"`                 // ISO8601
}

type Node struct {
	Health Health `json:"health" yaml:"health"`
}

// Health configures the periodic node-info poll.
type Health struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Send holds the defaults of the send coins workflow.
type Send struct {
	Confirmations int    `json:"confirmations" yaml:"confirmations"`
	ChangeOutputs int    `json:"change_outputs" yaml:"change_outputs"`
	Fluff         bool   `json:"fluff" yaml:"fluff"`
	TTLBlocks     int    `json:"ttl_blocks" yaml:"ttl_blocks"`
	FilePath      string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	SendLogSize   int    `json:"send_log_size" yaml:"send_log_size"`
	StaleAfter    string `json:"stale_after" yaml:"stale_after"` // ISO8601
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"|path
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig returns the configuration stored on a first run.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Process: Process{
			Path: BuildIn,
		},
		Dispatch: Dispatch{
			TaskTimeout: "PT2M",
			Tick:        "PT1S",
		},
		Node: Node{
			Health: Health{
				Enabled:  true,
				Duration: "PT1M",
			},
		},
		Send: Send{
			Confirmations: 10,
			ChangeOutputs: 1,
			SendLogSize:   256,
			StaleAfter:    "PT10M",
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}

// Timeout returns the per task deadline, falling back to two minutes.
func (d Dispatch) Timeout() time.Duration {
	return durationOr(d.TaskTimeout, 2*time.Minute)
}

// TickEvery returns how often deadlines are checked.
func (d Dispatch) TickEvery() time.Duration {
	return durationOr(d.Tick, time.Second)
}

// StaleAge returns how long a send waits for its slate before it is
// reported unconfirmed. Zero reports it right away.
func (s Send) StaleAge() time.Duration {
	if s.StaleAfter == "" {
		return 10 * time.Minute
	}
	d, err := ParseISODuration(s.StaleAfter)
	if err != nil || d < 0 {
		return 10 * time.Minute
	}
	return d
}

func durationOr(iso string, fallback time.Duration) time.Duration {
	if iso == "" {
		return fallback
	}
	d, err := ParseISODuration(iso)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
