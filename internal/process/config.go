package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/mwcproject/mwcwallet/internal/model"
)

const binary = "mwc713"

type Config struct {
	Path   string            `mapstructure:"path"`
	Config string            `mapstructure:"config"`
	Args   []string          `mapstructure:"args"`
	Env    map[string]string `mapstructure:"env"`
	Dir    string            `mapstructure:"dir"`
}

func ParseConfig(key string) (Config, error) {
	var cfg Config
	err := viper.UnmarshalKey(key, &cfg)
	return cfg, err
}

// Cmd returns the mwc713 command line. Env values starting with $ are expanded,
// the rest of the environment is inherited.
func (c Config) Cmd() Command {
	env := os.Environ()
	for k, v := range c.Env {
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env = append(env, strings.ToUpper(k)+"="+v)
	}
	var args []string
	if c.Config != "" {
		args = append(args, "--config", c.Config)
	}
	args = append(args, c.Args...)
	return Command{
		Path: resolvePath(c.Path),
		Args: args,
		Env:  env,
		Dir:  c.Dir,
	}
}

// resolvePath maps "build in" to the mwc713 binary shipped next to the executable.
func resolvePath(path string) string {
	if path != "" && path != model.BuildIn {
		return path
	}
	name := binary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}
