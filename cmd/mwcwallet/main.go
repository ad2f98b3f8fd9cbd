package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mwcproject/mwcwallet/internal/log"
	"github.com/mwcproject/mwcwallet/internal/model"
)

const envPassword = "MWCWALLET_PASSWORD"

var (
	userConfigPath string // /default/config/path/mwcwallet on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagJSON           bool   // value of --json flag
	flagYes            bool   // value of --yes flag
	flagPassword       string // value of --password flag
)

// closeLog closes the log file opened by initWallet
var closeLog = func() error { return nil }

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "mwcwallet")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is mwcwallet.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print results as JSON lines, confirmations need --yes")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "confirm every request without asking")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "wallet password, defaults to $"+envPassword)

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initWallet
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return closeLog()
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendFileCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("mwcwallet failed", "err", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "mwcwallet",
	Short:        "Driver of the mwc713 command line wallet",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a mwcwallet",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("mwcwallet: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:    %s\n", configPath)
		}
		fmt.Printf("mwcwallet: %s\n", info.Main.Version)
		fmt.Printf("go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:     %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initWallet(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("MWCWALLETCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "mwcwallet.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		var err error
		config, err = storeDefault(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error(d.String(), d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// process section is read through viper, like the environment overrides
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Service.Verbose = true
	}
	if flagPassword == "" {
		flagPassword = os.Getenv(envPassword)
	}

	// initialize logging
	var w io.Writer
	var err error
	w, closeLog, err = log.Destination(config.Service.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(log.New(config.Service.Verbose, w))

	slog.Debug("mwcwallet run", "configPath", configPath)
	slog.Debug("mwcwallet run", "config", config)
	return nil
}

func storeDefault(ctx context.Context) (model.Config, error) {
	cfg := model.DefaultConfig(ctx)
	configPath = filepath.Join(userConfigPath, "mwcwallet.yaml")
	err := os.MkdirAll(filepath.Dir(configPath), 0755)
	if err != nil {
		return cfg, fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return cfg, fmt.Errorf("creating file %s: %w", configPath, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	err = enc.Encode(cfg)
	if err != nil {
		return cfg, fmt.Errorf("storing configuration: %w", err)
	}
	return cfg, enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
