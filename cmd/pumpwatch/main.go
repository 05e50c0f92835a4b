package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raykavin/pumpwatch"
	"github.com/raykavin/pumpwatch/bot"
	"github.com/raykavin/pumpwatch/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:     "pumpwatch",
		Short:   "Pump detection and alerting for crypto exchanges",
		Version: "1.0.0",
		RunE:    runWatch,
	}

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	watcher, err := bot.NewBot(settings, pumpwatch.DefaultLog)
	if err != nil {
		return fmt.Errorf("failed to build bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watcher.Run(ctx)
}

// loadSettings builds the application settings from environment variables
func loadSettings() (*core.Settings, error) {
	// Set up Viper for environment variables
	viper.SetEnvPrefix("PUMPWATCH")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("EXCHANGES", "Binance,Bybit,Coinbase")
	viper.SetDefault("DEFAULT_THRESHOLD", 1.0)
	viper.SetDefault("DEFAULT_WINDOW", "150s")
	viper.SetDefault("STORAGE_PATH", "./pumpwatch.db")
	viper.SetDefault("TELEGRAM_ENABLED", false)
	viper.SetDefault("TELEGRAM_SENDS_PER_SECOND", 30)
	viper.SetDefault("TELEGRAM_MIN_SEND_INTERVAL", "35ms")
	viper.SetDefault("OPEN_INTEREST_ENABLED", true)
	viper.SetDefault("OPEN_INTEREST_INTERVAL", "1m")

	window, err := str2duration.ParseDuration(viper.GetString("DEFAULT_WINDOW"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUMPWATCH_DEFAULT_WINDOW: %w", err)
	}

	minSendInterval, err := str2duration.ParseDuration(viper.GetString("TELEGRAM_MIN_SEND_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUMPWATCH_TELEGRAM_MIN_SEND_INTERVAL: %w", err)
	}

	oiInterval, err := str2duration.ParseDuration(viper.GetString("OPEN_INTEREST_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUMPWATCH_OPEN_INTEREST_INTERVAL: %w", err)
	}

	exchanges, err := parseExchanges(viper.GetString("EXCHANGES"))
	if err != nil {
		return nil, err
	}

	return &core.Settings{
		Telegram: core.TelegramSettings{
			Enabled:         viper.GetBool("TELEGRAM_ENABLED"),
			Token:           viper.GetString("TELEGRAM_TOKEN"),
			SendsPerSecond:  viper.GetInt("TELEGRAM_SENDS_PER_SECOND"),
			MinSendInterval: minSendInterval,
		},
		Exchanges:         exchanges,
		DefaultThreshold:  viper.GetFloat64("DEFAULT_THRESHOLD"),
		DefaultWindowSize: window,
		OpenInterest: core.OpenInterestSettings{
			Enabled:  viper.GetBool("OPEN_INTEREST_ENABLED"),
			Interval: oiInterval,
		},
		StoragePath: viper.GetString("STORAGE_PATH"),
	}, nil
}

// parseExchanges resolves a comma separated exchange list
func parseExchanges(raw string) ([]core.Platform, error) {
	names := strings.Split(raw, ",")
	platforms := make([]core.Platform, 0, len(names))

	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
		case "binance":
			platforms = append(platforms, core.PlatformBinance)
		case "bybit":
			platforms = append(platforms, core.PlatformBybit)
		case "coinbase":
			platforms = append(platforms, core.PlatformCoinbase)
		default:
			return nil, fmt.Errorf("unknown exchange: %s", name)
		}
	}

	if len(platforms) == 0 {
		return nil, fmt.Errorf("no exchanges configured")
	}

	return platforms, nil
}
