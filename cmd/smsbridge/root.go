package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spachava753/smsbridge/android/telephony"
	"github.com/spachava753/smsbridge/config"
	"github.com/spachava753/smsbridge/inbox"
	"github.com/spachava753/smsbridge/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries flag values and the loaded configuration between commands.
type app struct {
	configPath string
	storePath  string
	logLevel   string
	format     string
	demo       bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "smsbridge",
		Short: "Serve the SMS inbox over a method channel",
		Long: `smsbridge reads the Android SMS inbox from the telephony provider database
and answers getMessages and searchMessages calls from an application shell.

Quick Start:
  smsbridge messages --count 5          # Five most recent inbox messages
  smsbridge search "verification code"  # Recent messages containing the text
  smsbridge serve                       # Expose the channel over HTTP/WebSocket`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (overrides CONFIG_PATH)")
	root.PersistentFlags().StringVar(&a.storePath, "store", "", "Path to mmssms.db (overrides store.path)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "table", "Output format: table, json, yaml")
	root.PersistentFlags().BoolVar(&a.demo, "demo", false, "Use a built-in sample inbox instead of the provider database")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newMessagesCmd(a), newSearchCmd(a), newServeCmd(a))
	return root
}

func (a *app) load() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if a.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", a.configPath); err != nil {
			return fmt.Errorf("setting CONFIG_PATH failed: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger.SetLevel(cfg.Log.Level)
	a.cfg = cfg
	return nil
}

func (a *app) store() inbox.Store {
	if a.demo {
		return demoStore()
	}
	return telephony.New(a.cfg.Store.Path, telephony.WithBusyTimeout(time.Duration(a.cfg.Store.BusyTimeoutMS)*time.Millisecond))
}

func (a *app) adapter() *inbox.Adapter {
	return inbox.New(a.store(), inbox.WithLogger(logger.L), inbox.WithMaxBound(a.cfg.Inbox.MaxLimit))
}

func demoStore() *inbox.MemoryStore {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }
	return inbox.NewMemoryStore(
		inbox.NewMessage("+15550100", "Your verification code is 482913", at(2*time.Minute)),
		inbox.NewMessage("BANK", "Card ending 4421 was charged $12.80", at(35*time.Minute)),
		inbox.NewMessage("+15550123", "Running 10 min late, save me a seat", at(3*time.Hour)),
		inbox.NewMessage("PHARMACY", "Your prescription is ready for pickup", at(26*time.Hour)),
		inbox.NewMessage("+15550188", "Happy birthday!!", at(72*time.Hour)),
	)
}
