package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/evanofslack/cddns/internal/config"
	"github.com/evanofslack/cddns/internal/logger"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/prompt"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/evanofslack/cddns/internal/provider/cloudflare"
	"github.com/evanofslack/cddns/internal/publicip"
	"github.com/spf13/cobra"
)

// dnsProvider is the provider surface the commands need.
type dnsProvider interface {
	provider.Provider
	Verify(ctx context.Context, token string) (string, error)
}

type flags struct {
	configPath     string
	envFile        string
	token          string
	includeZones   []string
	ignoreZones    []string
	includeRecords []string
	ignoreRecords  []string
	inventory      string
	force          bool
	interval       uint64
	metricsAddress string
	statePath      string
	logLevel       string
	logEnv         string
	verbose        bool
}

// app carries what every command shares: streams, flags and the resolved
// configuration of the current invocation.
type app struct {
	in  io.Reader
	out io.Writer

	flags flags
	cfg   config.Config

	metrics     *metrics.Metrics
	newProvider func(m *metrics.Metrics) dnsProvider
	newResolver func(cfg config.PublicIP, m *metrics.Metrics) publicip.Resolver
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		in:  in,
		out: out,
		newProvider: func(m *metrics.Metrics) dnsProvider {
			return cloudflare.New(m)
		},
		newResolver: func(cfg config.PublicIP, m *metrics.Metrics) publicip.Resolver {
			return publicip.New(cfg, m)
		},
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(newApp(os.Stdin, os.Stdout))
	err := root.ExecuteContext(ctx)
	if errors.Is(err, prompt.ErrAbort) {
		slog.Info("Aborted")
		return
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cddns",
		Short: "Cloudflare dynamic DNS",
		Long: `cddns keeps tracked Cloudflare A and AAAA records pointed at the public
address of this host.

Build an inventory of records to track, then check, commit or watch it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "config file path (default $CDDNS_CONFIG or "+config.DefaultPath+")")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "dotenv file loaded before reading CDDNS_* variables")
	pf.StringVarP(&a.flags.token, "token", "t", "", "Cloudflare API token")
	pf.StringSliceVar(&a.flags.includeZones, "include-zones", nil, "regex filters for zones to include")
	pf.StringSliceVar(&a.flags.ignoreZones, "ignore-zones", nil, "regex filters for zones to ignore")
	pf.StringSliceVar(&a.flags.includeRecords, "include-records", nil, "regex filters for records to include")
	pf.StringSliceVar(&a.flags.ignoreRecords, "ignore-records", nil, "regex filters for records to ignore")
	pf.StringVarP(&a.flags.inventory, "inventory", "i", "", "inventory file path")
	pf.BoolVarP(&a.flags.force, "force", "f", false, "apply changes without prompting")
	pf.Uint64Var(&a.flags.interval, "interval", 0, "watch interval in milliseconds")
	pf.StringVar(&a.flags.metricsAddress, "metrics-address", "", "address serving /metrics while watching")
	pf.StringVar(&a.flags.statePath, "state", "", "badger directory for sync state")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.logEnv, "log-env", "", "log format (dev for text, prod for JSON)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newConfigCommand(a),
		newVerifyCommand(a),
		newListCommand(a),
		newInventoryCommand(a),
	)
	return root
}

// setup resolves the configuration and configures logging before any
// command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.flags.configPath
	if !cmd.Flags().Changed("config") {
		path = os.Getenv("CDDNS_CONFIG")
		if path == "" {
			path = config.DefaultPath
		}
	}

	file, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	env, err := config.LoadEnv(a.flags.envFile)
	if err != nil {
		return err
	}
	a.cfg = config.Resolve(file, env, a.cliLayer(cmd))

	level := a.cfg.Log.Level
	if a.flags.verbose {
		level = "debug"
	}
	logger.Configure(level, a.cfg.Log.Env)
	slog.Debug("Resolved configuration", "config", path, "inventory", a.cfg.InventoryPath)

	a.metrics = metrics.New(true)
	return nil
}

// cliLayer holds only the flags the user set.
func (a *app) cliLayer(cmd *cobra.Command) config.Layer {
	var l config.Layer
	set := cmd.Flags().Changed

	if set("token") {
		l.Verify.Token = config.Ptr(a.flags.token)
	}
	if set("include-zones") {
		l.List.IncludeZones = config.Ptr(a.flags.includeZones)
	}
	if set("ignore-zones") {
		l.List.IgnoreZones = config.Ptr(a.flags.ignoreZones)
	}
	if set("include-records") {
		l.List.IncludeRecords = config.Ptr(a.flags.includeRecords)
	}
	if set("ignore-records") {
		l.List.IgnoreRecords = config.Ptr(a.flags.ignoreRecords)
	}
	if set("inventory") {
		l.Inventory.Path = config.Ptr(a.flags.inventory)
	}
	if set("force") {
		l.Commit.Force = config.Ptr(a.flags.force)
	}
	if set("interval") {
		l.Watch.Interval = config.Ptr(a.flags.interval)
	}
	if set("metrics-address") {
		l.Watch.MetricsAddress = config.Ptr(a.flags.metricsAddress)
	}
	if set("state") {
		l.State.Path = config.Ptr(a.flags.statePath)
	}
	if set("log-level") {
		l.Log.Level = config.Ptr(a.flags.logLevel)
	}
	if set("log-env") {
		l.Log.Env = config.Ptr(a.flags.logEnv)
	}
	return l
}

// snapshot fetches the live zones and records with the configured token.
func (a *app) snapshot(ctx context.Context, dp dnsProvider) (*provider.Snapshot, error) {
	token, err := a.cfg.RequireToken()
	if err != nil {
		return nil, err
	}
	snapshot, err := provider.Fetch(ctx, dp, token)
	if err != nil {
		return nil, fmt.Errorf("fetch provider snapshot: %w", err)
	}
	return snapshot, nil
}

func (a *app) scanner() *prompt.Scanner {
	return prompt.New(a.in, a.out)
}
