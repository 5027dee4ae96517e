package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/sljivkov/feedsync/config"
	"github.com/sljivkov/feedsync/domain"
	"github.com/sljivkov/feedsync/handler"
	"github.com/sljivkov/feedsync/logging"
	"github.com/sljivkov/feedsync/metrics"
	"github.com/sljivkov/feedsync/pricefeed"
)

// exit code when --fail-on-error is set and a pair failed
const exitPairsFailed = 2

var (
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "load environment variables from `FILE`",
	}
	pairsFlag = &cli.StringFlag{
		Name:  "pairs",
		Usage: "pairs YAML `FILE`, overrides PAIRS_FILE",
	}
)

var runCommand = cli.Command{
	Name:  "run",
	Usage: "synchronize every configured pair with its price source",
	Flags: []cli.Flag{
		envFileFlag,
		pairsFlag,
		&cli.StringFlag{
			Name:  "schedule",
			Usage: "repeat on a cron `SPEC` (e.g. \"@every 5m\") instead of running once",
		},
		&cli.BoolFlag{
			Name:  "fail-on-error",
			Usage: "exit non-zero when any pair failed",
		},
	},
	Action: runAction,
}

var infoCommand = cli.Command{
	Name:   "info",
	Usage:  "print the registry version and the registration state of every pair",
	Flags:  []cli.Flag{envFileFlag, pairsFlag},
	Action: infoAction,
}

var deployRegistryCommand = cli.Command{
	Name:   "deploy-registry",
	Usage:  "deploy a new feed registry and print its address",
	Flags:  []cli.Flag{envFileFlag},
	Action: deployRegistryAction,
}

func main() {
	app := cli.NewApp()

	app.Name = "feedsync"
	app.Usage = "keeps an on-chain feed registry in sync with external price sources"
	app.Version = "0.1.0"
	app.Commands = append(
		app.Commands,
		&runCommand,
		&infoCommand,
		&deployRegistryCommand,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context, extra ...config.Option) (*config.Config, zerolog.Logger, error) {
	var opts []config.Option
	if path := c.String("env-file"); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}

	opts = append(opts, config.WithPairsFile(c.String("pairs")))
	opts = append(opts, extra...)

	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func loadPairs(cfg *config.Config) ([]config.PairConfig, error) {
	pairs, err := config.LoadPairs(cfg.PairsFile)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidatePairs(pairs); err != nil {
		return nil, err
	}

	return pairs, nil
}

func runAction(c *cli.Context) error {
	ctx := c.Context

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	pairs, err := loadPairs(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	chain, err := DialChain(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer chain.Close()

	sync, err := chain.Synchronizer(ctx, pairs)
	if err != nil {
		return err
	}

	reports := handler.NewReports(handler.DefaultReadyTimeout)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           handler.NewMux(reports, m.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("Starting server")

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Server failed")
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runOnce := func() pricefeed.Report {
		report := sync.Run(ctx)
		reports.Store(report)

		if cfg.PushgatewayURL != "" {
			pushCtx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout)
			defer cancel()

			if err := m.Push(pushCtx, cfg.PushgatewayURL); err != nil {
				log.Warn().Err(err).Msg("could not push metrics")
			}
		}

		return report
	}

	schedule := c.String("schedule")
	if schedule == "" {
		report := runOnce()
		if c.Bool("fail-on-error") && report.HasFailures() {
			return cli.Exit(fmt.Sprintf("%d pair(s) failed", report.Counts()[domain.OutcomeFailed]), exitPairsFailed)
		}

		return nil
	}

	return runScheduled(ctx, schedule, log, func() { runOnce() })
}

// runScheduled runs job now and on every schedule tick until ctx is done. A tick
// is skipped while the previous run is still active.
func runScheduled(ctx context.Context, schedule string, log zerolog.Logger, job func()) error {
	cronLog := logging.Component(log, "cron")
	logger := cron.PrintfLogger(&cronLog)

	wrapped := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(job))

	scheduler := cron.New(cron.WithLogger(logger))
	if _, err := scheduler.AddJob(schedule, wrapped); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	log.Info().Str("schedule", schedule).Msg("⏰ scheduled mode")

	go wrapped.Run()

	scheduler.Start()
	<-ctx.Done()

	log.Info().Msg("stopping scheduler")
	<-scheduler.Stop().Done()

	return nil
}

func infoAction(c *cli.Context) error {
	ctx := c.Context

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	if _, ok := cfg.RegistryAddress(); !ok {
		return fmt.Errorf("FEED_REGISTRY_ADDRESS is required for info")
	}

	pairs, err := loadPairs(cfg)
	if err != nil {
		return err
	}

	chain, err := DialChain(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer chain.Close()

	registry, addr, err := chain.Registry(ctx)
	if err != nil {
		return err
	}

	provisioner, err := chain.Provisioner()
	if err != nil {
		return err
	}

	feeds, err := chain.Feeds(ctx, pairs)
	if err != nil {
		return err
	}

	version, err := registry.TypeAndVersion(ctx)
	if err != nil {
		version = "unknown (" + err.Error() + ")"
	}

	fmt.Printf("registry %s: %s\n\n", addr.Hex(), version)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAIR\tSOURCE\tSTATE\tAGGREGATOR\tANSWER\tDECIMALS")

	for _, st := range pricefeed.New(registry, provisioner, feeds).Status(ctx) {
		state, aggregator, answer, decimals := "-", "-", "-", "-"

		if st.Err != nil {
			state = "error: " + st.Err.Error()
		} else {
			state = st.Registration.State.String()
			if st.Registration.State != domain.Unregistered {
				aggregator = st.Registration.Address.Hex()
			}
		}

		if st.Latest != nil {
			answer = st.Latest.Value.String()
			decimals = fmt.Sprint(st.Latest.Decimals)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", st.Feed.Pair, st.Feed.Source.Name(), state, aggregator, answer, decimals)
	}

	return w.Flush()
}

func deployRegistryAction(c *cli.Context) error {
	ctx := c.Context

	cfg, log, err := loadConfig(c, config.WithRegistryAddress(""))
	if err != nil {
		return err
	}

	chain, err := DialChain(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer chain.Close()

	addr, err := chain.DeployRegistry(ctx)
	if err != nil {
		return err
	}

	fmt.Println(addr.Hex())

	return nil
}
