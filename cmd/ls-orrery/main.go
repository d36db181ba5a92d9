// Command ls-orrery is a terminal orrery that positions solar system bodies
// from JPL Horizons vectors, falling back to Keplerian elements.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/litescript/ls-orrery/internal/config"
	"github.com/litescript/ls-orrery/internal/ephem"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/metrics"
	"github.com/litescript/ls-orrery/internal/position"
	"github.com/litescript/ls-orrery/internal/state"
	"github.com/litescript/ls-orrery/internal/ui"
)

const (
	minRefresh = 1 * time.Minute
	maxRefresh = 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "", "Config file (default: ./ls-orrery.yaml or ~/.config/ls-orrery/)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	bodies := flag.String("bodies", "", "Comma-separated bodies (names, codes or NAIF IDs)")
	atFlag := flag.String("at", "", "Instant for -table output (RFC3339 or 2006-01-02[ 15:04]), default now")
	tableMode := flag.Bool("table", false, "Print a position table instead of the TUI")
	extrapolate := flag.Bool("extrapolate", false, "Propagate outside the sampled window")
	frame := flag.String("frame", "", "Output frame (ecliptic, equatorial)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")
	refresh := flag.Duration("refresh", state.DefaultConfig().RefreshInterval, "Data refresh interval (e.g., 30m, 1h)")
	sbdbObjects := flag.String("sbdb", "", "Comma-separated small-body designations to track via SBDB elements")
	neoLimit := flag.Int("neo", 0, "List this many near-Earth objects from SBDB and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := applyFlags(&cfg, *logLevel, *bodies, *frame, *metricsAddr, *sbdbObjects, *extrapolate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	at := time.Now().UTC()
	if *atFlag != "" {
		if at, err = config.ParseTime(*atFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		if cfg.Window.Start.IsZero() {
			cfg.Window.Start = at
		}
	}

	if *refresh < minRefresh {
		*refresh = minRefresh
	} else if *refresh > maxRefresh {
		*refresh = maxRefresh
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		logger.SetOutput(f)
	}
	if cfg.File != "" {
		logger.Debug("Using config %s", cfg.File)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, logger)
	}

	sbdb := ephem.NewSBDBClient(
		ephem.WithSBDBURLs(cfg.SBDB.LookupURL, cfg.SBDB.QueryURL),
		ephem.WithSBDBRateLimit(cfg.Horizons.RatePerSec),
		ephem.WithSBDBLogger(logger),
	)
	if *neoLimit > 0 {
		neos, err := sbdb.NEOs(ctx, *neoLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.RenderNEOTable(neos))
		return
	}
	cfg.Bodies = addSmallBodies(ctx, sbdb, cfg.SBDB.Objects, cfg.Bodies, logger)

	client := ephem.NewHorizonsClient(
		ephem.WithURL(cfg.Horizons.URL),
		ephem.WithCenter(cfg.Horizons.Center),
		ephem.WithTimeout(cfg.Horizons.Timeout),
		ephem.WithRateLimit(cfg.Horizons.RatePerSec),
		ephem.WithCacheTTL(cfg.Horizons.CacheTTL),
		ephem.WithLogger(logger),
	)
	logger.Debug("%s %s, center %s, %d bodies", client.Name(), cfg.Horizons.URL, client.Center(), len(cfg.Bodies))

	stateCfg := state.DefaultConfig()
	stateCfg.RefreshInterval = *refresh
	stateMgr := state.NewManager(stateCfg)
	engine := position.NewEngine(stateMgr, ephem.NewCatalog())

	opts := position.Options{Extrapolate: cfg.Extrapolate, Frame: cfg.Frame}

	// Piped output gets the table too.
	if *tableMode || !term.IsTerminal(int(os.Stdout.Fd())) {
		if err := runHeadless(ctx, client, stateMgr, engine, cfg, at, opts, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	model := ui.New(stateMgr, engine, cfg.Bodies, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go runFetchLoop(ctx, client, stateMgr, cfg, p, logger)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *config.Config, logLevel, bodies, frame, metricsAddr, sbdbObjects string, extrapolate bool) error {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["log-level"] {
		cfg.LogLevel = logLevel
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = metricsAddr
	}
	if set["extrapolate"] {
		cfg.Extrapolate = extrapolate
	}
	if set["frame"] {
		f, err := config.ParseFrame(frame)
		if err != nil {
			return err
		}
		cfg.Frame = f
	}
	if set["bodies"] {
		ids, err := config.ParseBodies([]string{bodies})
		if err != nil {
			return err
		}
		cfg.Bodies = ids
	}
	if set["sbdb"] {
		for _, d := range strings.Split(sbdbObjects, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.SBDB.Objects = append(cfg.SBDB.Objects, d)
			}
		}
	}
	return nil
}

// addSmallBodies looks up each designation in SBDB, registers the bodies
// found so the propagator can position them, and appends their IDs to
// targets. Lookup failures are logged and skipped.
func addSmallBodies(ctx context.Context, sbdb *ephem.SBDBClient, designations []string, targets []ephem.TargetID, logger *logging.Logger) []ephem.TargetID {
	if len(designations) == 0 {
		return targets
	}
	found, err := sbdb.LookupAll(ctx, designations)
	if err != nil {
		logger.Warn("SBDB lookups incomplete: %v", err)
	}

	seen := make(map[ephem.TargetID]bool, len(targets))
	for _, id := range targets {
		seen[id] = true
	}
	for _, sb := range found {
		ephem.RegisterBody(sb.Body())
		if !seen[sb.SPKID] {
			seen[sb.SPKID] = true
			targets = append(targets, sb.SPKID)
		}
		logger.Info("Tracking %s (%s, a=%.3f AU, e=%.3f)", sb.FullName, sb.OrbitClass,
			sb.Elements.SemiMajorAxisAU, sb.Elements.Eccentricity)
	}

	for _, id := range targets {
		if b, ok := ephem.GetBody(id); !ok || !b.HasModel() {
			logger.Debug("%s has no element model; positions need samples", ephem.DisplayName(id))
		}
	}
	return targets
}

func serveMetrics(ctx context.Context, addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server: %v", err)
	}
}

func runFetchLoop(ctx context.Context, provider ephem.Provider, stateMgr *state.Manager, cfg config.Config, p *tea.Program, logger *logging.Logger) {
	doFetch(ctx, provider, stateMgr, cfg, p, logger)

	ticker := time.NewTicker(stateMgr.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Fetch loop shutting down")
			return
		case <-ticker.C:
			doFetch(ctx, provider, stateMgr, cfg, p, logger)
		}
	}
}

func doFetch(ctx context.Context, provider ephem.Provider, stateMgr *state.Manager, cfg config.Config, p *tea.Program, logger *logging.Logger) {
	ds, dur, err := fetchDataset(ctx, provider, cfg, time.Now())
	if err != nil {
		logger.Error("Fetch failed: %v", err)
		stateMgr.Update(nil, dur, err)
		p.Send(ui.ErrorMsg{Error: err})
		return
	}

	logger.Debug("Fetch complete: %d targets, %d failed in %v", len(ds.Trajectories), len(ds.Errors), dur)
	stateMgr.Update(ds, dur, nil)
	p.Send(ui.DataUpdateMsg{Snapshot: stateMgr.Snapshot()})
}

// fetchDataset fetches every configured body over the window anchored at now.
func fetchDataset(ctx context.Context, provider ephem.Provider, cfg config.Config, now time.Time) (*state.Dataset, time.Duration, error) {
	w := cfg.Window.Resolve(now)
	start := time.Now()
	results, err := provider.FetchAll(ctx, cfg.Bodies, w)
	dur := time.Since(start)
	if err != nil {
		return nil, dur, err
	}
	return state.NewDataset(results, w, time.Now()), dur, nil
}

// runHeadless fetches once and prints the position table for at.
func runHeadless(ctx context.Context, provider ephem.Provider, stateMgr *state.Manager, engine *position.Engine,
	cfg config.Config, at time.Time, opts position.Options, logger *logging.Logger) error {
	ds, dur, err := fetchDataset(ctx, provider, cfg, at)
	if err != nil {
		return err
	}
	stateMgr.Update(ds, dur, nil)
	for id, ferr := range ds.Errors {
		logger.Warn("%s: %v", ephem.DisplayName(id), ferr)
	}

	opts.Timeline = ds.Window
	rs := ui.ResolveAt(engine, cfg.Bodies, at, opts)
	fmt.Println(ui.RenderTable(rs, ui.TableOptions{At: at, Options: opts}))
	return nil
}
