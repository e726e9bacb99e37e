package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/community-explorer/pkg/api"
	"github.com/ritzau/community-explorer/pkg/canvas"
	"github.com/ritzau/community-explorer/pkg/config"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
	"github.com/ritzau/community-explorer/pkg/output"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/session"
	"github.com/ritzau/community-explorer/pkg/telemetry"
	"github.com/ritzau/community-explorer/pkg/watcher"
	"github.com/ritzau/community-explorer/pkg/web"
)

const (
	inboxQuietPeriod = 500 * time.Millisecond
	inboxMaxWait     = 3 * time.Second
)

func main() {
	flags := pflag.NewFlagSet("community-explorer", pflag.ExitOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: community-explorer [flags]\n\nFlags:\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(os.Stderr, logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt), cfg.JSONLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Headless {
		os.Exit(runHeadless(ctx, cfg))
	}

	if err := runUI(ctx, cfg); err != nil {
		logging.Fatal("community-explorer failed", "error", err)
	}
}

// app holds the components shared by the UI and headless modes
type app struct {
	registry     *telemetry.Registry
	client       *api.Client
	canvas       *canvas.Canvas
	orchestrator *session.Orchestrator
}

func newApp(cfg *config.Config, publisher pubsub.Publisher) *app {
	registry := telemetry.NewRegistry()

	client := api.NewClient(api.Options{
		BaseURL:   cfg.APIBase,
		HealthURL: cfg.HealthURL(),
		Timeout:   cfg.Timeout,
		HTTP:      &http.Client{},
		Observer:  registry,
	})

	opts := canvas.DefaultOptions()
	opts.Iterations = cfg.LayoutIterations
	opts.Observer = registry
	c := canvas.New(publisher, opts)

	orchestrator := session.New(session.Options{
		Backend:   client,
		Renderer:  c,
		Publisher: publisher,
		Observer:  registry,
		Runs:      registry,
		Algorithm: model.Algorithm(cfg.Algorithm),
	})

	return &app{
		registry:     registry,
		client:       client,
		canvas:       c,
		orchestrator: orchestrator,
	}
}

func runUI(ctx context.Context, cfg *config.Config) error {
	publisher := pubsub.NewSessionPublisher()
	defer publisher.Close()

	a := newApp(cfg, publisher)
	defer a.canvas.Close()

	server := web.NewServer(web.Options{
		Session:   a.orchestrator,
		Publisher: publisher,
		Frames:    a.canvas,
		Metrics:   a.registry.Handler(),
		Recorder:  a.registry,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx, cfg.Port)
	})

	if cfg.Inbox != "" {
		g.Go(func() error {
			return watcher.Run(gctx, cfg.Inbox, a.orchestrator, inboxQuietPeriod, inboxMaxWait)
		})
	}

	// Bootstrap failures are shown in the status line; they must not stop the server
	g.Go(func() error {
		bootstrap(gctx, cfg, a)
		if cfg.OpenBrowser {
			url := fmt.Sprintf("http://localhost:%d", cfg.Port)
			logging.Info("opening browser", "url", url)
			openBrowser(url)
		}
		return nil
	})

	err := g.Wait()
	a.orchestrator.Wait()
	return err
}

func bootstrap(ctx context.Context, cfg *config.Config, a *app) {
	if err := a.client.Health(ctx); err != nil {
		logging.Warn("backend health check failed", "url", cfg.HealthURL(), "error", err)
	}

	if cfg.Graph != "" {
		if err := a.orchestrator.SelectGraph(ctx, cfg.Graph); err != nil {
			logging.Warn("initial graph not loaded", "graphID", cfg.Graph, "error", err)
		}
	}

	// Selects the first dataset when no graph is loaded yet
	if err := a.orchestrator.RefreshDatasets(ctx); err != nil {
		logging.Warn("initial dataset listing failed", "error", err)
	}
}

// runHeadless loads one graph, runs the configured analysis and prints a report.
// The exit code is non-zero if loading or any run failed.
func runHeadless(ctx context.Context, cfg *config.Config) int {
	a := newApp(cfg, pubsub.Discard)
	defer a.canvas.Close()

	if err := a.client.Health(ctx); err != nil {
		logging.Warn("backend health check failed", "url", cfg.HealthURL(), "error", err)
	}

	exitCode := 0
	if err := a.orchestrator.SelectGraph(ctx, cfg.Graph); err != nil {
		exitCode = 1
	} else {
		for i := 0; i < cfg.Runs; i++ {
			logging.Info("analysis run", "run", i+1, "of", cfg.Runs, "algorithm", cfg.Algorithm)
			if err := a.orchestrator.RunAnalysis(ctx); err != nil {
				exitCode = 1
				if errors.Is(err, context.Canceled) {
					break
				}
			}
		}
	}

	a.orchestrator.Wait()

	snap := a.orchestrator.Snapshot()
	output.PrintReport(os.Stdout, snap)
	if strings.HasPrefix(snap.Status, "Error") {
		exitCode = 1
	}
	return exitCode
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
