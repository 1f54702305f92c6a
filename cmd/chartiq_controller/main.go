// chartiq_controller drives an embedded ChartIQ chart in a Chromium tab:
// it tracks the load lifecycle over CDP, exposes the chart API over HTTP
// and streams bridge events to subscribers.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trading-point/chartiq-agent/internal/api"
	"github.com/trading-point/chartiq-agent/internal/bridge"
	"github.com/trading-point/chartiq-agent/internal/browser"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
	"github.com/trading-point/chartiq-agent/internal/chartview"
	"github.com/trading-point/chartiq-agent/internal/config"
	"github.com/trading-point/chartiq-agent/internal/controller"
	"github.com/trading-point/chartiq-agent/internal/loadtrack"
	"github.com/trading-point/chartiq-agent/internal/netutil"
	"github.com/trading-point/chartiq-agent/internal/notify"
	"github.com/trading-point/chartiq-agent/internal/snapshot"
	"github.com/trading-point/chartiq-agent/internal/storage"
)

// alertDelegate forwards terminal load results to the log and, on failure,
// to the alert endpoint. Callbacks run on the view's event path, so the
// notification is posted from a goroutine.
type alertDelegate struct {
	notifier *notify.Notifier
	chartURL string
}

func (d *alertDelegate) ChartLoaded(report chartview.Report) {
	slog.Info("chart ready", "total_time", report.TotalTime, "engine_version", report.EngineVersion)
}

func (d *alertDelegate) ChartFailed(lerr *loadtrack.LoadError, report chartview.Report) {
	slog.Error("chart failed", "error", lerr, "steps", report.Steps)
	if d.notifier == nil || !d.notifier.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.notifier.LoadFailed(ctx, d.chartURL, lerr); err != nil {
			slog.Warn("failure alert not delivered", "error", err)
		}
	}()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("chartiq_controller config loaded",
		"bind_addr", cfg.BindAddr,
		"chart_url", cfg.ChartURL,
		"tab_url_filter", cfg.TabURLFilter,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"max_reloads", cfg.MaxReloads,
		"log_level", cfg.LogLevel,
		"snapshot_dir", cfg.SnapshotDir,
		"event_log_dir", cfg.EventLogDir,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, 0)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ChartURL:   cfg.ChartURL,
			ProfileDir: cfg.ProfileDir,
		})
		launchCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		err := launcher.Launch(launchCtx)
		cancel()
		if err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		if launcher.Running() {
			defer launcher.Stop()
		}
	}

	viewCfg := chartview.Config{
		ChartURL:    cfg.ChartURL,
		Symbol:      cfg.Symbol,
		MaxReloads:  cfg.MaxReloads,
		LoadTimeout: time.Duration(cfg.LoadTimeoutMS) * time.Millisecond,
	}
	if profile, err := config.LoadProfile(cfg.ProfilePath); err == nil {
		if profile.Symbol != "" {
			viewCfg.Symbol = profile.Symbol
		}
		viewCfg.Theme = chartiq.ThemePreset(profile.Theme)
		viewCfg.Studies = profile.Studies
		slog.Info("chart profile applied", "path", cfg.ProfilePath, "symbol", viewCfg.Symbol, "studies", len(viewCfg.Studies))
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("chart profile not applied", "path", cfg.ProfilePath, "error", err)
	}

	cdpClient := chartiq.NewClient(cfg.CDPURL(), cfg.TabURLFilter, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect eval client", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Debug("eval client close failed", "error", err)
		}
	}()

	view := chartview.New(cdpClient, viewCfg)
	view.SetDelegate(&alertDelegate{
		notifier: notify.New(cfg.AlertEndpoint, nil),
		chartURL: cfg.ChartURL,
	})

	broker := bridge.NewBroker()
	listener := bridge.NewListener(cfg.CDPURL(), cfg.TabURLFilter, broker, view.HandleEvent)
	if err := listener.Connect(context.Background()); err != nil {
		slog.Error("failed to attach bridge listener", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			slog.Debug("bridge listener close failed", "error", err)
		}
	}()

	eventLog := storage.NewEventLog(cfg.EventLogDir,
		storage.ShortTabID(string(listener.TargetID())),
		cfg.EventBufferSize, cfg.MaxFileSizeMB)
	go eventLog.Consume(broker)
	defer func() {
		if err := eventLog.Close(); err != nil {
			slog.Debug("event log close failed", "error", err)
		}
	}()

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	svc := controller.NewService(cdpClient, view, snapStore)
	h := api.NewServer(svc, broker)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Duration(cfg.LoadTimeoutMS)*time.Millisecond)
	if err := view.Load(loadCtx); err != nil {
		slog.Error("initial chart load did not start", "error", err)
	}
	cancelLoad()

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("chartiq_controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("chartiq_controller server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("chartiq_controller shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
