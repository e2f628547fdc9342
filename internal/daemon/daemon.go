package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fullex26/camnotify/internal/analysers"
	"github.com/Fullex26/camnotify/internal/config"
	"github.com/Fullex26/camnotify/internal/eventbus"
	"github.com/Fullex26/camnotify/internal/metrics"
	"github.com/Fullex26/camnotify/internal/notifiers"
	"github.com/Fullex26/camnotify/internal/store"
	"github.com/Fullex26/camnotify/internal/watchers"
	"github.com/Fullex26/camnotify/pkg/models"
)

// Version is set at build time via ldflags: -X github.com/Fullex26/camnotify/internal/daemon.Version=<tag>
var Version = "dev"

// Daemon is the main camnotify process
type Daemon struct {
	cfg       *config.Config
	bus       *eventbus.Bus
	store     *store.Store
	registry  *prometheus.Registry
	metrics   *metrics.DispatchMetrics
	watchers  []watchers.Watcher
	notifiers []notifiers.Notifier
	dedup     *analysers.Deduplicator
	timeout   time.Duration
	handling  inflight
}

// inflight tracks bus handlers still running so the store outlives them
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) enter() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) leave() { f.wg.Done() }

// close refuses new handlers and waits for the running ones
func (f *inflight) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

// New creates a new daemon instance
func New(cfg *config.Config) (*Daemon, error) {
	bus := eventbus.New()

	db, err := store.Open(StatePath(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d := &Daemon{
		cfg:      cfg,
		bus:      bus,
		store:    db,
		registry: reg,
		metrics:  metrics.New(reg),
		dedup:    analysers.NewDeduplicator(cfg.AlertCooldown()),
		timeout:  cfg.HTTPTimeout(),
	}

	// Register watchers
	if cfg.Watch.Enabled {
		d.watchers = append(d.watchers, watchers.NewInboxWatcher(cfg, bus))
	}

	// One client for every notifier; each dispatch bounds itself with a context deadline.
	client := &http.Client{}

	// Register notifiers
	n := cfg.Notifications
	if n.Webhook.Enabled {
		d.notifiers = append(d.notifiers, notifiers.WithCameras(notifiers.NewWebhook(n.Webhook, client), n.Webhook.Cameras))
	}
	if n.Discord.Enabled {
		d.notifiers = append(d.notifiers, notifiers.WithCameras(notifiers.NewDiscord(n.Discord, client), n.Discord.Cameras))
	}
	if n.Ntfy.Enabled {
		d.notifiers = append(d.notifiers, notifiers.WithCameras(notifiers.NewNtfy(n.Ntfy, client), n.Ntfy.Cameras))
	}
	if n.Telegram.Enabled {
		d.notifiers = append(d.notifiers, notifiers.WithCameras(notifiers.NewTelegram(n.Telegram, client), n.Telegram.Cameras))
	}

	return d, nil
}

// Close releases the store
func (d *Daemon) Close() error {
	return d.store.Close()
}

// Run starts the daemon and blocks until interrupted
func (d *Daemon) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.run(ctx)
}

func (d *Daemon) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe to detections on the bus
	d.bus.Subscribe(func(det models.Detection) {
		if !d.handling.enter() {
			slog.Debug("detection dropped during shutdown", "camera", det.Camera)
			return
		}
		defer d.handling.leave()
		d.handleDetection(ctx, det)
	})

	// Start all watchers
	var wg sync.WaitGroup
	for _, w := range d.watchers {
		wg.Add(1)
		go func(w watchers.Watcher) {
			defer wg.Done()
			slog.Info("starting watcher", "name", w.Name())
			if err := w.Start(ctx); err != nil {
				slog.Error("watcher failed", "name", w.Name(), "error", err)
			}
		}(w)
	}

	if d.cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.serveMetrics(ctx)
		}()
	}

	// Start dedup and store cleanup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.runCleanup(ctx)
	}()

	slog.Info("camnotify started",
		"version", Version,
		"watchers", len(d.watchers),
		"notifiers", len(d.notifiers),
	)

	<-ctx.Done()
	slog.Info("shutting down...")
	wg.Wait()

	// Cleanup
	for _, w := range d.watchers {
		_ = w.Stop()
	}
	d.handling.close()
	_ = d.store.Close()

	slog.Info("camnotify stopped")
	return nil
}

// Publish hands a detection to the bus as if a watcher had produced it
func (d *Daemon) Publish(det models.Detection) {
	d.bus.Publish(det)
}

func (d *Daemon) handleDetection(ctx context.Context, det models.Detection) {
	if !d.dedup.ShouldAlert(det) {
		d.metrics.ObserveDetection(false)
		slog.Debug("detection deduplicated", "camera", det.Camera, "types", det.Types)
		return
	}
	d.metrics.ObserveDetection(true)
	d.Notify(ctx, det)
}

// Notify sends det to every notifier that accepts its camera, concurrently,
// and records each attempt. Dispatches come back in notifier order.
func (d *Daemon) Notify(ctx context.Context, det models.Detection) []models.Dispatch {
	results := make([]*models.Dispatch, len(d.notifiers))

	var wg sync.WaitGroup
	for i, n := range d.notifiers {
		if !notifiers.Accepts(n, det.Camera) {
			slog.Debug("camera not enabled for notifier", "notifier", n.Name(), "camera", det.Camera)
			continue
		}
		wg.Add(1)
		go func(i int, n notifiers.Notifier) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			rec, err := n.Send(sendCtx, det)
			if err != nil {
				slog.Error("notification failed", "notifier", n.Name(), "camera", det.Camera, "error", err)
			}
			d.record(rec)
			results[i] = &rec
		}(i, n)
	}
	wg.Wait()

	var dispatches []models.Dispatch
	for _, r := range results {
		if r != nil {
			dispatches = append(dispatches, *r)
		}
	}
	return dispatches
}

func (d *Daemon) record(rec models.Dispatch) {
	d.metrics.ObserveDispatch(rec)
	if err := d.store.SaveDispatch(rec); err != nil {
		slog.Error("failed to save dispatch", "notifier", rec.Notifier, "error", err)
	}
}

func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              d.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", d.cfg.Metrics.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "error", err)
	}
}

func (d *Daemon) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

func (d *Daemon) cleanup() {
	d.dedup.Cleanup()
	if d.cfg.Store.RetentionDays <= 0 {
		return
	}
	pruned, err := d.store.Prune(d.cfg.Store.RetentionDays)
	if err != nil {
		slog.Error("failed to prune dispatches", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned old dispatches", "count", pruned)
	}
}

// TestNotifiers sends a test message to all configured notifiers
func (d *Daemon) TestNotifiers(ctx context.Context) error {
	for _, n := range d.notifiers {
		slog.Info("testing notifier", "name", n.Name())
		testCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := n.Test(testCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", n.Name(), err)
		}
		slog.Info("notifier OK", "name", n.Name())
	}
	return nil
}

// NotifierNames lists the enabled notifiers
func (d *Daemon) NotifierNames() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// StatePath is where the daemon keeps its database
func StatePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return store.DefaultDBPath
}
