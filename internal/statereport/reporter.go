package statereport

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultDebounce is the request-sync quiet window.
	DefaultDebounce = 10 * time.Second

	// DefaultInterval is the period of the full state report.
	DefaultInterval = 30 * time.Minute

	kindReportState = "report_state"
	kindRequestSync = "request_sync"

	callTimeout = 30 * time.Second
)

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HomeGraph is the remote platform API.
type HomeGraph interface {
	ReportState(ctx context.Context, agentUserID string, states map[string]map[string]any, notifications map[string]any) error
	RequestSync(ctx context.Context, agentUserID string) error
}

// AccountLinker reports the account the platform knows this bridge by.
type AccountLinker interface {
	LinkedUser() (string, bool)
}

// StateSource supplies device states. An empty ids slice means all devices.
type StateSource interface {
	States(ctx context.Context, ids []string) map[string]map[string]any
}

// Metrics records outbound calls. Optional.
type Metrics interface {
	RecordStateReport(kind string, devices int, err error)
}

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config holds the reporter's collaborators and timing.
type Config struct {
	// Graph is the remote client. Nil disables every outbound call.
	Graph HomeGraph

	Accounts AccountLinker
	States   StateSource
	Metrics  Metrics

	// Debounce is the request-sync window. Default: 10 seconds.
	Debounce time.Duration

	// Interval is the full-report period. Default: 30 minutes.
	Interval time.Duration

	// AfterFunc overrides the timer factory. Defaults to time.AfterFunc.
	AfterFunc AfterFunc

	Logger Logger
}

// Reporter schedules state reports and sync requests.
type Reporter struct {
	graph    HomeGraph
	accounts AccountLinker
	states   StateSource
	metrics  Metrics
	debounce time.Duration
	interval time.Duration
	after    AfterFunc
	logger   Logger

	mu          sync.Mutex
	running     bool
	syncPending bool
	syncGen     uint64
	syncTimer   Timer

	// base is cancelled by Stop and parents every outbound call.
	base   context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a reporter. Call Start before any call is sent.
func New(cfg Config) *Reporter {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Reporter{
		graph:    cfg.Graph,
		accounts: cfg.Accounts,
		states:   cfg.States,
		metrics:  cfg.Metrics,
		debounce: cfg.Debounce,
		interval: cfg.Interval,
		after:    cfg.AfterFunc,
		logger:   cfg.Logger,
	}
}

// Start enables outbound calls and begins the periodic full report. The
// loop exits when ctx is cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.base, r.cancel = context.WithCancel(ctx)
	r.running = true
	base := r.base
	r.mu.Unlock()

	r.wg.Add(1)
	go r.reportLoop(base)
}

// Stop cancels the pending sync, waits for in-flight calls and disables the
// reporter. Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.running = false
		r.syncGen++
		r.syncPending = false
		if r.syncTimer != nil {
			r.syncTimer.Stop()
			r.syncTimer = nil
		}
		cancel := r.cancel
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		r.wg.Wait()
	})
}

// Running reports whether outbound calls are enabled.
func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// SyncPending reports whether a debounced sync is armed.
func (r *Reporter) SyncPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncPending
}

// ScheduleRequestSync arms a RequestSync after the debounce window. A
// trigger while one is pending replaces it: the older timer is stopped and
// its callback, if already running, sees a stale generation and does
// nothing.
func (r *Reporter) ScheduleRequestSync() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		r.logger.Debug("request sync not scheduled, reporter not running")
		return
	}
	if r.syncTimer != nil {
		r.syncTimer.Stop()
	}
	r.syncGen++
	gen := r.syncGen
	r.syncPending = true
	r.syncTimer = r.after(r.debounce, func() { r.fireSync(gen) })
}

func (r *Reporter) fireSync(gen uint64) {
	r.mu.Lock()
	if gen != r.syncGen || !r.syncPending || !r.running {
		r.mu.Unlock()
		return
	}
	r.syncPending = false
	r.syncTimer = nil
	base := r.base
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(base, callTimeout)
	defer cancel()
	if err := r.RequestSync(ctx); err != nil && !IsSkipped(err) {
		r.logger.Warn("request sync failed", "error", err)
	}
}

// RequestSync asks the platform to re-fetch the device list now.
func (r *Reporter) RequestSync(ctx context.Context) error {
	user, err := r.ready()
	if err != nil {
		r.logger.Debug("request sync skipped", "reason", err)
		return err
	}

	err = r.graph.RequestSync(ctx, user)
	r.record(kindRequestSync, 0, err)
	if err != nil {
		return err
	}
	r.logger.Info("requested sync", "agent_user", user)
	return nil
}

// ReportState sends states to the platform. With a deviceID, states is that
// device's state (looked up when nil). With an empty deviceID every device
// is reported and states is ignored.
func (r *Reporter) ReportState(ctx context.Context, deviceID string, states, notifications map[string]any) error {
	user, err := r.ready()
	if err != nil {
		r.logger.Debug("report state skipped", "device_id", deviceID, "reason", err)
		return err
	}

	payload := r.collect(ctx, deviceID, states)
	if len(payload) == 0 && len(notifications) == 0 {
		r.logger.Debug("report state skipped, nothing to report", "device_id", deviceID)
		return nil
	}

	var notes map[string]any
	if len(notifications) > 0 && deviceID != "" {
		notes = map[string]any{deviceID: notifications}
	}

	err = r.graph.ReportState(ctx, user, payload, notes)
	r.record(kindReportState, len(payload), err)
	if err != nil {
		return err
	}
	r.logger.Debug("reported state", "devices", len(payload))
	return nil
}

// ReportStateAsync runs ReportState in the background and logs failures.
// The inbound request that caused it does not wait.
func (r *Reporter) ReportStateAsync(deviceID string, states map[string]any) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	base := r.base
	r.wg.Add(1)
	r.mu.Unlock()

	snapshot := copyState(states)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(base, callTimeout)
		defer cancel()
		if err := r.ReportState(ctx, deviceID, snapshot, nil); err != nil && !IsSkipped(err) {
			r.logger.Warn("report state failed", "device_id", deviceID, "error", err)
		}
	}()
}

func (r *Reporter) reportLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reportAll(ctx)
		}
	}
}

func (r *Reporter) reportAll(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if err := r.ReportState(callCtx, "", nil, nil); err != nil && !IsSkipped(err) {
		r.logger.Warn("periodic state report failed", "error", err)
	}
}

// ready returns the agent user when every precondition for an outbound
// call holds.
func (r *Reporter) ready() (string, error) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	if !running {
		return "", ErrNotRunning
	}
	if r.graph == nil {
		return "", ErrNoClient
	}
	if r.accounts == nil {
		return "", ErrNotLinked
	}
	user, ok := r.accounts.LinkedUser()
	if !ok {
		return "", ErrNotLinked
	}
	return user, nil
}

func (r *Reporter) collect(ctx context.Context, deviceID string, states map[string]any) map[string]map[string]any {
	if deviceID != "" && states != nil {
		return map[string]map[string]any{deviceID: states}
	}
	if r.states == nil {
		return nil
	}
	var ids []string
	if deviceID != "" {
		ids = []string{deviceID}
	}
	return r.states.States(ctx, ids)
}

func (r *Reporter) record(kind string, devices int, err error) {
	if r.metrics != nil {
		r.metrics.RecordStateReport(kind, devices, err)
	}
}

func copyState(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
