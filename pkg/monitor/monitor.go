package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Recorder receives cache events from the resolution and connection caches.
// Implementations must be passive: they report on resolution outcomes and
// never influence them.
type Recorder interface {
	// Hit records a cache hit serving an entry of the given age.
	Hit(age time.Duration)
	// Miss records a cache miss and the time the resolution took.
	Miss(resolution time.Duration)
	// BackgroundRefresh records a completed stale-while-revalidate refresh.
	BackgroundRefresh(d time.Duration)
	// Eviction records an entry evicted from a cache.
	Eviction()
	// Error records a failed resolution attempt; isRetry marks attempts
	// after the first.
	Error(isRetry bool)
	// BreakerTrip records a circuit breaker opening.
	BreakerTrip()
	// CacheSize reports the current number of cached entries.
	CacheSize(entries int)
}

// NoOp discards all events. It is the default recorder.
type NoOp struct{}

func (NoOp) Hit(time.Duration)               {}
func (NoOp) Miss(time.Duration)              {}
func (NoOp) BackgroundRefresh(time.Duration) {}
func (NoOp) Eviction()                       {}
func (NoOp) Error(bool)                      {}
func (NoOp) BreakerTrip()                    {}
func (NoOp) CacheSize(int)                   {}

// Config holds monitor thresholds. HistorySize bounds the recent-timings
// ring; AlertCooldown suppresses repeat alerts of the same type; MinSamples
// gates the ratio alerts until enough operations are seen.
type Config struct {
	HistorySize             int           `env:"MONITOR_HISTORY_SIZE" envDefault:"100"`
	SlowResolutionThreshold time.Duration `env:"MONITOR_SLOW_RESOLUTION_THRESHOLD" envDefault:"2s"`
	LowHitRatioThreshold    float64       `env:"MONITOR_LOW_HIT_RATIO_THRESHOLD" envDefault:"0.5"`
	HighErrorRateThreshold  float64       `env:"MONITOR_HIGH_ERROR_RATE_THRESHOLD" envDefault:"0.25"`
	MaxCacheEntries         int           `env:"MONITOR_MAX_CACHE_ENTRIES" envDefault:"90"`
	AlertCooldown           time.Duration `env:"MONITOR_ALERT_COOLDOWN" envDefault:"1m"`
	MinSamples              int           `env:"MONITOR_MIN_SAMPLES" envDefault:"20"`
}

// OperationTiming is one entry of the bounded recent-operations history.
type OperationTiming struct {
	Operation string
	Duration  time.Duration
	At        time.Time
}

// Metrics is a point-in-time snapshot of the rolling counters.
type Metrics struct {
	Hits                uint64
	Misses              uint64
	HitRatio            float64
	AvgResolutionTime   time.Duration
	BackgroundRefreshes uint64
	Evictions           uint64
	Errors              uint64
	Retries             uint64
	ErrorRate           float64
	BreakerTrips        uint64
	CacheEntries        int
}

// Monitor implements Recorder with rolling counters, a bounded history of
// recent operation timings, threshold alerts with cooldown de-duplication
// and OpenTelemetry instruments for export.
type Monitor struct {
	cfg     Config
	logger  *slog.Logger
	alertFn AlertFunc
	inst    *instruments

	mu              sync.Mutex
	hits            uint64
	misses          uint64
	refreshes       uint64
	evictions       uint64
	errors          uint64
	retries         uint64
	trips           uint64
	totalResolution time.Duration
	cacheEntries    int
	history         []OperationTiming
	historyNext     int
	lastAlert       map[AlertType]time.Time
}

// Option configures the monitor.
type Option func(*Monitor)

// WithLogger sets the logger used when alerts fire.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAlertFunc registers a callback invoked for every emitted alert.
func WithAlertFunc(fn AlertFunc) Option {
	return func(m *Monitor) {
		m.alertFn = fn
	}
}

// New creates a monitor. It registers OpenTelemetry instruments on the
// global meter provider; exporting them is the embedding application's
// concern.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = time.Minute
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 20
	}

	inst, err := newInstruments()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:       cfg,
		logger:    slog.Default(),
		inst:      inst,
		history:   make([]OperationTiming, 0, cfg.HistorySize),
		lastAlert: make(map[AlertType]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Hit implements Recorder.
func (m *Monitor) Hit(age time.Duration) {
	m.inst.hits.Add(context.Background(), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.recordTimingLocked("hit", age)
	m.checkHitRatioLocked()
}

// Miss implements Recorder.
func (m *Monitor) Miss(resolution time.Duration) {
	m.inst.misses.Add(context.Background(), 1)
	m.inst.resolutionMs.Record(context.Background(), float64(resolution.Milliseconds()))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
	m.totalResolution += resolution
	m.recordTimingLocked("miss", resolution)

	if m.cfg.SlowResolutionThreshold > 0 && resolution > m.cfg.SlowResolutionThreshold {
		m.emitLocked(AlertSlowResolution, resolution.Seconds(), m.cfg.SlowResolutionThreshold.Seconds())
	}
	m.checkHitRatioLocked()
}

// BackgroundRefresh implements Recorder.
func (m *Monitor) BackgroundRefresh(d time.Duration) {
	m.inst.refreshMs.Record(context.Background(), float64(d.Milliseconds()))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	m.recordTimingLocked("refresh", d)
}

// Eviction implements Recorder.
func (m *Monitor) Eviction() {
	m.inst.evictions.Add(context.Background(), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions++
}

// Error implements Recorder.
func (m *Monitor) Error(isRetry bool) {
	m.inst.errors.Add(context.Background(), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
	if isRetry {
		m.retries++
	}
	m.checkErrorRateLocked()
}

// BreakerTrip implements Recorder.
func (m *Monitor) BreakerTrip() {
	m.inst.trips.Add(context.Background(), 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips++
}

// CacheSize implements Recorder.
func (m *Monitor) CacheSize(entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheEntries = entries
	if m.cfg.MaxCacheEntries > 0 && entries > m.cfg.MaxCacheEntries {
		m.emitLocked(AlertMemoryPressure, float64(entries), float64(m.cfg.MaxCacheEntries))
	}
}

// Snapshot returns the current metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Metrics{
		Hits:                m.hits,
		Misses:              m.misses,
		BackgroundRefreshes: m.refreshes,
		Evictions:           m.evictions,
		Errors:              m.errors,
		Retries:             m.retries,
		BreakerTrips:        m.trips,
		CacheEntries:        m.cacheEntries,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRatio = float64(m.hits) / float64(total)
		s.ErrorRate = float64(m.errors) / float64(total+m.errors)
	}
	if m.misses > 0 {
		s.AvgResolutionTime = m.totalResolution / time.Duration(m.misses)
	}
	return s
}

// History returns a copy of the bounded recent-operations ring, oldest first.
func (m *Monitor) History() []OperationTiming {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OperationTiming, 0, len(m.history))
	if len(m.history) == cap(m.history) {
		out = append(out, m.history[m.historyNext:]...)
		out = append(out, m.history[:m.historyNext]...)
	} else {
		out = append(out, m.history...)
	}
	return out
}

// recordTimingLocked appends to the history ring; must hold the lock.
func (m *Monitor) recordTimingLocked(op string, d time.Duration) {
	t := OperationTiming{Operation: op, Duration: d, At: time.Now()}
	if len(m.history) < cap(m.history) {
		m.history = append(m.history, t)
		return
	}
	m.history[m.historyNext] = t
	m.historyNext = (m.historyNext + 1) % cap(m.history)
}

func (m *Monitor) checkHitRatioLocked() {
	total := m.hits + m.misses
	if total < uint64(m.cfg.MinSamples) || m.cfg.LowHitRatioThreshold <= 0 {
		return
	}
	ratio := float64(m.hits) / float64(total)
	if ratio < m.cfg.LowHitRatioThreshold {
		m.emitLocked(AlertLowHitRatio, ratio, m.cfg.LowHitRatioThreshold)
	}
}

func (m *Monitor) checkErrorRateLocked() {
	total := m.hits + m.misses + m.errors
	if total < uint64(m.cfg.MinSamples) || m.cfg.HighErrorRateThreshold <= 0 {
		return
	}
	rate := float64(m.errors) / float64(total)
	if rate > m.cfg.HighErrorRateThreshold {
		m.emitLocked(AlertHighErrorRate, rate, m.cfg.HighErrorRateThreshold)
	}
}
