package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats holds execution statistics.
type QueryStats struct {
	// TotalQueries is the number of row-returning statements executed.
	TotalQueries atomic.Int64
	// TotalExecs is the number of other statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of execution statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, e *Event)

// StatsTracer is a Tracer collecting statistics.
type StatsTracer struct {
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsTracer.
type StatsOption func(*StatsTracer)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsTracer) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsTracer) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the default logger.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, e *Event) {
		slog.Warn("slow query detected", "duration", e.Duration, "op", e.Op, "table", e.Table, "query", e.Preview())
	})
}

// NewStatsTracer returns a tracer collecting statistics.
//
// Example:
//
//	stats := engine.NewStatsTracer(
//	    engine.WithSlowThreshold(200*time.Millisecond),
//	    engine.WithSlowQueryLog(),
//	)
//	eng := engine.New(engine.WithTracer(stats))
//
//	// Later, check statistics:
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsTracer(opts ...StatsOption) *StatsTracer {
	s := &StatsTracer{
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (s *StatsTracer) QueryStats() *QueryStats {
	return s.stats
}

// SlowThreshold returns the current slow statement threshold.
func (s *StatsTracer) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (s *StatsTracer) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// BeforeExecute implements Tracer.
func (s *StatsTracer) BeforeExecute(context.Context, *Event) Action { return Continue }

// AfterExecute implements Tracer.
func (s *StatsTracer) AfterExecute(ctx context.Context, e *Event, err error) {
	if e.Op.IsRead() {
		s.stats.TotalQueries.Add(1)
	} else {
		s.stats.TotalExecs.Add(1)
	}
	s.stats.TotalDuration.Add(int64(e.Duration))
	if err != nil {
		s.stats.Errors.Add(1)
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if e.Duration > threshold {
		s.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, e)
		}
	}
}

// LogTracer logs every statement.
type LogTracer struct {
	logger *slog.Logger
	level  slog.Level
}

// LogOption configures the LogTracer.
type LogOption func(*LogTracer)

// LogWithLogger sets the logger. Default is slog.Default().
func LogWithLogger(l *slog.Logger) LogOption {
	return func(t *LogTracer) {
		t.logger = l
	}
}

// LogWithLevel sets the level statements are logged at. Default is debug.
func LogWithLevel(level slog.Level) LogOption {
	return func(t *LogTracer) {
		t.level = level
	}
}

// NewLogTracer returns a tracer logging statements.
func NewLogTracer(opts ...LogOption) *LogTracer {
	t := &LogTracer{logger: slog.Default(), level: slog.LevelDebug}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BeforeExecute implements Tracer.
func (t *LogTracer) BeforeExecute(ctx context.Context, e *Event) Action {
	t.logger.Log(ctx, t.level, "execute",
		"id", e.ID, "op", e.Op, "table", e.Table, "query", e.SQL, "args", e.Args, "tx", e.InTx)
	return Continue
}

// AfterExecute implements Tracer.
func (t *LogTracer) AfterExecute(ctx context.Context, e *Event, err error) {
	if err != nil {
		t.logger.Log(ctx, slog.LevelError, "execute failed",
			"id", e.ID, "op", e.Op, "table", e.Table, "duration", e.Duration, "error", err)
		return
	}
	t.logger.Log(ctx, t.level, "executed",
		"id", e.ID, "op", e.Op, "table", e.Table, "duration", e.Duration, "rows", e.Rows)
}

var (
	_ Tracer = (*StatsTracer)(nil)
	_ Tracer = (*LogTracer)(nil)
	_ Tracer = Hooks{}
)
