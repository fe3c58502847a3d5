package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "admcal/internal/log"
	"admcal/internal/model"
)

var (
	ErrNotLoaded  = errors.New("events not loaded yet")
	ErrLoadFailed = errors.New("events load failed")
)

// Batch is what one source produced in one load.
type Batch struct {
	Events []model.RawEvent
	// FromCache is true when the source served a mirrored copy instead of
	// fresh data.
	FromCache bool
}

// Source produces raw events. Implementations live in internal/source.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// LoadState is the lifecycle state of the event collection.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLoaded  LoadState = "loaded"
	StateFailed  LoadState = "failed"
)

// LoadStatus describes the outcome of the most recent load.
type LoadStatus struct {
	State    LoadState
	Err      error
	LoadedAt time.Time
	// Stale is true when at least one source served its mirror.
	Stale bool
	// Rejected counts raw events dropped by Validate.
	Rejected int
	// Sources and FailedSources count the sources attempted and failed.
	Sources       int
	FailedSources int
}

// Loader loads events from a set of sources and publishes them as one
// immutable slice. Loads are never retried automatically; a failed load
// stays failed until Load is called again.
type Loader struct {
	sources []Source
	timeout time.Duration

	// loadMu serialises loads.
	loadMu sync.Mutex

	mu     sync.RWMutex
	events []model.Event
	status LoadStatus
}

// NewLoader builds a Loader. timeout bounds one whole load; zero disables it.
func NewLoader(sources []Source, timeout time.Duration) *Loader {
	return &Loader{
		sources: sources,
		timeout: timeout,
		status:  LoadStatus{State: StateIdle},
	}
}

// Load fetches every source and replaces the collection. It fails only when
// every source failed; partial failures are logged and reported in the
// status. On failure the previous collection is kept but the state is
// StateFailed.
func (l *Loader) Load(ctx context.Context) LoadStatus {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	l.mu.Lock()
	l.status.State = StateLoading
	l.mu.Unlock()

	started := time.Now()
	appLog.Info("events load start", "sources", len(l.sources))

	var (
		raws  []model.RawEvent
		errs  []error
		stale bool
	)
	for _, src := range l.sources {
		batch, err := src.Fetch(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			appLog.Error("events source failed", err, "source", src.Name())
			continue
		}
		if batch.FromCache {
			stale = true
		}
		for i := range batch.Events {
			if batch.Events[i].Source == "" {
				batch.Events[i].Source = src.Name()
			}
		}
		raws = append(raws, batch.Events...)
		appLog.Debug("events source done", "source", src.Name(), "count", len(batch.Events), "from_cache", batch.FromCache)
	}

	status := LoadStatus{
		Sources:       len(l.sources),
		FailedSources: len(errs),
		Stale:         stale,
	}

	if len(l.sources) > 0 && len(errs) == len(l.sources) {
		status.State = StateFailed
		status.Err = fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(errs...))
		appLog.Error("events load failed", status.Err, "sources", len(l.sources))

		l.mu.Lock()
		status.LoadedAt = l.status.LoadedAt
		l.status = status
		l.mu.Unlock()
		return status
	}

	events, rejected := Validate(raws)
	for _, err := range rejected {
		appLog.Warn("event rejected", "reason", err.Error())
	}

	status.State = StateLoaded
	status.Rejected = len(rejected)
	status.LoadedAt = time.Now()
	if len(errs) > 0 {
		status.Err = errors.Join(errs...)
	}

	l.mu.Lock()
	l.events = events
	l.status = status
	l.mu.Unlock()

	appLog.Info("events load done",
		"events", len(events),
		"rejected", len(rejected),
		"failed_sources", len(errs),
		"stale", stale,
		"took", time.Since(started).Round(time.Millisecond),
	)
	return status
}

// Status returns the status of the most recent load.
func (l *Loader) Status() LoadStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Snapshot returns the current collection with its status. The returned
// slice is shared and must not be modified. The error is ErrNotLoaded before
// the first successful load and wraps ErrLoadFailed after a failed one.
func (l *Loader) Snapshot() ([]model.Event, LoadStatus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.status.State {
	case StateFailed:
		return l.events, l.status, l.status.Err
	case StateLoaded:
		return l.events, l.status, nil
	default:
		if l.status.LoadedAt.IsZero() {
			return nil, l.status, ErrNotLoaded
		}
		return l.events, l.status, nil
	}
}

// ShouldRefresh reports whether a scheduled refresh may run. After a failed
// load only an explicit Load call may try again.
func (l *Loader) ShouldRefresh() bool {
	return l.Status().State != StateFailed
}
