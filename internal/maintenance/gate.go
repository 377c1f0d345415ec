package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/observability"
)

// DefaultTTL bounds how often the flag is re-read from the database.
const DefaultTTL = 10 * time.Second

// refreshTimeout caps a single flag query.
const refreshTimeout = 3 * time.Second

var ErrMaintenance = errors.New("system is under maintenance")

// FlagSource reads the persisted maintenance switch.
type FlagSource interface {
	GetMaintenanceFlag(ctx context.Context) (bool, error)
}

// Notifier is told when the cached flag flips.
type Notifier func(ctx context.Context, enabled bool)

// Gate caches the maintenance flag for a fixed window. A failed refresh keeps the previous value.
type Gate struct {
	source   FlagSource
	ttl      time.Duration
	now      func() time.Time
	notifier Notifier

	mu          sync.Mutex
	enabled     bool
	refreshedAt time.Time
	attempted   bool
	loaded      bool
	refreshing  bool
}

// Option customises a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithNotifier registers a callback for state flips.
func WithNotifier(n Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

// NewGate builds a Gate. ttl <= 0 selects DefaultTTL.
func NewGate(source FlagSource, ttl time.Duration, opts ...Option) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Gate{source: source, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled returns the cached flag, refreshing it when the window has elapsed.
// Only one caller queries at a time; everyone else gets the cached value
// without waiting on the query.
func (g *Gate) Enabled(ctx context.Context) bool {
	g.mu.Lock()
	now := g.now()
	if g.refreshing || (g.attempted && now.Sub(g.refreshedAt) < g.ttl) {
		enabled := g.enabled
		g.mu.Unlock()
		return enabled
	}
	g.refreshing = true
	g.mu.Unlock()

	queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	enabled, err := g.source.GetMaintenanceFlag(queryCtx)
	cancel()
	observability.IncMaintenanceRefresh(err == nil)

	g.mu.Lock()
	g.refreshing = false
	// retry after another full window either way
	g.refreshedAt = now
	g.attempted = true
	if err != nil {
		cached := g.enabled
		g.mu.Unlock()
		log.Error().Err(err).Bool("cached", cached).Msg("maintenance flag refresh failed")
		return cached
	}
	changed := g.loaded && enabled != g.enabled
	g.enabled = enabled
	g.loaded = true
	g.mu.Unlock()

	observability.SetMaintenance(enabled)
	if changed {
		log.Warn().Bool("enabled", enabled).Msg("maintenance mode changed")
		if g.notifier != nil {
			g.notifier(ctx, enabled)
		}
	}
	return enabled
}

// CheckSignIn is applied by sign-in flows: administrators always pass,
// everyone else gets ErrMaintenance while the flag is on.
func (g *Gate) CheckSignIn(ctx context.Context, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	if g.Enabled(ctx) {
		return ErrMaintenance
	}
	return nil
}
