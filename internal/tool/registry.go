package tool

import (
	"container/list"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/forge/internal/clock"
	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// key identifies a tool registration and its cached instance.
type key struct {
	kind domain.ToolKind
	name string
}

func (k key) String() string {
	return string(k.kind) + "/" + k.name
}

// cacheEntry is a resolved, possibly-reusable tool instance. It is owned
// exclusively by the registry and eligible for eviction once its TTL has
// expired and its reference count is zero.
type cacheEntry struct {
	instance Tool
	refs     int
	lastUsed time.Time
	elem     *list.Element // position in the LRU list; Value is the key
}

// RegistryConfig holds cache bounds for a Registry.
type RegistryConfig struct {
	// MaxEntries bounds the instance cache. Zero means the default.
	MaxEntries int

	// TTL is how long an idle, unreferenced instance stays cached.
	// Zero means the default.
	TTL time.Duration

	// SweepInterval is how often the background sweeper runs.
	// Zero means the default; negative disables the sweeper (tests call
	// Sweep directly).
	SweepInterval time.Duration
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.MaxEntries == 0 {
		c.MaxEntries = constants.DefaultToolCacheSize
	}
	if c.TTL == 0 {
		c.TTL = constants.DefaultToolCacheTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = constants.DefaultToolSweepInterval
	}
	return c
}

// Registry indexes tool factories by (kind, name) and caches resolved
// instances. One registry is constructed at process start and passed by
// reference to the engine; tests construct isolated registries.
//
// All state is guarded by a single mutex: goroutines preempt, so the
// resolve/release/evict paths cannot rely on cooperative scheduling.
type Registry struct {
	mu        sync.Mutex
	factories map[key]Registration
	cache     map[key]*cacheEntry
	lru       *list.List // front = most recently used
	cfg       RegistryConfig
	clk       clock.Clock
	logger    zerolog.Logger
	closed    bool

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the clock used for TTL bookkeeping. Tests inject a mock
// clock to drive eviction deterministically.
func WithClock(clk clock.Clock) RegistryOption {
	return func(r *Registry) {
		r.clk = clk
	}
}

// NewRegistry creates a tool registry and starts its background sweeper
// unless the sweep interval is negative. Call Close to stop the sweeper
// and clean up cached instances.
func NewRegistry(cfg RegistryConfig, logger zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[key]Registration),
		cache:     make(map[key]*cacheEntry),
		lru:       list.New(),
		cfg:       cfg.withDefaults(),
		clk:       clock.RealClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cfg.SweepInterval > 0 {
		r.stopSweep = make(chan struct{})
		r.sweepDone = make(chan struct{})
		go r.sweepLoop()
	}

	return r
}

// Register adds a tool registration. Registering a (kind, name) pair that
// already exists fails with ErrDuplicateTool; unregister first to redefine.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("%w: tool name", forgeerrors.ErrEmptyValue)
	}
	if !reg.Kind.Valid() {
		return fmt.Errorf("%w: %q", forgeerrors.ErrUnknownToolKind, reg.Kind)
	}
	if reg.Factory == nil {
		return fmt.Errorf("%w: nil factory for %s/%s", forgeerrors.ErrInvalidArgument, reg.Kind, reg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return forgeerrors.ErrRegistryClosed
	}

	k := key{kind: reg.Kind, name: reg.Name}
	if _, ok := r.factories[k]; ok {
		return fmt.Errorf("%w: %s", forgeerrors.ErrDuplicateTool, k)
	}
	r.factories[k] = reg

	r.logger.Debug().
		Str("tool_kind", reg.Kind.String()).
		Str("tool_name", reg.Name).
		Msg("tool registered")

	return nil
}

// Unregister removes a registration and evicts any cached instance,
// invoking its cleanup hook. Unregistering an unknown tool is an error.
func (r *Registry) Unregister(ctx context.Context, kind domain.ToolKind, name string) error {
	k := key{kind: kind, name: name}

	r.mu.Lock()
	if _, ok := r.factories[k]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", forgeerrors.ErrToolNotFound, k)
	}
	delete(r.factories, k)

	var evicted Tool
	if entry, ok := r.cache[k]; ok {
		evicted = entry.instance
		r.removeEntryLocked(k, entry)
	}
	r.mu.Unlock()

	if evicted != nil {
		r.cleanupInstance(ctx, k, evicted)
	}
	return nil
}

// Resolve returns a tool instance for (kind, name), constructing and
// initializing one via the factory on a cache miss. The instance's
// reference count is incremented; callers must pair every Resolve with a
// Release.
func (r *Registry) Resolve(ctx context.Context, kind domain.ToolKind, name string) (Tool, error) {
	k := key{kind: kind, name: name}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, forgeerrors.ErrRegistryClosed
	}

	if entry, ok := r.cache[k]; ok {
		entry.refs++
		entry.lastUsed = r.clk.Now()
		r.lru.MoveToFront(entry.elem)
		inst := entry.instance
		r.mu.Unlock()
		return inst, nil
	}

	reg, ok := r.factories[k]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", forgeerrors.ErrToolNotFound, k)
	}
	r.mu.Unlock()

	// Construct and initialize outside the lock; factory and Initialize
	// may do I/O.
	inst, err := reg.Factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", forgeerrors.ErrToolInitFailed, k, err)
	}
	if err := inst.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", forgeerrors.ErrToolInitFailed, k, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.cleanupInstance(ctx, k, inst)
		return nil, forgeerrors.ErrRegistryClosed
	}

	// Another goroutine may have cached the same tool while we were
	// constructing; prefer the cached instance and discard ours.
	if entry, ok := r.cache[k]; ok {
		entry.refs++
		entry.lastUsed = r.clk.Now()
		r.lru.MoveToFront(entry.elem)
		cached := entry.instance
		r.mu.Unlock()
		r.cleanupInstance(ctx, k, inst)
		return cached, nil
	}

	entry := &cacheEntry{
		instance: inst,
		refs:     1,
		lastUsed: r.clk.Now(),
	}
	entry.elem = r.lru.PushFront(k)
	r.cache[k] = entry

	evicted := r.evictOverflowLocked()
	r.mu.Unlock()

	for _, ev := range evicted {
		r.cleanupInstance(ctx, ev.key, ev.instance)
	}

	r.logger.Debug().
		Str("tool_kind", kind.String()).
		Str("tool_name", name).
		Msg("tool instance cached")

	return inst, nil
}

// Release decrements the reference count taken by Resolve, making the
// instance eligible for idle eviction once it reaches zero.
func (r *Registry) Release(kind domain.ToolKind, name string) {
	k := key{kind: kind, name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[k]
	if !ok {
		return
	}
	if entry.refs > 0 {
		entry.refs--
	}
	entry.lastUsed = r.clk.Now()
}

// References returns the current reference count for a cached instance,
// or zero when nothing is cached for the pair.
func (r *Registry) References(kind domain.ToolKind, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.cache[key{kind: kind, name: name}]; ok {
		return entry.refs
	}
	return 0
}

// Search returns the registrations matching the criteria, sorted by kind
// then name for deterministic output.
func (r *Registry) Search(criteria Criteria) []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Registration
	for _, reg := range r.factories {
		if criteria.matches(reg) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Sweep evicts cached instances idle beyond the TTL with zero active
// references, invoking each instance's cleanup hook. Returns the number
// of evicted entries. The background sweeper calls this on its interval;
// tests call it directly with a mock clock.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.clk.Now()

	r.mu.Lock()
	var expired []struct {
		key      key
		instance Tool
	}
	for k, entry := range r.cache {
		if entry.refs == 0 && now.Sub(entry.lastUsed) >= r.cfg.TTL {
			expired = append(expired, struct {
				key      key
				instance Tool
			}{k, entry.instance})
			r.removeEntryLocked(k, entry)
		}
	}
	r.mu.Unlock()

	for _, ev := range expired {
		r.cleanupInstance(ctx, ev.key, ev.instance)
	}

	if len(expired) > 0 {
		r.logger.Debug().
			Int("evicted", len(expired)).
			Msg("tool cache sweep")
	}
	return len(expired)
}

// CachedCount returns the number of cached instances.
func (r *Registry) CachedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Close stops the background sweeper and cleans up every cached instance.
// Subsequent Register/Resolve calls fail with ErrRegistryClosed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var entries []struct {
		key      key
		instance Tool
	}
	for k, entry := range r.cache {
		entries = append(entries, struct {
			key      key
			instance Tool
		}{k, entry.instance})
	}
	r.cache = make(map[key]*cacheEntry)
	r.lru.Init()
	r.mu.Unlock()

	if r.stopSweep != nil {
		close(r.stopSweep)
		<-r.sweepDone
	}

	for _, e := range entries {
		r.cleanupInstance(ctx, e.key, e.instance)
	}
	return nil
}

// sweepLoop runs Sweep on the configured interval until Close.
func (r *Registry) sweepLoop() {
	defer close(r.sweepDone)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			r.Sweep(context.Background())
		}
	}
}

// evictOverflowLocked evicts least-recently-used unreferenced entries
// until the cache fits MaxEntries. Entries with active references are
// never evicted, so the cache may transiently exceed the bound while all
// instances are in use. Caller holds the mutex and must run cleanup on
// the returned instances after unlocking.
func (r *Registry) evictOverflowLocked() []struct {
	key      key
	instance Tool
} {
	var evicted []struct {
		key      key
		instance Tool
	}

	for len(r.cache) > r.cfg.MaxEntries {
		victim := r.oldestUnreferencedLocked()
		if victim == nil {
			break
		}
		k := victim.Value.(key)
		entry := r.cache[k]
		evicted = append(evicted, struct {
			key      key
			instance Tool
		}{k, entry.instance})
		r.removeEntryLocked(k, entry)
	}
	return evicted
}

// oldestUnreferencedLocked walks the LRU list from the back and returns
// the first element whose entry has no active references, or nil.
func (r *Registry) oldestUnreferencedLocked() *list.Element {
	for elem := r.lru.Back(); elem != nil; elem = elem.Prev() {
		if entry, ok := r.cache[elem.Value.(key)]; ok && entry.refs == 0 {
			return elem
		}
	}
	return nil
}

// removeEntryLocked detaches an entry from the cache and LRU list.
func (r *Registry) removeEntryLocked(k key, entry *cacheEntry) {
	r.lru.Remove(entry.elem)
	delete(r.cache, k)
}

// cleanupInstance invokes a tool's cleanup hook, logging failures.
func (r *Registry) cleanupInstance(ctx context.Context, k key, inst Tool) {
	if err := inst.Cleanup(ctx); err != nil {
		r.logger.Warn().
			Err(err).
			Str("tool", k.String()).
			Msg("tool cleanup failed during eviction")
	}
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
