package vactor

import "time"

const (
	// defaultMaxQueueSize is the default per-key execution queue depth.
	defaultMaxQueueSize = 10000

	// defaultIdleTTL is the default activation idle timeout.
	defaultIdleTTL = 10 * time.Minute

	// defaultCleanupInterval is the default idle-eviction scan period.
	defaultCleanupInterval = 5 * time.Minute

	// defaultExecutorWidth bounds the parallel thread pool the
	// ExecutionSerializer schedules jobs onto.
	defaultExecutorWidth = 1000

	// messengerTimeoutSweepInterval is the fixed period of the
	// TimeoutCleaner.TimeoutCleanup sweep, scheduled only when the
	// configured Messenger implements TimeoutCleaner.
	messengerTimeoutSweepInterval = 5 * time.Second
)

// RuntimeConfig bundles the runtime's configuration knobs, built via
// RuntimeOption functional options instead of a long constructor argument
// list.
type RuntimeConfig struct {
	// Name prefixes the runtime's generated identity token.
	Name string

	// MaxQueueSize is the per-key (and keyless re-offer) execution
	// queue depth.
	MaxQueueSize int

	// IdleTTL is the activation idle timeout.
	IdleTTL time.Duration

	// CleanupInterval is the idle-eviction scan period.
	CleanupInterval time.Duration

	// ExecutorWidth bounds the parallel pool the serializer schedules
	// onto. 0 means unbounded.
	ExecutorWidth int

	// TraceEnabled turns on pre/post invoke listener notifications.
	TraceEnabled bool

	Clock Clock

	Messenger Messenger
	Locator   Locator

	Storage []StorageProvider

	Providers []LifetimeProvider

	InvokeListeners []InvokeListenerProvider
	InvokeHook      InvokeHookProvider

	ReminderController ReminderController

	FactoryProviders []FactoryProvider
}

// RuntimeOption configures a RuntimeConfig.
type RuntimeOption func(*RuntimeConfig)

// WithName overrides the prefix of the runtime's generated identity token.
func WithName(n string) RuntimeOption {
	return func(c *RuntimeConfig) { c.Name = n }
}

// WithMaxQueueSize overrides the per-key execution queue depth.
func WithMaxQueueSize(n int) RuntimeOption {
	return func(c *RuntimeConfig) { c.MaxQueueSize = n }
}

// WithIdleTTL overrides the activation idle timeout.
func WithIdleTTL(d time.Duration) RuntimeOption {
	return func(c *RuntimeConfig) { c.IdleTTL = d }
}

// WithCleanupInterval overrides the idle-eviction scan period.
func WithCleanupInterval(d time.Duration) RuntimeOption {
	return func(c *RuntimeConfig) { c.CleanupInterval = d }
}

// WithExecutorWidth overrides the serializer's parallel executor width.
func WithExecutorWidth(n int) RuntimeOption {
	return func(c *RuntimeConfig) { c.ExecutorWidth = n }
}

// WithTraceEnabled turns on pre/post invoke listener notifications.
func WithTraceEnabled(enabled bool) RuntimeOption {
	return func(c *RuntimeConfig) { c.TraceEnabled = enabled }
}

// WithClock overrides the runtime's time source, primarily for tests.
func WithClock(clock Clock) RuntimeOption {
	return func(c *RuntimeConfig) { c.Clock = clock }
}

// WithMessenger sets the wire-transport collaborator.
func WithMessenger(m Messenger) RuntimeOption {
	return func(c *RuntimeConfig) { c.Messenger = m }
}

// WithLocator sets the cluster-placement collaborator.
func WithLocator(l Locator) RuntimeOption {
	return func(c *RuntimeConfig) { c.Locator = l }
}

// WithStorageProvider appends a durable-state collaborator. The first
// registered provider is the one instantiate() consults for readState.
func WithStorageProvider(s StorageProvider) RuntimeOption {
	return func(c *RuntimeConfig) { c.Storage = append(c.Storage, s) }
}

// WithLifetimeProvider appends a LifecycleOrchestrator hook provider, run
// in registration order.
func WithLifetimeProvider(p LifetimeProvider) RuntimeOption {
	return func(c *RuntimeConfig) { c.Providers = append(c.Providers, p) }
}

// WithInvokeListener appends an outbound trace listener.
func WithInvokeListener(l InvokeListenerProvider) RuntimeOption {
	return func(c *RuntimeConfig) { c.InvokeListeners = append(c.InvokeListeners, l) }
}

// WithInvokeHook installs an InvokeHookProvider that takes over outbound
// invocation entirely.
func WithInvokeHook(h InvokeHookProvider) RuntimeOption {
	return func(c *RuntimeConfig) { c.InvokeHook = h }
}

// WithReminderController sets the well-known reminder-controller stub.
func WithReminderController(rc ReminderController) RuntimeOption {
	return func(c *RuntimeConfig) { c.ReminderController = rc }
}

// WithFactoryProvider appends a FactoryProvider consulted at start() to
// seed the InterfaceRegistry.
func WithFactoryProvider(fp FactoryProvider) RuntimeOption {
	return func(c *RuntimeConfig) { c.FactoryProviders = append(c.FactoryProviders, fp) }
}

// defaultRuntimeConfig returns a RuntimeConfig seeded with every default.
func defaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Name:            "vactor",
		MaxQueueSize:    defaultMaxQueueSize,
		IdleTTL:         defaultIdleTTL,
		CleanupInterval: defaultCleanupInterval,
		ExecutorWidth:   defaultExecutorWidth,
		Clock:           SystemClock,
	}
}
