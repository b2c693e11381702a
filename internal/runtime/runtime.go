// Package runtime drives loaded guest modules: it initializes them, calls
// their exec entry point once per tick with the frame event and once per
// delivered message, and isolates instances that fault.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/codec"
	"github.com/zeusync/worldcore/internal/core/events/bus"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/values"
	"github.com/zeusync/worldcore/internal/host"
	"github.com/zeusync/worldcore/pkg/sequence"
	"github.com/zeusync/worldcore/sdk/go/guest"
)

// TickEvent is published on the world bus after every completed tick.
const TickEvent = "core/tick"

var (
	ErrModuleExists  = errors.New("module already loaded")
	ErrUnknownModule = errors.New("unknown module")
	ErrInvalidModule = errors.New("invalid module name")
	ErrInitFailed    = errors.New("module init failed")
)

var _ guest.Imports = (*host.Bindings)(nil)

type Config struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	MemoryLimit  uint32        `yaml:"memory_limit" mapstructure:"memory_limit"`
	InboxLimit   int           `yaml:"inbox_limit" mapstructure:"inbox_limit"`
}

func DefaultConfig() Config {
	return Config{
		TickInterval: 50 * time.Millisecond,
		MemoryLimit:  abi.DefaultConfig().MemoryLimit,
		InboxLimit:   host.DefaultInboxLimit,
	}
}

// Instance is one loaded guest module.
type Instance struct {
	name     string
	inst     *abi.Instance
	bindings *host.Bindings
	exports  *guest.Exports

	fault error
	execs uint64
}

func (i *Instance) Name() string {
	return i.name
}

// Fault is the error that stopped the instance, or nil while it runs.
func (i *Instance) Fault() error {
	return i.fault
}

func (i *Instance) Execs() uint64 {
	return i.execs
}

func (i *Instance) Bindings() *host.Bindings {
	return i.bindings
}

func (i *Instance) ABI() *abi.Instance {
	return i.inst
}

type Option func(*Runtime)

func WithLogger(l log.Log) Option {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithClock replaces the time source used for the exec time argument.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		r.now = now
	}
}

type Runtime struct {
	world *host.World
	cfg   Config
	log   log.Log
	now   func() time.Time

	mu        sync.Mutex
	instances []*Instance
	start     time.Time
	ticks     uint64

	pendingMu sync.Mutex
	pending   *sequence.DueQueue[bus.Message]
}

func New(w *host.World, cfg Config, opts ...Option) *Runtime {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MemoryLimit == 0 {
		cfg.MemoryLimit = def.MemoryLimit
	}
	if cfg.InboxLimit <= 0 {
		cfg.InboxLimit = def.InboxLimit
	}
	r := &Runtime{
		world: w,
		cfg:   cfg,
		log:   log.NewNop(),
		now:   time.Now,

		pending: sequence.NewDueQueue[bus.Message](),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("runtime")
	r.start = r.now()
	return r
}

func (r *Runtime) Config() Config {
	return r.cfg
}

// Load instantiates m under name and runs its Init. An Init that traps
// unloads the module again and returns ErrInitFailed.
func (r *Runtime) Load(name string, m guest.Module) (*Instance, error) {
	if name == "" || m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModule, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(name) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrModuleExists, name)
	}

	acfg := abi.DefaultConfig()
	acfg.MemoryLimit = r.cfg.MemoryLimit
	inst := abi.NewInstance(acfg)
	inbox := host.NewInbox(r.world.Bus, name, r.cfg.InboxLimit, r.log)
	b := host.NewBindings(r.world, inst, name, inbox)
	in := &Instance{
		name:     name,
		inst:     inst,
		bindings: b,
		exports:  guest.Export(guest.New(inst, b), m),
	}

	if err := abi.Catch("init", in.exports.Init); err != nil {
		_ = b.Close()
		r.log.Error("module init failed", log.Module(name), log.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrInitFailed, name, err)
	}
	r.instances = append(r.instances, in)
	r.log.Info("module loaded", log.Module(name), log.Int("subscriptions", len(inbox.Subscriptions())))
	return in, nil
}

// Unload drops the module's query handles and subscriptions.
func (r *Runtime) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.findLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	in := r.instances[i]
	r.instances = append(r.instances[:i], r.instances[i+1:]...)
	r.log.Info("module unloaded", log.Module(name), log.Uint64("execs", in.execs))
	return in.bindings.Close()
}

func (r *Runtime) Instance(name string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.findLocked(name); i >= 0 {
		return r.instances[i], true
	}
	return nil, false
}

// Instances returns the loaded modules in load order.
func (r *Runtime) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

func (r *Runtime) Ticks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func (r *Runtime) findLocked(name string) int {
	for i, in := range r.instances {
		if in.name == name {
			return i
		}
	}
	return -1
}

// Schedule publishes a message on the bus at the start of the tick that is
// after ticks from now. Zero means the next tick.
func (r *Runtime) Schedule(name, source string, data values.ComponentSet, after uint64) {
	due := r.Ticks() + 1 + after
	r.pendingMu.Lock()
	r.pending.Schedule(bus.NewMessage(name, source, data), due)
	r.pendingMu.Unlock()
}

// Pending returns the number of scheduled messages not yet published.
func (r *Runtime) Pending() int {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.pending.Len()
}

// Tick runs one simulation step: due scheduled messages are published, then
// every running instance gets the frame event, then every message queued in
// its inbox, in load order. It returns the number of exec calls made.
func (r *Runtime) Tick() int {
	r.pendingMu.Lock()
	due := r.pending.PopDue(r.Ticks() + 1)
	r.pendingMu.Unlock()
	if len(due) > 0 {
		for i := range due {
			due[i].Time = r.now()
		}
		if err := r.world.Bus.PublishBatch(due...); err != nil {
			r.log.Warn("scheduled messages failed", log.Int("messages", len(due)), log.Error(err))
		}
	}

	r.mu.Lock()
	elapsed := float32(r.now().Sub(r.start).Seconds())
	calls := 0
	for _, in := range r.instances {
		if r.exec(in, elapsed, guest.FrameEvent, nil) {
			calls++
		}
	}
	for _, in := range r.instances {
		for _, msg := range in.bindings.Inbox().Drain() {
			if !r.exec(in, elapsed, msg.Name, msg.Data) {
				break
			}
			calls++
		}
	}
	r.ticks++
	tick := r.ticks
	r.mu.Unlock()

	if err := r.world.Bus.Publish(bus.NewMessage(TickEvent, "runtime", nil)); err != nil {
		r.log.Warn("tick notification failed", log.Uint64("tick", tick), log.Error(err))
	}
	return calls
}

// exec writes the event into guest memory and calls the export. It reports
// whether the call ran to completion.
func (r *Runtime) exec(in *Instance, t float32, name string, data values.ComponentSet) bool {
	if in.fault != nil {
		return false
	}
	enc := codec.NewEncoder(in.inst.Memory(), in.inst)
	np, nn, err := enc.String(name)
	if err != nil {
		r.faulted(in, name, fmt.Errorf("write event name: %w", err))
		return false
	}
	dp, dn, err := enc.ComponentSet(data)
	if err != nil {
		r.faulted(in, name, fmt.Errorf("write event data: %w", err))
		return false
	}

	in.execs++
	err = abi.Catch("exec", func() {
		in.exports.Exec(t, np, nn, dp, dn)
	})
	if err == nil {
		err = in.bindings.Fault()
	}
	if err != nil {
		r.faulted(in, name, err)
		return false
	}
	return true
}

func (r *Runtime) faulted(in *Instance, event string, err error) {
	in.fault = err
	r.log.Error("module stopped",
		log.Module(in.name),
		log.String("event", event),
		log.Bool("violation", abi.IsViolation(err)),
		log.Error(err),
	)
	if cerr := in.bindings.Close(); cerr != nil {
		r.log.Warn("release module state", log.Module(in.name), log.Error(cerr))
	}
}

// Run ticks every TickInterval until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	r.log.Info("runtime started", log.Duration("tick_interval", r.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("runtime stopped", log.Uint64("ticks", r.Ticks()))
			return nil
		case <-ticker.C:
			r.Tick()
		}
	}
}
