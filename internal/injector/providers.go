package injector

import (
	"fmt"

	"github.com/google/wire"

	"github.com/zeusync/worldcore/internal/config"
	"github.com/zeusync/worldcore/internal/core/assets"
	"github.com/zeusync/worldcore/internal/core/events/bus"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/registry"
	"github.com/zeusync/worldcore/internal/core/spatial"
	"github.com/zeusync/worldcore/internal/core/store"
	"github.com/zeusync/worldcore/internal/core/systems/physics"
	"github.com/zeusync/worldcore/internal/host"
	"github.com/zeusync/worldcore/internal/runtime"
	"github.com/zeusync/worldcore/internal/server"
)

// Manifests are applied after the configured manifest files, e.g. the ones
// embedded in built-in guests.
type Manifests []*registry.Manifest

// App is the assembled host.
type App struct {
	Config   config.Config
	Log      log.Log
	World    *host.World
	Runtime  *runtime.Runtime
	Observer *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideGrid,
	ProvideStore,
	ProvideQueries,
	ProvideRaycaster,
	ProvideAssets,
	ProvideBus,
	host.NewWorld,
	ProvideRuntime,
	ProvideObserver,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg config.Config) (log.Log, func(), error) {
	l, err := log.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

// ProvideRegistry registers the core components, then every manifest in
// order, and seals the registry when configured to.
func ProvideRegistry(cfg config.Config, extra Manifests, l log.Log) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(l))
	if err := registry.RegisterCore(reg); err != nil {
		return nil, err
	}

	manifests := make([]*registry.Manifest, 0, len(cfg.Registry.Manifests)+len(extra))
	for _, path := range cfg.Registry.Manifests {
		m, err := registry.LoadManifestFile(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	manifests = append(manifests, extra...)

	for _, m := range manifests {
		indices, err := m.Apply(reg)
		if err != nil {
			return nil, fmt.Errorf("apply manifest %s: %w", m.Package, err)
		}
		l.Info("manifest applied", log.String("package", m.Package), log.Int("components", len(indices)))
	}
	if cfg.Registry.Seal {
		reg.Seal()
	}
	return reg, nil
}

func ProvideGrid(cfg config.Config, reg *registry.Registry) (*spatial.Grid, error) {
	pos, ok := reg.Lookup(registry.Translation)
	if !ok {
		return nil, fmt.Errorf("%s is not registered", registry.Translation)
	}
	radius, ok := reg.Lookup(registry.Radius)
	if !ok {
		return nil, fmt.Errorf("%s is not registered", registry.Radius)
	}
	return spatial.NewGrid(cfg.Spatial, pos, radius), nil
}

func ProvideStore(grid *spatial.Grid, l log.Log) *store.Store {
	return store.New(store.WithAreaIndex(grid), store.WithLogger(l))
}

func ProvideQueries(st *store.Store, l log.Log) *query.Engine {
	return query.NewEngine(st, query.WithLogger(l))
}

func ProvideRaycaster(cfg config.Config, grid *spatial.Grid) *physics.Raycaster {
	return physics.NewRaycaster(grid, cfg.Physics)
}

func ProvideAssets(cfg config.Config) (*assets.Resolver, error) {
	return assets.New(cfg.Assets)
}

func ProvideBus(l log.Log) bus.Bus {
	b := bus.New()
	if l.GetLevel() == log.LevelDebug {
		b.AddObserver(bus.LogObserver{Log: l.Named("bus")})
	}
	return b
}

func ProvideRuntime(w *host.World, cfg config.Config, l log.Log) *runtime.Runtime {
	return runtime.New(w, cfg.Runtime, runtime.WithLogger(l))
}

func ProvideObserver(w *host.World, cfg config.Config, l log.Log) *server.Server {
	observer := cfg.Observer
	if observer.TickEvent == "" {
		observer.TickEvent = runtime.TickEvent
	}
	return server.New(w, observer, server.WithLogger(l))
}
