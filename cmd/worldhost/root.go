package main

import (
	"github.com/spf13/cobra"

	"github.com/zeusync/worldcore/internal/config"
	"github.com/zeusync/worldcore/internal/guests/arena"
	"github.com/zeusync/worldcore/internal/injector"
)

var (
	// Version is set via -ldflags.
	Version = "dev"
)

type rootOptions struct {
	configFile string
	arena      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "worldhost",
		Short:         "Host guest simulation modules over a shared entity store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "yaml config file (WORLDHOST_* env vars override it)")
	root.PersistentFlags().BoolVar(&opts.arena, "arena", true, "load the built-in arena demo module")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newComponentsCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

// build loads the config and assembles the host.
func (o *rootOptions) build() (*injector.App, func(), error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	var manifests injector.Manifests
	if o.arena {
		m, err := arena.Manifest()
		if err != nil {
			return nil, nil, err
		}
		manifests = append(manifests, m)
	}
	return injector.InitializeApp(cfg, manifests)
}
