package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/guests/arena"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var ticks, waves, waveEvery int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tick loop and the observer feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := opts.build()
			if err != nil {
				return err
			}
			defer cleanup()

			if opts.arena {
				if _, err = app.Runtime.Load("arena", arena.New(arena.DefaultConfig())); err != nil {
					return err
				}
				if waves > 0 && waveEvery <= 0 {
					return fmt.Errorf("--wave-every must be positive, got %d", waveEvery)
				}
				for i := 1; i <= waves; i++ {
					app.Runtime.Schedule(arena.WaveEvent, "worldhost", nil, uint64(i*waveEvery-1))
				}
				if waves > 0 {
					app.Log.Debug("waves scheduled", log.Int("waves", waves), log.Int("every", waveEvery))
				}
			}

			if ticks > 0 {
				for i := 0; i < ticks; i++ {
					app.Runtime.Tick()
				}
				app.Log.Info("finished",
					log.Int("ticks", ticks),
					log.Int("entities", app.World.Store.Len()),
					log.Int("pending", app.Runtime.Pending()))
				return nil
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return app.Runtime.Run(ctx)
			})
			if app.Config.Observer.Enabled {
				g.Go(func() error {
					return app.Observer.Run(ctx)
				})
			}
			if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 0, "run this many ticks without the observer and exit")
	cmd.Flags().IntVar(&waves, "waves", 3, "number of extra arena waves to schedule")
	cmd.Flags().IntVar(&waveEvery, "wave-every", 600, "ticks between arena waves")
	return cmd
}
