package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/worldcore/internal/config"
	"github.com/zeusync/worldcore/sdk/go/client"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		sub   client.Subscription
		count int
		url   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream snapshots from a running observer feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if len(sub.Components) == 0 {
				return errors.New("at least one --component is required")
			}
			ccfg := client.DefaultClientConfig()
			ccfg.ServerURL = url
			if ccfg.ServerURL == "" {
				ccfg.ServerURL = "http://" + cfg.Observer.Addr
			}
			ccfg.Token = cfg.Observer.Token

			c := client.NewClient(ccfg)
			ctx := cmd.Context()
			if err = c.Connect(ctx); err != nil {
				return err
			}
			defer c.Close()

			snaps := make(chan client.Snapshot, 16)
			c.OnSnapshot(func(s client.Snapshot) {
				select {
				case snaps <- s:
				default:
				}
			})
			if err = c.Subscribe(ctx, sub); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case s := <-snaps:
					if err = enc.Encode(s); err != nil {
						return err
					}
				case <-c.Done():
					return fmt.Errorf("observer closed the connection")
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sub.Components, "component", nil, "component to project (repeatable)")
	cmd.Flags().StringSliceVar(&sub.Include, "include", nil, "additional required component")
	cmd.Flags().StringSliceVar(&sub.Exclude, "exclude", nil, "excluded component")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many snapshots")
	cmd.Flags().StringVar(&url, "url", "", "observer base url (default http://<observer.addr>)")
	return cmd
}
