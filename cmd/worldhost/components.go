package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldcore/internal/core/registry"
)

type componentRow struct {
	Index       uint32 `yaml:"index"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

func newComponentsCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "components",
		Short: "List the registered components and the schema fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := opts.build()
			if err != nil {
				return err
			}
			defer cleanup()
			return printComponents(cmd.OutOrStdout(), app.World.Registry, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table or yaml")
	return cmd
}

func printComponents(w io.Writer, reg *registry.Registry, format string) error {
	comps := reg.Components()
	rows := make([]componentRow, 0, len(comps))
	for _, c := range comps {
		rows = append(rows, componentRow{
			Index:       uint32(c.Index),
			Name:        c.Name,
			Type:        c.Type.String(),
			Description: c.Description,
		})
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(struct {
			Fingerprint string         `yaml:"fingerprint"`
			Components  []componentRow `yaml:"components"`
		}{fmt.Sprintf("%016x", reg.Fingerprint()), rows})
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tNAME\tTYPE\tDESCRIPTION")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Index, r.Name, r.Type, r.Description)
		}
		fmt.Fprintf(tw, "\nfingerprint %016x\n", reg.Fingerprint())
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
