package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zone-mapper/internal/app"
	"zone-mapper/internal/pipeline"
)

// assign <file>: geocode, split and export a family registry.
func assignCmd() *cobra.Command {
	var (
		outputDir string
		owners    [2]pipeline.Owner
	)

	cmd := &cobra.Command{
		Use:   "assign <file>",
		Short: "Assign every family of a CSV or xlsx registry to one of two owners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flags win over the owners listed in the config file.
			for i := range owners {
				if i >= len(cfg.Owners) {
					break
				}
				if owners[i].Name == "" {
					owners[i].Name = cfg.Owners[i].Name
				}
				if owners[i].Address == "" {
					owners[i].Address = cfg.Owners[i].Address
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wire, err := app.NewWire(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer wire.Close()

			out, err := wire.Pipeline.Run(ctx, pipeline.Request{
				InputPath: args[0],
				OutputDir: outputDir,
				Owners:    owners,
			}, nil, func(msg string) {
				log.Info().Msg(msg)
			})
			if err != nil {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				return err
			}

			printSummary(cmd, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: next to the input file)")
	cmd.Flags().StringVar(&owners[0].Name, "owner1-name", "", "name of the zone 1 owner")
	cmd.Flags().StringVar(&owners[0].Address, "owner1-address", "", "address of the zone 1 owner")
	cmd.Flags().StringVar(&owners[1].Name, "owner2-name", "", "name of the zone 2 owner")
	cmd.Flags().StringVar(&owners[1].Address, "owner2-address", "", "address of the zone 2 owner")
	return cmd
}

func printSummary(cmd *cobra.Command, out *pipeline.Output) {
	w := cmd.OutOrStdout()
	s := out.Result.Summary
	owners := out.Result.Owners

	fmt.Fprintf(w, "Families: %d (%d geocoded, %d without coordinates)\n", s.Total, s.Geocoded, s.Ungeocoded)
	fmt.Fprintf(w, "Zone 1 - %s: %d (%.1f%%)\n", owners[0].Name, s.Zone1, s.Zone1Pct)
	fmt.Fprintf(w, "Zone 2 - %s: %d (%.1f%%)\n", owners[1].Name, s.Zone2, s.Zone2Pct)
	if s.Rebalanced {
		fmt.Fprintf(w, "Rebalanced: %d families transferred (natural split %d/%d)\n", s.Transferred, s.NaturalZone1, s.NaturalZone2)
	}
	for _, warning := range out.Result.Warnings {
		fmt.Fprintf(w, "Warning: %v\n", warning)
	}

	kinds := make([]string, 0, len(out.Files))
	for kind := range out.Files {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-4s %s\n", kind, out.Files[kind])
	}
}
