package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/database"
	"github.com/manuchak/detecta-core/internal/location"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/pricing"
)

func quoteCommand() *cobra.Command {
	var km float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a distance under both pricing models",
		Long: "Prints the single-tier and staircase price for a distance. Bands come from\n" +
			"armed_km_rates when DATABASE_URL is set, otherwise the default bands apply.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("km") {
				return fmt.Errorf("--km is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), "warn", "text")

			calc, err := loadCalculator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cmp := calc.Compare(km)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cmp)
			}
			return printComparison(cmd.OutOrStdout(), cmp, calc.UsingFallback())
		},
	}

	cmd.Flags().Float64Var(&km, "km", 0, "Distance in km")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func loadCalculator(ctx context.Context, cfg *config.Config) (*pricing.Calculator, error) {
	var source pricing.BandSource
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		defer db.Close(ctx)
		source = pricing.NewPostgresBandSource(db)
	}
	return pricing.NewProvider(source, cfg.Pricing.MaxKm).Calculator(ctx)
}

func printComparison(w io.Writer, cmp pricing.Comparison, fallback bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Distancia\t%.1f km\n", cmp.Km)
	fmt.Fprintf(tw, "Tarifa única\t%.2f\t(%s @ %.2f/km)\n", cmp.SingleTier.Cost, cmp.SingleTier.Band.Label, cmp.SingleTier.Rate)
	fmt.Fprintf(tw, "Escalonado\t%.2f\n", cmp.Staircase)
	for _, s := range cmp.Segments {
		fmt.Fprintf(tw, "  %s\t%.1f km\t@ %.2f\t= %.2f\n", s.Band.Label, s.Km, s.Band.RatePerKm, s.Subtotal)
	}
	fmt.Fprintf(tw, "Diferencia\t%.2f\n", cmp.Difference)
	if fallback {
		fmt.Fprintln(tw, "(rangos por defecto)")
	}
	return tw.Flush()
}

func matchCommand() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "match INPUT CANDIDATE...",
		Short: "Rank candidate locations by similarity to INPUT",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("--threshold must be between 0 and 1")
			}
			matches := location.FindSimilar(args[0], args[1:], threshold)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Entrada\t%s\n", location.NormalizeText(args[0]))
			if len(matches) == 0 {
				fmt.Fprintln(tw, "Sin coincidencias")
			}
			for _, m := range matches {
				fmt.Fprintf(tw, "%.3f\t%s\n", m.Similarity, m.Location)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", location.DefaultThreshold, "Minimum similarity (0-1)")
	return cmd
}
