package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basketwatch/backend/internal/domain"
	"github.com/basketwatch/backend/internal/usecase"
)

var (
	searchUnit       string
	searchLocationID string
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Look up the current price of a product",
	Long: `Search Kroger for a term and print the best match, preferring the
package size closest to --unit.

Examples:
  basketctl search "whole milk" --unit "1 gal"
  basketctl search eggs --unit "12 ct" --location-id 01400943`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		quote, err := app.Search.Search(ctx, usecase.PriceSearchRequest{
			Term:       args[0],
			Unit:       searchUnit,
			LocationID: searchLocationID,
		})
		if errors.Is(err, domain.ErrProductNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No product found for %q\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}

		if searchJSON {
			return writeJSON(cmd.OutOrStdout(), quote)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", quote.Name)
		if quote.Brand != "" {
			fmt.Fprintf(out, "  brand:   %s\n", quote.Brand)
		}
		fmt.Fprintf(out, "  size:    %s\n", quote.Unit)
		fmt.Fprintf(out, "  price:   %s\n", formatCents(quote.PriceCents))
		fmt.Fprintf(out, "  product: %s\n", quote.ProductID)
		fmt.Fprintf(out, "  store:   %s (%s)\n", quote.StoreName, quote.LocationID)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchUnit, "unit", "u", "", "target package size, e.g. \"1 gal\" or \"12 ct\"")
	searchCmd.Flags().StringVar(&searchLocationID, "location-id", "", "Kroger store location id")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the quote as JSON")
	rootCmd.AddCommand(searchCmd)
}
