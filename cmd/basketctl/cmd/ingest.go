package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/basketwatch/backend/internal/usecase"
)

var (
	ingestDebug      bool
	ingestJSON       bool
	ingestLocationID string
	ingestLat        float64
	ingestLon        float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion of the staple basket",
	Long: `Run one ingestion of the staple basket against Kroger and record
price, basket and audit snapshots in the configured database.

Examples:
  basketctl ingest
  basketctl ingest --debug
  basketctl ingest --location-id 01400943
  basketctl ingest --lat 39.10 --lon -84.51`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		req := usecase.RunRequest{
			LocationID: ingestLocationID,
			Debug:      ingestDebug,
		}
		if cmd.Flags().Changed("lat") {
			req.Lat = &ingestLat
		}
		if cmd.Flags().Changed("lon") {
			req.Lon = &ingestLon
		}

		summary, err := app.Ingest.Run(ctx, req)
		if err != nil {
			return err
		}

		if ingestJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDebug, "debug", false, "print per-staple match details")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run summary as JSON")
	ingestCmd.Flags().StringVar(&ingestLocationID, "location-id", "", "Kroger store location id")
	ingestCmd.Flags().Float64Var(&ingestLat, "lat", 0, "latitude used to find the nearest store")
	ingestCmd.Flags().Float64Var(&ingestLon, "lon", 0, "longitude used to find the nearest store")
	rootCmd.AddCommand(ingestCmd)
}

func printSummary(w io.Writer, summary *usecase.RunSummary) {
	fmt.Fprintf(w, "Store:   %s (%s)\n", summary.StoreName, summary.LocationID)
	fmt.Fprintf(w, "Basket:  %d items, %s\n", summary.BasketCount, formatCents(&summary.BasketTotalCents))
	fmt.Fprintf(w, "Time:    %s\n", summary.CapturedAt.Format("2006-01-02 15:04:05 MST"))

	if len(summary.Debug) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAPLE\tSTATUS\tPRICE\tDETAIL")
	for _, row := range summary.Debug {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Label, row.Status, formatCents(row.PriceCents), row.Message)
	}
	tw.Flush()
}

// formatCents renders cents as dollars, or "-" when there is no price
func formatCents(cents *int64) string {
	if cents == nil {
		return "-"
	}
	return "$" + decimal.New(*cents, -2).StringFixed(2)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
