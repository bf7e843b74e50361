package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/yourusername/stock-insights/internal/models"
)

func renderSnapshot(w io.Writer, snapshot *models.DashboardSnapshot) {
	if snapshot == nil || snapshot.Result == nil {
		fmt.Fprintln(w, "No data")
		return
	}
	result := snapshot.Result

	fmt.Fprintf(w, "Snapshot %s (%d events, computed %s)\n\n",
		snapshot.ID, snapshot.EventCount, snapshot.ComputedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintf(w, "  Predicted products:  %d\n", result.Metrics.TotalPredictedProducts)
	fmt.Fprintf(w, "  Estimated revenue:   $%s\n", result.Metrics.EstimatedRevenue)
	fmt.Fprintf(w, "  Low stock:           %d\n", result.Metrics.LowStockCount)
	fmt.Fprintf(w, "  High stock:          %d\n", result.Metrics.HighStockCount)

	fmt.Fprintln(w, "\nTop stocks:")
	if len(result.TopStocks) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, s := range result.TopStocks {
		fmt.Fprintf(w, "  %d. %-30s %s\n", i+1, s.Name, formatStock(s.Value))
	}

	fmt.Fprintln(w, "\nRecent predictions:")
	if len(result.RecentFeed) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, ev := range result.RecentFeed {
		date := ev.PredictionDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(w, "  %-30s %-10s %s\n", ev.DisplayName(), formatStock(ev.StockValue()), date)
	}
}

func renderHistory(w io.Writer, summaries []models.SnapshotSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No snapshots recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %8s  %8s  %12s  %5s  %5s\n", "ID", "COMPUTED", "EVENTS", "PRODUCTS", "REVENUE", "LOW", "HIGH")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-36s  %-20s  %8d  %8d  %12s  %5d  %5d\n",
			s.ID, s.ComputedAt.Format("2006-01-02 15:04:05"), s.EventCount,
			s.Metrics.TotalPredictedProducts, "$"+s.Metrics.EstimatedRevenue,
			s.Metrics.LowStockCount, s.Metrics.HighStockCount)
	}
}

func formatStock(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
