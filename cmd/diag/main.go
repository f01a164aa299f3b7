// Command diag performs one fetch of each N2YO query and prints the
// normalized result. It reads the same N2YO_* variables as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kimxines02/AstroNext/internal/countdown"
	"github.com/kimxines02/AstroNext/internal/n2yo"
	"github.com/kimxines02/AstroNext/internal/normalize"
	"github.com/kimxines02/AstroNext/internal/track"
)

func main() {
	satID := flag.Int("sat", 25544, "NORAD id")
	lat := flag.Float64("lat", 14.5995, "observer latitude")
	lng := flag.Float64("lng", 120.9842, "observer longitude")
	days := flag.Int("days", 1, "pass search window in days")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	client, err := n2yo.NewClient(n2yo.Config{
		BaseURL: os.Getenv("N2YO_API_BASE_URL"),
		APIKey:  os.Getenv("N2YO_API_KEY"),
		Timeout: 10 * time.Second,
	}, logger)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := time.Now().UTC()

	for _, kind := range n2yo.Kinds() {
		var req n2yo.Request
		switch kind {
		case n2yo.KindPositions:
			req = n2yo.PositionsRequest(*satID)
		case n2yo.KindVisualPasses:
			req = n2yo.VisualPassesRequest(*satID, *lat, *lng, 0, *days, 90)
		case n2yo.KindAbove:
			req = n2yo.AboveRequest(*lat, *lng, 0, n2yo.DefaultSearchRadius)
		}
		fmt.Printf("== %s\n", req.Kind)
		raw, err := client.Fetch(ctx, req)
		if err != nil {
			fmt.Println("  ERROR fetching:", err)
			continue
		}
		v, err := normalize.Normalize(req.Kind, raw, now)
		if err != nil {
			fmt.Println("  ERROR normalizing:", err)
			continue
		}
		printResult(v, now)
	}
}

func printResult(v any, now time.Time) {
	switch v := v.(type) {
	case track.SatelliteSample:
		fmt.Printf("  %s at %.4f, %.4f (observed %s)\n",
			v.Name, v.Position.Latitude, v.Position.Longitude, v.ObservedAt.Format(time.RFC3339))
		for i, p := range track.Predict(v, track.DefaultSteps, track.DefaultInterval) {
			fmt.Printf("    +%d: %.4f, %.4f\n", i+1, p.Latitude, p.Longitude)
		}
	case []normalize.VisibilityPass:
		for i, p := range v {
			when := countdown.Relative(p.StartTime, now)
			fmt.Printf("  pass %d: start=%s (%s) maxEl=%.1f° dur=%s %s->%s\n",
				i, p.StartTime.Format(time.RFC3339), when, p.MaxElevation,
				countdown.FormatDuration(p.DurationSeconds), p.StartCompass, p.EndCompass)
		}
	case []normalize.AboveSatellite:
		fmt.Printf("  %d satellites overhead\n", len(v))
		for _, s := range v {
			fmt.Printf("    %d %s alt=%.0fkm\n", s.SatID, s.SatName, s.AltitudeKm)
		}
	}
}
