package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/anime-shed/heatmap-inspector/internal/config"
	"github.com/anime-shed/heatmap-inspector/internal/container"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
	"github.com/anime-shed/heatmap-inspector/internal/logger"
	"github.com/anime-shed/heatmap-inspector/internal/service"
)

const (
	// Flags.
	flagDebug     = "debug"
	flagPlace     = "place"
	flagDate      = "date"
	flagLegend    = "legend"
	flagPreset    = "preset"
	flagTable     = "table"
	flagStore     = "store"
	flagSQLite    = "sqlite"
	flagUploads   = "uploads"
	flagParallel  = "parallel"
	flagStripRows = "strip-rows"
)

func newApp() *cli.App {
	storeFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    flagStore,
			Usage:   "result backend: xlsx or sqlite",
			EnvVars: []string{"RESULT_STORE"},
			Value:   config.StoreXLSX,
		},
		&cli.StringFlag{
			Name:    flagTable,
			Usage:   "append results to `FILE` (xlsx backend)",
			EnvVars: []string{"RESULT_TABLE"},
			Value:   "no2_concentration_data.xlsx",
		},
		&cli.StringFlag{
			Name:    flagSQLite,
			Usage:   "SQLite database `FILE` (sqlite backend)",
			EnvVars: []string{"SQLITE_PATH"},
			Value:   "no2_concentration_data.db",
		},
	}
	legendFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    flagLegend,
			Usage:   "load the legend from a YAML `FILE`",
			EnvVars: []string{"LEGEND_FILE"},
		},
		&cli.StringFlag{
			Name:    flagPreset,
			Usage:   "built-in legend: " + strings.Join(legend.PresetNames(), ", "),
			EnvVars: []string{"LEGEND_PRESET"},
			Value:   "no2",
		},
	}

	return &cli.App{
		Name:  "heatmap-inspect",
		Usage: "estimate average pollutant concentration from a color-coded heatmap",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel("debug")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "analyze a heatmap file or URL and append the average to the result table",
				ArgsUsage: "<image file or URL>",
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:  flagPlace,
						Usage: "place name recorded with the result",
						Value: "Unknown",
					},
					&cli.StringFlag{
						Name:  flagDate,
						Usage: "as-of date (YYYY-MM-DD), defaults to today",
					},
					&cli.StringFlag{
						Name:    flagUploads,
						Usage:   "write the annotated copy to `DIR`",
						EnvVars: []string{"UPLOAD_DIR"},
						Value:   "uploads",
					},
					&cli.BoolFlag{
						Name:  flagParallel,
						Usage: "classify horizontal strips in parallel",
					},
					&cli.IntFlag{
						Name:  flagStripRows,
						Usage: "rows per strip in parallel mode",
						Value: 64,
					},
				}, storeFlags...), legendFlags...),
				Action: analyzeAction,
			},
			{
				Name:   "results",
				Usage:  "print every stored result",
				Flags:  append(append([]cli.Flag{}, storeFlags...), legendFlags...),
				Action: resultsAction,
			},
			{
				Name:   "legend",
				Usage:  "print the reference colors of a legend",
				Flags:  legendFlags,
				Action: legendAction,
			},
		},
	}
}

// buildContainer assembles the same dependency graph as the server, with
// synchronous events so nothing is lost when the process exits.
func buildContainer(c *cli.Context) (*container.Container, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	cfg.ResultStore = strings.ToLower(c.String(flagStore))
	cfg.ResultTable = c.String(flagTable)
	cfg.SQLitePath = c.String(flagSQLite)
	cfg.LegendFile = c.String(flagLegend)
	cfg.LegendPreset = c.String(flagPreset)
	if dir := c.String(flagUploads); dir != "" {
		cfg.UploadDir = dir
	}
	if c.Bool(flagParallel) {
		cfg.ParallelAnalysis = true
	}
	if rows := c.Int(flagStripRows); rows > 0 {
		cfg.StripRows = rows
	}
	cfg.MetricsEnabled = false

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return container.NewContainerWithConfig(cfg, container.WithSyncEvents())
}

func analyzeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("analyze expects exactly one image file or URL", 2)
	}
	source := c.Args().First()

	ctr, err := buildContainer(c)
	if err != nil {
		return err
	}
	defer ctr.Close()

	req := service.InspectRequest{
		PlaceName: c.String(flagPlace),
		Date:      c.String(flagDate),
		Parallel:  c.Bool(flagParallel),
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req.URL = source
	} else {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		req.Body = f
		req.Filename = filepath.Base(source)
	}

	ctx, cancel := context.WithTimeout(c.Context, ctr.Config().RequestTimeout)
	defer cancel()

	result, err := ctr.Service().Inspect(ctx, req)
	if err != nil {
		return err
	}

	lg := ctr.Legend()
	fmt.Fprintf(c.App.Writer, "Average %s concentration at %s on %s: %.2f %s\n",
		lg.Symbol(), result.PlaceName, result.AsOfDate, result.AverageConcentration, lg.Unit())
	fmt.Fprintf(c.App.Writer, "Annotated image: %s\n",
		filepath.Join(ctr.Config().UploadDir, filepath.Base(result.AnnotatedImageURL)))
	return nil
}

func resultsAction(c *cli.Context) error {
	ctr, err := buildContainer(c)
	if err != nil {
		return err
	}
	defer ctr.Close()

	results, err := ctr.Service().ListResults(c.Context)
	if err != nil {
		return err
	}

	lg := ctr.Legend()
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PLACE\tDATE\tAVERAGE %s (%s)\n", lg.Symbol(), lg.Unit())
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", r.PlaceName, r.AsOfDate, r.AverageConcentration)
	}
	return w.Flush()
}

func legendAction(c *cli.Context) error {
	lg, err := legend.Resolve(c.String(flagLegend), c.String(flagPreset))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "LABEL\tCOLOR\t%s (%s)\n", lg.Symbol(), lg.Unit())
	for _, e := range lg.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%g\n", e.Label, e.Color.Hex(), e.Concentration)
	}
	return w.Flush()
}
