// Package main is the detectctl command, a terminal client for the detection
// service and the record store.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/app"
	"github.com/kdimtricp/detectsnap/internal/config"
	"github.com/kdimtricp/detectsnap/internal/logging"
	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/pipeline"
	"github.com/kdimtricp/detectsnap/internal/search"
)

const (
	flagDebug   = "debug"
	flagEnvFile = "env-file"
	flagSave    = "save"
	flagClass   = "class"
	flagMinConf = "min-confidence"
	flagLimit   = "limit"
)

var (
	cfg    *config.Config
	logger *zap.SugaredLogger
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "detectctl",
		Usage: "run detections and inspect saved records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnvFile,
				Value: ".env",
				Usage: "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Load(c.String(flagEnvFile))

			level := "warn"
			if c.Bool(flagDebug) {
				level = "debug"
			}
			var err error
			logger, err = logging.NewLogger(level, "")
			return err
		},
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "check that the detection service is reachable",
				Action: HealthAction,
			},
			{
				Name:      "detect",
				Usage:     "run detection on an image",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagSave,
						Usage: "commit the detections as a new record",
					},
				},
				Action: DetectAction,
			},
			{
				Name:  "list",
				Usage: "list saved records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagClass,
						Usage: "only records with a detection of this class",
					},
					&cli.Float64Flag{
						Name:  flagMinConf,
						Usage: "only detections at or above this confidence",
					},
					&cli.IntFlag{
						Name:  flagLimit,
						Usage: "show at most this many records",
					},
				},
				Action: ListAction,
			},
		},
	}
}

func HealthAction(c *cli.Context) error {
	detector, err := app.NewDetector(cfg, logger)
	if err != nil {
		return err
	}
	if err := detector.Health(c.Context); err != nil {
		return errors.Wrapf(err, "detection service at %s is unhealthy", cfg.DetectorURL)
	}
	fmt.Fprintf(c.App.Writer, "detection service at %s is healthy\n", cfg.DetectorURL)
	return nil
}

func DetectAction(c *cli.Context) (err error) {
	if c.Args().Len() != 1 {
		return errors.New("detect takes exactly one image path")
	}
	imagePath, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}

	detector, err := app.NewDetector(cfg, logger)
	if err != nil {
		return err
	}
	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeStore())
	}()

	controller := pipeline.NewController(detector, store, pipeline.WithLogger(logger))
	if c.Bool(flagSave) {
		if err := controller.Initialize(c.Context); err != nil {
			return err
		}
	}

	if err := controller.Acquire(c.Context, pipeline.CaptureResult{URI: imagePath}); err != nil {
		return err
	}

	state := controller.Snapshot()
	printDetections(c, state.Detections)
	if !c.Bool(flagSave) {
		return nil
	}

	record, err := controller.Commit(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved record %s\n", record.ID)
	return nil
}

func ListAction(c *cli.Context) (err error) {
	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeStore())
	}()

	if err := store.Initialize(c.Context); err != nil {
		return err
	}
	records, err := store.List(c.Context)
	if err != nil {
		return err
	}
	records = search.Search(records, search.Query{
		Class:         c.String(flagClass),
		MinConfidence: c.Float64(flagMinConf),
		Limit:         c.Int(flagLimit),
	})

	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "no saved records")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(c.App.Writer, "%s  %s  %s\n", r.ID, r.Date, r.URI)
		for _, d := range r.Preview(3) {
			fmt.Fprintf(c.App.Writer, "    %-16s %.2f\n", d.Class, d.Confidence)
		}
		if extra := len(r.Detections) - 3; extra > 0 {
			fmt.Fprintf(c.App.Writer, "    ... and %d more\n", extra)
		}
	}
	return nil
}

func printDetections(c *cli.Context, detections []models.Detection) {
	if len(detections) == 0 {
		fmt.Fprintln(c.App.Writer, "no objects detected")
		return
	}
	for _, d := range detections {
		fmt.Fprintf(c.App.Writer, "%-16s %.2f  bbox: %s\n", d.Class, d.Confidence, d.BBoxLabel())
	}
}
