// Package main is the CLI command itself.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cloudalign/registration"
	"go.viam.com/cloudalign/timeline"
)

const (
	// Flags.
	flagSource            = "source"
	flagTarget            = "target"
	flagOutput            = "output"
	flagMethod            = "method"
	flagScaleRatio        = "scale-ratio"
	flagSourceMeasurement = "source-measurement"
	flagTargetMeasurement = "target-measurement"
	flagVoxelSize         = "voxel-size"
	flagTimeline          = "timeline"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:  "cloudalign",
		Usage: "register a moving 3D point cloud onto a fixed one",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     flagSource,
				Aliases:  []string{"s"},
				Required: true,
				Usage:    "path to the source (moving) 3D model",
			},
			&cli.PathFlag{
				Name:     flagTarget,
				Aliases:  []string{"t"},
				Required: true,
				Usage:    "path to the target (fixed) 3D model",
			},
			&cli.PathFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "path to save the transformed source model; omit to only compute the transform",
			},
			&cli.StringFlag{
				Name:    flagMethod,
				Aliases: []string{"m"},
				Value:   registration.MethodGICP.String(),
				Usage:   "alignment method: GICP, ICP or PlaneICP",
			},
			&cli.Float64Flag{
				Name:  flagScaleRatio,
				Value: 1,
				Usage: "scale ratio between the two models (= target size / source size)",
			},
			&cli.Float64Flag{
				Name:  flagSourceMeasurement,
				Value: 1,
				Usage: "measurement made on the source model (same unit as the target measurement)",
			},
			&cli.Float64Flag{
				Name:  flagTargetMeasurement,
				Value: 1,
				Usage: "measurement made on the target model (same unit as the source measurement)",
			},
			&cli.Float64Flag{
				Name:  flagVoxelSize,
				Value: registration.DefaultVoxelSize,
				Usage: "edge size of the voxel grid used to downsample both models before aligning",
			},
			&cli.BoolFlag{
				Name:  flagTimeline,
				Value: true,
				Usage: "print the duration of each stage of the alignment pipeline",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logger = golog.NewDebugLogger("cloudalign")
			} else {
				logger = golog.NewDevelopmentLogger("cloudalign")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return alignAction(c, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func alignAction(c *cli.Context, logger golog.Logger) error {
	method, err := registration.ParseMethod(c.String(flagMethod))
	if err != nil {
		return err
	}
	logger.Infow("alignment method", "method", method.String())

	cfg := registration.DefaultConfig()
	cfg.Method = method
	cfg.VoxelSize = c.Float64(flagVoxelSize)
	cfg.ScaleRatio = c.Float64(flagScaleRatio)
	cfg.SourceMeasurement = c.Float64(flagSourceMeasurement)
	cfg.TargetMeasurement = c.Float64(flagTargetMeasurement)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var recorder *timeline.Recorder
	if c.Bool(flagTimeline) {
		recorder = timeline.New()
	}

	reg := registration.New(cfg, logger, recorder)
	if err := reg.LoadSourceCloud(c.Path(flagSource)); err != nil {
		return errors.Wrap(err, "failed to load source cloud")
	}
	if err := reg.LoadTargetCloud(c.Path(flagTarget)); err != nil {
		return errors.Wrap(err, "failed to load target cloud")
	}

	result, err := reg.Align()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "alignment transform estimated:\n%v\n", result.Transform)
	fmt.Fprintf(c.App.Writer, "rotation:\n%v\n",
		mat.Formatted(result.Transform.Rotation(), mat.Squeeze()))
	tr := result.Transform.Translation()
	fmt.Fprintf(c.App.Writer, "translation: [%f %f %f]\n", tr.X, tr.Y, tr.Z)
	fmt.Fprintf(c.App.Writer, "scale: %f\n", result.Transform.ScaleFactor())

	if !result.Valid {
		return errors.New("registration failed, final transform contains NaN")
	}

	if recorder != nil {
		if _, err := recorder.WriteTo(c.App.Writer); err != nil {
			return err
		}
	}

	return reg.ExportTransformed(c.Path(flagOutput))
}
