package registration

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/cloudalign/pointcloud"
	"go.viam.com/cloudalign/timeline"
)

// Registration drives the full pipeline: load both clouds, resolve and apply
// the scale, voxel-downsample, align, and export the transformed
// full-resolution source. Stages run synchronously in that order; the
// recorder wraps each one without affecting control flow.
type Registration struct {
	cfg      *Config
	logger   golog.Logger
	recorder *timeline.Recorder

	source pointcloud.PointCloud
	target pointcloud.PointCloud

	sourcePath string
	targetPath string

	result *Result
}

// New returns a Registration for the given configuration. The recorder may be
// nil to skip stage timing.
func New(cfg *Config, logger golog.Logger, recorder *timeline.Recorder) *Registration {
	return &Registration{cfg: cfg, logger: logger, recorder: recorder}
}

// LoadSourceCloud loads the moving cloud from a file.
func (r *Registration) LoadSourceCloud(path string) error {
	return r.recorder.Record("load source", func() error {
		cloud, err := pointcloud.NewFromFile(path, r.logger)
		if err != nil {
			return err
		}
		r.source = cloud
		r.sourcePath = path
		meta := cloud.MetaData()
		r.logger.Infow("loaded source cloud",
			"path", path,
			"points", cloud.Size(),
			"min", []float64{meta.MinX, meta.MinY, meta.MinZ},
			"max", []float64{meta.MaxX, meta.MaxY, meta.MaxZ},
		)
		return nil
	})
}

// LoadTargetCloud loads the fixed cloud from a file.
func (r *Registration) LoadTargetCloud(path string) error {
	return r.recorder.Record("load target", func() error {
		cloud, err := pointcloud.NewFromFile(path, r.logger)
		if err != nil {
			return err
		}
		r.target = cloud
		r.targetPath = path
		meta := cloud.MetaData()
		r.logger.Infow("loaded target cloud",
			"path", path,
			"points", cloud.Size(),
			"min", []float64{meta.MinX, meta.MinY, meta.MinZ},
			"max", []float64{meta.MaxX, meta.MaxY, meta.MaxZ},
		)
		return nil
	})
}

// Align resolves the scale, downsamples both clouds and runs the alignment
// engine. The returned result's transform is the complete source-to-target
// mapping: the scale step about the source centroid composed with the
// estimated rigid transform, ready to apply to the original source cloud.
func (r *Registration) Align() (*Result, error) {
	if r.source == nil || r.target == nil {
		return nil, errors.New("both clouds must be loaded before aligning")
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	scale, err := ResolveScale(r.cfg.ScaleRatio, r.cfg.SourceMeasurement, r.cfg.TargetMeasurement)
	if err != nil {
		return nil, err
	}

	scaled := r.source
	scaleStep := IdentityTransform()
	if scale != 1 {
		err = r.recorder.Record("rescale", func() error {
			centroid := pointcloud.CalculateMeanOfPointCloud(r.source)
			scaleStep = NewScaleAboutPoint(scale, centroid)
			var serr error
			scaled, serr = pointcloud.ScaleAboutCentroid(r.source, scale)
			return serr
		})
		if err != nil {
			return nil, err
		}
		r.logger.Infow("rescaled source cloud", "scale", scale)
	}

	var srcDown, tgtDown pointcloud.PointCloud
	err = r.recorder.Record("downsample", func() error {
		var derr error
		srcDown, derr = pointcloud.VoxelDownsample(scaled, r.cfg.VoxelSize)
		if derr != nil {
			return derr
		}
		tgtDown, derr = pointcloud.VoxelDownsample(r.target, r.cfg.VoxelSize)
		return derr
	})
	if err != nil {
		return nil, err
	}
	r.logger.Infow("downsampled clouds",
		"voxelSize", r.cfg.VoxelSize,
		"sourcePoints", srcDown.Size(),
		"targetPoints", tgtDown.Size(),
	)

	var result *Result
	err = r.recorder.Record("align", func() error {
		var aerr error
		result, aerr = Align(srcDown, tgtDown, r.cfg, r.logger)
		return aerr
	})
	if err != nil {
		return nil, err
	}

	// fold the scale step in so the transform applies to the unscaled source
	result.Transform = result.Transform.Compose(scaleStep)
	r.result = result
	r.logger.Infow("alignment finished",
		"method", r.cfg.Method.String(),
		"status", result.Status.String(),
		"iterations", result.Iterations,
		"mse", result.MeanSquaredError,
	)
	return result, nil
}

// Result returns the last alignment result, or nil before Align has run.
func (r *Registration) Result() *Result {
	return r.result
}

// ExportTransformed applies the final transform to the original
// full-resolution source cloud (never the downsampled working copy) and
// writes it to outputPath in the format implied by its extension. An empty
// outputPath deliberately skips the export.
func (r *Registration) ExportTransformed(outputPath string) error {
	if outputPath == "" {
		r.logger.Info("no output path given, skipping export")
		return nil
	}
	if r.result == nil {
		return errors.New("nothing to export, align first")
	}
	if !r.result.Valid {
		return errors.New("refusing to export an invalid (diverged) alignment")
	}
	return r.recorder.Record("export", func() error {
		transformed, err := r.result.Transform.ApplyTo(r.source)
		if err != nil {
			return err
		}
		if err := pointcloud.WriteToFile(transformed, outputPath); err != nil {
			return errors.Wrapf(err, "error exporting transformed cloud to %q", outputPath)
		}
		r.logger.Infow("exported transformed cloud", "path", outputPath, "points", transformed.Size())
		return nil
	})
}
