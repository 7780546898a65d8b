package registration

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/cloudalign/pointcloud"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultVoxelSize     = 0.1
	DefaultMaxIterations = 60
	DefaultTolerance     = 1e-6
)

// Sentinel configuration errors.
var (
	ErrInvalidMeasurement = errors.New("measurement must be greater than zero")
	ErrInvalidScaleRatio  = errors.New("scale ratio must be greater than zero")
)

// Config carries the scalar parameters of a registration run. It is built
// once from external input and read-only afterwards.
type Config struct {
	// Method is the alignment variant to run.
	Method Method

	// VoxelSize is the leaf size of the downsampling grid, in source units.
	VoxelSize float64

	// ScaleRatio is an explicit target/source scale. When left at 1, the
	// ratio is derived from the two measurements instead.
	ScaleRatio float64

	// SourceMeasurement and TargetMeasurement are the same physical
	// measurement taken on each model, in a shared unit. Their ratio scales
	// the source cloud before alignment.
	SourceMeasurement float64
	TargetMeasurement float64

	// MaxIterations caps the iteration loop.
	MaxIterations int

	// Tolerance is the relative change in mean-square correspondence error
	// under which the engine declares convergence.
	Tolerance float64

	// MaxCorrespondenceDistance rejects correspondences farther apart than
	// this, in source units. Zero means no rejection.
	MaxCorrespondenceDistance float64
}

// DefaultConfig returns the configuration matching the CLI defaults: GICP,
// voxel size 0.1, unit scale.
func DefaultConfig() *Config {
	return &Config{
		Method:            MethodGICP,
		VoxelSize:         DefaultVoxelSize,
		ScaleRatio:        1,
		SourceMeasurement: 1,
		TargetMeasurement: 1,
		MaxIterations:     DefaultMaxIterations,
		Tolerance:         DefaultTolerance,
	}
}

// Validate checks the configuration and fills in defaults for unset
// iteration controls.
func (cfg *Config) Validate() error {
	if cfg.VoxelSize <= 0 {
		return pointcloud.ErrInvalidVoxelSize
	}
	if cfg.ScaleRatio <= 0 {
		return ErrInvalidScaleRatio
	}
	if cfg.SourceMeasurement <= 0 || cfg.TargetMeasurement <= 0 {
		return ErrInvalidMeasurement
	}
	if cfg.MaxCorrespondenceDistance < 0 {
		return errors.New("max correspondence distance cannot be negative")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return nil
}

// ResolveScale turns an explicit ratio or a pair of measurements into the
// single scalar applied to the source cloud. An explicit non-unit ratio takes
// precedence; otherwise the ratio is targetMeasurement / sourceMeasurement.
func ResolveScale(explicitRatio, sourceMeasurement, targetMeasurement float64) (float64, error) {
	if explicitRatio <= 0 {
		return 0, ErrInvalidScaleRatio
	}
	if explicitRatio != 1 {
		return explicitRatio, nil
	}
	if sourceMeasurement < minMeasurement || math.IsNaN(sourceMeasurement) {
		return 0, ErrInvalidMeasurement
	}
	if targetMeasurement < minMeasurement || math.IsNaN(targetMeasurement) {
		return 0, ErrInvalidMeasurement
	}
	return targetMeasurement / sourceMeasurement, nil
}

// minMeasurement guards the division in ResolveScale against zero and
// near-zero source measurements.
const minMeasurement = 1e-12
