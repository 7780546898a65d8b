package registration

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/cloudalign/pointcloud"
)

// ErrEmptyCloud is returned when either side of an alignment has no points.
var ErrEmptyCloud = errors.New("cannot align an empty point cloud")

// Status is the terminal state of an alignment run.
type Status int

const (
	// StatusConverged means the error delta fell below the tolerance.
	StatusConverged Status = iota
	// StatusMaxIterationsReached means the iteration budget ran out; the best
	// transform found so far is still returned and usable.
	StatusMaxIterationsReached
	// StatusDiverged means the estimated transform picked up a NaN entry and
	// the run stopped immediately; the result is invalid.
	StatusDiverged
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterationsReached:
		return "max iterations reached"
	case StatusDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// Result is the outcome of an alignment: the cumulative transform, how the
// run ended, and iteration diagnostics. MeanSquaredError is the residual
// correspondence error at the final pose. Valid must be checked before the
// transform is used; a diverged run leaves it false.
type Result struct {
	Transform        *Transform
	Status           Status
	Iterations       int
	MeanSquaredError float64
	Correspondences  int
	Valid            bool
}

// Align runs the configured iterative-closest-point variant until the change
// in mean-square correspondence error drops below the tolerance, the
// iteration budget runs out, or the estimate diverges. The input clouds are
// read-only; iteration happens on an internal working copy of the source.
func Align(source, target pointcloud.PointCloud, cfg *Config, logger golog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source.Size() == 0 || target.Size() == 0 {
		return nil, ErrEmptyCloud
	}

	sourcePts, _ := flattenCloud(source)
	targetPts, targetIndex := flattenCloud(target)
	sourceTree := pointcloud.ToKDTree(source)
	targetTree := pointcloud.ToKDTree(target)

	est, err := newStrategy(cfg.Method, sourcePts, targetPts, sourceTree, targetTree)
	if err != nil {
		return nil, err
	}
	return iterate(est, sourcePts, targetTree, targetIndex, cfg, logger)
}

// iterate runs the correspond-estimate-compose loop shared by every strategy.
func iterate(
	est strategy,
	sourcePts []r3.Vector,
	targetTree *pointcloud.KDTree,
	targetIndex map[r3.Vector]int,
	cfg *Config,
	logger golog.Logger,
) (*Result, error) {
	working := make([]r3.Vector, len(sourcePts))
	copy(working, sourcePts)

	cumulative := IdentityTransform()
	prevMSE := math.Inf(1)
	res := &Result{Status: StatusMaxIterationsReached}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		corrs, mse := findCorrespondences(working, targetTree, targetIndex, cfg.MaxCorrespondenceDistance)
		if len(corrs) == 0 {
			return nil, ErrNoCorrespondences
		}

		incremental, err := est.EstimateIncremental(corrs, cumulative)
		if err != nil {
			return nil, errors.Wrapf(err, "estimation failed at iteration %d", iter)
		}

		cumulative = incremental.Compose(cumulative)
		res.Iterations = iter + 1
		res.MeanSquaredError = mse
		res.Correspondences = len(corrs)

		if incremental.HasNaN() || cumulative.HasNaN() {
			logger.Warnw("alignment diverged, transform contains NaN", "iteration", iter)
			res.Transform = cumulative
			res.Status = StatusDiverged
			res.Valid = false
			return res, nil
		}

		for i, p := range working {
			working[i] = incremental.Apply(p)
		}

		delta := math.Abs(prevMSE - mse)
		if relativeDelta(delta, prevMSE) < cfg.Tolerance {
			res.Status = StatusConverged
			break
		}
		prevMSE = mse

		logger.Debugw("alignment iteration",
			"iteration", iter,
			"correspondences", len(corrs),
			"mse", mse,
		)
	}

	// report the residual at the final pose, not the error measured before
	// the last increment was applied
	if corrs, mse := findCorrespondences(working, targetTree, targetIndex, cfg.MaxCorrespondenceDistance); len(corrs) > 0 {
		res.MeanSquaredError = mse
		res.Correspondences = len(corrs)
	}

	res.Transform = cumulative
	res.Valid = true
	if res.Status == StatusMaxIterationsReached {
		logger.Warnw("alignment did not converge within the iteration budget",
			"iterations", res.Iterations,
			"mse", res.MeanSquaredError,
		)
	}
	return res, nil
}

func relativeDelta(delta, prev float64) float64 {
	if math.IsInf(prev, 1) {
		return math.Inf(1)
	}
	if prev <= 0 {
		return delta
	}
	return delta / prev
}
