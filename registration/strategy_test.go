package registration

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func randomPoints(n int, seed int64) []r3.Vector {
	r := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{X: r.Float64() * 2, Y: r.Float64() * 2, Z: r.Float64() * 2}
	}
	return pts
}

func exactCorrespondences(src []r3.Vector, tf *Transform) []Correspondence {
	corrs := make([]Correspondence, len(src))
	for i, p := range src {
		q := tf.Apply(p)
		corrs[i] = Correspondence{
			SourceIndex: i,
			TargetIndex: i,
			Source:      p,
			Target:      q,
			SqDist:      q.Sub(p).Norm2(),
		}
	}
	return corrs
}

func TestPointToPointRecoversKnownMotion(t *testing.T) {
	src := randomPoints(100, 3)
	truth := newSmallMotionTransform(
		r3.Vector{X: 0.1, Y: -0.2, Z: 0.3},
		r3.Vector{X: 1, Y: 2, Z: -0.5},
	)
	corrs := exactCorrespondences(src, truth)

	got, err := pointToPoint{}.EstimateIncremental(corrs, IdentityTransform())
	test.That(t, err, test.ShouldBeNil)
	for _, p := range src {
		want := truth.Apply(p)
		have := got.Apply(p)
		test.That(t, have.Sub(want).Norm(), test.ShouldBeLessThan, 1e-9)
	}
	test.That(t, got.ScaleFactor(), test.ShouldAlmostEqual, 1, 1e-9)
}

func TestPointToPointTooFewCorrespondences(t *testing.T) {
	src := randomPoints(2, 5)
	corrs := exactCorrespondences(src, IdentityTransform())
	_, err := pointToPoint{}.EstimateIncremental(corrs, IdentityTransform())
	test.That(t, err, test.ShouldBeError, ErrNoCorrespondences)
}

func TestPointToPlaneRecoversSmallTranslation(t *testing.T) {
	// three orthogonal faces of a cube corner constrain all six degrees of
	// freedom with planar residuals
	src := cornerPoints()
	truth := newSmallMotionTransform(r3.Vector{}, r3.Vector{X: 0.02, Y: -0.01, Z: 0.015})
	corrs := exactCorrespondences(src, truth)

	normals := make([]r3.Vector, len(src))
	for i, p := range src {
		normals[i] = cornerNormal(p)
	}
	s := &pointToPlane{normals: normals}
	got, err := s.EstimateIncremental(corrs, IdentityTransform())
	test.That(t, err, test.ShouldBeNil)

	tr := got.Translation()
	test.That(t, tr.X, test.ShouldAlmostEqual, 0.02, 1e-6)
	test.That(t, tr.Y, test.ShouldAlmostEqual, -0.01, 1e-6)
	test.That(t, tr.Z, test.ShouldAlmostEqual, 0.015, 1e-6)
}

func TestGeneralizedRecoversSmallTranslation(t *testing.T) {
	src := randomPoints(200, 9)
	truth := newSmallMotionTransform(r3.Vector{}, r3.Vector{X: 0.05, Y: 0.02, Z: -0.03})
	corrs := exactCorrespondences(src, truth)

	// no covariance estimates: every pair falls back to an identity weight
	g := &generalized{
		sourceCovs: nilCovs(len(src)),
		targetCovs: nilCovs(len(src)),
	}
	got, err := g.EstimateIncremental(corrs, IdentityTransform())
	test.That(t, err, test.ShouldBeNil)

	tr := got.Translation()
	test.That(t, tr.X, test.ShouldAlmostEqual, 0.05, 1e-6)
	test.That(t, tr.Y, test.ShouldAlmostEqual, 0.02, 1e-6)
	test.That(t, tr.Z, test.ShouldAlmostEqual, -0.03, 1e-6)
}

func nilCovs(n int) []*mat.Dense {
	return make([]*mat.Dense, n)
}

// cornerPoints samples three orthogonal unit faces meeting at the origin.
func cornerPoints() []r3.Vector {
	var pts []r3.Vector
	for i := 1; i < 10; i++ {
		for j := 1; j < 10; j++ {
			u, v := float64(i)/10, float64(j)/10
			pts = append(pts,
				r3.Vector{X: 0, Y: u, Z: v},
				r3.Vector{X: u, Y: 0, Z: v},
				r3.Vector{X: u, Y: v, Z: 0},
			)
		}
	}
	return pts
}

func cornerNormal(p r3.Vector) r3.Vector {
	switch {
	case p.X == 0:
		return r3.Vector{X: 1}
	case p.Y == 0:
		return r3.Vector{Y: 1}
	default:
		return r3.Vector{Z: 1}
	}
}

func almostIdentity(t *testing.T, tf *Transform, tol float64) {
	t.Helper()
	rot := tf.Rotation()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, math.Abs(rot.At(i, j)-want), test.ShouldBeLessThan, tol)
		}
	}
}
