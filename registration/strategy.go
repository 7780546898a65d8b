package registration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cloudalign/pointcloud"
)

// ErrNoCorrespondences is returned when an iteration finds no usable pairs at
// all, which means the clouds share no estimable structure.
var ErrNoCorrespondences = errors.New("no valid correspondences between clouds")

// strategy computes the incremental rigid transform minimizing one variant's
// correspondence error. The iterate-and-converge skeleton around it is shared
// by all variants.
type strategy interface {
	// EstimateIncremental computes the incremental transform from this
	// iteration's correspondences. The cumulative transform so far is
	// provided for variants whose per-point statistics move with the source.
	EstimateIncremental(corrs []Correspondence, cumulative *Transform) (*Transform, error)
}

// newStrategy builds the estimation strategy for a method, running whatever
// one-time neighborhood analysis the variant needs.
func newStrategy(
	method Method,
	sourcePts, targetPts []r3.Vector,
	sourceTree, targetTree *pointcloud.KDTree,
) (strategy, error) {
	switch method {
	case MethodICP:
		return pointToPoint{}, nil
	case MethodPlaneICP:
		return &pointToPlane{normals: surfaceNormals(targetTree, targetPts)}, nil
	case MethodGICP:
		return &generalized{
			sourceCovs: surfaceCovariances(sourceTree, sourcePts),
			targetCovs: surfaceCovariances(targetTree, targetPts),
		}, nil
	default:
		return nil, errors.Errorf("no estimation strategy for method %v", method)
	}
}

// pointToPoint is plain ICP: the closed-form least-squares rotation between
// the matched sets (Kabsch), translation from the centroids.
type pointToPoint struct{}

func (pointToPoint) EstimateIncremental(corrs []Correspondence, _ *Transform) (*Transform, error) {
	if len(corrs) < 3 {
		return nil, ErrNoCorrespondences
	}

	var srcCentroid, tgtCentroid r3.Vector
	for _, c := range corrs {
		srcCentroid = srcCentroid.Add(c.Source)
		tgtCentroid = tgtCentroid.Add(c.Target)
	}
	n := float64(len(corrs))
	srcCentroid = srcCentroid.Mul(1 / n)
	tgtCentroid = tgtCentroid.Mul(1 / n)

	h := mat.NewDense(3, 3, nil)
	for _, c := range corrs {
		p := c.Source.Sub(srcCentroid)
		q := c.Target.Sub(tgtCentroid)
		pv := []float64{p.X, p.Y, p.Z}
		qv := []float64{q.X, q.Y, q.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h.Set(i, j, h.At(i, j)+pv[i]*qv[j])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return nil, errors.New("failed to factorize correspondence cross-covariance")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// reflection fix: force det(R) = +1
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := mat.NewDense(3, 3, nil)
	d.Set(0, 0, 1)
	d.Set(1, 1, 1)
	if mat.Det(&vut) < 0 {
		d.Set(2, 2, -1)
	} else {
		d.Set(2, 2, 1)
	}

	var tmp, rot mat.Dense
	tmp.Mul(&v, d)
	rot.Mul(&tmp, u.T())

	rotated := r3.Vector{
		X: rot.At(0, 0)*srcCentroid.X + rot.At(0, 1)*srcCentroid.Y + rot.At(0, 2)*srcCentroid.Z,
		Y: rot.At(1, 0)*srcCentroid.X + rot.At(1, 1)*srcCentroid.Y + rot.At(1, 2)*srcCentroid.Z,
		Z: rot.At(2, 0)*srcCentroid.X + rot.At(2, 1)*srcCentroid.Y + rot.At(2, 2)*srcCentroid.Z,
	}
	return newRigidTransform(&rot, tgtCentroid.Sub(rotated)), nil
}

// pointToPlane minimizes the distance of each source point to the tangent
// plane of its target match, linearized about the current pose.
type pointToPlane struct {
	normals []r3.Vector
}

func (s *pointToPlane) EstimateIncremental(corrs []Correspondence, _ *Transform) (*Transform, error) {
	a := mat.NewDense(6, 6, nil)
	b := mat.NewVecDense(6, nil)
	used := 0
	for _, c := range corrs {
		n := s.normals[c.TargetIndex]
		if n.Norm() == 0 {
			continue
		}
		residual := n.Dot(c.Source.Sub(c.Target))
		cross := c.Source.Cross(n)
		j := []float64{cross.X, cross.Y, cross.Z, n.X, n.Y, n.Z}
		for i := 0; i < 6; i++ {
			for k := 0; k < 6; k++ {
				a.Set(i, k, a.At(i, k)+j[i]*j[k])
			}
			b.SetVec(i, b.AtVec(i)-j[i]*residual)
		}
		used++
	}
	if used < 6 {
		return nil, ErrNoCorrespondences
	}
	return solveSmallMotion(a, b)
}

// generalized is Generalized ICP: point-to-point residuals weighted by the
// inverse of the combined local surface covariances (the Mahalanobis term),
// linearized about the current pose. Source covariances rotate with the
// cumulative transform.
type generalized struct {
	sourceCovs []*mat.Dense
	targetCovs []*mat.Dense
}

func (s *generalized) EstimateIncremental(corrs []Correspondence, cumulative *Transform) (*Transform, error) {
	rot := cumulative.Rotation()

	a := mat.NewDense(6, 6, nil)
	b := mat.NewVecDense(6, nil)
	used := 0
	for _, c := range corrs {
		weight, ok := s.pairWeight(c, rot)
		if !ok {
			// non-invertible combined covariance, drop the pair
			continue
		}

		p := c.Source
		residual := mat.NewVecDense(3, []float64{
			p.X - c.Target.X,
			p.Y - c.Target.Y,
			p.Z - c.Target.Z,
		})
		// d(Rp+t)/d(theta) = -[p]x, d/dt = I
		jac := mat.NewDense(3, 6, []float64{
			0, p.Z, -p.Y, 1, 0, 0,
			-p.Z, 0, p.X, 0, 1, 0,
			p.Y, -p.X, 0, 0, 0, 1,
		})

		var wj mat.Dense
		wj.Mul(weight, jac)
		var jtwj mat.Dense
		jtwj.Mul(jac.T(), &wj)
		a.Add(a, &jtwj)

		var wr mat.VecDense
		wr.MulVec(weight, residual)
		var jtwr mat.VecDense
		jtwr.MulVec(jac.T(), &wr)
		for i := 0; i < 6; i++ {
			b.SetVec(i, b.AtVec(i)-jtwr.AtVec(i))
		}
		used++
	}
	if used < 3 {
		return nil, ErrNoCorrespondences
	}
	return solveSmallMotion(a, b)
}

// pairWeight computes the Mahalanobis weight (Ct + R Cs R^T)^-1 for one pair.
// Pairs without covariance estimates fall back to an identity weight.
func (s *generalized) pairWeight(c Correspondence, rot *mat.Dense) (*mat.Dense, bool) {
	ct := s.targetCovs[c.TargetIndex]
	cs := s.sourceCovs[c.SourceIndex]
	if ct == nil && cs == nil {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), true
	}

	combined := mat.NewDense(3, 3, nil)
	if ct != nil {
		combined.Add(combined, ct)
	}
	if cs != nil {
		var tmp, rotated mat.Dense
		tmp.Mul(rot, cs)
		rotated.Mul(&tmp, rot.T())
		combined.Add(combined, &rotated)
	}

	var weight mat.Dense
	if err := weight.Inverse(combined); err != nil {
		return nil, false
	}
	return &weight, true
}

// solveSmallMotion solves the 6x6 normal equations accumulated by the
// linearized estimators and converts the (rotation vector, translation)
// solution into a transform.
func solveSmallMotion(a *mat.Dense, b *mat.VecDense) (*Transform, error) {
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, errors.Wrap(err, "degenerate normal equations")
	}
	theta := r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	t := r3.Vector{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)}
	return newSmallMotionTransform(theta, t), nil
}
