package registration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cloudalign/pointcloud"
)

const (
	// covNeighborhood is how many nearest neighbors feed a local surface
	// covariance or normal estimate.
	covNeighborhood = 10

	// covEpsilon flattens the smallest eigenvalue when regularizing a GICP
	// covariance, modelling points as samples of a locally planar surface.
	covEpsilon = 1e-3
)

// neighborhoodCovariance computes the 3x3 covariance of the k nearest
// neighbors of p. Returns false when the neighborhood is too small for a
// meaningful estimate.
func neighborhoodCovariance(tree *pointcloud.KDTree, p r3.Vector, k int) (*mat.Dense, bool) {
	nbrs := tree.KNearest(p, k)
	if len(nbrs) < 3 {
		return nil, false
	}
	var mean r3.Vector
	for _, n := range nbrs {
		mean = mean.Add(n)
	}
	mean = mean.Mul(1 / float64(len(nbrs)))

	cov := mat.NewDense(3, 3, nil)
	for _, n := range nbrs {
		d := n.Sub(mean)
		v := []float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov.Set(i, j, cov.At(i, j)+v[i]*v[j])
			}
		}
	}
	cov.Scale(1/float64(len(nbrs)), cov)
	return cov, true
}

// regularizeCovariance rebuilds a surface covariance with its singular values
// replaced by (1, 1, covEpsilon), the Generalized-ICP planar model. Returns
// false when the covariance cannot be factorized.
func regularizeCovariance(cov *mat.Dense) (*mat.Dense, bool) {
	var svd mat.SVD
	if !svd.Factorize(cov, mat.SVDFull) {
		return nil, false
	}
	var u mat.Dense
	svd.UTo(&u)

	d := mat.NewDense(3, 3, nil)
	d.Set(0, 0, 1)
	d.Set(1, 1, 1)
	d.Set(2, 2, covEpsilon)

	var tmp, out mat.Dense
	tmp.Mul(&u, d)
	out.Mul(&tmp, u.T())
	return &out, true
}

// normalFromCovariance extracts the surface normal as the direction of least
// variance of a neighborhood covariance.
func normalFromCovariance(cov *mat.Dense) (r3.Vector, bool) {
	var svd mat.SVD
	if !svd.Factorize(cov, mat.SVDFull) {
		return r3.Vector{}, false
	}
	var u mat.Dense
	svd.UTo(&u)
	n := r3.Vector{X: u.At(0, 2), Y: u.At(1, 2), Z: u.At(2, 2)}
	if n.Norm() == 0 {
		return r3.Vector{}, false
	}
	return n.Normalize(), true
}

// surfaceNormals estimates a normal for every point in pts from its
// neighborhood in the tree. Points with degenerate neighborhoods get a zero
// normal and are skipped by the estimators.
func surfaceNormals(tree *pointcloud.KDTree, pts []r3.Vector) []r3.Vector {
	normals := make([]r3.Vector, len(pts))
	for i, p := range pts {
		cov, ok := neighborhoodCovariance(tree, p, covNeighborhood)
		if !ok {
			continue
		}
		if n, ok := normalFromCovariance(cov); ok {
			normals[i] = n
		}
	}
	return normals
}

// surfaceCovariances estimates a regularized GICP covariance for every point
// in pts. Degenerate entries are nil and skipped by the estimator.
func surfaceCovariances(tree *pointcloud.KDTree, pts []r3.Vector) []*mat.Dense {
	covs := make([]*mat.Dense, len(pts))
	for i, p := range pts {
		cov, ok := neighborhoodCovariance(tree, p, covNeighborhood)
		if !ok {
			continue
		}
		if reg, ok := regularizeCovariance(cov); ok {
			covs[i] = reg
		}
	}
	return covs
}
