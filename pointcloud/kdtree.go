package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTree extends PointCloud with nearest neighbor queries, backed by gonum's
// k-d tree. It is the correspondence-search structure for registration.
type KDTree struct {
	cloud PointCloud
	tree  *kdtree.Tree
}

// ToKDTree converts a PointCloud into a KDTree for fast nearest neighbor
// queries. The tree indexes positions only; the underlying cloud is untouched.
func ToKDTree(pc PointCloud) *KDTree {
	pts := make(kdtree.Points, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		pts = append(pts, kdtree.Point{p.X, p.Y, p.Z})
		return true
	})
	return &KDTree{
		cloud: pc,
		tree:  kdtree.New(pts, false),
	}
}

// Size returns the number of indexed points.
func (kd *KDTree) Size() int {
	return kd.cloud.Size()
}

// Cloud returns the underlying point cloud.
func (kd *KDTree) Cloud() PointCloud {
	return kd.cloud
}

// Nearest returns the closest indexed point to the query along with the
// squared euclidean distance between them. The second return is false iff the
// tree is empty.
func (kd *KDTree) Nearest(p r3.Vector) (r3.Vector, float64, bool) {
	if kd.cloud.Size() == 0 {
		return r3.Vector{}, 0, false
	}
	got, _ := kd.tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
	if got == nil {
		return r3.Vector{}, 0, false
	}
	q := got.(kdtree.Point)
	n := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	return n, n.Sub(p).Norm2(), true
}

// KNearest returns up to k indexed points closest to the query. The query
// point itself is included when it is part of the cloud.
func (kd *KDTree) KNearest(p r3.Vector, k int) []r3.Vector {
	if k <= 0 || kd.cloud.Size() == 0 {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	kd.tree.NearestSet(keep, kdtree.Point{p.X, p.Y, p.Z})
	nbrs := make([]r3.Vector, 0, k)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		q := c.Comparable.(kdtree.Point)
		nbrs = append(nbrs, r3.Vector{X: q[0], Y: q[1], Z: q[2]})
	}
	return nbrs
}
