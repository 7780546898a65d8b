package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// A Voxel is a cube cell of a regular 3D grid laid over a point cloud. Binning
// points by voxel and collapsing each bin to its centroid is how clouds are
// decimated before registration: nearest-neighbor search cost grows at least
// linearly with point count, so the iterative stage runs on the reduced cloud.

// ErrInvalidVoxelSize is returned when a voxel grid is requested with a
// non-positive leaf size.
var ErrInvalidVoxelSize = errors.New("voxel size must be greater than zero")

// VoxelCoords stores voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// GetVoxelCoordinates computes the voxel coordinates of a point, given the
// minimum corner of the grid and the voxel edge size.
func GetVoxelCoordinates(pt, ptMin r3.Vector, voxelSize float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor((pt.X - ptMin.X) / voxelSize)),
		J: int64(math.Floor((pt.Y - ptMin.Y) / voxelSize)),
		K: int64(math.Floor((pt.Z - ptMin.Z) / voxelSize)),
	}
}

// Voxel stores the points falling inside one grid cell.
type Voxel struct {
	Key    VoxelCoords
	Points []r3.Vector
	Center r3.Vector
}

// ComputeCenter computes the barycenter of the points in the voxel.
func (v *Voxel) ComputeCenter() {
	center := r3.Vector{}
	for _, pt := range v.Points {
		center = center.Add(pt)
	}
	center = center.Mul(1. / float64(len(v.Points)))
	v.Center = center
}

// VoxelGrid contains the sparse grid of voxels of a point cloud.
type VoxelGrid struct {
	Voxels    map[VoxelCoords]*Voxel
	voxelSize float64
	ptMin     r3.Vector
}

// VoxelSize returns the voxel edge size of the grid.
func (vg *VoxelGrid) VoxelSize() float64 {
	return vg.voxelSize
}

// NewVoxelGridFromPointCloud creates and fills a VoxelGrid from a point cloud.
// Every point maps to exactly one voxel via floor division of its coordinates,
// taken relative to the minimum corner of the cloud's bounding box.
func NewVoxelGridFromPointCloud(pc PointCloud, voxelSize float64) (*VoxelGrid, error) {
	if voxelSize <= 0 {
		return nil, ErrInvalidVoxelSize
	}
	meta := pc.MetaData()
	ptMin := r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}

	vg := &VoxelGrid{
		Voxels:    make(map[VoxelCoords]*Voxel),
		voxelSize: voxelSize,
		ptMin:     ptMin,
	}
	pc.Iterate(0, 0, func(pt r3.Vector, d Data) bool {
		coords := GetVoxelCoordinates(pt, ptMin, voxelSize)
		vox, ok := vg.Voxels[coords]
		if !ok {
			vg.Voxels[coords] = &Voxel{Key: coords, Points: []r3.Vector{pt}}
		} else {
			vox.Points = append(vox.Points, pt)
		}
		return true
	})
	for _, vox := range vg.Voxels {
		vox.ComputeCenter()
	}
	return vg, nil
}

// ToCentroidCloud converts the voxel grid to a point cloud containing one
// point per occupied voxel, at the barycenter of the points that fell in it.
// Point ordering follows the grid, not the input cloud.
func (vg *VoxelGrid) ToCentroidCloud() (PointCloud, error) {
	pc := NewWithPrealloc(len(vg.Voxels))
	for _, vox := range vg.Voxels {
		if err := pc.Set(vox.Center, NewBasicData()); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// VoxelDownsample bins the cloud into a grid of cubes with edge voxelSize and
// returns a new cloud with one centroid point per occupied voxel. The output
// never has more points than the input.
func VoxelDownsample(pc PointCloud, voxelSize float64) (PointCloud, error) {
	vg, err := NewVoxelGridFromPointCloud(pc, voxelSize)
	if err != nil {
		return nil, err
	}
	return vg.ToCentroidCloud()
}
