package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CalculateMeanOfPointCloud returns the spatial average center of a given point cloud.
func CalculateMeanOfPointCloud(cloud PointCloud) r3.Vector {
	if cloud.Size() == 0 {
		return r3.Vector{}
	}
	return cloud.MetaData().TotalSum().Mul(1. / float64(cloud.Size()))
}

// ScaleAboutCentroid returns a new cloud with every point scaled by a uniform
// factor about the cloud's own centroid. Scaling about the centroid rather
// than the origin keeps the scale step from smuggling in a translation.
func ScaleAboutCentroid(cloud PointCloud, factor float64) (PointCloud, error) {
	if factor <= 0 {
		return nil, errors.Errorf("scale factor must be positive, got %f", factor)
	}
	centroid := CalculateMeanOfPointCloud(cloud)
	scaled := NewWithPrealloc(cloud.Size())
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		q := p.Sub(centroid).Mul(factor).Add(centroid)
		err = scaled.Set(q, d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return scaled, nil
}

// TransformPointCloud applies a 4x4 homogeneous transform to every point of
// the cloud and returns the result as a new cloud. Point data rides along
// unchanged.
func TransformPointCloud(cloud PointCloud, tf mat.Matrix) (PointCloud, error) {
	r, c := tf.Dims()
	if r != 4 || c != 4 {
		return nil, errors.Errorf("expected a 4x4 transform matrix, got %dx%d", r, c)
	}
	out := NewWithPrealloc(cloud.Size())
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		q := TransformPoint(p, tf)
		err = out.Set(q, d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransformPoint applies a 4x4 homogeneous transform to a single point.
func TransformPoint(p r3.Vector, tf mat.Matrix) r3.Vector {
	return r3.Vector{
		X: tf.At(0, 0)*p.X + tf.At(0, 1)*p.Y + tf.At(0, 2)*p.Z + tf.At(0, 3),
		Y: tf.At(1, 0)*p.X + tf.At(1, 1)*p.Y + tf.At(1, 2)*p.Z + tf.At(1, 3),
		Z: tf.At(2, 0)*p.X + tf.At(2, 1)*p.Y + tf.At(2, 2)*p.Z + tf.At(2, 3),
	}
}

// CloudContains returns true if the cloud has a point at the given position.
func CloudContains(cloud PointCloud, x, y, z float64) bool {
	_, got := cloud.At(x, y, z)
	return got
}
