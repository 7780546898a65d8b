package pointcloud

import (
	"fmt"
	"image/color"
	"io"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/spf13/cast"
)

// ReadPLY reads an ascii PLY model into a pointcloud. Only the vertex element
// is consumed; faces and other elements are ignored.
func ReadPLY(r io.Reader) (PointCloud, error) {
	ply := goply.New(r)
	vertices := ply.Elements("vertex")
	pc := NewWithPrealloc(len(vertices))
	for _, v := range vertices {
		pos := r3.Vector{
			X: cast.ToFloat64(v["x"]),
			Y: cast.ToFloat64(v["y"]),
			Z: cast.ToFloat64(v["z"]),
		}
		data := NewBasicData()
		_, hasR := v["red"]
		_, hasG := v["green"]
		_, hasB := v["blue"]
		if hasR && hasG && hasB {
			data = NewColoredData(color.NRGBA{
				R: cast.ToUint8(v["red"]),
				G: cast.ToUint8(v["green"]),
				B: cast.ToUint8(v["blue"]),
				A: 255,
			})
		}
		if err := pc.Set(pos, data); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// ToPLY writes the point cloud out as an ascii PLY model.
func ToPLY(cloud PointCloud, out io.Writer) error {
	hasColor := cloud.MetaData().HasColor

	var err error
	if _, err = fmt.Fprintf(out, "ply\nformat ascii 1.0\nelement vertex %d\n", cloud.Size()); err != nil {
		return err
	}
	if _, err = fmt.Fprintf(out, "property float x\nproperty float y\nproperty float z\n"); err != nil {
		return err
	}
	if hasColor {
		if _, err = fmt.Fprintf(out, "property uchar red\nproperty uchar green\nproperty uchar blue\n"); err != nil {
			return err
		}
	}
	if _, err = fmt.Fprintf(out, "end_header\n"); err != nil {
		return err
	}

	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		if hasColor {
			r, g, b := uint8(255), uint8(255), uint8(255)
			if d != nil && d.HasColor() {
				r, g, b = d.RGB255()
			}
			_, lastErr = fmt.Fprintf(out, "%f %f %f %d %d %d\n", pos.X, pos.Y, pos.Z, r, g, b)
		} else {
			_, lastErr = fmt.Fprintf(out, "%f %f %f\n", pos.X, pos.Y, pos.Z)
		}
		return lastErr == nil
	})
	return lastErr
}
