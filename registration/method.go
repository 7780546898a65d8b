// Package registration estimates the rigid-plus-scale transform that
// superimposes a moving source point cloud onto a fixed target point cloud.
//
// The engine runs an iterative-closest-point family algorithm (plain ICP,
// Generalized ICP or point-to-plane ICP) over voxel-downsampled copies of the
// clouds and returns a 4x4 homogeneous transform to apply to the
// full-resolution source.
package registration

import (
	"strings"

	"github.com/pkg/errors"
)

// Method selects the correspondence error the alignment engine minimizes.
type Method int

const (
	// MethodGICP is Generalized ICP: point-to-point error weighted by the
	// Mahalanobis term of the local surface covariances. The default.
	MethodGICP Method = iota
	// MethodICP is plain point-to-point ICP.
	MethodICP
	// MethodPlaneICP is point-to-plane ICP against estimated target normals.
	MethodPlaneICP
)

func (m Method) String() string {
	switch m {
	case MethodGICP:
		return "GICP"
	case MethodICP:
		return "ICP"
	case MethodPlaneICP:
		return "PlaneICP"
	default:
		return "Unknown"
	}
}

// Methods lists the supported alignment methods.
func Methods() []Method {
	return []Method{MethodGICP, MethodICP, MethodPlaneICP}
}

// ParseMethod resolves a method from its name, case insensitively.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "gicp":
		return MethodGICP, nil
	case "icp":
		return MethodICP, nil
	case "planeicp", "plane-icp", "plane_icp":
		return MethodPlaneICP, nil
	default:
		return MethodGICP, errors.Errorf("unknown alignment method %q (want one of GICP, ICP, PlaneICP)", name)
	}
}
