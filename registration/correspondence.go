package registration

import (
	"runtime"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/cloudalign/pointcloud"
)

// Correspondence pairs a working source point with its nearest target point
// for one iteration of the engine. Indices refer to the engine's flattened
// point slices so the estimation strategies can look up precomputed
// per-point data.
type Correspondence struct {
	SourceIndex int
	TargetIndex int
	Source      r3.Vector
	Target      r3.Vector
	SqDist      float64
}

// findCorrespondences pairs every working source point with its nearest
// neighbor in the target tree, rejecting pairs farther than maxDist apart
// when maxDist > 0. The search is split across workers; each worker writes a
// disjoint range, so the result is deterministic regardless of parallelism.
// Returns the accepted pairs and their mean squared distance.
func findCorrespondences(
	working []r3.Vector,
	tree *pointcloud.KDTree,
	targetIndex map[r3.Vector]int,
	maxDist float64,
) ([]Correspondence, float64) {
	candidates := make([]Correspondence, len(working))
	maxSqDist := maxDist * maxDist

	numWorkers := runtime.NumCPU()
	if numWorkers > len(working) {
		numWorkers = len(working)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	batchSize := (len(working) + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		lower := w * batchSize
		upper := lower + batchSize
		if upper > len(working) {
			upper = len(working)
		}
		if lower >= upper {
			continue
		}
		wg.Add(1)
		go func(lower, upper int) {
			defer wg.Done()
			for i := lower; i < upper; i++ {
				p := working[i]
				q, sqDist, ok := tree.Nearest(p)
				if !ok || (maxDist > 0 && sqDist > maxSqDist) {
					candidates[i].SourceIndex = -1
					continue
				}
				candidates[i] = Correspondence{
					SourceIndex: i,
					TargetIndex: targetIndex[q],
					Source:      p,
					Target:      q,
					SqDist:      sqDist,
				}
			}
		}(lower, upper)
	}
	wg.Wait()

	corrs := make([]Correspondence, 0, len(candidates))
	var sumSq float64
	for _, c := range candidates {
		if c.SourceIndex < 0 {
			continue
		}
		corrs = append(corrs, c)
		sumSq += c.SqDist
	}
	if len(corrs) == 0 {
		return nil, 0
	}
	return corrs, sumSq / float64(len(corrs))
}

// flattenCloud extracts the positions of a cloud into a slice and returns a
// position-to-index lookup alongside it.
func flattenCloud(pc pointcloud.PointCloud) ([]r3.Vector, map[r3.Vector]int) {
	pts := make([]r3.Vector, 0, pc.Size())
	index := make(map[r3.Vector]int, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		index[p] = len(pts)
		pts = append(pts, p)
		return true
	})
	return pts, index
}
