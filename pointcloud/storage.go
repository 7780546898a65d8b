package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointAndData is a tiny struct to facilitate returning nearest neighbors in a
// neat way.
type PointAndData struct {
	P r3.Vector
	D Data
}

// storage is the backend for a pointcloud implementation.
type storage interface {
	Size() int
	Set(p r3.Vector, d Data) error
	At(x, y, z float64) (Data, bool)
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage keeps points in insertion order in a slice and uses a position
// index for At lookups. Setting an existing position overwrites its data.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if i, found := ms.indexMap[p]; found {
		ms.points[i].D = d
		return nil
	}
	if len(ms.points) >= int(^uint(0)>>1) {
		return errors.New("cannot add another point to the matrix storage")
	}
	ms.indexMap[p] = uint(len(ms.points))
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	return nil
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	i, found := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !found {
		return nil, false
	}
	return ms.points[i].D, true
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	if numBatches > 0 && myBatch >= numBatches {
		return
	}
	lowerBound := 0
	upperBound := ms.Size()
	if numBatches > 0 {
		batchSize := (ms.Size() + numBatches - 1) / numBatches
		lowerBound = myBatch * batchSize
		upperBound = (myBatch + 1) * batchSize
	}
	if upperBound > ms.Size() {
		upperBound = ms.Size()
	}
	for i := lowerBound; i < upperBound; i++ {
		if !fn(ms.points[i].P, ms.points[i].D) {
			break
		}
	}
}
