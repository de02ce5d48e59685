package utils

// PartitionMap splits [0, MaxIndex) into ParallelDegree contiguous buckets
// whose sizes differ by at most one. Buckets past MaxIndex are empty.
// Matrix rows and the edge and face lists of a sub-domain are shared among
// the ranks of a world this way.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // [begin, end) of every bucket
}

func NewPartitionMap(parallelDegree, maxIndex int) (pm *PartitionMap) {
	if parallelDegree < 1 {
		parallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: parallelDegree,
		Partitions:     make([][2]int, parallelDegree),
	}
	for bn := range pm.Partitions {
		pm.Partitions[bn] = pm.split(bn)
	}
	return
}

// split returns bucket bn, the first MaxIndex % ParallelDegree buckets take
// one extra item.
func (pm *PartitionMap) split(bn int) (bucket [2]int) {
	var (
		size      = pm.MaxIndex / pm.ParallelDegree
		remainder = pm.MaxIndex % pm.ParallelDegree
	)
	bucket[0] = bn*size + min(bn, remainder)
	bucket[1] = bucket[0] + size
	if bn < remainder {
		bucket[1]++
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bn int) (kMin, kMax int) {
	return pm.Partitions[bn][0], pm.Partitions[bn][1]
}

func (pm *PartitionMap) GetBucketDimension(bn int) int {
	kMin, kMax := pm.GetBucketRange(bn)
	return kMax - kMin
}
