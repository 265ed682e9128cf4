package provision

import "github.com/samber/lo"

// Batches parte 1..total en tramos consecutivos de a lo sumo size elementos.
// total o size no positivos => nil.
func Batches(total, size int) [][]int {
	if total <= 0 || size <= 0 {
		return nil
	}
	return lo.Chunk(lo.RangeFrom(1, total), size)
}
