package analysis

import (
	"math"
	"sort"
)

const kmeansMaxIter = 100

// kmeans1D clusters values into k groups and returns each value's cluster.
// Clusters are numbered by descending centroid, so cluster 0 holds the
// largest values. Initial centroids are spread evenly over the sorted
// values, which makes the result deterministic.
func kmeans1D(values []float64, k int) []int {
	n := len(values)
	assign := make([]int, n)
	if n == 0 || k <= 0 {
		return assign
	}
	k = min(k, n)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	centroids := make([]float64, k)
	for c := range centroids {
		pos := 0
		if k > 1 {
			pos = c * (n - 1) / (k - 1)
		}
		centroids[c] = sorted[pos]
	}

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := iter == 0
		for i, v := range values {
			best, bestDist := 0, math.Inf(1)
			for c, cv := range centroids {
				if d := math.Abs(v - cv); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, v := range values {
			sums[assign[i]] += v
			counts[assign[i]]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = sums[c] / float64(counts[c])
			}
		}
	}

	// Renumber so that cluster 0 has the largest centroid.
	order := make([]int, k)
	for c := range order {
		order[c] = c
	}
	sort.SliceStable(order, func(a, b int) bool { return centroids[order[a]] > centroids[order[b]] })
	rank := make([]int, k)
	for r, c := range order {
		rank[c] = r
	}
	for i := range assign {
		assign[i] = rank[assign[i]]
	}
	return assign
}
