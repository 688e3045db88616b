// Package routing groups visit locations so a professional can work through
// one neighbourhood at a time.
package routing

import (
	"errors"
	"math/rand/v2"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
)

// DefaultMaxIterations caps Lloyd iterations.
const DefaultMaxIterations = 100

var ErrInvalidK = errors.New("routing: k must be between 1 and the number of points")

// Options tunes KMeans. The zero value uses DefaultMaxIterations and seed 0.
type Options struct {
	MaxIterations int
	Seed          uint64
}

// Result is a clustering of the input points. Labels[i] is the cluster of
// points[i]. Clusters are numbered by first appearance in the input, so
// points[0] is always in cluster 0.
type Result struct {
	Labels     []int
	Centroids  []geo.Point
	Counts     []int
	Iterations int
}

// KMeans partitions points into k clusters using k-means++ seeding from a
// fixed seed and haversine distance. Identical inputs and seeds always give
// identical results, including when every point coincides.
func KMeans(points []geo.Point, k int, opts Options) (Result, error) {
	n := len(points)
	if n == 0 && k == 0 {
		return Result{}, nil
	}
	if k < 1 || k > n {
		return Result{}, ErrInvalidK
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	centroids := seedCentroids(points, k, rng)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	iterations := 0
	for iterations < maxIter {
		iterations++
		changed := assign(points, centroids, labels)
		recompute(points, labels, centroids)
		if !changed {
			break
		}
	}
	res := relabel(labels, centroids)
	res.Iterations = iterations
	return res, nil
}

func seedCentroids(points []geo.Point, k int, rng *rand.Rand) []geo.Point {
	n := len(points)
	chosen := make([]bool, n)
	first := rng.IntN(n)
	chosen[first] = true
	centroids := []geo.Point{points[first]}

	weights := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d := nearestDistance(p, centroids)
			weights[i] = d * d
			total += weights[i]
		}
		next := -1
		if total > 0 {
			target := rng.Float64() * total
			for i, w := range weights {
				if w == 0 {
					continue
				}
				next = i
				if target -= w; target <= 0 {
					break
				}
			}
		}
		if next < 0 {
			// Every remaining point sits on a centroid already; take the
			// first unused one so k centroids exist.
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, points[next])
	}
	return centroids
}

func nearestDistance(p geo.Point, centroids []geo.Point) float64 {
	best := geo.Distance(p, centroids[0])
	for _, c := range centroids[1:] {
		if d := geo.Distance(p, c); d < best {
			best = d
		}
	}
	return best
}

// assign moves every point to its nearest centroid, lowest index on ties.
func assign(points, centroids []geo.Point, labels []int) bool {
	changed := false
	for i, p := range points {
		best, bestDist := 0, geo.Distance(p, centroids[0])
		for c := 1; c < len(centroids); c++ {
			if d := geo.Distance(p, centroids[c]); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recompute sets each centroid to its members' mean. A cluster that lost
// all members keeps its previous centroid.
func recompute(points []geo.Point, labels []int, centroids []geo.Point) {
	sums := make([]geo.Point, len(centroids))
	counts := make([]int, len(centroids))
	for i, p := range points {
		c := labels[i]
		sums[c].Lat += p.Lat
		sums[c].Lon += p.Lon
		counts[c]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		centroids[c] = geo.Point{
			Lat: sums[c].Lat / float64(counts[c]),
			Lon: sums[c].Lon / float64(counts[c]),
		}
	}
}

func relabel(labels []int, centroids []geo.Point) Result {
	mapping := make([]int, len(centroids))
	for i := range mapping {
		mapping[i] = -1
	}
	next := 0
	for _, l := range labels {
		if mapping[l] < 0 {
			mapping[l] = next
			next++
		}
	}
	for c := range mapping {
		if mapping[c] < 0 {
			mapping[c] = next
			next++
		}
	}

	res := Result{
		Labels:    make([]int, len(labels)),
		Centroids: make([]geo.Point, len(centroids)),
		Counts:    make([]int, len(centroids)),
	}
	for c, p := range centroids {
		res.Centroids[mapping[c]] = p
	}
	for i, l := range labels {
		res.Labels[i] = mapping[l]
		res.Counts[mapping[l]]++
	}
	return res
}
