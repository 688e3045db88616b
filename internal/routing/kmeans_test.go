package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/homevisit-scheduler/internal/geo"
)

var (
	dakar      = geo.Point{Lat: 14.6928, Lon: -17.4467}
	thies      = geo.Point{Lat: 14.7910, Lon: -16.9359}
	saintLouis = geo.Point{Lat: 16.0326, Lon: -16.4818}
)

func TestKMeansSeparatesDistantTowns(t *testing.T) {
	points := []geo.Point{dakar, thies, saintLouis, thies, dakar, saintLouis}

	res, err := KMeans(points, 3, Options{Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 1, 0, 2}, res.Labels)
	assert.Equal(t, []int{2, 2, 2}, res.Counts)
	assert.InDelta(t, dakar.Lat, res.Centroids[0].Lat, 1e-9)
	assert.InDelta(t, saintLouis.Lon, res.Centroids[2].Lon, 1e-9)
	assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
}

func TestKMeansCoincidentPointsTerminate(t *testing.T) {
	points := make([]geo.Point, 5)
	for i := range points {
		points[i] = dakar
	}

	res, err := KMeans(points, 3, Options{Seed: 7})
	require.NoError(t, err)
	require.Len(t, res.Labels, 5)
	for _, l := range res.Labels {
		assert.Equal(t, 0, l)
	}
	assert.Equal(t, 5, res.Counts[0])
	assert.Len(t, res.Centroids, 3)
	assert.Equal(t, 2, res.Iterations)
}

func TestKMeansIsDeterministicForASeed(t *testing.T) {
	points := []geo.Point{
		{Lat: 14.70, Lon: -17.44}, {Lat: 14.71, Lon: -17.46}, {Lat: 14.75, Lon: -17.38},
		{Lat: 14.76, Lon: -17.37}, {Lat: 14.69, Lon: -17.45}, {Lat: 14.80, Lon: -17.30},
		{Lat: 14.68, Lon: -17.47},
	}
	first, err := KMeans(points, 3, Options{Seed: 99})
	require.NoError(t, err)
	second, err := KMeans(points, 3, Options{Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	total := 0
	for _, c := range first.Counts {
		total += c
	}
	assert.Equal(t, len(points), total)
	for _, l := range first.Labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 3)
	}
	assert.Equal(t, 0, first.Labels[0])
}

func TestKMeansRespectsIterationCap(t *testing.T) {
	points := []geo.Point{dakar, thies, saintLouis, {Lat: 15.0, Lon: -17.0}}
	res, err := KMeans(points, 2, Options{MaxIterations: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
}

func TestKMeansRejectsInvalidK(t *testing.T) {
	_, err := KMeans([]geo.Point{dakar}, 2, Options{})
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = KMeans([]geo.Point{dakar}, 0, Options{})
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestKMeansSinglePoint(t *testing.T) {
	res, err := KMeans([]geo.Point{thies}, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Labels)
	assert.Equal(t, thies, res.Centroids[0])
}
