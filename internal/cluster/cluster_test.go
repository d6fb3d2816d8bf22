package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var world = Bounds{West: -180, South: -85, East: 180, North: 85}

func testPoints() []Point {
	// Two tight groups (Paris, Tokyo) plus one solitary pin.
	return []Point{
		{ID: "p1", Lat: 48.8566, Lon: 2.3522, Name: "Paris A"},
		{ID: "p2", Lat: 48.8570, Lon: 2.3530, Name: "Paris B"},
		{ID: "p3", Lat: 48.8560, Lon: 2.3510, Name: "Paris C"},
		{ID: "t1", Lat: 35.6762, Lon: 139.6503, Name: "Tokyo A"},
		{ID: "t2", Lat: 35.6770, Lon: 139.6510, Name: "Tokyo B"},
		{ID: "s1", Lat: -33.8688, Lon: 151.2093, Name: "Sydney"},
	}
}

func TestLowZoomAggregates(t *testing.T) {
	idx := NewIndex(testPoints(), Options{})

	clusters := idx.Clusters(world, 2)
	total := 0
	for _, c := range clusters {
		total += c.Count
	}
	assert.Equal(t, len(testPoints()), total, "every pin lands in exactly one cluster")
	assert.Less(t, len(clusters), len(testPoints()))
}

func TestHighZoomSplitsToPins(t *testing.T) {
	idx := NewIndex(testPoints(), Options{})

	clusters := idx.Clusters(world, DefaultMaxZoom)
	require.Len(t, clusters, len(testPoints()))
	for _, c := range clusters {
		assert.Equal(t, 1, c.Count)
		assert.NotEmpty(t, c.PointID)
	}
}

func TestBoundsFilter(t *testing.T) {
	idx := NewIndex(testPoints(), Options{})

	europe := Bounds{West: -10, South: 35, East: 30, North: 60}
	clusters := idx.Clusters(europe, 10)
	total := 0
	for _, c := range clusters {
		total += c.Count
	}
	assert.Equal(t, 3, total, "only the Paris pins are in view")
}

func TestAntimeridianBounds(t *testing.T) {
	idx := NewIndex([]Point{
		{ID: "fj", Lat: -17.7134, Lon: 178.0650},
		{ID: "ws", Lat: -13.7590, Lon: -172.1046},
		{ID: "ldn", Lat: 51.5074, Lon: -0.1278},
	}, Options{})

	pacific := Bounds{West: 160, South: -40, East: -160, North: 10}
	clusters := idx.Clusters(pacific, 5)
	total := 0
	for _, c := range clusters {
		total += c.Count
	}
	assert.Equal(t, 2, total, "wrap-around view keeps Fiji and Samoa, drops London")
}

func TestLeavesPagination(t *testing.T) {
	idx := NewIndex(testPoints(), Options{})

	clusters := idx.Clusters(world, 2)
	var parisID int
	found := false
	for _, c := range clusters {
		if c.Count == 3 {
			parisID = c.ID
			found = true
		}
	}
	require.True(t, found, "expected a 3-pin cluster at low zoom")

	first, err := idx.Leaves(2, parisID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := idx.Leaves(2, parisID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	past, err := idx.Leaves(2, parisID, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = idx.Leaves(2, 999999999, 10, 0)
	assert.Error(t, err)
}

func TestClusterCentroid(t *testing.T) {
	idx := NewIndex([]Point{
		{ID: "a", Lat: 10.0, Lon: 20.0},
		{ID: "b", Lat: 10.2, Lon: 20.2},
	}, Options{})

	clusters := idx.Clusters(world, 0)
	require.Len(t, clusters, 1)
	assert.InDelta(t, 10.1, clusters[0].Lat, 0.001)
	assert.InDelta(t, 20.1, clusters[0].Lon, 0.001)
}

func TestSortByCount(t *testing.T) {
	cs := []Cluster{{ID: 1, Count: 1}, {ID: 2, Count: 5}, {ID: 3, Count: 2}}
	SortByCount(cs)
	assert.Equal(t, []int{5, 2, 1}, []int{cs[0].Count, cs[1].Count, cs[2].Count})
}
