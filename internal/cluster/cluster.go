// Package cluster aggregates map pins into zoom-dependent clusters so the
// map view can render a handful of markers instead of thousands of pins.
package cluster

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultRadius is the cluster radius in screen pixels at a 256px
	// world tile.
	DefaultRadius = 12
	// DefaultMaxZoom is the deepest zoom at which pins still cluster;
	// past it every pin renders individually.
	DefaultMaxZoom = 18
	tileExtent     = 256.0
)

// Point is a single map pin.
type Point struct {
	ID   string  `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// Cluster is either an aggregate of two or more pins or a single
// pass-through pin (Count == 1, PointID set).
type Cluster struct {
	ID      int     `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Count   int     `json:"count"`
	PointID string  `json:"point_id,omitempty"`
}

// Bounds is a west/south/east/north view rectangle in degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Options tune the clustering grid.
type Options struct {
	Radius  float64
	MaxZoom int
}

func (o *Options) defaults() {
	if o.Radius <= 0 {
		o.Radius = DefaultRadius
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = DefaultMaxZoom
	}
}

// Index holds pins pre-bucketed per zoom level. It is immutable after
// construction and safe for concurrent reads.
type Index struct {
	opts   Options
	points []Point
	// per zoom level, cluster id -> member point indexes
	levels []map[int][]int
	// per zoom level, ordered cluster ids for stable output
	order [][]int
}

// NewIndex builds the cluster hierarchy for a fixed set of pins.
func NewIndex(points []Point, opts Options) *Index {
	opts.defaults()
	idx := &Index{
		opts:   opts,
		points: append([]Point(nil), points...),
		levels: make([]map[int][]int, opts.MaxZoom+1),
		order:  make([][]int, opts.MaxZoom+1),
	}
	for z := 0; z <= opts.MaxZoom; z++ {
		idx.buildLevel(z)
	}
	return idx
}

// buildLevel buckets every point into grid cells sized to the cluster
// radius at the given zoom. Cell ids double as cluster ids within a level.
func (idx *Index) buildLevel(zoom int) {
	scale := tileExtent * math.Exp2(float64(zoom))
	cell := idx.opts.Radius / scale

	buckets := make(map[int][]int)
	var order []int
	for i, p := range idx.points {
		x, y := project(p.Lon, p.Lat)
		id := cellID(int(x/cell), int(y/cell))
		if _, seen := buckets[id]; !seen {
			order = append(order, id)
		}
		buckets[id] = append(buckets[id], i)
	}
	idx.levels[zoom] = buckets
	idx.order[zoom] = order
}

// Clusters returns the clusters visible in bounds at the given zoom.
// Zooms past MaxZoom return individual pins.
func (idx *Index) Clusters(bounds Bounds, zoom int) []Cluster {
	if zoom < 0 {
		zoom = 0
	}
	if zoom > idx.opts.MaxZoom {
		zoom = idx.opts.MaxZoom
	}

	var out []Cluster
	for _, id := range idx.order[zoom] {
		members := idx.levels[zoom][id]
		c := idx.makeCluster(zoom, id, members)
		if bounds.contains(c.Lat, c.Lon) {
			out = append(out, c)
		}
	}
	return out
}

// Leaves expands a cluster into its member pins, paginated.
func (idx *Index) Leaves(zoom, clusterID, limit, offset int) ([]Point, error) {
	if zoom < 0 || zoom > idx.opts.MaxZoom {
		return nil, fmt.Errorf("zoom %d out of range", zoom)
	}
	members, ok := idx.levels[zoom][clusterID]
	if !ok {
		return nil, fmt.Errorf("cluster %d not found at zoom %d", clusterID, zoom)
	}
	if limit <= 0 {
		limit = 10
	}
	if offset >= len(members) {
		return nil, nil
	}
	end := offset + limit
	if end > len(members) {
		end = len(members)
	}
	out := make([]Point, 0, end-offset)
	for _, i := range members[offset:end] {
		out = append(out, idx.points[i])
	}
	return out, nil
}

func (idx *Index) makeCluster(zoom, id int, members []int) Cluster {
	if len(members) == 1 {
		p := idx.points[members[0]]
		return Cluster{ID: id, Lat: p.Lat, Lon: p.Lon, Count: 1, PointID: p.ID}
	}
	var lat, lon float64
	for _, i := range members {
		lat += idx.points[i].Lat
		lon += idx.points[i].Lon
	}
	n := float64(len(members))
	return Cluster{ID: id, Lat: lat / n, Lon: lon / n, Count: len(members)}
}

func (b Bounds) contains(lat, lon float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West <= b.East {
		return lon >= b.West && lon <= b.East
	}
	// View crosses the antimeridian.
	return lon >= b.West || lon <= b.East
}

// project maps lon/lat to web-mercator coordinates in [0,1).
func project(lon, lat float64) (x, y float64) {
	x = lon/360 + 0.5
	sin := math.Sin(lat * math.Pi / 180)
	y = 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	switch {
	case y < 0:
		y = 0
	case y > 1:
		y = 1
	}
	return x, y
}

// cellID packs a grid coordinate pair into one id. Grid coordinates are
// non-negative because projected space is [0,1).
func cellID(cx, cy int) int {
	return cy<<32 | cx
}

// SortByCount orders clusters densest first, useful when capping how many
// markers a viewport renders.
func SortByCount(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})
}
