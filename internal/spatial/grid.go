package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

type cellKey struct {
	lat int64
	lon int64
}

// Grid is a read-only uniform bucket index over a fixed point set.
// It is safe for concurrent queries once built.
type Grid struct {
	cell    float64
	points  []orb.Point
	buckets map[cellKey][]int32
}

// NewGrid indexes points with square cells of the given size in degrees.
// Points are orb.Point values, ordered [lon, lat].
func NewGrid(points []orb.Point, cell float64) *Grid {
	if cell <= 0 || math.IsNaN(cell) {
		cell = 1
	}
	g := &Grid{
		cell:    cell,
		points:  points,
		buckets: make(map[cellKey][]int32, len(points)/2+1),
	}
	for i, p := range points {
		k := g.key(p.Lat(), p.Lon())
		g.buckets[k] = append(g.buckets[k], int32(i))
	}
	return g
}

// Len returns the number of indexed points.
func (g *Grid) Len() int { return len(g.points) }

// CellSize returns the cell edge length in degrees.
func (g *Grid) CellSize() float64 { return g.cell }

// CountWithin returns the number of indexed points q with
// |lat(q)-lat(center)| and |lon(q)-lon(center)| inside radius, bounds
// inclusive. A center that is itself indexed counts itself.
func (g *Grid) CountWithin(center orb.Point, radius float64) int {
	window := Window(center, radius)
	lo := g.key(window.Min.Lat(), window.Min.Lon())
	hi := g.key(window.Max.Lat(), window.Max.Lon())

	count := 0
	for la := lo.lat; la <= hi.lat; la++ {
		for ln := lo.lon; ln <= hi.lon; ln++ {
			for _, idx := range g.buckets[cellKey{lat: la, lon: ln}] {
				if window.Contains(g.points[idx]) {
					count++
				}
			}
		}
	}
	return count
}

func (g *Grid) key(lat, lon float64) cellKey {
	return cellKey{
		lat: int64(math.Floor(lat / g.cell)),
		lon: int64(math.Floor(lon / g.cell)),
	}
}

// Window returns the inclusive bound [center-radius, center+radius] on both axes.
func Window(center orb.Point, radius float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{center.Lon() - radius, center.Lat() - radius},
		Max: orb.Point{center.Lon() + radius, center.Lat() + radius},
	}
}

// CountNaive counts by scanning every point. It is the reference the grid
// is checked against.
func CountNaive(points []orb.Point, center orb.Point, radius float64) int {
	window := Window(center, radius)
	count := 0
	for _, p := range points {
		if window.Contains(p) {
			count++
		}
	}
	return count
}
