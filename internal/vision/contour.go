package vision

import (
	"math"

	"github.com/your-org/annotate/internal/models"
)

// Mask is a binary pixel mask, row-major, nonzero meaning foreground.
type Mask struct {
	W, H int
	Pix  []uint8
}

func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
}

func (m *Mask) at(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x] != 0
}

// MaskPolygons extracts the outer boundary of every connected foreground
// region and simplifies it to polygon vertices. The simplification tolerance
// is the given fraction of each contour's perimeter, mirroring the usual
// approxPolyDP usage for turning predicted masks into editable polygons.
func MaskPolygons(mask *Mask, tolerance float64) [][]models.Point {
	var polygons [][]models.Point
	seen := make([]bool, len(mask.Pix))

	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if !mask.at(x, y) || seen[y*mask.W+x] {
				continue
			}
			contour := traceBoundary(mask, x, y)
			markComponent(mask, x, y, seen)
			if len(contour) < 3 {
				continue
			}
			eps := tolerance * perimeter(contour)
			simplified := simplify(contour, eps)
			if len(simplified) >= 3 {
				polygons = append(polygons, simplified)
			}
		}
	}
	return polygons
}

// Moore neighborhood in clockwise order starting east.
var moore = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

// traceBoundary walks the outer contour of the component containing the
// start pixel, which must be the first foreground pixel in scan order.
func traceBoundary(mask *Mask, sx, sy int) []models.Point {
	contour := []models.Point{{float64(sx), float64(sy)}}
	cx, cy := sx, sy
	dir := 6 // came from above: scan order guarantees nothing left or up

	for {
		found := false
		for i := 0; i < 8; i++ {
			d := (dir + 1 + i) % 8
			nx, ny := cx+moore[d][0], cy+moore[d][1]
			if mask.at(nx, ny) {
				cx, cy = nx, ny
				// Next search starts opposite the direction we arrived from.
				dir = (d + 4) % 8
				found = true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		if cx == sx && cy == sy {
			break
		}
		contour = append(contour, models.Point{float64(cx), float64(cy)})
		if len(contour) > 4*mask.W*mask.H {
			break
		}
	}
	return contour
}

func markComponent(mask *Mask, sx, sy int, seen []bool) {
	stack := [][2]int{{sx, sy}}
	seen[sy*mask.W+sx] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p[0]+d[0], p[1]+d[1]
			if nx < 0 || ny < 0 || nx >= mask.W || ny >= mask.H {
				continue
			}
			i := ny*mask.W + nx
			if mask.Pix[i] != 0 && !seen[i] {
				seen[i] = true
				stack = append(stack, [2]int{nx, ny})
			}
		}
	}
}

func perimeter(points []models.Point) float64 {
	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		sum += math.Hypot(points[j].X()-points[i].X(), points[j].Y()-points[i].Y())
	}
	return sum
}

// simplify is Douglas-Peucker over a closed contour: the two mutually
// farthest anchor points split it into two polylines simplified separately.
func simplify(points []models.Point, eps float64) []models.Point {
	if len(points) < 3 {
		return points
	}

	a, b := 0, 0
	var maxDist float64
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			d := math.Hypot(points[j].X()-points[i].X(), points[j].Y()-points[i].Y())
			if d > maxDist {
				maxDist = d
				a, b = i, j
			}
		}
	}

	first := douglasPeucker(points[a:b+1], eps)
	second := append(append([]models.Point{}, points[b:]...), points[a])
	second = douglasPeucker(second, eps)

	out := append([]models.Point{}, first...)
	if len(second) > 2 {
		out = append(out, second[1:len(second)-1]...)
	}
	return out
}

func douglasPeucker(points []models.Point, eps float64) []models.Point {
	if len(points) < 3 {
		return points
	}
	var maxDist float64
	index := 0
	last := len(points) - 1
	for i := 1; i < last; i++ {
		d := pointLineDist(points[i], points[0], points[last])
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist <= eps {
		return []models.Point{points[0], points[last]}
	}
	left := douglasPeucker(points[:index+1], eps)
	right := douglasPeucker(points[index:], eps)
	return append(left[:len(left)-1], right...)
}

func pointLineDist(p, a, b models.Point) float64 {
	dx, dy := b.X()-a.X(), b.Y()-a.Y()
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(p.X()-a.X(), p.Y()-a.Y())
	}
	return math.Abs(dx*(a.Y()-p.Y())-dy*(a.X()-p.X())) / length
}
