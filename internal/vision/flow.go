package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"
)

// Field is a dense optical-flow field: a 2-D displacement vector per pixel.
type Field struct {
	W, H   int
	Dx, Dy []float32
}

func NewField(w, h int) *Field {
	return &Field{
		W:  w,
		H:  h,
		Dx: make([]float32, w*h),
		Dy: make([]float32, w*h),
	}
}

// At returns the displacement at column x, row y, clamped to the field.
func (f *Field) At(x, y int) (float32, float32) {
	if x < 0 {
		x = 0
	} else if x >= f.W {
		x = f.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= f.H {
		y = f.H - 1
	}
	i := y*f.W + x
	return f.Dx[i], f.Dy[i]
}

// FlowEstimator computes a dense displacement field between two grayscale
// frames of identical dimensions.
type FlowEstimator interface {
	Estimate(prev, next *image.Gray) (*Field, error)
}

// DenseFlow estimates per-pixel displacement with a coarse-to-fine windowed
// least-squares method: image pyramids are built with the given scale, and at
// each level the displacement is refined over a square correlation window for
// a fixed number of iterations. Deterministic for identical inputs.
type DenseFlow struct {
	Window     int     // correlation window side, odd
	Iterations int     // refinement passes per level
	Levels     int     // pyramid depth
	Scale      float64 // per-level downscale factor, (0,1)
}

func NewDenseFlow(window, iterations, levels int, scale float64) *DenseFlow {
	if window%2 == 0 {
		window++
	}
	return &DenseFlow{
		Window:     window,
		Iterations: iterations,
		Levels:     levels,
		Scale:      scale,
	}
}

func (df *DenseFlow) Estimate(prev, next *image.Gray) (*Field, error) {
	pb, nb := prev.Bounds(), next.Bounds()
	if pb.Dx() != nb.Dx() || pb.Dy() != nb.Dy() {
		return nil, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d", pb.Dx(), pb.Dy(), nb.Dx(), nb.Dy())
	}

	prevPyr := df.pyramid(toPlane(prev))
	nextPyr := df.pyramid(toPlane(next))

	var flow *Field
	for level := len(prevPyr) - 1; level >= 0; level-- {
		p, n := prevPyr[level], nextPyr[level]
		if flow == nil {
			flow = NewField(p.w, p.h)
		} else {
			flow = upsample(flow, p.w, p.h, 1/df.Scale)
		}
		for it := 0; it < df.Iterations; it++ {
			df.refine(p, n, flow)
		}
	}
	return flow, nil
}

// plane is a float32 raster, the working representation for pyramid levels.
type plane struct {
	w, h int
	pix  []float32
}

func toPlane(img *image.Gray) plane {
	b := img.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]float32, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float32(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	return p
}

func (p plane) at(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

// sample reads the plane at a fractional position with bilinear weights.
func (p plane) sample(x, y float32) float32 {
	x0, y0 := int(x), int(y)
	fx, fy := x-float32(x0), y-float32(y0)
	v00 := p.at(x0, y0)
	v10 := p.at(x0+1, y0)
	v01 := p.at(x0, y0+1)
	v11 := p.at(x0+1, y0+1)
	top := v00 + fx*(v10-v00)
	bot := v01 + fx*(v11-v01)
	return top + fy*(bot-top)
}

func (df *DenseFlow) pyramid(base plane) []plane {
	levels := df.Levels
	if levels < 1 {
		levels = 1
	}
	pyr := []plane{base}
	for l := 1; l < levels; l++ {
		prev := pyr[l-1]
		w := int(float64(prev.w) * df.Scale)
		h := int(float64(prev.h) * df.Scale)
		if w < df.Window || h < df.Window {
			break
		}
		down := plane{w: w, h: h, pix: make([]float32, w*h)}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sx := float32(float64(x) / df.Scale)
				sy := float32(float64(y) / df.Scale)
				down.pix[y*w+x] = prev.sample(sx, sy)
			}
		}
		pyr = append(pyr, down)
	}
	return pyr
}

func upsample(f *Field, w, h int, gain float64) *Field {
	out := NewField(w, h)
	sx := float64(f.W) / float64(w)
	sy := float64(f.H) / float64(h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := f.At(int(float64(x)*sx), int(float64(y)*sy))
			i := y*w + x
			out.Dx[i] = dx * float32(gain)
			out.Dy[i] = dy * float32(gain)
		}
	}
	return out
}

// refine runs one pass of windowed least squares, warping next by the current
// flow estimate and solving the 2x2 normal equations per pixel.
func (df *DenseFlow) refine(prev, next plane, flow *Field) {
	half := df.Window / 2
	newDx := make([]float32, len(flow.Dx))
	newDy := make([]float32, len(flow.Dy))

	for y := 0; y < prev.h; y++ {
		for x := 0; x < prev.w; x++ {
			i := y*prev.w + x
			cdx, cdy := flow.Dx[i], flow.Dy[i]

			var sxx, sxy, syy, sxt, syt float32
			for wy := -half; wy <= half; wy++ {
				for wx := -half; wx <= half; wx++ {
					px, py := x+wx, y+wy
					ix := (prev.at(px+1, py) - prev.at(px-1, py)) / 2
					iy := (prev.at(px, py+1) - prev.at(px, py-1)) / 2
					warped := next.sample(float32(px)+cdx, float32(py)+cdy)
					it := warped - prev.at(px, py)
					sxx += ix * ix
					sxy += ix * iy
					syy += iy * iy
					sxt += ix * it
					syt += iy * it
				}
			}

			det := sxx*syy - sxy*sxy
			if det > 1e-4 {
				// Increment solving [sxx sxy; sxy syy] d = -[sxt; syt]
				ddx := (-syy*sxt + sxy*syt) / det
				ddy := (sxy*sxt - sxx*syt) / det
				newDx[i] = cdx + ddx
				newDy[i] = cdy + ddy
			} else {
				newDx[i] = cdx
				newDy[i] = cdy
			}
		}
	}
	copy(flow.Dx, newDx)
	copy(flow.Dy, newDy)
}

// DecodeGray decodes an encoded image payload into a grayscale buffer.
func DecodeGray(payload []byte) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray, nil
}
