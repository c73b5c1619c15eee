package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/observability"
)

// Point prompt labels for the mask predictor.
const (
	LabelBackground = 0
	LabelForeground = 1
)

// MaskPredictor is the boundary to the segmentation model: the core only
// feeds it an image plus point/box prompts and takes binary masks and
// embeddings back, never reimplementing inference.
type MaskPredictor interface {
	SetImage(img image.Image) error
	AddPoint(p models.Point, label int)
	SetBox(box [4]float64)
	Predict() (*Mask, error)
	ResetImage()
	Embeddings() []float32
}

// ONNXPredictor runs a SAM-style encoder/decoder pair with ONNX Runtime.
// The encoder digests the image once into an embedding; the decoder turns
// accumulated prompts into a mask per Predict call.
type ONNXPredictor struct {
	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession

	inputSize int

	embeddings []float32
	origW      int
	origH      int
	imageSet   bool

	points [][2]float32
	labels []float32
	box    *[4]float64
}

// NewONNXPredictor loads the encoder and decoder models from modelsDir.
func NewONNXPredictor(modelsDir string) (*ONNXPredictor, error) {
	encPath := filepath.Join(modelsDir, "sam_encoder.onnx")
	decPath := filepath.Join(modelsDir, "sam_decoder.onnx")

	slog.Info("loading mask encoder model", "path", encPath)
	encoder, err := ort.NewDynamicAdvancedSession(encPath,
		[]string{"image"}, []string{"image_embeddings"}, nil)
	if err != nil {
		return nil, fmt.Errorf("load mask encoder: %w", err)
	}

	slog.Info("loading mask decoder model", "path", decPath)
	decoder, err := ort.NewDynamicAdvancedSession(decPath,
		[]string{"image_embeddings", "point_coords", "point_labels"},
		[]string{"masks"}, nil)
	if err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("load mask decoder: %w", err)
	}

	return &ONNXPredictor{
		encoder:   encoder,
		decoder:   decoder,
		inputSize: 1024,
	}, nil
}

// SetImage encodes the image into embeddings, replacing any previous image
// and clearing accumulated prompts.
func (p *ONNXPredictor) SetImage(img image.Image) error {
	if p.imageSet {
		p.ResetImage()
	}

	start := time.Now()
	defer func() {
		observability.PredictionDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
	}()

	b := img.Bounds()
	p.origW, p.origH = b.Dx(), b.Dy()

	data := chwTensor(img, p.inputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(p.inputSize), int64(p.inputSize)), data)
	if err != nil {
		return fmt.Errorf("create encoder input: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.encoder.Run([]ort.Value{input}, outputs); err != nil {
		return fmt.Errorf("run encoder: %w", err)
	}
	out := outputs[0].(*ort.Tensor[float32])
	defer out.Destroy()

	p.embeddings = append([]float32(nil), out.GetData()...)
	p.imageSet = true
	return nil
}

// AddPoint accumulates a foreground/background point prompt in image
// coordinates.
func (p *ONNXPredictor) AddPoint(pt models.Point, label int) {
	p.points = append(p.points, [2]float32{float32(pt.X()), float32(pt.Y())})
	p.labels = append(p.labels, float32(label))
}

// SetBox sets the box prompt as x1, y1, x2, y2 in image coordinates.
func (p *ONNXPredictor) SetBox(box [4]float64) {
	p.box = &box
}

// Predict runs the decoder over the accumulated prompts. The box prompt, if
// any, is passed as the usual corner-point pair.
func (p *ONNXPredictor) Predict() (*Mask, error) {
	if !p.imageSet {
		return nil, fmt.Errorf("no image set for prediction")
	}

	start := time.Now()
	defer func() {
		observability.PredictionDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	}()

	scale := float32(p.inputSize) / float32(max(p.origW, p.origH))

	coords := make([]float32, 0, (len(p.points)+2)*2)
	labels := make([]float32, 0, len(p.labels)+2)
	for i, pt := range p.points {
		coords = append(coords, pt[0]*scale, pt[1]*scale)
		labels = append(labels, p.labels[i])
	}
	if p.box != nil {
		coords = append(coords,
			float32(p.box[0])*scale, float32(p.box[1])*scale,
			float32(p.box[2])*scale, float32(p.box[3])*scale)
		labels = append(labels, 2, 3)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no prompts set for prediction")
	}

	n := int64(len(labels))
	emb, err := ort.NewTensor(ort.NewShape(1, 256, 64, 64), p.embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings tensor: %w", err)
	}
	defer emb.Destroy()
	coordTensor, err := ort.NewTensor(ort.NewShape(1, n, 2), coords)
	if err != nil {
		return nil, fmt.Errorf("create point coords tensor: %w", err)
	}
	defer coordTensor.Destroy()
	labelTensor, err := ort.NewTensor(ort.NewShape(1, n), labels)
	if err != nil {
		return nil, fmt.Errorf("create point labels tensor: %w", err)
	}
	defer labelTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := p.decoder.Run([]ort.Value{emb, coordTensor, labelTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run decoder: %w", err)
	}
	out := outputs[0].(*ort.Tensor[float32])
	defer out.Destroy()

	return logitsToMask(out.GetData(), out.GetShape(), p.origW, p.origH), nil
}

// ResetImage drops the encoded image and all prompts.
func (p *ONNXPredictor) ResetImage() {
	p.embeddings = nil
	p.imageSet = false
	p.ResetPrompts()
}

// ResetPrompts clears points and box but keeps the encoded image.
func (p *ONNXPredictor) ResetPrompts() {
	p.points = nil
	p.labels = nil
	p.box = nil
}

// Embeddings returns the encoder output for the current image, nil when no
// image is set.
func (p *ONNXPredictor) Embeddings() []float32 {
	return p.embeddings
}

func (p *ONNXPredictor) Close() {
	if p.encoder != nil {
		p.encoder.Destroy()
	}
	if p.decoder != nil {
		p.decoder.Destroy()
	}
}

// chwTensor scales the image onto a square side×side canvas and lays it out
// as CHW float32 with per-channel mean/std normalization.
func chwTensor(img image.Image, side int) []float32 {
	means := [3]float32{123.675, 116.28, 103.53}
	stds := [3]float32{58.395, 57.12, 57.375}

	b := img.Bounds()
	scale := float64(side) / float64(max(b.Dx(), b.Dy()))
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)

	data := make([]float32, 3*side*side)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := b.Min.X + int(float64(x)/scale)
			sy := b.Min.Y + int(float64(y)/scale)
			r, g, bl, _ := img.At(sx, sy).RGBA()
			rgb := [3]float32{float32(r >> 8), float32(g >> 8), float32(bl >> 8)}
			for c := 0; c < 3; c++ {
				data[c*side*side+y*side+x] = (rgb[c] - means[c]) / stds[c]
			}
		}
	}
	return data
}

// logitsToMask thresholds decoder logits at zero and scales the low-res mask
// back to the original image dimensions.
func logitsToMask(logits []float32, shape ort.Shape, origW, origH int) *Mask {
	dims := len(shape)
	mh := int(shape[dims-2])
	mw := int(shape[dims-1])

	mask := NewMask(origW, origH)
	for y := 0; y < origH; y++ {
		for x := 0; x < origW; x++ {
			my := y * mh / origH
			mx := x * mw / origW
			if logits[my*mw+mx] > 0 {
				mask.Pix[y*origW+x] = 1
			}
		}
	}
	return mask
}
