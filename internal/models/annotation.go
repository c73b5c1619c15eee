package models

import (
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
)

// newID returns a fresh 32-character lowercase hex identifier.
// Every entity constructor calls this; ids are never shared between instances.
func newID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Point is a 2-D polygon vertex, serialized as an [x, y] pair.
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// Annotation is a single polygon with a class label. Degenerate polygons
// (fewer than 3 points) are permitted and have zero area.
type Annotation struct {
	AnnotationID string  `json:"annotation_id" bson:"annotation_id"`
	ClassName    string  `json:"className" bson:"className"`
	Points       []Point `json:"points" bson:"points"`
}

func NewAnnotation(className string, points []Point) Annotation {
	if points == nil {
		points = []Point{}
	}
	return Annotation{
		AnnotationID: newID(),
		ClassName:    className,
		Points:       points,
	}
}

func (a *Annotation) SetClassName(className string) {
	a.ClassName = className
}

func (a *Annotation) SetPoints(points []Point) {
	a.Points = points
}

// Modify replaces both geometry and class label in one step.
func (a *Annotation) Modify(points []Point, className string) {
	a.Points = points
	a.ClassName = className
}

// Area computes the polygon area via the shoelace formula.
// Polygons with fewer than 3 points yield 0.
func (a *Annotation) Area() float64 {
	n := len(a.Points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += a.Points[i].X()*a.Points[j].Y() - a.Points[j].X()*a.Points[i].Y()
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// ImageAnnotation holds the annotation metadata for one image. The raw image
// payload lives in a separate Image entity referenced by ImageID.
type ImageAnnotation struct {
	ImageID     string       `json:"image_id" bson:"image_id"`
	FileName    string       `json:"file_name" bson:"file_name"`
	Width       int          `json:"width" bson:"width"`
	Height      int          `json:"height" bson:"height"`
	Annotations []Annotation `json:"annotations" bson:"annotations"`
}

func NewImageAnnotation(fileName string, width, height int) ImageAnnotation {
	return ImageAnnotation{
		ImageID:     newID(),
		FileName:    fileName,
		Width:       width,
		Height:      height,
		Annotations: []Annotation{},
	}
}

func (ia *ImageAnnotation) AddAnnotation(annotation Annotation) {
	ia.Annotations = append(ia.Annotations, annotation)
}

// GetAnnotation returns the annotation with the given id, or nil.
// A miss is a soft error: it is logged and the caller gets a no-op result.
func (ia *ImageAnnotation) GetAnnotation(annotationID string) *Annotation {
	for i := range ia.Annotations {
		if ia.Annotations[i].AnnotationID == annotationID {
			return &ia.Annotations[i]
		}
	}
	slog.Warn("annotation not in annotations list", "annotation_id", annotationID, "image_id", ia.ImageID)
	return nil
}

// RemoveAnnotation deletes the annotation with the given id.
// Returns false (after logging) when the id is unknown.
func (ia *ImageAnnotation) RemoveAnnotation(annotationID string) bool {
	for i := range ia.Annotations {
		if ia.Annotations[i].AnnotationID == annotationID {
			ia.Annotations = append(ia.Annotations[:i], ia.Annotations[i+1:]...)
			return true
		}
	}
	slog.Warn("annotation not in annotations list", "annotation_id", annotationID, "image_id", ia.ImageID)
	return false
}
