// Package export turns projects into COCO-format datasets. The transform is
// pure: it never touches the stores.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/your-org/annotate/internal/models"
)

type Dataset struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

type Image struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type Annotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	Segmentation [][]float64 `json:"segmentation"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ToCOCO flattens a project, including its video frames, into one dataset.
// Category ids follow the order of the project's class set; an annotation
// whose class is not in the set fails the export.
func ToCOCO(project *models.Project) (*Dataset, error) {
	ds := &Dataset{
		Images:      []Image{},
		Annotations: []Annotation{},
		Categories:  make([]Category, 0, len(project.Classes)),
	}

	categories := make(map[string]int, len(project.Classes))
	for i, class := range project.Classes {
		categories[class] = i + 1
		ds.Categories = append(ds.Categories, Category{ID: i + 1, Name: class})
	}

	imageID := 0
	annotationID := 0
	addImage := func(ia *models.ImageAnnotation) error {
		imageID++
		ds.Images = append(ds.Images, Image{
			ID:       imageID,
			FileName: ia.FileName,
			Width:    ia.Width,
			Height:   ia.Height,
		})
		for i := range ia.Annotations {
			ann := &ia.Annotations[i]
			categoryID, ok := categories[ann.ClassName]
			if !ok {
				return fmt.Errorf("%w: class %q of annotation %s not among project classes",
					models.ErrValidation, ann.ClassName, ann.AnnotationID)
			}
			annotationID++
			ds.Annotations = append(ds.Annotations, Annotation{
				ID:           annotationID,
				ImageID:      imageID,
				CategoryID:   categoryID,
				Segmentation: segmentation(ann.Points),
				BBox:         bbox(ann.Points),
				Area:         ann.Area(),
			})
		}
		return nil
	}

	for i := range project.ImageAnnotations {
		if err := addImage(&project.ImageAnnotations[i]); err != nil {
			return nil, err
		}
	}
	for i := range project.VideoAnnotations {
		for j := range project.VideoAnnotations[i].VideoFrames {
			if err := addImage(&project.VideoAnnotations[i].VideoFrames[j].ImageAnnotation); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

// Marshal renders the dataset as JSON.
func Marshal(ds *Dataset) ([]byte, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("encode coco dataset: %w", err)
	}
	return data, nil
}

// segmentation flattens the polygon to COCO's [x1, y1, x2, y2, ...] form.
func segmentation(points []models.Point) [][]float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X(), p.Y())
	}
	return [][]float64{flat}
}

func bbox(points []models.Point) [4]float64 {
	if len(points) == 0 {
		return [4]float64{}
	}
	minX, minY := points[0].X(), points[0].Y()
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X() < minX {
			minX = p.X()
		}
		if p.X() > maxX {
			maxX = p.X()
		}
		if p.Y() < minY {
			minY = p.Y()
		}
		if p.Y() > maxY {
			maxY = p.Y()
		}
	}
	return [4]float64{minX, minY, maxX - minX, maxY - minY}
}
