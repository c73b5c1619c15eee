package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"

	_ "image/jpeg"
	_ "image/png"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/storage"
)

func imageQuery(imageID string) storage.Query {
	return storage.Query{"image_id": imageID}
}

// AddImage decodes the payload's dimensions, attaches a fresh ImageAnnotation
// to the project and stores the raw payload as a separate Image entity. Both
// are persisted under the same draft/promoted mode as the owning project.
func (s *AnnotationStore) AddImage(ctx context.Context, projectID, fileName string, imageBytes []byte) (*models.ImageAnnotation, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", fileName, err)
	}
	slog.Debug("image decoded", "file_name", fileName, "width", cfg.Width, "height", cfg.Height)

	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	promoted, err := s.projectPromoted(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ia := models.NewImageAnnotation(fileName, cfg.Width, cfg.Height)
	if err := project.AddImageAnnotation(ia); err != nil {
		return nil, err
	}
	if err := s.StoreProject(ctx, project, promoted); err != nil {
		return nil, err
	}

	img := models.NewImage(ia.ImageID, imageBytes)
	if err := s.StoreImage(ctx, &img, promoted); err != nil {
		return nil, err
	}
	return &ia, nil
}

// GetImage resolves the raw payload entity for an image id.
func (s *AnnotationStore) GetImage(ctx context.Context, imageID string) (*models.Image, error) {
	data, err := s.readThrough(ctx, collectionImages, imageID, imageQuery(imageID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("image %s: %w", imageID, ErrNotFound)
	}
	var img models.Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("decode image %s: %w", imageID, err)
	}
	return &img, nil
}

// StoreImage persists an image payload as draft or promoted.
func (s *AnnotationStore) StoreImage(ctx context.Context, img *models.Image, promote bool) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("encode image %s: %w", img.ImageID, err)
	}
	if promote {
		return s.writePromoted(ctx, collectionImages, img.ImageID, data, imageQuery(img.ImageID))
	}
	return s.writeCacheOnly(ctx, img.ImageID, data)
}

func (s *AnnotationStore) promoteImage(ctx context.Context, imageID string) error {
	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	return s.StoreImage(ctx, img, true)
}

func (s *AnnotationStore) imagePromoted(ctx context.Context, imageID string) (bool, error) {
	data, err := s.readDurableOnly(ctx, collectionImages, imageQuery(imageID))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// SetImageEmbeddings stores the predictor's embedding vector on the payload
// entity, preserving its current draft/promoted mode.
func (s *AnnotationStore) SetImageEmbeddings(ctx context.Context, imageID string, embeddings []float32) error {
	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	promoted, err := s.imagePromoted(ctx, imageID)
	if err != nil {
		return err
	}
	img.SetEmbeddings(embeddings)
	return s.StoreImage(ctx, img, promoted)
}

// DeleteImage removes the payload entity from both stores.
func (s *AnnotationStore) DeleteImage(ctx context.Context, imageID string) error {
	return s.deleteEntity(ctx, collectionImages, imageID, imageQuery(imageID))
}

// RemoveImage detaches an image from its project and deletes the payload.
func (s *AnnotationStore) RemoveImage(ctx context.Context, projectID, imageID string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		p.RemoveImageAnnotation(imageID)
		return nil
	})
	if err != nil {
		return err
	}
	return s.DeleteImage(ctx, imageID)
}

// GetImageAnnotation resolves annotation metadata for an image, optionally
// inside a video. A missing image inside a found project is a soft miss and
// yields nil.
func (s *AnnotationStore) GetImageAnnotation(ctx context.Context, projectID, imageID, videoID string) (*models.ImageAnnotation, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ia := project.GetImageAnnotation(imageID, videoID)
	if ia == nil {
		return nil, nil
	}
	out := *ia
	return &out, nil
}

// AddAnnotation appends a polygon to an image (or video frame). The class
// name is accepted even when it is not yet in the project's class set; only a
// later SetClasses rewrites stray classes.
func (s *AnnotationStore) AddAnnotation(ctx context.Context, projectID, imageID, videoID, className string, points []models.Point) (*models.Annotation, error) {
	var created *models.Annotation
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		ia := p.GetImageAnnotation(imageID, videoID)
		if ia == nil {
			return nil
		}
		annotation := models.NewAnnotation(className, points)
		ia.AddAnnotation(annotation)
		created = &annotation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ModifyAnnotation replaces an annotation's geometry and class. Unknown
// image or annotation ids inside a found project are soft misses.
func (s *AnnotationStore) ModifyAnnotation(ctx context.Context, projectID, imageID, annotationID, videoID string, points []models.Point, className string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		ia := p.GetImageAnnotation(imageID, videoID)
		if ia == nil {
			return nil
		}
		annotation := ia.GetAnnotation(annotationID)
		if annotation == nil {
			return nil
		}
		annotation.Modify(points, className)
		return nil
	})
	return err
}

// DeleteAnnotation removes one polygon from an image (or video frame).
func (s *AnnotationStore) DeleteAnnotation(ctx context.Context, projectID, imageID, annotationID, videoID string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		ia := p.GetImageAnnotation(imageID, videoID)
		if ia == nil {
			return nil
		}
		ia.RemoveAnnotation(annotationID)
		return nil
	})
	return err
}
