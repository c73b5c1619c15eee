package store

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/your-org/annotate/internal/models"
)

// AddVideo attaches a VideoAnnotation built from pre-decoded frame payloads.
// Frame numbers are assigned contiguously from 0 in the order given; every
// frame payload becomes its own Image entity.
func (s *AnnotationStore) AddVideo(ctx context.Context, projectID, fileName string, fps int, frames [][]byte) (*models.VideoAnnotation, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	promoted, err := s.projectPromoted(ctx, projectID)
	if err != nil {
		return nil, err
	}

	video := models.NewVideoAnnotation(fileName, fps)
	for idx, frameBytes := range frames {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(frameBytes))
		if err != nil {
			return nil, fmt.Errorf("decode frame %d of %s: %w", idx, fileName, err)
		}
		frame := models.NewVideoFrame(fmt.Sprintf("%s_%d", fileName, idx), cfg.Width, cfg.Height, idx)
		video.AddFrame(frame)

		img := models.NewImage(frame.ImageID, frameBytes)
		if err := s.StoreImage(ctx, &img, promoted); err != nil {
			return nil, err
		}
	}

	project.AddVideoAnnotation(video)
	if err := s.StoreProject(ctx, project, promoted); err != nil {
		return nil, err
	}
	return &video, nil
}

// GetVideoAnnotation resolves one video inside a project; a missing video id
// inside a found project is a soft miss and yields nil.
func (s *AnnotationStore) GetVideoAnnotation(ctx context.Context, projectID, videoID string) (*models.VideoAnnotation, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	video := project.GetVideoAnnotation(videoID)
	if video == nil {
		return nil, nil
	}
	out := *video
	return &out, nil
}

// SetKeyFrame marks or unmarks an authored frame.
func (s *AnnotationStore) SetKeyFrame(ctx context.Context, projectID, videoID string, frameNumber int, isKeyFrame bool) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		video := p.GetVideoAnnotation(videoID)
		if video == nil {
			return nil
		}
		video.SetKeyFrame(frameNumber, isKeyFrame)
		return nil
	})
	return err
}

// StoreVideoAnnotation writes back a video whose frames were mutated outside
// the façade (the interpolation engine works on a detached copy).
func (s *AnnotationStore) StoreVideoAnnotation(ctx context.Context, projectID string, video *models.VideoAnnotation) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		existing := p.GetVideoAnnotation(video.VideoID)
		if existing == nil {
			return nil
		}
		*existing = *video
		return nil
	})
	return err
}

// DeleteVideo removes a video and every durable frame payload it references.
func (s *AnnotationStore) DeleteVideo(ctx context.Context, projectID, videoID string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		video := p.GetVideoAnnotation(videoID)
		if video == nil {
			slog.Warn("video not found, delete skipped", "video_id", videoID, "project_id", projectID)
			return nil
		}
		for _, frame := range video.VideoFrames {
			if err := s.DeleteImage(ctx, frame.ImageID); err != nil {
				return err
			}
		}
		p.RemoveVideoAnnotation(videoID)
		return nil
	})
	return err
}

// FramePayloads loads the raw payload for every frame of a video, in frame
// order. Used by callers that feed the interpolation engine.
func (s *AnnotationStore) FramePayloads(ctx context.Context, video *models.VideoAnnotation) ([][]byte, error) {
	payloads := make([][]byte, 0, len(video.VideoFrames))
	for i := range video.VideoFrames {
		img, err := s.GetImage(ctx, video.VideoFrames[i].ImageID)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, img.ImageBytes)
	}
	return payloads, nil
}
