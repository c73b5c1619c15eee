package handlers

import (
	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/pkg/dto"
)

func toPoints(pts [][2]float64) []models.Point {
	out := make([]models.Point, len(pts))
	for i, p := range pts {
		out[i] = models.Point(p)
	}
	return out
}

func fromPoints(pts []models.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64(p)
	}
	return out
}

func toAnnotationResponse(a models.Annotation) dto.AnnotationResponse {
	return dto.AnnotationResponse{
		AnnotationID: a.AnnotationID,
		ClassName:    a.ClassName,
		Points:       fromPoints(a.Points),
	}
}

func toImageAnnotationResponse(ia models.ImageAnnotation) dto.ImageAnnotationResponse {
	anns := make([]dto.AnnotationResponse, 0, len(ia.Annotations))
	for _, a := range ia.Annotations {
		anns = append(anns, toAnnotationResponse(a))
	}
	return dto.ImageAnnotationResponse{
		ImageID:     ia.ImageID,
		FileName:    ia.FileName,
		Width:       ia.Width,
		Height:      ia.Height,
		Annotations: anns,
	}
}

func toVideoResponse(va *models.VideoAnnotation) dto.VideoResponse {
	frames := make([]dto.VideoFrameResponse, 0, len(va.VideoFrames))
	for _, f := range va.VideoFrames {
		frames = append(frames, dto.VideoFrameResponse{
			ImageAnnotationResponse: toImageAnnotationResponse(f.ImageAnnotation),
			FrameNumber:             f.FrameNumber,
			KeyFrame:                f.KeyFrame,
		})
	}
	return dto.VideoResponse{
		VideoID:  va.VideoID,
		FileName: va.FileName,
		FPS:      va.FPS,
		Duration: va.Duration(),
		Frames:   frames,
	}
}

func toProjectResponse(p *models.Project) dto.ProjectResponse {
	return dto.ProjectResponse{
		ProjectID:    p.ProjectID,
		Name:         p.Name,
		Classes:      p.Classes,
		DefaultClass: p.DefaultClass,
		ImageCount:   len(p.ImageAnnotations),
		VideoCount:   len(p.VideoAnnotations),
	}
}
