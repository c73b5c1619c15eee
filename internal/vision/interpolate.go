package vision

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/observability"
)

// Engine propagates polygon annotations forward through a video using dense
// optical flow. Keyframes keep their authored annotations and are the only
// mechanism that resets accumulated drift; propagation is strictly forward,
// one frame at a time, with no smoothing.
type Engine struct {
	flow FlowEstimator
}

func NewEngine(flow FlowEstimator) *Engine {
	return &Engine{flow: flow}
}

// Propagate rewrites the annotations of every non-keyframe that follows a
// keyframe, displacing each polygon point by the flow vector at the pixel
// nearest to it. Frames before the first keyframe are left untouched.
// Propagated annotations carry the class name but get fresh identities.
func (e *Engine) Propagate(video *models.VideoAnnotation, frames []*image.Gray) error {
	if len(frames) != len(video.VideoFrames) {
		return fmt.Errorf("have %d frame buffers for %d frames", len(frames), len(video.VideoFrames))
	}

	start := time.Now()
	defer func() {
		observability.InterpolationDuration.Observe(time.Since(start).Seconds())
	}()

	cur := 0
	for cur < len(video.VideoFrames) {
		if video.VideoFrames[cur].KeyFrame {
			break
		}
		cur++
	}

	for cur < len(video.VideoFrames)-1 {
		if video.VideoFrames[cur+1].KeyFrame {
			cur++
			continue
		}

		field, err := e.flow.Estimate(frames[cur], frames[cur+1])
		if err != nil {
			return fmt.Errorf("flow between frames %d and %d: %w", cur, cur+1, err)
		}

		src := &video.VideoFrames[cur]
		dst := &video.VideoFrames[cur+1]
		dst.Annotations = make([]models.Annotation, 0, len(src.Annotations))
		for _, annotation := range src.Annotations {
			points := make([]models.Point, 0, len(annotation.Points))
			for _, pt := range annotation.Points {
				// Flow lookup is row/column: row = y, column = x.
				dx, dy := field.At(nearest(pt.X()), nearest(pt.Y()))
				points = append(points, models.Point{pt.X() + float64(dx), pt.Y() + float64(dy)})
			}
			dst.AddAnnotation(models.NewAnnotation(annotation.ClassName, points))
		}

		observability.FramesPropagated.Inc()
		slog.Debug("propagated annotations",
			"video_id", video.VideoID,
			"from_frame", cur,
			"to_frame", cur+1,
			"annotations", len(dst.Annotations),
		)
		cur++
	}
	return nil
}

func nearest(v float64) int {
	return int(math.Round(v))
}
