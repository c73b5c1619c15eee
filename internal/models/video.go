package models

import "log/slog"

// VideoFrame composes ImageAnnotation with its position in the video and a
// keyframe flag. A frame is addressable both by frame number and by image id.
type VideoFrame struct {
	ImageAnnotation `bson:",inline"`

	FrameNumber int  `json:"frame_number" bson:"frame_number"`
	KeyFrame    bool `json:"keyFrame" bson:"keyFrame"`
}

func NewVideoFrame(fileName string, width, height, frameNumber int) VideoFrame {
	return VideoFrame{
		ImageAnnotation: NewImageAnnotation(fileName, width, height),
		FrameNumber:     frameNumber,
	}
}

// VideoAnnotation owns an ordered, contiguous sequence of frames.
type VideoAnnotation struct {
	VideoID     string       `json:"video_id" bson:"video_id"`
	FileName    string       `json:"file_name" bson:"file_name"`
	FPS         int          `json:"fps" bson:"fps"`
	VideoFrames []VideoFrame `json:"videoFrames" bson:"videoFrames"`
}

func NewVideoAnnotation(fileName string, fps int) VideoAnnotation {
	return VideoAnnotation{
		VideoID:     newID(),
		FileName:    fileName,
		FPS:         fps,
		VideoFrames: []VideoFrame{},
	}
}

// AddFrame appends a frame, forcing frame numbers contiguous from 0 in
// append order regardless of what the caller set.
func (va *VideoAnnotation) AddFrame(frame VideoFrame) {
	frame.FrameNumber = len(va.VideoFrames)
	va.VideoFrames = append(va.VideoFrames, frame)
}

func (va *VideoAnnotation) GetFrame(frameNumber int) *VideoFrame {
	if frameNumber < 0 || frameNumber >= len(va.VideoFrames) {
		slog.Warn("frame not in videoFrames list", "frame_number", frameNumber, "video_id", va.VideoID)
		return nil
	}
	return &va.VideoFrames[frameNumber]
}

func (va *VideoAnnotation) GetFrameByID(imageID string) *VideoFrame {
	for i := range va.VideoFrames {
		if va.VideoFrames[i].ImageID == imageID {
			return &va.VideoFrames[i]
		}
	}
	slog.Warn("frame not in videoFrames list", "image_id", imageID, "video_id", va.VideoID)
	return nil
}

// SetKeyFrame marks or unmarks a frame as authored. Out-of-range frame
// numbers are soft misses.
func (va *VideoAnnotation) SetKeyFrame(frameNumber int, isKeyFrame bool) {
	if frameNumber < 0 || frameNumber >= len(va.VideoFrames) {
		slog.Warn("frame not in videoFrames list", "frame_number", frameNumber, "video_id", va.VideoID)
		return
	}
	va.VideoFrames[frameNumber].KeyFrame = isKeyFrame
}

// Duration returns the video length in seconds, 0 when fps is unset.
func (va *VideoAnnotation) Duration() float64 {
	if va.FPS == 0 {
		return 0
	}
	return float64(len(va.VideoFrames)) / float64(va.FPS)
}
