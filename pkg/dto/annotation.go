package dto

type AnnotationResponse struct {
	AnnotationID string       `json:"annotation_id"`
	ClassName    string       `json:"class_name"`
	Points       [][2]float64 `json:"points"`
}

type ImageAnnotationResponse struct {
	ImageID     string               `json:"image_id"`
	FileName    string               `json:"file_name"`
	Width       int                  `json:"width"`
	Height      int                  `json:"height"`
	Annotations []AnnotationResponse `json:"annotations"`
}

type AddAnnotationRequest struct {
	ClassName string       `json:"class_name"`
	Points    [][2]float64 `json:"points" binding:"required"`
	VideoID   string       `json:"video_id"`
}

type ModifyAnnotationRequest struct {
	ClassName string       `json:"class_name"`
	Points    [][2]float64 `json:"points"`
	VideoID   string       `json:"video_id"`
}

type VideoFrameResponse struct {
	ImageAnnotationResponse
	FrameNumber int  `json:"frame_number"`
	KeyFrame    bool `json:"key_frame"`
}

type VideoResponse struct {
	VideoID  string               `json:"video_id"`
	FileName string               `json:"file_name"`
	FPS      int                  `json:"fps"`
	Duration float64              `json:"duration"`
	Frames   []VideoFrameResponse `json:"frames"`
}

type SetKeyFrameRequest struct {
	KeyFrame bool `json:"key_frame"`
}

// WSEvent is a WebSocket message telling collaborators a project changed.
type WSEvent struct {
	Type      string `json:"type"` // project_updated, interpolation_done
	ProjectID string `json:"project_id"`
	VideoID   string `json:"video_id,omitempty"`
}
