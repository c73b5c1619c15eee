package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/pkg/dto"
)

type VideoHandler struct {
	store    *store.AnnotationStore
	producer *queue.Producer
}

func NewVideoHandler(st *store.AnnotationStore, producer *queue.Producer) *VideoHandler {
	return &VideoHandler{store: st, producer: producer}
}

// Upload accepts a multipart form with the decoded frame images in
// order under "frames" plus an "fps" field.
func (h *VideoHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files := form.File["frames"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one frame required"})
		return
	}

	fps, err := strconv.Atoi(c.PostForm("fps"))
	if err != nil || fps <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid fps required"})
		return
	}

	fileName := c.PostForm("file_name")
	if fileName == "" {
		fileName = files[0].Filename
	}

	frames := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "open frame failed"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read frame failed"})
			return
		}
		frames = append(frames, data)
	}

	projectID := c.Param("id")
	video, err := h.store.AddVideo(c.Request.Context(), projectID, fileName, fps, frames)
	if err != nil {
		respondError(c, err)
		return
	}

	notifyProject(c.Request.Context(), h.producer, projectID)
	c.JSON(http.StatusCreated, toVideoResponse(video))
}

func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.store.GetVideoAnnotation(c.Request.Context(), c.Param("id"), c.Param("videoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video))
}

func (h *VideoHandler) SetKeyFrame(c *gin.Context) {
	frameNumber, err := strconv.Atoi(c.Param("frameNumber"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame number"})
		return
	}

	var req dto.SetKeyFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	err = h.store.SetKeyFrame(c.Request.Context(), projectID, c.Param("videoId"), frameNumber, req.KeyFrame)
	if err != nil {
		respondError(c, err)
		return
	}

	notifyProject(c.Request.Context(), h.producer, projectID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Interpolate enqueues annotation propagation for the video. The
// worker picks the task up asynchronously.
func (h *VideoHandler) Interpolate(c *gin.Context) {
	projectID := c.Param("id")
	videoID := c.Param("videoId")

	// Fail fast if the video does not exist.
	video, err := h.store.GetVideoAnnotation(c.Request.Context(), projectID, videoID)
	if err != nil {
		respondError(c, err)
		return
	}
	if video == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return
	}

	if h.producer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task queue not available"})
		return
	}

	err = h.producer.PublishInterpolation(c.Request.Context(), queue.InterpolationTask{
		ProjectID: projectID,
		VideoID:   videoID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *VideoHandler) Delete(c *gin.Context) {
	projectID := c.Param("id")
	if err := h.store.DeleteVideo(c.Request.Context(), projectID, c.Param("videoId")); err != nil {
		respondError(c, err)
		return
	}

	notifyProject(c.Request.Context(), h.producer, projectID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
