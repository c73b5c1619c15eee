package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/pkg/dto"
)

type ImageHandler struct {
	store    *store.AnnotationStore
	producer *queue.Producer
}

func NewImageHandler(st *store.AnnotationStore, producer *queue.Producer) *ImageHandler {
	return &ImageHandler{store: st, producer: producer}
}

func (h *ImageHandler) notify(c *gin.Context, projectID string) {
	notifyProject(c.Request.Context(), h.producer, projectID)
}

// Upload accepts a multipart image and registers it on the project.
func (h *ImageHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	projectID := c.Param("id")
	ia, err := h.store.AddImage(c.Request.Context(), projectID, header.Filename, imageBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify(c, projectID)
	c.JSON(http.StatusCreated, toImageAnnotationResponse(*ia))
}

// Payload serves the raw image bytes.
func (h *ImageHandler) Payload(c *gin.Context) {
	img, err := h.store.GetImage(c.Request.Context(), c.Param("imageId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(img.ImageBytes), img.ImageBytes)
}

func (h *ImageHandler) GetAnnotation(c *gin.Context) {
	ia, err := h.store.GetImageAnnotation(c.Request.Context(),
		c.Param("id"), c.Param("imageId"), c.Query("video_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ia == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.JSON(http.StatusOK, toImageAnnotationResponse(*ia))
}

func (h *ImageHandler) Delete(c *gin.Context) {
	projectID := c.Param("id")
	if err := h.store.RemoveImage(c.Request.Context(), projectID, c.Param("imageId")); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c, projectID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ImageHandler) AddAnnotation(c *gin.Context) {
	var req dto.AddAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	ann, err := h.store.AddAnnotation(c.Request.Context(),
		projectID, c.Param("imageId"), req.VideoID, req.ClassName, toPoints(req.Points))
	if err != nil {
		respondError(c, err)
		return
	}
	if ann == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	h.notify(c, projectID)
	c.JSON(http.StatusCreated, toAnnotationResponse(*ann))
}

func (h *ImageHandler) ModifyAnnotation(c *gin.Context) {
	var req dto.ModifyAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	err := h.store.ModifyAnnotation(c.Request.Context(),
		projectID, c.Param("imageId"), c.Param("annotationId"), req.VideoID,
		toPoints(req.Points), req.ClassName)
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify(c, projectID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *ImageHandler) DeleteAnnotation(c *gin.Context) {
	projectID := c.Param("id")
	err := h.store.DeleteAnnotation(c.Request.Context(),
		projectID, c.Param("imageId"), c.Param("annotationId"), c.Query("video_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	h.notify(c, projectID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
