package handlers

import (
	"bytes"
	"image"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/internal/vision"
	"github.com/your-org/annotate/pkg/dto"
)

// contourTolerance controls polygon simplification of predicted masks.
const contourTolerance = 0.01

// SemiAutoHandler drives the mask predictor for point and box prompted
// annotation. The predictor holds one image at a time, so prompt state
// is serialized behind a mutex.
type SemiAutoHandler struct {
	store     *store.AnnotationStore
	predictor vision.MaskPredictor

	mu      sync.Mutex
	imageID string
}

func NewSemiAutoHandler(st *store.AnnotationStore, predictor vision.MaskPredictor) *SemiAutoHandler {
	return &SemiAutoHandler{store: st, predictor: predictor}
}

func (h *SemiAutoHandler) available(c *gin.Context) bool {
	if h.predictor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mask predictor not available"})
		return false
	}
	return true
}

// Start loads the image into the predictor and caches its embeddings
// on the image entity.
func (h *SemiAutoHandler) Start(c *gin.Context) {
	if !h.available(c) {
		return
	}

	imageID := c.Param("imageId")
	img, err := h.store.GetImage(c.Request.Context(), imageID)
	if err != nil {
		respondError(c, err)
		return
	}
	if img == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.ImageBytes))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "decode image: " + err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.predictor.SetImage(decoded); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.imageID = imageID

	if emb := h.predictor.Embeddings(); emb != nil {
		if err := h.store.SetImageEmbeddings(c.Request.Context(), imageID, emb); err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *SemiAutoHandler) checkImage(c *gin.Context) bool {
	if h.imageID != c.Param("imageId") {
		c.JSON(http.StatusConflict, gin.H{"error": "predictor is set to a different image"})
		return false
	}
	return true
}

func (h *SemiAutoHandler) AddPoint(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req dto.AddPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Label != vision.LabelBackground && req.Label != vision.LabelForeground {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label must be 0 or 1"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.checkImage(c) {
		return
	}

	h.predictor.AddPoint(models.Point{req.X, req.Y}, req.Label)
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *SemiAutoHandler) SetBox(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req dto.SetBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.checkImage(c) {
		return
	}

	h.predictor.SetBox([4]float64{req.X1, req.Y1, req.X2, req.Y2})
	c.JSON(http.StatusOK, gin.H{"status": "set"})
}

// Predict runs the decoder over the accumulated prompts and returns
// the mask as simplified polygons.
func (h *SemiAutoHandler) Predict(c *gin.Context) {
	if !h.available(c) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.checkImage(c) {
		return
	}

	mask, err := h.predictor.Predict()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	polygons := vision.MaskPolygons(mask, contourTolerance)
	resp := dto.PredictResponse{Polygons: make([][][2]float64, 0, len(polygons))}
	for _, poly := range polygons {
		resp.Polygons = append(resp.Polygons, fromPoints(poly))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SemiAutoHandler) Reset(c *gin.Context) {
	if !h.available(c) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.predictor.ResetImage()
	h.imageID = ""
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
