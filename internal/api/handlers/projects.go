package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/annotate/internal/auth"
	"github.com/your-org/annotate/internal/export"
	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/pkg/dto"
)

type ProjectHandler struct {
	store    *store.AnnotationStore
	producer *queue.Producer
}

func NewProjectHandler(st *store.AnnotationStore, producer *queue.Producer) *ProjectHandler {
	return &ProjectHandler{store: st, producer: producer}
}

func (h *ProjectHandler) notify(ctx context.Context, projectID string) {
	notifyProject(ctx, h.producer, projectID)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	project, err := h.store.CreateProject(c.Request.Context(), auth.Token(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProjectResponse(project))
}

func (h *ProjectHandler) List(c *gin.Context) {
	if auth.MustUser(c) == nil {
		return
	}

	summaries, err := h.store.GetProjectsForUser(c.Request.Context(), auth.Token(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.ProjectSummary, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, dto.ProjectSummary{
			ProjectID:  s.ProjectID,
			Name:       s.Name,
			ImageCount: s.ImageCount,
			VideoCount: s.VideoCount,
		})
	}
	c.JSON(http.StatusOK, dto.ProjectListResponse{Projects: resp, Total: len(resp)})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectResponse(project))
}

func (h *ProjectHandler) Rename(c *gin.Context) {
	var req dto.RenameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	if err := h.store.SetProjectName(c.Request.Context(), projectID, req.Name); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

// Save promotes a draft project to durable storage under the
// authenticated user's account.
func (h *ProjectHandler) Save(c *gin.Context) {
	user := auth.MustUser(c)
	if user == nil {
		return
	}

	projectID := c.Param("id")
	if err := h.store.SaveProject(c.Request.Context(), user.Email, projectID); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID := c.Param("id")
	if err := h.store.DeleteProject(c.Request.Context(), projectID, auth.Token(c)); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *ProjectHandler) AddClass(c *gin.Context) {
	var req dto.AddClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	if err := h.store.AddClass(c.Request.Context(), projectID, req.ClassName); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *ProjectHandler) SetClasses(c *gin.Context) {
	var req dto.SetClassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	if err := h.store.SetClasses(c.Request.Context(), projectID, req.Classes, req.DefaultClass); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *ProjectHandler) SetDefaultClass(c *gin.Context) {
	var req dto.SetDefaultClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID := c.Param("id")
	if err := h.store.SetDefaultClass(c.Request.Context(), projectID, req.ClassName); err != nil {
		respondError(c, err)
		return
	}

	h.notify(c.Request.Context(), projectID)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Export renders the project as a COCO dataset.
func (h *ProjectHandler) Export(c *gin.Context) {
	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	ds, err := export.ToCOCO(project)
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := export.Marshal(ds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="annotations.json"`)
	c.Data(http.StatusOK, "application/json", data)
}
