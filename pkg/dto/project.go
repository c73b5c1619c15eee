package dto

type ProjectResponse struct {
	ProjectID    string   `json:"project_id"`
	Name         string   `json:"name"`
	Classes      []string `json:"classes"`
	DefaultClass string   `json:"default_class"`
	ImageCount   int      `json:"image_count"`
	VideoCount   int      `json:"video_count"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	Total    int              `json:"total"`
}

type ProjectSummary struct {
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	ImageCount int    `json:"image_count"`
	VideoCount int    `json:"video_count"`
}

type RenameProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddClassRequest struct {
	ClassName string `json:"class_name" binding:"required"`
}

type SetClassesRequest struct {
	Classes      []string `json:"classes" binding:"required"`
	DefaultClass string   `json:"default_class" binding:"required"`
}

type SetDefaultClassRequest struct {
	ClassName string `json:"class_name" binding:"required"`
}
