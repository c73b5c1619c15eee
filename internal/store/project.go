package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/your-org/annotate/internal/models"
	"github.com/your-org/annotate/internal/storage"
)

func projectQuery(projectID string) storage.Query {
	return storage.Query{"project_id": projectID}
}

// CreateProject builds a fresh draft project from the configured defaults and
// stores it cache-only. When a session token is supplied the project is also
// attached to that user's project list.
func (s *AnnotationStore) CreateProject(ctx context.Context, sessionToken string) (*models.Project, error) {
	project := models.NewProject(s.defaults.DefaultName, s.defaults.Classes, s.defaults.DefaultClass)

	if sessionToken != "" {
		if err := s.AddProjectToUser(ctx, sessionToken, project.ProjectID); err != nil {
			return nil, err
		}
	}

	if err := s.StoreProject(ctx, &project, false); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject resolves a project through the cache with durable fallback.
func (s *AnnotationStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	data, err := s.readThrough(ctx, collectionProjects, projectID, projectQuery(projectID))
	if err != nil {
		return nil, err
	}
	return decodeProject(projectID, data)
}

// GetProjectDurable bypasses the cache and returns the authoritative copy.
func (s *AnnotationStore) GetProjectDurable(ctx context.Context, projectID string) (*models.Project, error) {
	data, err := s.readDurableOnly(ctx, collectionProjects, projectQuery(projectID))
	if err != nil {
		return nil, err
	}
	return decodeProject(projectID, data)
}

func decodeProject(projectID string, data []byte) (*models.Project, error) {
	if data == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	var project models.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	return &project, nil
}

// StoreProject persists a project either as a draft (cache-only) or promoted
// (invalidate cache, upsert durable).
func (s *AnnotationStore) StoreProject(ctx context.Context, project *models.Project, promote bool) error {
	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("encode project %s: %w", project.ProjectID, err)
	}
	if promote {
		return s.writePromoted(ctx, collectionProjects, project.ProjectID, data, projectQuery(project.ProjectID))
	}
	return s.writeCacheOnly(ctx, project.ProjectID, data)
}

// projectPromoted reports whether the project has a durable copy, which
// decides the mode mutations persist back under.
func (s *AnnotationStore) projectPromoted(ctx context.Context, projectID string) (bool, error) {
	data, err := s.readDurableOnly(ctx, collectionProjects, projectQuery(projectID))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// mutateProject is the shared shape of every project mutation: load the
// owning project read-through, apply the in-memory mutation, persist the
// whole project back under the same draft/promoted mode it was loaded under.
func (s *AnnotationStore) mutateProject(ctx context.Context, projectID string, fn func(*models.Project) error) (*models.Project, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	promoted, err := s.projectPromoted(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(project); err != nil {
		return nil, err
	}
	if err := s.StoreProject(ctx, project, promoted); err != nil {
		return nil, err
	}
	return project, nil
}

// SetProjectName renames a project.
func (s *AnnotationStore) SetProjectName(ctx context.Context, projectID, name string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		p.SetName(name)
		return nil
	})
	return err
}

// AddClass appends a class to the project's class set.
func (s *AnnotationStore) AddClass(ctx context.Context, projectID, className string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		p.AddClass(className)
		return nil
	})
	return err
}

// SetClasses replaces the class set; annotations with classes outside the new
// set are rewritten to the new default. Fails with ErrValidation (project
// untouched) when the default is not a member.
func (s *AnnotationStore) SetClasses(ctx context.Context, projectID string, classes []string, defaultClass string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		return p.SetClasses(classes, defaultClass)
	})
	return err
}

// SetDefaultClass changes the default class; the class must already exist.
func (s *AnnotationStore) SetDefaultClass(ctx context.Context, projectID, className string) error {
	_, err := s.mutateProject(ctx, projectID, func(p *models.Project) error {
		return p.SetDefaultClass(className)
	})
	return err
}

// SaveProject promotes a draft project and every image payload it references
// to the durable store, and makes sure the owning user references it.
// The user is resolved durable-only: project-list mutations must start from
// the authoritative copy.
func (s *AnnotationStore) SaveProject(ctx context.Context, userEmail, projectID string) error {
	user, err := s.GetUserByEmail(ctx, userEmail)
	if err != nil {
		return err
	}

	if !user.HasProject(projectID) {
		slog.Debug("project not in user projects list, attaching", "project_id", projectID, "user_id", user.UserID)
		user.AddProject(projectID)
		if err := s.StoreUser(ctx, user); err != nil {
			return err
		}
	}

	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.StoreProject(ctx, project, true); err != nil {
		return err
	}

	for _, ia := range project.ImageAnnotations {
		if err := s.promoteImage(ctx, ia.ImageID); err != nil {
			return err
		}
	}
	for _, va := range project.VideoAnnotations {
		for _, frame := range va.VideoFrames {
			if err := s.promoteImage(ctx, frame.ImageID); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteProject removes a project from both stores, detaches it from the
// owning user and deletes every durable image payload it references.
func (s *AnnotationStore) DeleteProject(ctx context.Context, projectID, sessionToken string) error {
	user, err := s.GetUserBySession(ctx, sessionToken)
	if err != nil {
		return err
	}
	if user == nil {
		slog.Debug("no user for session, delete skipped", "project_id", projectID)
		return nil
	}
	if !user.RemoveProject(projectID) {
		slog.Warn("project not in user projects list", "project_id", projectID, "user_id", user.UserID)
		return nil
	}
	if err := s.StoreUser(ctx, user); err != nil {
		return err
	}

	// Best effort: the project may be a draft that already fell out of cache.
	if project, err := s.GetProject(ctx, projectID); err == nil {
		for _, ia := range project.ImageAnnotations {
			if err := s.DeleteImage(ctx, ia.ImageID); err != nil {
				return err
			}
		}
		for _, va := range project.VideoAnnotations {
			for _, frame := range va.VideoFrames {
				if err := s.DeleteImage(ctx, frame.ImageID); err != nil {
					return err
				}
			}
		}
	}

	return s.deleteEntity(ctx, collectionProjects, projectID, projectQuery(projectID))
}

// GetProjectsForUser returns summaries for every project the session's user
// references. Dangling references are logged and skipped.
func (s *AnnotationStore) GetProjectsForUser(ctx context.Context, sessionToken string) ([]models.ProjectSummary, error) {
	user, err := s.GetUserBySession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if user == nil {
		slog.Debug("no user for session")
		return []models.ProjectSummary{}, nil
	}

	summaries := make([]models.ProjectSummary, 0, len(user.Projects))
	for _, projectID := range user.Projects {
		project, err := s.GetProject(ctx, projectID)
		if err != nil {
			slog.Warn("project referenced by user not found", "project_id", projectID, "user_id", user.UserID)
			continue
		}
		summaries = append(summaries, project.Summary())
	}
	return summaries, nil
}
