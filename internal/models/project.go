package models

import (
	"fmt"
	"log/slog"
)

// Project is the unit of persistence: it exclusively owns its image and video
// annotations as embedded values. Only the raw image payloads live elsewhere.
type Project struct {
	ProjectID        string            `json:"project_id" bson:"project_id"`
	Name             string            `json:"name" bson:"name"`
	Classes          []string          `json:"classes" bson:"classes"`
	DefaultClass     string            `json:"default_class" bson:"default_class"`
	ImageAnnotations []ImageAnnotation `json:"imageAnnotations" bson:"imageAnnotations"`
	VideoAnnotations []VideoAnnotation `json:"videoAnnotations" bson:"videoAnnotations"`
}

func NewProject(name string, classes []string, defaultClass string) Project {
	return Project{
		ProjectID:        newID(),
		Name:             name,
		Classes:          append([]string(nil), classes...),
		DefaultClass:     defaultClass,
		ImageAnnotations: []ImageAnnotation{},
		VideoAnnotations: []VideoAnnotation{},
	}
}

func (p *Project) SetName(name string) {
	p.Name = name
}

// AddClass appends a class name; duplicates are logged and ignored.
func (p *Project) AddClass(className string) {
	for _, c := range p.Classes {
		if c == className {
			slog.Warn("class already in classes list", "class", className, "project_id", p.ProjectID)
			return
		}
	}
	p.Classes = append(p.Classes, className)
}

func (p *Project) RemoveClass(className string) {
	for i, c := range p.Classes {
		if c == className {
			p.Classes = append(p.Classes[:i], p.Classes[i+1:]...)
			return
		}
	}
	slog.Warn("class not in classes list", "class", className, "project_id", p.ProjectID)
}

// SetDefaultClass fails when className is not a member of Classes.
func (p *Project) SetDefaultClass(className string) error {
	for _, c := range p.Classes {
		if c == className {
			p.DefaultClass = className
			return nil
		}
	}
	return fmt.Errorf("%w: default class %q not among classes", ErrValidation, className)
}

// SetClasses replaces the class set and default class atomically. Every
// annotation whose class is absent from the new set is rewritten to the new
// default. On validation failure the project is left unmodified.
func (p *Project) SetClasses(classes []string, defaultClass string) error {
	seen := make(map[string]bool, len(classes))
	valid := false
	for _, c := range classes {
		if seen[c] {
			return fmt.Errorf("%w: duplicate class %q", ErrValidation, c)
		}
		seen[c] = true
		if c == defaultClass {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("%w: default class %q not among classes", ErrValidation, defaultClass)
	}

	p.Classes = append([]string(nil), classes...)
	p.DefaultClass = defaultClass

	rewrite := func(anns []Annotation) {
		for i := range anns {
			if !seen[anns[i].ClassName] {
				anns[i].ClassName = defaultClass
			}
		}
	}
	for i := range p.ImageAnnotations {
		rewrite(p.ImageAnnotations[i].Annotations)
	}
	for i := range p.VideoAnnotations {
		for j := range p.VideoAnnotations[i].VideoFrames {
			rewrite(p.VideoAnnotations[i].VideoFrames[j].Annotations)
		}
	}
	return nil
}

// AddImageAnnotation rejects duplicate image ids within the project.
func (p *Project) AddImageAnnotation(ia ImageAnnotation) error {
	if p.findImage(ia.ImageID) != nil {
		return fmt.Errorf("%w: image %s already in project", ErrValidation, ia.ImageID)
	}
	p.ImageAnnotations = append(p.ImageAnnotations, ia)
	return nil
}

func (p *Project) findImage(imageID string) *ImageAnnotation {
	for i := range p.ImageAnnotations {
		if p.ImageAnnotations[i].ImageID == imageID {
			return &p.ImageAnnotations[i]
		}
	}
	return nil
}

// GetImageAnnotation resolves an image either directly from the project or,
// when videoID is non-empty, from the frames of that video. A miss is soft.
func (p *Project) GetImageAnnotation(imageID, videoID string) *ImageAnnotation {
	if videoID != "" {
		video := p.GetVideoAnnotation(videoID)
		if video == nil {
			return nil
		}
		if frame := video.GetFrameByID(imageID); frame != nil {
			return &frame.ImageAnnotation
		}
		return nil
	}
	if ia := p.findImage(imageID); ia != nil {
		return ia
	}
	slog.Warn("image not in imageAnnotations list", "image_id", imageID, "project_id", p.ProjectID)
	return nil
}

func (p *Project) RemoveImageAnnotation(imageID string) bool {
	for i := range p.ImageAnnotations {
		if p.ImageAnnotations[i].ImageID == imageID {
			p.ImageAnnotations = append(p.ImageAnnotations[:i], p.ImageAnnotations[i+1:]...)
			return true
		}
	}
	slog.Warn("image not in imageAnnotations list", "image_id", imageID, "project_id", p.ProjectID)
	return false
}

func (p *Project) AddVideoAnnotation(va VideoAnnotation) {
	p.VideoAnnotations = append(p.VideoAnnotations, va)
}

func (p *Project) GetVideoAnnotation(videoID string) *VideoAnnotation {
	for i := range p.VideoAnnotations {
		if p.VideoAnnotations[i].VideoID == videoID {
			return &p.VideoAnnotations[i]
		}
	}
	slog.Warn("video not in videoAnnotations list", "video_id", videoID, "project_id", p.ProjectID)
	return nil
}

func (p *Project) RemoveVideoAnnotation(videoID string) bool {
	for i := range p.VideoAnnotations {
		if p.VideoAnnotations[i].VideoID == videoID {
			p.VideoAnnotations = append(p.VideoAnnotations[:i], p.VideoAnnotations[i+1:]...)
			return true
		}
	}
	slog.Warn("video not in videoAnnotations list", "video_id", videoID, "project_id", p.ProjectID)
	return false
}

// ProjectSummary is the lightweight listing form of a project.
type ProjectSummary struct {
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	ImageCount int    `json:"image_count"`
	VideoCount int    `json:"video_count"`
}

func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ProjectID:  p.ProjectID,
		Name:       p.Name,
		ImageCount: len(p.ImageAnnotations),
		VideoCount: len(p.VideoAnnotations),
	}
}
