package models

import (
	"errors"
	"testing"
)

func TestNewProject(t *testing.T) {
	p1 := NewProject("first", []string{"cat", "dog"}, "cat")
	p2 := NewProject("second", []string{"cat", "dog"}, "cat")

	if p1.ProjectID == "" {
		t.Fatal("project id is empty")
	}
	if p1.ProjectID == p2.ProjectID {
		t.Errorf("two projects share id %s", p1.ProjectID)
	}
	if p1.DefaultClass != "cat" {
		t.Errorf("default class = %q, want cat", p1.DefaultClass)
	}
}

func TestProjectClasses(t *testing.T) {
	t.Run("add duplicate ignored", func(t *testing.T) {
		p := NewProject("p", []string{"cat"}, "cat")
		p.AddClass("dog")
		p.AddClass("dog")
		if len(p.Classes) != 2 {
			t.Errorf("classes = %v, want [cat dog]", p.Classes)
		}
	})

	t.Run("set default requires membership", func(t *testing.T) {
		p := NewProject("p", []string{"cat", "dog"}, "cat")
		if err := p.SetDefaultClass("dog"); err != nil {
			t.Fatalf("set default dog: %v", err)
		}
		err := p.SetDefaultClass("bird")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("set default bird: got %v, want ErrValidation", err)
		}
		if p.DefaultClass != "dog" {
			t.Errorf("default class = %q after failed set, want dog", p.DefaultClass)
		}
	})
}

func TestProjectSetClasses(t *testing.T) {
	setup := func() Project {
		p := NewProject("p", []string{"cat", "dog"}, "cat")
		ia := NewImageAnnotation("img.png", 100, 100)
		ia.AddAnnotation(NewAnnotation("dog", []Point{{0, 0}, {1, 0}, {0, 1}}))
		ia.AddAnnotation(NewAnnotation("cat", []Point{{5, 5}, {6, 5}, {5, 6}}))
		if err := p.AddImageAnnotation(ia); err != nil {
			t.Fatalf("add image: %v", err)
		}

		video := NewVideoAnnotation("clip.mp4", 30)
		frame := NewVideoFrame("frame0.png", 100, 100, 0)
		frame.AddAnnotation(NewAnnotation("dog", []Point{{2, 2}, {3, 2}, {2, 3}}))
		video.AddFrame(frame)
		p.AddVideoAnnotation(video)
		return p
	}

	t.Run("rewrites removed classes to new default", func(t *testing.T) {
		p := setup()
		if err := p.SetClasses([]string{"cat", "bird"}, "bird"); err != nil {
			t.Fatalf("set classes: %v", err)
		}

		if got := p.ImageAnnotations[0].Annotations[0].ClassName; got != "bird" {
			t.Errorf("image annotation class = %q, want bird", got)
		}
		if got := p.ImageAnnotations[0].Annotations[1].ClassName; got != "cat" {
			t.Errorf("surviving class rewritten to %q", got)
		}
		if got := p.VideoAnnotations[0].VideoFrames[0].Annotations[0].ClassName; got != "bird" {
			t.Errorf("video frame annotation class = %q, want bird", got)
		}
	})

	t.Run("duplicate class fails untouched", func(t *testing.T) {
		p := setup()
		err := p.SetClasses([]string{"cat", "cat"}, "cat")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("got %v, want ErrValidation", err)
		}
		if len(p.Classes) != 2 || p.Classes[0] != "cat" || p.Classes[1] != "dog" {
			t.Errorf("classes mutated on failure: %v", p.Classes)
		}
		if got := p.ImageAnnotations[0].Annotations[0].ClassName; got != "dog" {
			t.Errorf("annotation mutated on failure: %q", got)
		}
	})

	t.Run("default outside set fails", func(t *testing.T) {
		p := setup()
		err := p.SetClasses([]string{"cat", "dog"}, "bird")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})
}

func TestProjectImages(t *testing.T) {
	t.Run("duplicate image id rejected", func(t *testing.T) {
		p := NewProject("p", []string{"cat"}, "cat")
		ia := NewImageAnnotation("img.png", 10, 10)
		if err := p.AddImageAnnotation(ia); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if err := p.AddImageAnnotation(ia); !errors.Is(err, ErrValidation) {
			t.Errorf("second add: got %v, want ErrValidation", err)
		}
	})

	t.Run("lookup through video", func(t *testing.T) {
		p := NewProject("p", []string{"cat"}, "cat")
		video := NewVideoAnnotation("clip.mp4", 30)
		frame := NewVideoFrame("frame0.png", 10, 10, 0)
		video.AddFrame(frame)
		p.AddVideoAnnotation(video)

		got := p.GetImageAnnotation(frame.ImageID, video.VideoID)
		if got == nil {
			t.Fatal("frame not found through video")
		}
		if got.ImageID != frame.ImageID {
			t.Errorf("image id = %s, want %s", got.ImageID, frame.ImageID)
		}
		if p.GetImageAnnotation(frame.ImageID, "") != nil {
			t.Error("video frame resolved as a direct project image")
		}
	})

	t.Run("remove missing is soft", func(t *testing.T) {
		p := NewProject("p", []string{"cat"}, "cat")
		if p.RemoveImageAnnotation("nope") {
			t.Error("removed an image that does not exist")
		}
	})
}

func TestProjectSummary(t *testing.T) {
	p := NewProject("p", []string{"cat"}, "cat")
	if err := p.AddImageAnnotation(NewImageAnnotation("a.png", 10, 10)); err != nil {
		t.Fatal(err)
	}
	p.AddVideoAnnotation(NewVideoAnnotation("clip.mp4", 30))

	s := p.Summary()
	if s.ProjectID != p.ProjectID || s.ImageCount != 1 || s.VideoCount != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestAnnotationArea(t *testing.T) {
	a := NewAnnotation("cat", []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	if got := a.Area(); got != 100 {
		t.Errorf("area = %v, want 100", got)
	}

	degenerate := NewAnnotation("cat", []Point{{0, 0}, {1, 1}})
	if got := degenerate.Area(); got != 0 {
		t.Errorf("area of 2-point polygon = %v, want 0", got)
	}
}
