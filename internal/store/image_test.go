package store

import (
	"context"
	"errors"
	"testing"

	"github.com/your-org/annotate/internal/models"
)

func TestAddImage(t *testing.T) {
	s, _, _ := testStore()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	payload := pngBytes(t, 20, 15)
	ia, err := s.AddImage(ctx, project.ProjectID, "photo.png", payload)
	if err != nil {
		t.Fatalf("add image: %v", err)
	}
	if ia.Width != 20 || ia.Height != 15 {
		t.Errorf("dimensions = %dx%d, want 20x15", ia.Width, ia.Height)
	}

	img, err := s.GetImage(ctx, ia.ImageID)
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	if len(img.ImageBytes) != len(payload) {
		t.Errorf("payload size = %d, want %d", len(img.ImageBytes), len(payload))
	}
	if img.Embeddings != nil {
		t.Error("fresh image has embeddings")
	}

	t.Run("garbage payload rejected", func(t *testing.T) {
		_, err := s.AddImage(ctx, project.ProjectID, "junk.bin", []byte("not an image"))
		if err == nil {
			t.Error("garbage payload accepted")
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := s.AddImage(ctx, "no-such-project", "photo.png", payload)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestAnnotationLifecycle(t *testing.T) {
	s, _, _ := testStore()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	ia, err := s.AddImage(ctx, project.ProjectID, "photo.png", pngBytes(t, 10, 10))
	if err != nil {
		t.Fatal(err)
	}

	points := []models.Point{{1, 1}, {5, 1}, {5, 5}}
	ann, err := s.AddAnnotation(ctx, project.ProjectID, ia.ImageID, "", "unlisted-class", points)
	if err != nil {
		t.Fatalf("add annotation: %v", err)
	}
	if ann == nil {
		t.Fatal("annotation not created")
	}
	// Class membership is not checked at annotation time.
	if ann.ClassName != "unlisted-class" {
		t.Errorf("class = %q", ann.ClassName)
	}

	t.Run("modify", func(t *testing.T) {
		newPoints := []models.Point{{2, 2}, {6, 2}, {6, 6}}
		err := s.ModifyAnnotation(ctx, project.ProjectID, ia.ImageID, ann.AnnotationID, "", newPoints, "cat")
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.GetImageAnnotation(ctx, project.ProjectID, ia.ImageID, "")
		if err != nil || got == nil {
			t.Fatalf("get image annotation: %v, %v", got, err)
		}
		if got.Annotations[0].ClassName != "cat" || got.Annotations[0].Points[0] != (models.Point{2, 2}) {
			t.Errorf("annotation = %+v", got.Annotations[0])
		}
	})

	t.Run("soft miss on unknown image", func(t *testing.T) {
		created, err := s.AddAnnotation(ctx, project.ProjectID, "no-such-image", "", "cat", points)
		if err != nil {
			t.Fatalf("soft miss errored: %v", err)
		}
		if created != nil {
			t.Errorf("annotation created on unknown image: %+v", created)
		}

		got, err := s.GetImageAnnotation(ctx, project.ProjectID, "no-such-image", "")
		if err != nil || got != nil {
			t.Errorf("lookup of unknown image: %v, %v", got, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		err := s.DeleteAnnotation(ctx, project.ProjectID, ia.ImageID, ann.AnnotationID, "")
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.GetImageAnnotation(ctx, project.ProjectID, ia.ImageID, "")
		if err != nil || got == nil {
			t.Fatal(err)
		}
		if len(got.Annotations) != 0 {
			t.Errorf("annotations after delete = %+v", got.Annotations)
		}
	})
}

func TestSetImageEmbeddings(t *testing.T) {
	s, _, _ := testStore()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	ia, err := s.AddImage(ctx, project.ProjectID, "photo.png", pngBytes(t, 10, 10))
	if err != nil {
		t.Fatal(err)
	}

	emb := []float32{0.1, 0.2, 0.3}
	if err := s.SetImageEmbeddings(ctx, ia.ImageID, emb); err != nil {
		t.Fatalf("set embeddings: %v", err)
	}

	img, err := s.GetImage(ctx, ia.ImageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Embeddings) != 3 || img.Embeddings[1] != 0.2 {
		t.Errorf("embeddings = %v", img.Embeddings)
	}

	// The payload entity keeps its draft mode.
	promoted, err := s.imagePromoted(ctx, ia.ImageID)
	if err != nil {
		t.Fatal(err)
	}
	if promoted {
		t.Error("setting embeddings promoted a draft image")
	}
}

func TestRemoveImage(t *testing.T) {
	s, _, _ := testStore()
	ctx := context.Background()

	project, err := s.CreateProject(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	ia, err := s.AddImage(ctx, project.ProjectID, "photo.png", pngBytes(t, 10, 10))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveImage(ctx, project.ProjectID, ia.ImageID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	got, err := s.GetProject(ctx, project.ProjectID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ImageAnnotations) != 0 {
		t.Errorf("image still on project: %+v", got.ImageAnnotations)
	}
	if _, err := s.GetImage(ctx, ia.ImageID); !errors.Is(err, ErrNotFound) {
		t.Errorf("payload survived removal: %v", err)
	}
}
