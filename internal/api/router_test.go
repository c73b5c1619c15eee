package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/your-org/annotate/internal/api/ws"
	"github.com/your-org/annotate/internal/config"
	"github.com/your-org/annotate/internal/storage"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/pkg/dto"
)

func testRouter(t *testing.T) (*store.AnnotationStore, http.Handler) {
	t.Helper()
	st := store.New(storage.NewMemoryCache(), storage.NewMemoryDocs(), config.ProjectConfig{
		DefaultName:  "default",
		Classes:      []string{"cat", "dog"},
		DefaultClass: "cat",
	})

	hub := ws.NewHub()
	go hub.Run()

	return st, NewRouter(RouterConfig{Store: st, Hub: hub})
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// loginViaAPI walks the signup/activate/login flow over HTTP. The
// verification code is fished out of the store since no mailer is wired.
func loginViaAPI(t *testing.T, st *store.AnnotationStore, h http.Handler, email string) string {
	t.Helper()
	ctx := context.Background()

	w := doJSON(t, h, http.MethodPost, "/v1/auth/signup", "", dto.SignupRequest{
		Email: email, Password: "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", w.Code, w.Body.String())
	}

	// Signup already issued a code, but it was not delivered anywhere we
	// can see; issue a fresh one directly.
	code, err := st.AddActivationCode(ctx, email)
	if err != nil {
		t.Fatal(err)
	}
	w = doJSON(t, h, http.MethodPost, "/v1/auth/activate", "", dto.ActivateRequest{
		Email: email, Code: code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{
		Email: email, Password: "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	return decodeBody[dto.LoginResponse](t, w).Token
}

func TestAuthFlow(t *testing.T) {
	st, h := testRouter(t)
	token := loginViaAPI(t, st, h, "alice@example.com")
	if token == "" {
		t.Fatal("empty session token")
	}

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/auth/signup", "", dto.SignupRequest{
			Email: "alice@example.com", Password: "secret123",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("wrong password unauthorized", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{
			Email: "alice@example.com", Password: "wrong-password",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("logout invalidates token", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/auth/logout", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("logout: %d", w.Code)
		}
		w = doJSON(t, h, http.MethodGet, "/v1/projects", token, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("stale token served projects: %d", w.Code)
		}
	})
}

func TestProjectEndpoints(t *testing.T) {
	st, h := testRouter(t)
	token := loginViaAPI(t, st, h, "bob@example.com")

	w := doJSON(t, h, http.MethodPost, "/v1/projects", token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", w.Code, w.Body.String())
	}
	project := decodeBody[dto.ProjectResponse](t, w)

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/v1/projects/"+project.ProjectID, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get: %d", w.Code)
		}
		got := decodeBody[dto.ProjectResponse](t, w)
		if got.Name != "default" || len(got.Classes) != 2 {
			t.Errorf("project = %+v", got)
		}
	})

	t.Run("unknown project 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/v1/projects/nope", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("rename and list", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPut, "/v1/projects/"+project.ProjectID+"/name", token,
			dto.RenameProjectRequest{Name: "wildlife"})
		if w.Code != http.StatusOK {
			t.Fatalf("rename: %d %s", w.Code, w.Body.String())
		}

		w = doJSON(t, h, http.MethodGet, "/v1/projects", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("list: %d", w.Code)
		}
		list := decodeBody[dto.ProjectListResponse](t, w)
		if list.Total != 1 || list.Projects[0].Name != "wildlife" {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("anonymous list unauthorized", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/v1/projects", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("invalid set classes", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPut, "/v1/projects/"+project.ProjectID+"/classes", token,
			dto.SetClassesRequest{Classes: []string{"cat"}, DefaultClass: "dog"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("save promotes", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/projects/"+project.ProjectID+"/save", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("save: %d %s", w.Code, w.Body.String())
		}
		if _, err := st.GetProjectDurable(context.Background(), project.ProjectID); err != nil {
			t.Errorf("project not durable after save: %v", err)
		}
	})
}

func TestImageUploadAndAnnotate(t *testing.T) {
	st, h := testRouter(t)
	token := loginViaAPI(t, st, h, "carol@example.com")

	w := doJSON(t, h, http.MethodPost, "/v1/projects", token, nil)
	project := decodeBody[dto.ProjectResponse](t, w)

	// Multipart upload of a small PNG.
	img := image.NewGray(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * y)})
		}
	}
	var payload bytes.Buffer
	if err := png.Encode(&payload, img); err != nil {
		t.Fatal(err)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload.Bytes()); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/"+project.ProjectID+"/images", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	uploaded := decodeBody[dto.ImageAnnotationResponse](t, rec)
	if uploaded.Width != 16 || uploaded.Height != 12 {
		t.Errorf("dimensions = %dx%d", uploaded.Width, uploaded.Height)
	}

	base := fmt.Sprintf("/v1/projects/%s/images/%s", project.ProjectID, uploaded.ImageID)

	t.Run("annotate", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, base+"/annotations", token, dto.AddAnnotationRequest{
			ClassName: "cat",
			Points:    [][2]float64{{1, 1}, {5, 1}, {5, 5}},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("annotate: %d %s", w.Code, w.Body.String())
		}
		ann := decodeBody[dto.AnnotationResponse](t, w)
		if ann.ClassName != "cat" || len(ann.Points) != 3 {
			t.Errorf("annotation = %+v", ann)
		}

		w = doJSON(t, h, http.MethodGet, base, token, nil)
		got := decodeBody[dto.ImageAnnotationResponse](t, w)
		if len(got.Annotations) != 1 {
			t.Errorf("annotations = %+v", got.Annotations)
		}
	})

	t.Run("payload round trip", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/v1/images/"+uploaded.ImageID+"/payload", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("payload: %d", w.Code)
		}
		if !bytes.Equal(w.Body.Bytes(), payload.Bytes()) {
			t.Error("payload bytes do not round trip")
		}
	})

	t.Run("annotate unknown image 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost,
			"/v1/projects/"+project.ProjectID+"/images/nope/annotations", token,
			dto.AddAnnotationRequest{Points: [][2]float64{{0, 0}}})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("export", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, "/v1/projects/"+project.ProjectID+"/export", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("export: %d %s", w.Code, w.Body.String())
		}
		var ds struct {
			Images      []any `json:"images"`
			Annotations []any `json:"annotations"`
			Categories  []any `json:"categories"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &ds); err != nil {
			t.Fatal(err)
		}
		if len(ds.Images) != 1 || len(ds.Annotations) != 1 || len(ds.Categories) != 2 {
			t.Errorf("dataset = %+v", ds)
		}
	})
}

func TestSemiAutoUnavailable(t *testing.T) {
	st, h := testRouter(t)
	token := loginViaAPI(t, st, h, "dave@example.com")

	w := doJSON(t, h, http.MethodPost, "/v1/projects", token, nil)
	project := decodeBody[dto.ProjectResponse](t, w)

	w = doJSON(t, h, http.MethodPost,
		"/v1/projects/"+project.ProjectID+"/images/some-image/semiauto/predict", token, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a predictor", w.Code)
	}
}

// uploadVideo posts two small PNG frames as a multipart video upload.
func uploadVideo(t *testing.T, h http.Handler, token, projectID string) dto.VideoResponse {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 12, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 12; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*5 + y*9) % 256)})
		}
	}
	var frame bytes.Buffer
	if err := png.Encode(&frame, img); err != nil {
		t.Fatal(err)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	for i := 0; i < 2; i++ {
		part, err := mw.CreateFormFile("frames", fmt.Sprintf("frame_%d.png", i))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(frame.Bytes()); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.WriteField("fps", "30"); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("file_name", "clip.mp4"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/"+projectID+"/videos", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload video: %d %s", rec.Code, rec.Body.String())
	}
	return decodeBody[dto.VideoResponse](t, rec)
}

func TestVideoEndpoints(t *testing.T) {
	st, h := testRouter(t)
	token := loginViaAPI(t, st, h, "erin@example.com")

	w := doJSON(t, h, http.MethodPost, "/v1/projects", token, nil)
	project := decodeBody[dto.ProjectResponse](t, w)

	video := uploadVideo(t, h, token, project.ProjectID)
	if len(video.Frames) != 2 || video.FPS != 30 {
		t.Fatalf("video = %+v", video)
	}

	base := "/v1/projects/" + project.ProjectID + "/videos/"

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, base+video.VideoID, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get: %d %s", w.Code, w.Body.String())
		}
		got := decodeBody[dto.VideoResponse](t, w)
		if got.VideoID != video.VideoID || len(got.Frames) != 2 {
			t.Errorf("video = %+v", got)
		}
	})

	t.Run("get unknown video 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodGet, base+"no-such-video", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("interpolate unknown video 404", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, base+"no-such-video/interpolate", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("interpolate without queue 503", func(t *testing.T) {
		// The video exists, so the failure is the missing queue.
		w := doJSON(t, h, http.MethodPost, base+video.VideoID+"/interpolate", token, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("keyframe", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPut,
			base+video.VideoID+"/frames/0/keyframe", token, dto.SetKeyFrameRequest{KeyFrame: true})
		if w.Code != http.StatusOK {
			t.Fatalf("set keyframe: %d %s", w.Code, w.Body.String())
		}
		w = doJSON(t, h, http.MethodGet, base+video.VideoID, token, nil)
		got := decodeBody[dto.VideoResponse](t, w)
		if !got.Frames[0].KeyFrame || got.Frames[1].KeyFrame {
			t.Errorf("keyframe flags = %v %v", got.Frames[0].KeyFrame, got.Frames[1].KeyFrame)
		}
	})
}

func TestHealthz(t *testing.T) {
	_, h := testRouter(t)

	w := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthz = %d", w.Code)
	}

	// All probes disabled still reads ready.
	w = doJSON(t, h, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("readyz = %d %s", w.Code, w.Body.String())
	}
}
