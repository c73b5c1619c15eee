package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/annotate/internal/api/handlers"
	"github.com/your-org/annotate/internal/api/ws"
	"github.com/your-org/annotate/internal/auth"
	"github.com/your-org/annotate/internal/mail"
	"github.com/your-org/annotate/internal/queue"
	"github.com/your-org/annotate/internal/store"
	"github.com/your-org/annotate/internal/vision"
)

type RouterConfig struct {
	Store    *store.AnnotationStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Mailer   mail.Sender
	// Predictor may be nil; semi-auto endpoints then return 503.
	Predictor vision.MaskPredictor
	// Liveness probes for /readyz; nil entries report "disabled".
	CachePing   handlers.Pinger
	DurablePing handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	var queuePing func() error
	if cfg.Producer != nil {
		queuePing = cfg.Producer.Ping
	}
	systemH := handlers.NewSystemHandler(cfg.CachePing, cfg.DurablePing, queuePing)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1; session tokens resolved per request, anonymous allowed
	v1 := r.Group("/v1")
	v1.Use(auth.SessionMiddleware(cfg.Store))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Accounts
	userH := handlers.NewUserHandler(cfg.Store, cfg.Mailer)
	v1.POST("/auth/signup", userH.Signup)
	v1.POST("/auth/activate", userH.Activate)
	v1.POST("/auth/activate/resend", userH.ResendActivation)
	v1.POST("/auth/login", userH.Login)
	v1.POST("/auth/logout", userH.Logout)
	v1.POST("/auth/password/forgot", userH.RequestPasswordReset)
	v1.POST("/auth/password/reset", userH.ResetPassword)

	// Projects
	projectH := handlers.NewProjectHandler(cfg.Store, cfg.Producer)
	v1.POST("/projects", projectH.Create)
	v1.GET("/projects", projectH.List)
	v1.GET("/projects/:id", projectH.Get)
	v1.PUT("/projects/:id/name", projectH.Rename)
	v1.POST("/projects/:id/save", projectH.Save)
	v1.DELETE("/projects/:id", projectH.Delete)
	v1.GET("/projects/:id/export", projectH.Export)
	v1.POST("/projects/:id/classes", projectH.AddClass)
	v1.PUT("/projects/:id/classes", projectH.SetClasses)
	v1.PUT("/projects/:id/classes/default", projectH.SetDefaultClass)

	// Images & annotations
	imageH := handlers.NewImageHandler(cfg.Store, cfg.Producer)
	v1.POST("/projects/:id/images", imageH.Upload)
	v1.GET("/projects/:id/images/:imageId", imageH.GetAnnotation)
	v1.DELETE("/projects/:id/images/:imageId", imageH.Delete)
	v1.GET("/images/:imageId/payload", imageH.Payload)
	v1.POST("/projects/:id/images/:imageId/annotations", imageH.AddAnnotation)
	v1.PUT("/projects/:id/images/:imageId/annotations/:annotationId", imageH.ModifyAnnotation)
	v1.DELETE("/projects/:id/images/:imageId/annotations/:annotationId", imageH.DeleteAnnotation)

	// Videos
	videoH := handlers.NewVideoHandler(cfg.Store, cfg.Producer)
	v1.POST("/projects/:id/videos", videoH.Upload)
	v1.GET("/projects/:id/videos/:videoId", videoH.Get)
	v1.PUT("/projects/:id/videos/:videoId/frames/:frameNumber/keyframe", videoH.SetKeyFrame)
	v1.POST("/projects/:id/videos/:videoId/interpolate", videoH.Interpolate)
	v1.DELETE("/projects/:id/videos/:videoId", videoH.Delete)

	// Semi-automatic annotation
	semiH := handlers.NewSemiAutoHandler(cfg.Store, cfg.Predictor)
	v1.POST("/projects/:id/images/:imageId/semiauto/start", semiH.Start)
	v1.POST("/projects/:id/images/:imageId/semiauto/points", semiH.AddPoint)
	v1.POST("/projects/:id/images/:imageId/semiauto/box", semiH.SetBox)
	v1.POST("/projects/:id/images/:imageId/semiauto/predict", semiH.Predict)
	v1.POST("/projects/:id/images/:imageId/semiauto/reset", semiH.Reset)

	return r
}
