package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything with a liveness check. In-memory backends used in
// tests simply pass nil.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	cache   Pinger
	durable Pinger
	queue   func() error
}

func NewSystemHandler(cache, durable Pinger, queuePing func() error) *SystemHandler {
	return &SystemHandler{cache: cache, durable: durable, queue: queuePing}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	if h.cache != nil {
		check("cache", h.cache.Ping)
	} else {
		checks["cache"] = "disabled"
	}
	if h.durable != nil {
		check("durable", h.durable.Ping)
	} else {
		checks["durable"] = "disabled"
	}
	if h.queue != nil {
		check("nats", func(context.Context) error { return h.queue() })
	} else {
		checks["nats"] = "disabled"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
