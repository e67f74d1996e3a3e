// Package httpapi exposes the allocation webhook, the availability read
// views, and the admin CRUD over closures and capacity overrides.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"adviser-allocation/internal/metrics"
)

// Router wraps the standard-library ServeMux; no third-party routing
// dependency needed for this surface.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAllocationRoutes mounts the allocation webhook.
func (r *Router) RegisterAllocationRoutes(h *AllocationHandler) {
	r.Handle("/post/allocate", h.HandleAllocate)
}

// RegisterAvailabilityRoutes mounts the operator read views.
func (r *Router) RegisterAvailabilityRoutes(h *AvailabilityHandler) {
	r.Handle("/availability/earliest", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetEarliest(w, req)
	})
	r.Handle("/availability/schedule", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetSchedule(w, req)
	})
}

// RegisterAdminRoutes mounts the closure and capacity-override CRUD.
func (r *Router) RegisterAdminRoutes(closures *ClosuresHandler, overrides *OverridesHandler) {
	r.Handle("/closures", closures.HandleCollection)
	r.Handle("/closures/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/closures/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		closures.HandleItem(w, req, id)
	})

	r.Handle("/capacity_overrides", overrides.HandleCollection)
	r.Handle("/capacity_overrides/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/capacity_overrides/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		overrides.HandleItem(w, req, id)
	})
}

// RegisterOpsRoutes mounts health and metrics.
func (r *Router) RegisterOpsRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	metricsHandler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	r.Handle("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metricsHandler.ServeHTTP(w, req)
	})
}
