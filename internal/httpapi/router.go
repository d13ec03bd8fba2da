package httpapi

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yanisfaquir/weatherboard/internal/observability"
)

// NewRouter wires all routes and middleware. The rate limiter and request
// timeout apply to the /api subtree only; health and metrics stay reachable
// while the API is saturated.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/records", h.ListRecords).Methods("GET")
	api.HandleFunc("/records", h.CreateRecord).Methods("POST")
	api.HandleFunc("/cities", h.ListCities).Methods("GET")
	api.HandleFunc("/cities/{city}", h.GetCityDetail).Methods("GET")
	api.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	api.HandleFunc("/sync/stats", h.GetSyncStats).Methods("GET")
	api.HandleFunc("/sync/reset", h.PostSyncReset).Methods("POST")
	api.HandleFunc("/sync/online", h.PostSyncOnline).Methods("POST")
	api.HandleFunc("/sync/local", h.DeleteLocalData).Methods("DELETE")
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.PutSettings).Methods("PUT")

	return router
}
