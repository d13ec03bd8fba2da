package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/aggregate"
	"github.com/yanisfaquir/weatherboard/internal/lifecycle"
	"github.com/yanisfaquir/weatherboard/internal/models"
	"github.com/yanisfaquir/weatherboard/internal/observability"
	"github.com/yanisfaquir/weatherboard/internal/settings"
	"github.com/yanisfaquir/weatherboard/internal/syncer"
	"github.com/yanisfaquir/weatherboard/internal/traffic"
	"github.com/yanisfaquir/weatherboard/internal/validation"
)

const (
	cityMinLength = 1
	cityMaxLength = 100
)

// trafficWindow is the sliding window used for the health report's
// remote-call error rate and rate-limit denial count.
const trafficWindow = time.Minute

var validate = validator.New()

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sync             *syncer.Syncer
	settings         *settings.Service
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(sync *syncer.Syncer, settingsSvc *settings.Service, logger *zap.Logger) *Handler {
	return &Handler{
		sync:     sync,
		settings: settingsSvc,
		logger:   logger,
	}
}

// createRecordRequest is the POST /api/records payload. Temperature and
// altitude are allowed to be zero, so finiteness is checked by the model.
type createRecordRequest struct {
	City            string    `json:"city" validate:"required"`
	Temperature     float64   `json:"temperature"`
	TemperatureUnit string    `json:"temperatureUnit" validate:"omitempty,oneof=celsius fahrenheit"`
	IsRaining       bool      `json:"isRaining"`
	Date            time.Time `json:"date"`
	NetworkPower    int       `json:"networkPower" validate:"required,min=1,max=5"`
	Altitude        float64   `json:"altitude"`
	AltitudeUnit    string    `json:"altitudeUnit" validate:"omitempty,oneof=meters feet"`
}

// ListRecords handles GET /api/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.sync.Fetch(r.Context(), syncer.ResourceWeatherData)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// CreateRecord handles POST /api/records.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_RECORD", validationMessage(err))
		return
	}
	city, err := validation.ValidateCity(req.City, cityMinLength, cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	rec := models.WeatherRecord{
		City:            city,
		Temperature:     req.Temperature,
		TemperatureUnit: models.TemperatureUnit(req.TemperatureUnit),
		IsRaining:       req.IsRaining,
		Date:            req.Date,
		NetworkPower:    models.NetworkPower(req.NetworkPower),
		Altitude:        req.Altitude,
		AltitudeUnit:    models.AltitudeUnit(req.AltitudeUnit),
	}
	if rec.TemperatureUnit == "" {
		rec.TemperatureUnit = models.TemperatureCelsius
	}
	if rec.AltitudeUnit == "" {
		rec.AltitudeUnit = models.AltitudeMeters
	}

	created, err := h.sync.Create(r.Context(), syncer.ResourceWeatherData, rec)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrStorageUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "local storage is unavailable")
		case errors.Is(err, models.ErrCityRequired),
			errors.Is(err, models.ErrTemperatureInvalid),
			errors.Is(err, models.ErrAltitudeInvalid),
			errors.Is(err, models.ErrNetworkPowerInvalid):
			writeError(w, r, http.StatusBadRequest, "INVALID_RECORD", err.Error())
		default:
			writeServiceError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListCities handles GET /api/cities. The city list is derived from the
// cities resource, deduplicated and sorted.
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	records, err := h.sync.Fetch(r.Context(), syncer.ResourceCities)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	seen := make(map[string]string)
	for _, rec := range records {
		key := strings.ToLower(strings.TrimSpace(rec.City))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; !ok {
			seen[key] = strings.TrimSpace(rec.City)
		}
	}
	cities := make([]string, 0, len(seen))
	for _, name := range seen {
		cities = append(cities, name)
	}
	sort.Strings(cities)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cities": cities,
		"count":  len(cities),
	})
}

// GetDashboard handles GET /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	records, err := h.sync.Fetch(r.Context(), syncer.ResourceWeatherData)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Summary(records))
}

// GetCityDetail handles GET /api/cities/{city}.
func (h *Handler) GetCityDetail(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], cityMinLength, cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	records, err := h.sync.Fetch(r.Context(), syncer.ResourceWeatherData)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	detail, ok := aggregate.Detail(city, records)
	if !ok {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "no records for city: "+city)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetSyncStats handles GET /api/sync/stats.
func (h *Handler) GetSyncStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Stats())
}

// PostSyncReset handles POST /api/sync/reset.
func (h *Handler) PostSyncReset(w http.ResponseWriter, r *http.Request) {
	h.sync.ResetBudget()
	writeJSON(w, http.StatusOK, h.sync.Stats())
}

// PostSyncOnline handles POST /api/sync/online.
func (h *Handler) PostSyncOnline(w http.ResponseWriter, r *http.Request) {
	h.sync.EnableOnlineMode()
	writeJSON(w, http.StatusOK, h.sync.Stats())
}

// DeleteLocalData handles DELETE /api/sync/local.
func (h *Handler) DeleteLocalData(w http.ResponseWriter, r *http.Request) {
	h.sync.ClearLocalData()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "local data cleared",
	})
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Load())
}

// PutSettings handles PUT /api/settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req models.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.settings.Save(req); err != nil {
		if errors.Is(err, settings.ErrStorageUnavailable) {
			writeError(w, r, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "settings storage is unavailable")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_SETTINGS", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health. Offline mode and a full budget degrade the
// status but keep 200: the service still answers from local data. Only a
// draining process reports 503.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.sync.Offline() {
		checks["remoteApi"] = "unhealthy"
	} else {
		checks["remoteApi"] = "healthy"
	}
	if h.sync.StorageAvailable() {
		checks["storage"] = "healthy"
	} else {
		checks["storage"] = "unhealthy"
	}
	if h.sync.BudgetExhausted() {
		checks["budget"] = "exhausted"
	} else {
		checks["budget"] = "ok"
	}

	remoteErrors, remoteCalls := traffic.ErrorRate(trafficWindow)
	resp := map[string]interface{}{
		"status":  result.status,
		"service": "weatherboard",
		"version": "dev",
		"checks":  checks,
		"traffic": map[string]interface{}{
			"windowSeconds":  int(trafficWindow.Seconds()),
			"remoteCalls":    remoteCalls,
			"remoteErrors":   remoteErrors,
			"deniedRequests": traffic.DenialCount(trafficWindow),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines health in priority order:
// shutting-down > storage unavailable > offline or budget exhausted > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !h.sync.StorageAvailable() {
		return healthResult{"degraded", http.StatusOK, "storage_unavailable"}
	}
	if h.sync.Offline() {
		return healthResult{"degraded", http.StatusOK, "offline_mode"}
	}
	if h.sync.BudgetExhausted() {
		return healthResult{"degraded", http.StatusOK, "budget_exhausted"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := observability.CorrelationIDFrom(r.Context())
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 Service Unavailable error response.
// Logs the underlying error at DEBUG level if logger is available in context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "SYNC_UNAVAILABLE", "Unable to fetch records")
	if logger := observability.LoggerFrom(r.Context()); logger != nil {
		logger.Debug("sync error", zap.Error(err))
	}
}

// validationMessage flattens a validator error into a single readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
