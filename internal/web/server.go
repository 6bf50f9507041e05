package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ammforge/dfc/internal/controller"
	"github.com/ammforge/dfc/internal/logger"
	"github.com/ammforge/dfc/internal/state"
	"github.com/ammforge/dfc/internal/types"
	"github.com/ammforge/dfc/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// CallerHeader carries the caller identity checked by the access gate.
const CallerHeader = "X-Caller-Id"

// WebServer handles HTTP requests against the fee controller
type WebServer struct {
	router     *mux.Router
	port       string
	controller *controller.Controller
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, ctrl *controller.Controller) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		controller: ctrl,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health and metrics (direct routes)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pools/{id}/poke", ws.handlePoke).Methods("POST")
	api.HandleFunc("/pools/{id}", ws.handleConfigurePool).Methods("POST")
	api.HandleFunc("/pools/{id}/fee", ws.handleGetFee).Methods("GET")
	api.HandleFunc("/pools/{id}/state", ws.handleGetState).Methods("GET")
	api.HandleFunc("/pools/{id}/transitions", ws.handleGetTransitions).Methods("GET")
	api.HandleFunc("/categories/{name}/params", ws.handleSetParams).Methods("PUT")
	api.HandleFunc("/categories/{name}/params", ws.handleGetParams).Methods("GET")
	api.HandleFunc("/pause", ws.handlePause).Methods("POST")
	api.HandleFunc("/resume", ws.handleResume).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// Router exposes the configured router, mainly for tests.
func (ws *WebServer) Router() http.Handler {
	return ws.router
}

// pokeRequest is the poke payload. The ratio travels as a string so it never
// degrades through a JSON number.
type pokeRequest struct {
	ObservedRatio string `json:"observed_ratio"`
}

// handlePoke advances a pool's fee state machine from one observation.
func (ws *WebServer) handlePoke(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	var req pokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	observed, err := utils.ParsePositiveDec(req.ObservedRatio)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid observed_ratio: "+err.Error())
		return
	}

	caller := r.Header.Get(CallerHeader)
	transition, err := ws.controller.Poke(r.Context(), caller, poolID, observed)
	if err != nil {
		ws.writeControllerError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, transition)
}

// configurePoolRequest creates the fee state for a new pool.
type configurePoolRequest struct {
	Category      string `json:"category"`
	InitialFee    string `json:"initial_fee"`
	InitialTarget string `json:"initial_target"`
}

// handleConfigurePool registers a pool under a category with validated
// initial fee and target.
func (ws *WebServer) handleConfigurePool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	var req configurePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	initialFee, err := utils.ParseFeeUnits(req.InitialFee)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid initial_fee: "+err.Error())
		return
	}
	initialTarget, err := utils.ParsePositiveDec(req.InitialTarget)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid initial_target: "+err.Error())
		return
	}

	if err := ws.controller.ConfigurePool(poolID, req.Category, initialFee, initialTarget); err != nil {
		ws.writeControllerError(w, err)
		return
	}

	st, err := ws.controller.GetState(poolID)
	if err != nil {
		ws.writeControllerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, st)
}

// handleGetFee returns the current fee for a pool.
func (ws *WebServer) handleGetFee(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	fee, err := ws.controller.GetFee(poolID)
	if err != nil {
		ws.writeControllerError(w, err)
		return
	}

	response := map[string]interface{}{
		"pool_id":     poolID,
		"current_fee": fee.String(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetState returns a pool's full fee state.
func (ws *WebServer) handleGetState(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	st, err := ws.controller.GetState(poolID)
	if err != nil {
		ws.writeControllerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, st)
}

// handleGetTransitions returns a pool's recent transition records.
func (ws *WebServer) handleGetTransitions(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	transitions, err := state.GetRecentTransitions(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Failed to get transitions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve transitions")
		return
	}

	response := map[string]interface{}{
		"pool_id":     poolID,
		"transitions": transitions,
		"count":       len(transitions),
		"limit":       limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleSetParams validates and atomically replaces a category's bundle.
func (ws *WebServer) handleSetParams(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["name"]

	var params types.FeeParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.controller.SetParams(category, params); err != nil {
		ws.writeControllerError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"category":   category,
		"parameters": params,
	})
}

// handleGetParams returns a category's active bundle.
func (ws *WebServer) handleGetParams(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["name"]

	params, err := ws.controller.GetParams(category)
	if err != nil {
		ws.writeControllerError(w, err)
		return
	}

	response := map[string]interface{}{
		"category":   category,
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handlePause sets the pause gate.
func (ws *WebServer) handlePause(w http.ResponseWriter, r *http.Request) {
	ws.controller.Pause()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"paused": true})
}

// handleResume lifts the pause gate.
func (ws *WebServer) handleResume(w http.ResponseWriter, r *http.Request) {
	ws.controller.Resume()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"paused": false})
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "dfc-dynamic-fee-controller",
			"version": "1.0.0",
		},
		"controller_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"paused":           ws.controller.Paused(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) poolIDFromRequest(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

// writeControllerError maps the controller's named rejection reasons to HTTP
// statuses, so callers can distinguish "too soon" from "bad input" from "not
// configured" without parsing text.
func (ws *WebServer) writeControllerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrPoolNotConfigured), errors.Is(err, types.ErrCategoryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidRatio), errors.Is(err, types.ErrInvalidParams), errors.Is(err, types.ErrPoolExists):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrCooldownNotElapsed):
		status = http.StatusTooManyRequests
	case errors.Is(err, types.ErrPaused):
		status = http.StatusLocked
	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, types.ErrFeeSinkUnavailable):
		status = http.StatusBadGateway
	}
	ws.writeErrorResponse(w, status, err.Error())
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CallerHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
