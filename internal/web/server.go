package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/elys-network/tranche/internal/engine"
	"github.com/elys-network/tranche/internal/logger"
	"github.com/elys-network/tranche/internal/rollover"
	"github.com/elys-network/tranche/internal/state"
	"github.com/elys-network/tranche/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the engine's read views over HTTP. All endpoints are
// read-only; mutations go through the engine API directly.
type WebServer struct {
	router    *mux.Router
	port      string
	vaults    *engine.Engine
	rollovers *rollover.Engine
	startedAt time.Time
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, vaults *engine.Engine, rollovers *rollover.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		vaults:    vaults,
		rollovers: rollovers,
		startedAt: time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vaults", ws.handleGetVaults).Methods("GET")
	api.HandleFunc("/vaults/{id}", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vaults/{id}/positions/{tranche}/{address}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/receipts/{denom}", ws.handleGetVaultByReceipt).Methods("GET")
	api.HandleFunc("/rollovers/{id}", ws.handleGetRollover).Methods("GET")
	api.HandleFunc("/rollovers/{id}/rounds/{round}", ws.handleGetRound).Methods("GET")
	api.HandleFunc("/rollovers/{id}/investors/{tranche}/{address}", ws.handleGetUpdatedInvestor).Methods("GET")

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

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	dbStatus := "disabled"
	if state.DB != nil {
		dbStatus = "healthy"
		if err := state.TestDBConnection(); err != nil {
			dbStatus = "unreachable"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
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
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "tranched-vault-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database": dbStatus,
			"paused":   ws.vaults.Paused(),
			"vaults":   ws.vaults.VaultCount(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaults returns paginated vault data
func (ws *WebServer) handleGetVaults(w http.ResponseWriter, r *http.Request) {
	offset := 0
	count := 20
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if parsed, err := strconv.Atoi(countStr); err == nil && parsed > 0 && parsed <= 100 {
			count = parsed
		}
	}

	vaults := ws.vaults.GetVaults(offset, count)

	response := map[string]interface{}{
		"vaults": vaults,
		"count":  len(vaults),
		"offset": offset,
		"total":  ws.vaults.VaultCount(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVault returns a specific vault by ID
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := types.VaultID(vars["id"])

	vault, err := ws.vaults.GetVaultByID(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Vault not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, vault)
}

// handleGetVaultByReceipt resolves a receipt-token denom to its vault
func (ws *WebServer) handleGetVaultByReceipt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	denom := vars["denom"]

	vault, err := ws.vaults.GetVaultByReceiptToken(denom)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No vault for receipt token")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, vault)
}

// handleGetPosition returns one investor's derived position in a tranche
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := types.VaultID(vars["id"])
	tranche, ok := parseTranche(vars["tranche"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid tranche, expected senior or junior")
		return
	}
	addr := types.Address(vars["address"])

	position, err := ws.vaults.GetInvestorPosition(id, tranche, addr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Position not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, position)
}

// handleGetRollover returns a specific rollover by ID
func (ws *WebServer) handleGetRollover(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := types.RolloverID(vars["id"])

	roll, err := ws.rollovers.GetRollover(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Rollover not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, roll)
}

// handleGetRound returns a completed round's checkpoint
func (ws *WebServer) handleGetRound(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := types.RolloverID(vars["id"])

	round, err := strconv.ParseUint(vars["round"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid round number")
		return
	}

	checkpoint, err := ws.rollovers.GetRound(id, round)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Round not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, checkpoint)
}

// handleGetUpdatedInvestor returns an investor's folded rollover position
func (ws *WebServer) handleGetUpdatedInvestor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := types.RolloverID(vars["id"])
	tranche, ok := parseTranche(vars["tranche"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid tranche, expected senior or junior")
		return
	}
	addr := types.Address(vars["address"])

	position, err := ws.rollovers.GetUpdatedInvestor(id, tranche, addr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Investor not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, position)
}

func parseTranche(s string) (types.Tranche, bool) {
	switch s {
	case "senior":
		return types.TrancheSenior, true
	case "junior":
		return types.TrancheJunior, true
	}
	return 0, false
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

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
