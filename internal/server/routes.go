package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (scan progress, debate state)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// API routes - Scans
	mux.HandleFunc("/api/scan", s.app.ScanHandler.RunScanHandler)    // POST - run a scan synchronously
	mux.HandleFunc("/api/scans", s.app.ScanHandler.ListScansHandler) // GET - recent scan runs
	mux.HandleFunc("/api/scans/", s.app.ScanHandler.ScanRoutes)      // GET /{id}, /{id}/scores
	mux.HandleFunc("/api/tickers/", s.app.ScanHandler.TickerRoutes)  // GET /{ticker}/history[?limit=N]

	// Watchlists
	mux.HandleFunc("/api/watchlists", s.app.WatchlistHandler.WatchlistsHandler) // GET list, POST create
	mux.HandleFunc("/api/watchlists/", s.app.WatchlistHandler.WatchlistRoutes)  // /{ref}[/tickers[/{ticker}]]

	// API routes - Scheduled scans
	mux.HandleFunc("/api/scheduler", s.handleSchedulerRoute)
	mux.HandleFunc("/api/scheduler/", s.handleSchedulerRoutes) // POST /trigger

	// API routes - Single ticker analysis
	mux.HandleFunc("/api/debate", s.app.AnalysisHandler.DebateHandler)       // POST
	mux.HandleFunc("/api/recommend", s.app.AnalysisHandler.RecommendHandler) // POST
	mux.HandleFunc("/api/theses/", s.app.AnalysisHandler.ThesisHandler)      // GET /{ticker}[?history=N]
	mux.HandleFunc("/api/reports/", s.app.AnalysisHandler.ReportHandler)     // GET /{ticker}.{md|html|pdf}

	if s.app.Config.Metrics.Enabled {
		mux.Handle(s.app.Config.Metrics.Path, s.app.Metrics.Handler())
	}

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSchedulerRoute serves the schedule status
func (s *Server) handleSchedulerRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet: s.app.SchedulerHandler.StatusHandler,
	})
}

// handleSchedulerRoutes routes /api/scheduler/{action}
func (s *Server) handleSchedulerRoutes(w http.ResponseWriter, r *http.Request) {
	matched := RouteByPathSuffix(w, r, "/api/scheduler/", []PathSuffixRouter{
		{Suffix: "trigger", Handler: s.app.SchedulerHandler.TriggerHandler},
	})
	if !matched {
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
