package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kartoza/topology-explorer/internal/api"
	"github.com/kartoza/topology-explorer/internal/catalog"
	"github.com/kartoza/topology-explorer/internal/config"
	"github.com/kartoza/topology-explorer/internal/presets"
	"github.com/kartoza/topology-explorer/internal/session"
	"github.com/kartoza/topology-explorer/internal/topology"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg         config.Config
	httpServer  *http.Server
	router      *mux.Router
	sessions    *session.Manager
	catalog     *catalog.Store
	presetStore *presets.Store
}

// New creates a new Server with all components initialized
func New(cfg config.Config) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	s.sessions = session.NewManager(session.Config{
		ModelPath:   cfg.ModelPath,
		Shape:       topology.Shape{Height: cfg.Grid.Height, Width: cfg.Grid.Width},
		MaxSessions: cfg.Sessions.MaxSessions,
		IdleTimeout: cfg.SessionIdleTimeout(),
	})

	// Model catalog (models dir plus any installed model pack)
	dirs := []string{cfg.ModelsDir}
	if settings, err := config.LoadSettings(); err == nil && settings.ModelPackPath != "" {
		dirs = append(dirs, settings.ModelPackPath)
	}
	// An empty catalog is still kept so a model pack installed later can register with it
	catalogStore, err := catalog.NewStore(dirs...)
	if err != nil {
		logrus.Warnf("Model catalog is empty: %v", err)
	}
	s.catalog = catalogStore

	// Initialize presets store
	presetStore, err := presets.NewStore(cfg.DataDir)
	if err != nil {
		logrus.Warnf("Presets store not available: %v", err)
	} else {
		s.presetStore = presetStore
	}

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Model pack management routes
	s.router.HandleFunc("/api/modelpack/status", s.handleModelpackStatus).Methods("GET")
	s.router.HandleFunc("/api/modelpack/install", s.handleModelpackInstall).Methods("POST")

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.sessions, s.catalog, s.presetStore, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		logrus.Warnf("Could not load embedded static files: %v", err)
		return
	}

	// Fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logrus.Infof("Server listening on http://localhost:%d", s.cfg.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// spaHandler serves the slider page, falling back to index.html for unknown paths
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
