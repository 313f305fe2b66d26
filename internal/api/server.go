package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/cluster"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/config"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/engine"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
	"github.com/forblgac/nijisanji-vtuber-recommend/internal/scoring"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Engine   *engine.Manager
	Logger   *logrus.Entry
	Router   *http.ServeMux
	validate *validator.Validate

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(eng *engine.Manager, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.WithField("component", "api")
	}
	s := &Server{
		Engine:   eng,
		Logger:   logger,
		Router:   http.NewServeMux(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/vtubers", s.handleVtubers)
	s.Router.HandleFunc("/api/v1/recommend", s.handleRecommend)
	s.Router.HandleFunc("/api/v1/reload", s.handleReload)
	s.Router.HandleFunc("/api/v1/clusters", s.handleClusters)
	s.Router.HandleFunc("/api/v1/status", s.handleStatus)
	s.Router.Handle("/metrics", promhttp.Handler())
}

// Start listens until Shutdown is called.
func (s *Server) Start(cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.Logger.Infof("Starting API Server on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Requests and responses

type ErrorResponse struct {
	Error string `json:"error"`
}

type RecommendRequest struct {
	scoring.Query
	// Limit shortens the list; results never exceed scoring.DefaultLimit.
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

type RecommendResponse struct {
	Query   scoring.Query        `json:"query"`
	Count   int                  `json:"count"`
	Results []RecommendationView `json:"results"`
}

type RecommendationView struct {
	profile.Profile
	MatchScore int `json:"match_score"`
}

type VtubersResponse struct {
	Count   int               `json:"count"`
	Vtubers []profile.Profile `json:"vtubers"`
}

type ClustersResponse struct {
	RequestedK       int               `json:"requested_k"`
	EffectiveK       int               `json:"effective_k"`
	Clusters         []cluster.Summary `json:"clusters"`
	ConstantFeatures []string          `json:"constant_features"`
}

// Handlers

func (s *Server) handleVtubers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profiles := s.Engine.Profiles()
	jsonResponse(w, http.StatusOK, VtubersResponse{Count: len(profiles), Vtubers: profiles})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if s.Engine.Snapshot() == nil {
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Catalog not loaded"})
		return
	}

	matches := s.Engine.RecommendN(req.Query, req.Limit)
	response := RecommendResponse{
		Query:   req.Query,
		Count:   len(matches),
		Results: make([]RecommendationView, len(matches)),
	}
	for i, m := range matches {
		response.Results[i] = RecommendationView{Profile: m.Profile, MatchScore: m.Score}
	}

	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.Engine.Reload(r.Context())
	if err != nil {
		s.Logger.WithError(err).Warn("Reload request failed")
		jsonResponse(w, reloadErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}

	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.Engine.Snapshot()
	if snap == nil {
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Catalog not loaded"})
		return
	}

	jsonResponse(w, http.StatusOK, ClustersResponse{
		RequestedK:       snap.Clustering.RequestedK,
		EffectiveK:       snap.Clustering.EffectiveK,
		Clusters:         s.Engine.Clusters(),
		ConstantFeatures: s.Engine.ConstantFeatures(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jsonResponse(w, http.StatusOK, s.Engine.Status())
}

func reloadErrorStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, profile.ErrMalformedProfile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
