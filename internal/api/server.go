package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AaronLay10/SentientNarrative/internal/events"
	"github.com/AaronLay10/SentientNarrative/internal/mqtt"
	"github.com/AaronLay10/SentientNarrative/internal/orchestrator"
	"github.com/AaronLay10/SentientNarrative/internal/version"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// Runner is the part of the graph runner the API drives.
type Runner interface {
	Status() orchestrator.Status
	HasNode(nodeID string) bool
	PlayFrom(nodeID string) error
}

// MiniGameResults accepts minigame results posted over HTTP.
type MiniGameResults interface {
	Finish(gameID string, res mqtt.Result) error
}

// Endings plays a named ending on operator request.
type Endings interface {
	TriggerEnding(endingID string) error
}

// Story owns chapter progression.
type Story interface {
	Restart() error
	InMainMenu() (bool, string)
}

// Deps are the collaborators the server exposes. Nil members disable the
// endpoints that need them.
type Deps struct {
	StoryID   string
	Runner    Runner
	World     *world.State
	Presenter *RemotePresenter
	Results   MiniGameResults
	Endings   Endings
	Story     Story
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
	srv  *http.Server
}

// NewServer creates an API server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "orchestrator",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

// StateResponse is the /state payload.
type StateResponse struct {
	StoryID    string              `json:"story_id,omitempty"`
	Runner     orchestrator.Status `json:"runner"`
	Presenter  *PresenterView      `json:"presenter,omitempty"`
	World      *world.Snapshot     `json:"world,omitempty"`
	MainMenu   bool                `json:"main_menu"`
	MenuReason string              `json:"menu_reason,omitempty"`
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, OperatorResponse{Error: "method not allowed"})
		return
	}

	resp := StateResponse{StoryID: s.deps.StoryID}
	if s.deps.Runner != nil {
		resp.Runner = s.deps.Runner.Status()
	}
	if s.deps.Presenter != nil {
		view := s.deps.Presenter.View()
		resp.Presenter = &view
	}
	if s.deps.World != nil {
		snap := s.deps.World.Snapshot()
		resp.World = &snap
	}
	if s.deps.Story != nil {
		resp.MainMenu, resp.MenuReason = s.deps.Story.InMainMenu()
	}
	writeJSON(w, http.StatusOK, resp)
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type SelectRequest struct {
	Index *int `json:"index"`
}

func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Presenter == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no remote presenter"})
		return
	}
	if err := s.deps.Presenter.Continue(); err != nil {
		writeJSON(w, http.StatusConflict, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Presenter == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no remote presenter"})
		return
	}

	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Index == nil {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "index required"})
		return
	}

	err := s.deps.Presenter.Select(*req.Index)
	switch {
	case errors.Is(err, ErrInvalidChoice):
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusConflict, OperatorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
	}
}

type MiniGameResultRequest struct {
	GameID  string             `json:"game_id"`
	Success bool               `json:"success"`
	Danger  []mqtt.DangerDelta `json:"danger,omitempty"`
}

func (s *Server) miniGameFinishedHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Results == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no scene host"})
		return
	}

	var req MiniGameResultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.deps.Results.Finish(req.GameID, mqtt.Result{Success: req.Success, Danger: req.Danger})
	switch {
	case errors.Is(err, mqtt.ErrUnexpectedResult):
		writeJSON(w, http.StatusConflict, OperatorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, OperatorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
	}
}

type PlayRequest struct {
	NodeID string `json:"node_id"`
}

func (s *Server) operatorPlayHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req PlayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeID == "" {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "node_id required"})
		return
	}
	if s.deps.Runner == nil || !s.deps.Runner.HasNode(req.NodeID) {
		writeJSON(w, http.StatusNotFound, OperatorResponse{Error: "node not found"})
		return
	}

	events.Emit("info", "operator.play", "", map[string]interface{}{
		"node_id": req.NodeID,
	})

	if err := s.deps.Runner.PlayFrom(req.NodeID); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, orchestrator.ErrBusy) {
			status = http.StatusConflict
		}
		writeJSON(w, status, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

type DangerRequest struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

func (s *Server) operatorDangerHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.World == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no world state"})
		return
	}

	var req DangerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "name required"})
		return
	}

	events.Emit("info", "operator.danger", "", map[string]interface{}{
		"name":   req.Name,
		"amount": req.Amount,
	})

	amount := s.deps.World.ClampedDelta(req.Name, req.Amount)
	if err := s.deps.World.IncreaseDanger(req.Name, amount); err != nil {
		writeJSON(w, http.StatusNotFound, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

type EndingRequest struct {
	EndingID string `json:"ending_id"`
}

func (s *Server) operatorEndingHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Endings == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no outcome selector"})
		return
	}

	var req EndingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EndingID == "" {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "ending_id required"})
		return
	}

	events.Emit("info", "operator.ending", "", map[string]interface{}{
		"ending_id": req.EndingID,
	})

	err := s.deps.Endings.TriggerEnding(req.EndingID)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeJSON(w, http.StatusConflict, OperatorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

func (s *Server) operatorResetHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Story == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "no chapter flow"})
		return
	}

	events.Emit("info", "operator.reset", "", nil)

	err := s.deps.Story.Restart()
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeJSON(w, http.StatusConflict, OperatorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/ws/events", wsEventsHandler)
	mux.HandleFunc("/state", s.stateHandler)

	mux.HandleFunc("/presenter/continue", s.continueHandler)
	mux.HandleFunc("/presenter/select", s.selectHandler)

	mux.HandleFunc("/minigame/finished", RequireAnyRole(s.miniGameFinishedHandler))

	mux.HandleFunc("/operator/play", RequireAnyRole(s.operatorPlayHandler))
	mux.HandleFunc("/operator/danger", RequireAnyRole(s.operatorDangerHandler))
	mux.HandleFunc("/operator/ending", RequireAnyRole(s.operatorEndingHandler))
	mux.HandleFunc("/operator/reset", RequireAdmin(s.operatorResetHandler))
	return mux
}

// ListenAndServe starts the API server on the given port.
// It blocks until the server exits or Shutdown is called.
func (s *Server) ListenAndServe(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		s.srv.TLSConfig = tlsCfg
		slog.Info("API listening", "addr", s.srv.Addr, "tls", true)
		err = s.srv.ListenAndServeTLS("", "")
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	slog.Info("API listening", "addr", s.srv.Addr, "tls", false)
	err = s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server and closes live event streams.
func (s *Server) Shutdown(ctx context.Context) error {
	events.CloseAllSubscribers()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, OperatorResponse{Error: "method not allowed"})
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
