package ui

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"permutest/app"
	"permutest/domain/experiment"
	"permutest/internal"
	apperrors "permutest/internal/errors"
	"permutest/ports"
)

// Server exposes the controller's write surface and state snapshot over
// HTTP, plus an SSE stream delivering the per-trial progress callback. It
// renders nothing; charting and grid collaborators consume the JSON.
type Server struct {
	router  *chi.Mux
	service *app.SimulationService
	hub     *SSEHub
	log     *internal.Logger
}

// NewServer wires the HTTP surface around a simulation service.
func NewServer(service *app.SimulationService, log *internal.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		hub:     NewSSEHub(log),
		log:     log.With("http"),
	}

	service.Subscribe(ports.ProgressFunc(s.hub.Broadcast))

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/events", s.hub.HandleSSE)

		r.Route("/table", func(r chi.Router) {
			r.Post("/", s.handleSetTable)
			r.Post("/reset", s.handleResetTable)
			r.Post("/clear-values", s.handleClearCellValues)
		})

		r.Route("/rows", func(r chi.Router) {
			r.Post("/", s.handleAddRow)
			r.Delete("/{index}", s.handleDeleteRow)
		})

		r.Post("/cells", s.handleUpdateCell)
		r.Post("/assignments", s.handleSetAssignment)
		r.Post("/blocks", s.handleSetBlock)

		r.Route("/columns", func(r chi.Router) {
			r.Post("/", s.handleAddColumn)
			r.Patch("/{index}", s.handleRenameColumn)
			r.Delete("/{index}", s.handleRemoveColumn)
		})

		r.Route("/history", func(r chi.Router) {
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Put("/speed", s.handleSetSpeed)
			r.Put("/statistic", s.handleSetStatistic)
			r.Put("/iterations", s.handleSetIterations)
			r.Put("/tail", s.handleSetTail)
			r.Put("/blocking", s.handleSetBlocking)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handlePause)
			r.Post("/clear", s.handleClear)
		})
	})
}

// mutationResponse is the synchronous envelope of every write operation.
type mutationResponse struct {
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, warnings []string, err error) {
	resp := mutationResponse{Success: err == nil, Warnings: warnings}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		resp.Code = apperrors.GetCode(err)
		status = statusFor(resp.Code)
	}
	writeJSON(w, status, resp)
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeValidationError, apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.CodeStateError:
		return http.StatusConflict
	case apperrors.CodeComputationError:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respond(w, nil, apperrors.InvalidInput("malformed request body"))
		return false
	}
	return true
}

func (s *Server) pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respond(w, nil, apperrors.InvalidInput("index must be an integer"))
		return 0, false
	}
	return index, true
}

// ---- handlers ----

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

func (s *Server) handleSetTable(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Table *experiment.Table `json:"table"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.SetTable(payload.Table)
	s.respond(w, warnings, err)
}

func (s *Server) handleResetTable(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.service.ResetTable()
	s.respond(w, warnings, err)
}

func (s *Server) handleClearCellValues(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.service.ClearCellValues()
	s.respond(w, warnings, err)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.service.AddRow()
	s.respond(w, warnings, err)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	warnings, err := s.service.DeleteRow(index)
	s.respond(w, warnings, err)
}

func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RowIndex    int      `json:"row_index"`
		ColumnIndex int      `json:"column_index"`
		Value       *float64 `json:"value"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.UpdateCell(payload.RowIndex, payload.ColumnIndex, payload.Value)
	s.respond(w, warnings, err)
}

func (s *Server) handleSetAssignment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RowIndex   int  `json:"row_index"`
		Assignment *int `json:"assignment"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.SetAssignment(payload.RowIndex, payload.Assignment)
	s.respond(w, warnings, err)
}

func (s *Server) handleSetBlock(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RowIndex int     `json:"row_index"`
		Block    *string `json:"block"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.SetBlock(payload.RowIndex, payload.Block)
	s.respond(w, warnings, err)
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.AddColumn(payload.Name)
	s.respond(w, warnings, err)
}

func (s *Server) handleRenameColumn(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	warnings, err := s.service.RenameColumn(index, payload.Name)
	s.respond(w, warnings, err)
}

func (s *Server) handleRemoveColumn(w http.ResponseWriter, r *http.Request) {
	index, ok := s.pathIndex(w, r)
	if !ok {
		return
	}
	warnings, err := s.service.RemoveColumn(index)
	s.respond(w, warnings, err)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.service.Undo()
	s.respond(w, warnings, err)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.service.Redo()
	s.respond(w, warnings, err)
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value int `json:"value"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	s.respond(w, nil, s.service.SetSimulationSpeed(payload.Value))
}

func (s *Server) handleSetStatistic(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	s.respond(w, nil, s.service.SetSelectedStatistic(payload.Name))
}

func (s *Server) handleSetIterations(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value int `json:"value"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	s.respond(w, nil, s.service.SetTotalIterations(payload.Value))
}

func (s *Server) handleSetTail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Value string `json:"value"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	s.respond(w, nil, s.service.SetTailType(payload.Value))
}

func (s *Server) handleSetBlocking(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if !s.decode(w, r, &payload) {
		return
	}
	s.respond(w, nil, s.service.SetBlockingEnabled(payload.Enabled))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.respond(w, nil, s.service.StartSimulation())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.respond(w, nil, s.service.PauseSimulation())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.service.ClearSimulationData()
	s.respond(w, nil, nil)
}
