package api

import (
	"encoding/json"
	"net/http"

	"mentor/internal/agents"
	"mentor/internal/domain/study"
	"mentor/internal/events"
	"mentor/internal/ingest"
	"mentor/internal/retrieval"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// Handlers bundles the HTTP endpoints over the session manager and the
// document pipeline.
type Handlers struct {
	manager  *agents.Manager
	ingestor *ingest.Ingestor
	gateway  *retrieval.Gateway
	log      *logger.Logger
}

// NewHandlers creates the endpoint set.
func NewHandlers(manager *agents.Manager, ingestor *ingest.Ingestor, gateway *retrieval.Gateway) *Handlers {
	return &Handlers{
		manager:  manager,
		ingestor: ingestor,
		gateway:  gateway,
		log:      logger.Get().With("component", "api"),
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// taskSnapshotFrame closes a chat stream with the study plan as it stands
// after the turn, so clients need no extra round trip to redraw it.
type taskSnapshotFrame struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	TaskList  []study.Task `json:"task_list"`
}

// HandleChatStream runs one conversation turn and streams its events to the
// client as newline-delimited JSON. The terminal event is preceded by a
// task snapshot frame.
func (h *Handlers) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	headersSent := false

	sendFrame := func(frame interface{}) {
		if !headersSent {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			headersSent = true
		}
		if err := enc.Encode(frame); err != nil {
			h.log.Debugf("Chat stream write failed: %v", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	// The terminal frame is held back until the task snapshot is written.
	var terminal *events.Event
	state, err := h.manager.RunTurnStream(r.Context(), req.SessionID, req.Message, func(ev events.Event) {
		if ev.Terminal() {
			terminal = &ev
			return
		}
		sendFrame(ev)
	})

	// Admission and validation failures happen before any event is
	// published, so the error can still use a proper status code.
	if err != nil && !headersSent && terminal == nil {
		writeError(w, err)
		return
	}

	if state != nil {
		sendFrame(taskSnapshotFrame{Type: "task_snapshot", SessionID: req.SessionID, TaskList: state.TaskList})
	}
	if terminal != nil {
		sendFrame(*terminal)
	}
}

type updateTasksRequest struct {
	SessionID string       `json:"session_id"`
	Tasks     []study.Task `json:"tasks"`
}

// HandleUpdateTasks replaces the study plan outside any conversation turn.
func (h *Handlers) HandleUpdateTasks(w http.ResponseWriter, r *http.Request) {
	var req updateTasksRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.manager.UpdateTaskList(r.Context(), req.SessionID, req.Tasks)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": req.SessionID,
		"task_list":  state.TaskList,
	})
}

// HandleGetState returns the durable session aggregate.
func (h *Handlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	state, err := h.manager.State(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleGetProfessorType returns the session's coaching style.
func (h *Handlers) HandleGetProfessorType(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	state, err := h.manager.State(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":     sessionID,
		"professor_type": string(state.ProfessorType),
	})
}

type professorTypeRequest struct {
	ProfessorType string `json:"professor_type"`
}

// HandleSetProfessorType reconfigures the session's coaching style.
func (h *Handlers) HandleSetProfessorType(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req professorTypeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.manager.SetProfessorType(r.Context(), sessionID, study.ProfessorType(req.ProfessorType))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":     sessionID,
		"professor_type": string(state.ProfessorType),
	})
}

// HandleDeleteSession removes a session's durable state and document index.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := h.manager.CloseSession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadRequest struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	// Extracted document text; pages separated by form feeds
	Content string `json:"content"`
}

// HandleUpload ingests an uploaded document into the session's retrieval
// index, replacing any previous document.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pages := ingest.SplitPages(req.Content)
	tb, err := h.ingestor.Ingest(r.Context(), req.SessionID, req.Title, pages)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tb)
}

// HandleGetTextbook returns metadata for the session's ingested document.
func (h *Handlers) HandleGetTextbook(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, errors.NewValidationError("session_id", "query parameter is required", nil))
		return
	}

	tb, err := h.gateway.Textbook(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}
