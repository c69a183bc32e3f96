package stream

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/status"
)

// API exposes the control surface over HTTP. Every POST only posts an event;
// the result shows up in the next status snapshot.
type API struct {
	poster control.Poster
	board  *status.Board
	logger zerolog.Logger
}

func NewAPI(p control.Poster, b *status.Board, logger zerolog.Logger) *API {
	return &API{poster: p, board: b, logger: logger.With().Str("component", "api").Logger()}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/next", a.post(control.Event{Kind: control.Next}))
	mux.HandleFunc("/api/previous", a.post(control.Event{Kind: control.Previous}))
	mux.HandleFunc("/api/metronome", a.post(control.Event{Kind: control.ToggleMetronome}))
	mux.HandleFunc("/api/meter", a.post(control.Event{Kind: control.CycleMeter}))
	mux.HandleFunc("/api/tempo", a.handleTempo)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, a.board.Snapshot())
}

func (a *API) post(ev control.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		a.send(w, ev)
	}
}

func (a *API) handleTempo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
		http.Error(w, "delta must be a non-zero integer", http.StatusBadRequest)
		return
	}
	a.send(w, control.Event{Kind: control.Tempo, Delta: req.Delta})
}

func (a *API) send(w http.ResponseWriter, ev control.Event) {
	if !a.poster.Post(ev) {
		a.logger.Warn().Stringer("event", ev).Msg("event queue full, dropped")
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "event": ev.String()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
