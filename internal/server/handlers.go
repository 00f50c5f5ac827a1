package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/version"
	"golang.org/x/text/language"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatText = "text"

	defaultPrecision = 3
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:   "healthy",
		Version:  version.Version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Sessions: s.ActiveSessions(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// contoursHandler lists committed contours (GET) or removes the contour of
// one time step (DELETE ?time_step=N).
func (s *Server) contoursHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listContours(w, r)
	case http.MethodDelete:
		s.deleteContour(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listContours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	contours := s.group.Snapshot()
	if ts := q.Get("time_step"); ts != "" {
		t, err := strconv.Atoi(ts)
		if err != nil {
			s.writeErrorResponse(w, "invalid time_step: "+ts, http.StatusBadRequest)
			return
		}
		contours = contours[:0]
		if c, ok := s.group.Contour(t); ok {
			contours = append(contours, c)
		}
	}

	precision := defaultPrecision
	if p := q.Get("precision"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 12 {
			s.writeErrorResponse(w, "invalid precision: "+p, http.StatusBadRequest)
			return
		}
		precision = v
	}

	switch format := q.Get("format"); format {
	case "", formatJSON:
		response := ContoursResponse{Contours: make([]contour.Summary, 0, len(contours)), Count: len(contours)}
		for _, c := range contours {
			response.Contours = append(response.Contours, contour.Summarize(c))
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.Error("Failed to encode contours response", "error", err)
		}
	case formatCSV:
		out, err := contour.ToCSV(contours, precision)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(out))
	case formatText:
		tag := language.English
		if lang := q.Get("lang"); lang != "" {
			parsed, err := language.Parse(lang)
			if err != nil {
				s.writeErrorResponse(w, "invalid lang: "+lang, http.StatusBadRequest)
				return
			}
			tag = parsed
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(contour.ToText(contours, precision, tag)))
	default:
		s.writeErrorResponse(w, "unsupported format: "+format, http.StatusBadRequest)
	}
}

func (s *Server) deleteContour(w http.ResponseWriter, r *http.Request) {
	ts := r.URL.Query().Get("time_step")
	t, err := strconv.Atoi(ts)
	if err != nil {
		s.writeErrorResponse(w, "invalid time_step: "+ts, http.StatusBadRequest)
		return
	}
	if _, ok := s.group.Contour(t); !ok {
		s.writeErrorResponse(w, "no contour at time step "+ts, http.StatusNotFound)
		return
	}
	s.group.SetContour(t, nil)
	slog.Info("Contour removed", "time_step", t)
	w.WriteHeader(http.StatusNoContent)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}
