package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/forgehand/internal/queue"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Workers:       len(s.pool.Snapshot()),
		Toolchains:    len(s.registry.List()),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSubmit handles POST /v1/invocations.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Toolchain == "" {
		s.writeError(w, http.StatusBadRequest, "toolchain is required")
		return
	}
	if req.CompilerClass == "" {
		s.writeError(w, http.StatusBadRequest, "compiler_class is required")
		return
	}

	body := req.Request
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	id, err := s.queue.Enqueue(r.Context(), queue.EnqueueRequest{
		Toolchain:     req.Toolchain,
		CompilerClass: req.CompilerClass,
		Request:       body,
		SubmittedBy:   "api",
	})
	if err != nil {
		s.logger.Error("failed to enqueue invocation", "toolchain", req.Toolchain, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to enqueue invocation")
		return
	}

	s.writeJSON(w, http.StatusAccepted, SubmitResponse{
		InvocationID: id,
		Status:       string(queue.StatusQueued),
		Toolchain:    req.Toolchain,
	})
}

// handleGetInvocation handles GET /v1/invocations/{invocationID}.
func (s *Server) handleGetInvocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "invocationID")

	inv, err := s.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrInvocationNotFound) {
			s.writeError(w, http.StatusNotFound, "invocation not found")
			return
		}
		s.logger.Error("failed to retrieve invocation", "invocation_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve invocation")
		return
	}

	s.writeJSON(w, http.StatusOK, toInvocationResponse(inv))
}

// handleListInvocations handles GET /v1/invocations.
func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	invs, err := s.queue.Recent(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to list invocations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list invocations")
		return
	}

	out := make([]InvocationResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvocationResponse(inv))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleListWorkers handles GET /v1/workers.
func (s *Server) handleListWorkers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.pool.Snapshot())
}

// handleEndSession handles POST /v1/sessions/end. The build orchestrator
// calls it when a build session finishes; session-scoped idle workers are
// retired, daemon-scoped workers stay for the next session.
func (s *Server) handleEndSession(w http.ResponseWriter, _ *http.Request) {
	s.pool.EndSession()
	s.writeJSON(w, http.StatusOK, EndSessionResponse{
		Status:  "session ended",
		Workers: len(s.pool.Snapshot()),
	})
}

// handleListToolchains handles GET /v1/toolchains.
func (s *Server) handleListToolchains(w http.ResponseWriter, _ *http.Request) {
	toolchains := s.registry.List()
	out := make([]ToolchainInfo, 0, len(toolchains))
	for _, tc := range toolchains {
		probe := tc.Probe()
		out = append(out, ToolchainInfo{
			Name:                tc.Name,
			Home:                tc.Home,
			Version:             tc.Version,
			Policy:              string(toolchain.PolicyFor(tc.Version)),
			HomeExists:          probe.HomeExists,
			ExecutableExists:    probe.ExecutableExists,
			LegacyArchiveExists: probe.LegacyArchiveExists,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func toInvocationResponse(inv *queue.Invocation) InvocationResponse {
	return InvocationResponse{
		InvocationID:  inv.ID,
		Toolchain:     inv.Toolchain,
		CompilerClass: inv.CompilerClass,
		Status:        string(inv.Status),
		SubmittedBy:   inv.SubmittedBy,
		CreatedAt:     inv.CreatedAt,
		StartedAt:     inv.StartedAt,
		CompletedAt:   inv.CompletedAt,
		LastError:     inv.LastError,
		Result:        inv.Result,
		Diagnostic:    inv.Diagnostic,
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
