// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sligter/canctool/internal/errors"
	"github.com/sligter/canctool/internal/model"
)

// errorEnvelope is the JSON error shape OpenAI clients expect
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message, Type: errType}})
}

// handleChatCompletions is the OpenAI-compatible completion endpoint
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "invalid_request_error")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages cannot be empty", "invalid_request_error")
		return
	}

	s.logger.Infof("Chat request: model=%s messages=%d tools=%d stream=%v",
		req.Model, len(req.Messages), len(req.Tools), req.Stream)

	resp, err := s.bridge.Complete(r.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		errType := "internal_error"
		switch {
		case strings.HasPrefix(err.Error(), "invalid input"):
			status = http.StatusBadRequest
			errType = "invalid_request_error"
		case strings.HasPrefix(err.Error(), "upstream provider"):
			status = http.StatusBadGateway
			errType = "upstream_error"
		}
		writeError(w, status, err.Error(), errType)
		return
	}

	if req.Stream {
		s.streamResponse(w, r, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleModels lists every model the routing table serves
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.registry.Models()
	data := make([]map[string]interface{}, 0, len(models))
	for _, m := range models {
		data = append(data, map[string]interface{}{
			"id":       m,
			"object":   "model",
			"owned_by": s.registry.Resolve(m).Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
	})
}

// handleUsage lists recent usage rows for diagnostics
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusServiceUnavailable, "usage recording is disabled", "unavailable_error")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := s.usage.RecentUsage(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.Internal(err).Error(), "internal_error")
		return
	}
	if records == nil {
		records = []*model.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": s.cfg.Server.Name,
		"config":  s.cfg.Summary(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    s.cfg.Server.Name,
		"version": s.cfg.Server.Version,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     s.cfg.Server.Name,
		"version":     s.cfg.Server.Version,
		"description": "OpenAI-compatible tool calling for text-only LLM backends",
	})
}
