// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sligter/canctool/internal/model"
)

// streamResponse replays an already-complete response as SSE chunks. The
// backend was still called exactly once; this is a presentation illusion for
// clients that requested streaming, word by word like the original service.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, resp *model.ChatResponse) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	choice := resp.Choices[0]
	delay := s.cfg.Server.StreamDelay

	// Opening chunk carries the assistant role.
	s.writeChunk(w, flusher, resp, model.DeltaMessage{Role: model.RoleAssistant}, nil)

	if len(choice.Message.ToolCalls) > 0 {
		// A structured call is not word-streamable; emit it as one delta.
		s.writeChunk(w, flusher, resp, model.DeltaMessage{ToolCalls: choice.Message.ToolCalls}, nil)
	} else {
		words := strings.Fields(choice.Message.Content)
		for i, word := range words {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
			if i < len(words)-1 {
				word += " "
			}
			s.writeChunk(w, flusher, resp, model.DeltaMessage{Content: word}, nil)
		}
	}

	// Final chunk carries the finish reason and usage.
	finish := choice.FinishReason
	s.writeChunk(w, flusher, resp, model.DeltaMessage{}, &finish)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) writeChunk(w http.ResponseWriter, flusher http.Flusher, resp *model.ChatResponse, delta model.DeltaMessage, finish *string) {
	chunk := model.ChatChunk{
		ID:      resp.ID,
		Object:  "chat.completion.chunk",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []model.ChunkChoice{
			{Index: 0, Delta: delta, FinishReason: finish},
		},
	}
	if finish != nil {
		chunk.Usage = &resp.Usage
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		s.logger.Errorf("Failed to marshal stream chunk: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
