// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"
	"time"

	"github.com/sligter/canctool/internal/logging"
)

// UsageRecord is the accounting row written after each completed request.
// It carries no conversation content; conversation state is never persisted.
type UsageRecord struct {
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	TurnState        string    `json:"turn_state"`
	FinishReason     string    `json:"finish_reason"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Duration         string    `json:"duration"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageStore persists usage records
type UsageStore interface {
	SaveUsage(record *UsageRecord) error
	// PruneBefore deletes usage rows created before cutoff and returns the
	// number of rows removed.
	PruneBefore(cutoff time.Time) (int64, error)
	Close() error
}

// PersistAndLogUsage saves a usage record to the store (best-effort) and debug-logs it.
func PersistAndLogUsage(store UsageStore, record *UsageRecord, logger *logging.Logger) {
	if store != nil {
		if err := store.SaveUsage(record); err != nil {
			logger.Warnf("Failed to persist usage for request %s: %v", record.RequestID, err)
		}
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		logger.Warnf("Failed to marshal usage for request %s: %v", record.RequestID, err)
	} else {
		logger.Debugf("Request %s usage: %s", record.RequestID, string(jsonData))
	}
}
