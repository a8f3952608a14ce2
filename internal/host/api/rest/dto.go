package rest

import (
	"encoding/json"
	"time"
)

type QueueItem struct {
	Number      int        `json:"number"`
	PromptID    string     `json:"prompt_id"`
	ClientID    string     `json:"client_id,omitempty"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

type QueueResponse struct {
	Running []QueueItem `json:"queue_running"`
	Pending []QueueItem `json:"queue_pending"`
}

type PromptInfoResponse struct {
	ExecInfo ExecInfo `json:"exec_info"`
}

type ExecInfo struct {
	QueueRemaining int `json:"queue_remaining"`
}

type ClearHistoryRequest struct {
	Clear bool `json:"clear"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	QueueRemaining int    `json:"queue_remaining"`
}

// nodeErrorsJSON renders validation messages per node in the host's
// {"<id>": {"errors": [{"message": ...}]}} shape.
func nodeErrorsJSON(nodeErrors map[string][]string) map[string]json.RawMessage {
	if len(nodeErrors) == 0 {
		return nil
	}
	type message struct {
		Message string `json:"message"`
	}
	type nodeError struct {
		Errors []message `json:"errors"`
	}

	out := make(map[string]json.RawMessage, len(nodeErrors))
	for id, msgs := range nodeErrors {
		ne := nodeError{Errors: make([]message, 0, len(msgs))}
		for _, m := range msgs {
			ne.Errors = append(ne.Errors, message{Message: m})
		}
		raw, _ := json.Marshal(ne)
		out[id] = raw
	}
	return out
}
