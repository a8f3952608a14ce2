package protocol

import (
	"encoding/json"
	"errors"
)

var (
	ErrTransport      = errors.New("transport error")
	ErrRemoteRejected = errors.New("remote host rejected request")
	ErrRemoteTimeout  = errors.New("remote execution timed out")
)

// Host endpoint paths.
const (
	PromptPath  = "/prompt"
	HistoryPath = "/history"
	ViewPath    = "/view"
)

// OutputType is the storage area the collector writes into and /view reads from.
const OutputType = "output"

type SubmitRequest struct {
	Prompt   *JobGraph `json:"prompt"`
	ClientID string    `json:"client_id"`
	Front    bool      `json:"front,omitempty"`
}

type SubmitResponse struct {
	PromptID   string                     `json:"prompt_id"`
	Number     int                        `json:"number"`
	NodeErrors map[string]json.RawMessage `json:"node_errors,omitempty"`
}

// RejectResponse is the body of a host response that refused a prompt.
type RejectResponse struct {
	Error      ErrorDetail                `json:"error"`
	NodeErrors map[string]json.RawMessage `json:"node_errors,omitempty"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// JobHandle identifies a submitted prompt for polling.
type JobHandle struct {
	PromptID string
	ClientID string
}

// History maps prompt ids to their history entries. A prompt id appears
// only once its execution has finished.
type History map[string]HistoryEntry

type HistoryEntry struct {
	Prompt  *JobGraph             `json:"prompt,omitempty"`
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  HistoryStatus         `json:"status"`
}

// NodeOutput is the UI payload an output node reports, e.g. {"text": ["Tensors Saved"]}.
type NodeOutput map[string][]string

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type HistoryStatus struct {
	StatusStr string   `json:"status_str"`
	Completed bool     `json:"completed"`
	Messages  []string `json:"messages"`
}
