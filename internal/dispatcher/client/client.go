// Package client implements the dispatcher's HTTP conversation with the
// remote execution host: submit a graph, poll its history, fetch the artifact.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nemanja-m/wanremote/internal/dispatcher/core"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/internal/shared/metrics"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

// maxControlBody bounds JSON responses read from the host.
const maxControlBody = 8 << 20

type hostClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

func NewHostClient(baseURL string, httpClient *http.Client, logger logging.Logger) core.HostClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &hostClient{
		baseURL:    NormalizeBaseURL(baseURL),
		httpClient: httpClient,
		logger:     logger,
	}
}

// NormalizeBaseURL trims trailing slashes and prefixes http:// unless the
// address already starts with an http or https scheme.
func NormalizeBaseURL(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" {
		return addr
	}
	lower := strings.ToLower(addr)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		addr = "http://" + addr
	}
	return addr
}

func (c *hostClient) Submit(ctx context.Context, req protocol.SubmitRequest) (protocol.JobHandle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return protocol.JobHandle{}, fmt.Errorf("encode prompt: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+protocol.PromptPath, bytes.NewReader(body))
	if err != nil {
		return protocol.JobHandle{}, fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return protocol.JobHandle{}, fmt.Errorf("%w: submit prompt: %w", protocol.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxControlBody))
	if err != nil {
		return protocol.JobHandle{}, fmt.Errorf("%w: read submit response: %w", protocol.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return protocol.JobHandle{}, fmt.Errorf("%w: status %d: %s",
			protocol.ErrRemoteRejected, resp.StatusCode, describeRejection(respBody))
	}

	var submitted protocol.SubmitResponse
	if err := json.Unmarshal(respBody, &submitted); err != nil {
		return protocol.JobHandle{}, fmt.Errorf("%w: malformed submit response: %w", protocol.ErrRemoteRejected, err)
	}
	if submitted.PromptID == "" {
		return protocol.JobHandle{}, fmt.Errorf("%w: response has no prompt_id: %s",
			protocol.ErrRemoteRejected, describeRejection(respBody))
	}

	c.logger.Debug("Prompt accepted", "prompt_id", submitted.PromptID, "number", submitted.Number)
	return protocol.JobHandle{PromptID: submitted.PromptID, ClientID: req.ClientID}, nil
}

// describeRejection extracts the host's error message and node errors when
// the body has the usual shape and falls back to the raw text.
func describeRejection(body []byte) string {
	var rejected protocol.RejectResponse
	if err := json.Unmarshal(body, &rejected); err == nil && (rejected.Error.Message != "" || len(rejected.NodeErrors) > 0) {
		msg := rejected.Error.Message
		if rejected.Error.Details != "" {
			msg += ": " + rejected.Error.Details
		}
		if len(rejected.NodeErrors) > 0 {
			nodeErrors, _ := json.Marshal(rejected.NodeErrors)
			msg += " node_errors=" + string(nodeErrors)
		}
		return msg
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512] + "..."
	}
	if text == "" {
		return "empty body"
	}
	return text
}

func (c *hostClient) AwaitCompletion(ctx context.Context, handle protocol.JobHandle, opts core.PollOptions) error {
	defaults := core.DefaultPollOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	start := time.Now()
	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	failures := 0
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		elapsed := time.Since(start)
		if elapsed > opts.Timeout {
			return fmt.Errorf("%w: prompt %s unfinished after %s",
				protocol.ErrRemoteTimeout, handle.PromptID, elapsed.Round(time.Millisecond))
		}

		entry, done, err := c.pollHistory(ctx, handle.PromptID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			metrics.PollAttemptsTotal.WithLabelValues("error").Inc()
			c.logger.Debug("History poll failed", "prompt_id", handle.PromptID, "attempt", attempt, "error", err)
			if opts.MaxConsecutiveFailures > 0 && failures >= opts.MaxConsecutiveFailures {
				return fmt.Errorf("%w: %d consecutive history polls failed: %w",
					protocol.ErrTransport, failures, err)
			}
		case done:
			metrics.PollAttemptsTotal.WithLabelValues("done").Inc()
			if status := decodeStatus(entry); status.StatusStr == protocol.StatusError {
				return fmt.Errorf("%w: prompt %s failed on host: %s",
					protocol.ErrRemoteRejected, handle.PromptID, status.describe())
			}
			c.logger.Debug("Prompt finished", "prompt_id", handle.PromptID, "attempts", attempt)
			return nil
		default:
			failures = 0
			metrics.PollAttemptsTotal.WithLabelValues("pending").Inc()
		}

		timer.Reset(opts.Interval)
	}
}

// pollHistory reports whether the prompt id is a key of the host history.
// Entries are left raw: hosts shape "prompt" and "messages" differently and
// completion depends only on the key.
func (c *hostClient) pollHistory(ctx context.Context, promptID string) (json.RawMessage, bool, error) {
	endpoint := c.baseURL + protocol.HistoryPath + "/" + url.PathEscape(promptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxControlBody))
		return nil, false, fmt.Errorf("history returned status %d", resp.StatusCode)
	}

	var history map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxControlBody)).Decode(&history); err != nil {
		return nil, false, fmt.Errorf("decode history: %w", err)
	}
	entry, ok := history[promptID]
	return entry, ok, nil
}

// historyStatus is the part of a history entry the dispatcher inspects.
type historyStatus struct {
	StatusStr string            `json:"status_str"`
	Messages  []json.RawMessage `json:"messages"`
}

// decodeStatus reads status.status_str and the raw messages. Type mismatches
// are ignored: whatever decodes is kept and a missing status counts as success.
func decodeStatus(entry json.RawMessage) historyStatus {
	var e struct {
		Status historyStatus `json:"status"`
	}
	_ = json.Unmarshal(entry, &e)
	return e.Status
}

// describe renders the failure messages. Plain strings are kept as they are;
// ComfyUI's [event, data] pairs contribute their execution_error details.
func (s historyStatus) describe() string {
	var parts []string
	for _, raw := range s.Messages {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			parts = append(parts, text)
			continue
		}

		var pair []json.RawMessage
		if json.Unmarshal(raw, &pair) != nil || len(pair) != 2 {
			continue
		}
		var event string
		if json.Unmarshal(pair[0], &event) != nil || event != "execution_error" {
			continue
		}
		var detail struct {
			NodeID           string `json:"node_id"`
			NodeType         string `json:"node_type"`
			ExceptionMessage string `json:"exception_message"`
		}
		if json.Unmarshal(pair[1], &detail) == nil {
			parts = append(parts, fmt.Sprintf("node %s (%s): %s",
				detail.NodeID, detail.NodeType, strings.TrimSpace(detail.ExceptionMessage)))
		}
	}
	if len(parts) == 0 {
		return "no details reported"
	}
	return strings.Join(parts, "; ")
}

func (c *hostClient) FetchArtifact(ctx context.Context, filename string) (artifact.Artifact, error) {
	query := url.Values{}
	query.Set("filename", filename)
	query.Set("type", protocol.OutputType)
	endpoint := c.baseURL + protocol.ViewPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: fetch %s: %w", protocol.ErrTransport, filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxControlBody))
		return artifact.Artifact{}, fmt.Errorf("%w: fetch %s: status %d", protocol.ErrTransport, filename, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%w: read %s: %w", protocol.ErrTransport, filename, err)
	}
	metrics.ArtifactBytes.WithLabelValues("dispatcher").Observe(float64(len(data)))

	decoded, err := artifact.Decode(data)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("%s: %w", filename, err)
	}
	return decoded, nil
}
