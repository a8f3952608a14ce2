package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/wanremote/internal/artifactstore"
	"github.com/nemanja-m/wanremote/internal/collector"
	dispatchclient "github.com/nemanja-m/wanremote/internal/dispatcher/client"
	dispatchcore "github.com/nemanja-m/wanremote/internal/dispatcher/core"
	dispatchservice "github.com/nemanja-m/wanremote/internal/dispatcher/service"
	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/internal/host/encoder"
	"github.com/nemanja-m/wanremote/internal/host/nodes"
	"github.com/nemanja-m/wanremote/internal/host/service"
	"github.com/nemanja-m/wanremote/internal/host/storage"
	"github.com/nemanja-m/wanremote/internal/shared/config"
	"github.com/nemanja-m/wanremote/internal/shared/logging"
	"github.com/nemanja-m/wanremote/pkg/artifact"
	"github.com/nemanja-m/wanremote/pkg/protocol"
	"github.com/nemanja-m/wanremote/pkg/tensor"
)

type testHost struct {
	server    *httptest.Server
	prompts   core.PromptService
	artifacts artifactstore.Store
}

// newTestHost serves the full host stack. With runWorker set, queued prompts
// are executed in the background until the test ends.
func newTestHost(t *testing.T, runWorker bool) *testHost {
	t.Helper()

	artifacts, err := artifactstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	registry := nodes.NewRegistry()
	col := collector.New(artifacts, logging.Nop(), collector.WithCompression(artifact.CompressionZstd))
	require.NoError(t, nodes.RegisterBuiltins(registry, encoder.NewLoader([]string{dispatchcore.DefaultEncoderName}), col))

	prompts := service.NewPromptService(storage.NewInMemoryPromptStore(), core.NewPromptQueue(), registry, logging.Nop())
	api := NewAPI(prompts, artifacts, newMockLogger())
	srv := NewServer(config.RESTConfig{Addr: "127.0.0.1:0"}, api, newMockLogger())
	server := httptest.NewServer(srv.Handler)
	t.Cleanup(server.Close)

	if runWorker {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		w := service.NewWorker(prompts, service.NewExecutor(registry, logging.Nop()), logging.Nop())
		go func() {
			defer close(done)
			_ = w.Run(ctx)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
	}

	return &testHost{server: server, prompts: prompts, artifacts: artifacts}
}

func dispatchRequest() dispatchcore.Request {
	return dispatchcore.Request{
		Loader: dispatchcore.LoaderConfig{
			EncoderName: dispatchcore.DefaultEncoderName,
			EncoderType: protocol.EncoderWan,
		},
		Positive:       "a paper boat on a river",
		Negative:       "low quality",
		FilenamePrefix: protocol.DefaultFilenamePrefix,
	}
}

func postPrompt(t *testing.T, h *testHost, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(h.server.URL+"/prompt", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// fetchHistory is safe to call from Eventually conditions.
func fetchHistory(url string) (protocol.History, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var history protocol.History
	err = json.NewDecoder(resp.Body).Decode(&history)
	return history, err
}

func TestSubmitPrompt(t *testing.T) {
	h := newTestHost(t, false)

	resp := postPrompt(t, h, protocol.SubmitRequest{
		Prompt:   dispatchcore.BuildGraph(dispatchRequest(), "42"),
		ClientID: "42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var submitted protocol.SubmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	assert.NotEmpty(t, submitted.PromptID)
	assert.Equal(t, 0, submitted.Number)

	var queue QueueResponse
	require.Equal(t, http.StatusOK, getJSON(t, h.server.URL+"/queue", &queue))
	require.Len(t, queue.Pending, 1)
	assert.Equal(t, submitted.PromptID, queue.Pending[0].PromptID)
	assert.Equal(t, "42", queue.Pending[0].ClientID)
	assert.Empty(t, queue.Running)

	var history protocol.History
	require.Equal(t, http.StatusOK, getJSON(t, h.server.URL+"/history/"+submitted.PromptID, &history))
	assert.Empty(t, history, "pending prompt must not appear in history")

	var info PromptInfoResponse
	getJSON(t, h.server.URL+"/prompt", &info)
	assert.Equal(t, 1, info.ExecInfo.QueueRemaining)
}

func TestSubmitPrompt_Rejected(t *testing.T) {
	h := newTestHost(t, false)

	graph := dispatchcore.BuildGraph(dispatchRequest(), "42")
	loader, _ := graph.Node(dispatchcore.NodeLoader)
	loader.Inputs[protocol.InputCLIPName] = protocol.Literal{Value: "missing.safetensors"}
	graph.Add(dispatchcore.NodeLoader, loader)

	resp := postPrompt(t, h, protocol.SubmitRequest{Prompt: graph, ClientID: "42"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var rejected protocol.RejectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rejected))
	assert.Equal(t, "prompt_outputs_failed_validation", rejected.Error.Type)
	require.Contains(t, rejected.NodeErrors, "10")
	assert.Contains(t, string(rejected.NodeErrors["10"]), "missing.safetensors")
}

func TestSubmitPrompt_BadBodies(t *testing.T) {
	h := newTestHost(t, false)

	for _, body := range []string{"not json", `{"client_id":"1"}`, `{"prompt":[1,2]}`} {
		resp, err := http.Post(h.server.URL+"/prompt", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestViewArtifact(t *testing.T) {
	h := newTestHost(t, false)
	ctx := context.Background()

	one := tensor.FromFloat32([]int64{1, 1, 2}, []float32{1, 2})
	data, err := artifact.Encode(one, one)
	require.NoError(t, err)
	require.NoError(t, h.artifacts.Put(ctx, "wan_remote_42.pt", data))

	resp, err := http.Get(h.server.URL + "/view?filename=wan_remote_42.pt&type=output")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, artifact.ContentType, resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, body)

	tests := []struct {
		query string
		code  int
	}{
		{"filename=missing.pt&type=output", http.StatusNotFound},
		{"type=output", http.StatusBadRequest},
		{"filename=wan_remote_42.pt&type=input", http.StatusBadRequest},
		{"filename=..%2Fsecret.pt&type=output", http.StatusBadRequest},
		{"filename=wan_remote_42.pt&subfolder=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(h.server.URL + "/view?" + tt.query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.code, resp.StatusCode, tt.query)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHost(t, false)

	var health HealthResponse
	require.Equal(t, http.StatusOK, getJSON(t, h.server.URL+"/healthz", &health))
	assert.Equal(t, "ok", health.Status)

	resp, err := http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "wanremote_host_http_requests_total")
}

func TestHistory_ListAndClear(t *testing.T) {
	h := newTestHost(t, true)

	resp := postPrompt(t, h, protocol.SubmitRequest{
		Prompt:   dispatchcore.BuildGraph(dispatchRequest(), "7"),
		ClientID: "7",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var submitted protocol.SubmitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))

	require.Eventually(t, func() bool {
		history, err := fetchHistory(h.server.URL + "/history")
		return err == nil && len(history) == 1
	}, 5*time.Second, 10*time.Millisecond)

	var history protocol.History
	getJSON(t, h.server.URL+"/history/"+submitted.PromptID, &history)
	entry := history[submitted.PromptID]
	assert.Equal(t, protocol.StatusSuccess, entry.Status.StatusStr)
	assert.True(t, entry.Status.Completed)
	assert.Equal(t, protocol.NodeOutput{"text": {"Tensors Saved"}}, entry.Outputs["40"])
	require.NotNil(t, entry.Prompt)
	assert.Equal(t, 4, entry.Prompt.Len())

	cleared, err := http.Post(h.server.URL+"/history", "application/json", strings.NewReader(`{"clear":true}`))
	require.NoError(t, err)
	cleared.Body.Close()
	require.Equal(t, http.StatusOK, cleared.StatusCode)

	history = protocol.History{}
	getJSON(t, h.server.URL+"/history", &history)
	assert.Empty(t, history)

	resp2, err := http.Get(h.server.URL + "/history?max_items=-1")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestDispatchAgainstHost(t *testing.T) {
	h := newTestHost(t, true)

	client := dispatchclient.NewHostClient(h.server.URL, h.server.Client(), logging.Nop())
	dispatcher := dispatchservice.NewDispatcher(client,
		dispatchcore.PollOptions{Interval: 20 * time.Millisecond, Timeout: 10 * time.Second},
		logging.Nop(),
	)

	result, err := dispatcher.Dispatch(context.Background(), dispatchRequest())
	require.NoError(t, err)

	assert.Equal(t, "wan_remote_"+result.ClientID+".pt", result.Filename)
	assert.Equal(t, []int64{1, 6, 4096}, result.Positive.Shape)
	assert.Equal(t, []int64{1, 2, 4096}, result.Negative.Shape)
	assert.Equal(t, tensor.CPU, result.Positive.Device)

	// The dispatcher reads back exactly what the collector wrote on the host.
	stored, err := h.artifacts.Get(context.Background(), result.Filename)
	require.NoError(t, err)
	decoded, err := artifact.Decode(stored)
	require.NoError(t, err)
	assert.True(t, decoded.Positive.Equal(result.Positive))
	assert.True(t, decoded.Negative.Equal(result.Negative))

	model, err := encoder.NewLoader(nil).Load(dispatchcore.DefaultEncoderName, protocol.EncoderWan)
	require.NoError(t, err)
	assert.True(t, model.Encode("a paper boat on a river").Equal(result.Positive))
}

func TestDispatchAgainstHost_FixedClientID(t *testing.T) {
	h := newTestHost(t, true)
	client := dispatchclient.NewHostClient(h.server.URL, h.server.Client(), logging.Nop())
	ctx := context.Background()

	handle, err := client.Submit(ctx, protocol.SubmitRequest{
		Prompt:   dispatchcore.BuildGraph(dispatchRequest(), "42"),
		ClientID: "42",
	})
	require.NoError(t, err)
	require.NoError(t, client.AwaitCompletion(ctx, handle,
		dispatchcore.PollOptions{Interval: 20 * time.Millisecond, Timeout: 10 * time.Second}))

	names, err := h.artifacts.List(ctx, "*.pt")
	require.NoError(t, err)
	assert.Equal(t, []string{"wan_remote_42.pt"}, names)

	got, err := client.FetchArtifact(ctx, "wan_remote_42.pt")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 6, 4096}, got.Positive.Shape)
}

func TestDispatchAgainstHost_RemoteFailure(t *testing.T) {
	h := newTestHost(t, true)
	client := dispatchclient.NewHostClient(h.server.URL, h.server.Client(), logging.Nop())
	ctx := context.Background()

	graph := dispatchcore.BuildGraph(dispatchRequest(), "9")
	saver, _ := graph.Node(dispatchcore.NodeRemoteSaver)
	saver.Inputs[protocol.InputNegative] = protocol.Reference{NodeID: dispatchcore.NodeNegEncode, OutputIndex: 2}
	graph.Add(dispatchcore.NodeRemoteSaver, saver)

	handle, err := client.Submit(ctx, protocol.SubmitRequest{Prompt: graph, ClientID: "9"})
	require.NoError(t, err)

	err = client.AwaitCompletion(ctx, handle,
		dispatchcore.PollOptions{Interval: 20 * time.Millisecond, Timeout: 10 * time.Second})
	require.ErrorIs(t, err, protocol.ErrRemoteRejected)
	assert.Contains(t, err.Error(), "node 40")
}
