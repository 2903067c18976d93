package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestClient_CreateExperiment(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /experiments": `{"id":"exp-123","title":"Exit Intent Popup","status":"idea","ice_impact":6,"ice_confidence":5,"ice_ease":8}`,
	})

	client := ts.client()

	req := map[string]any{
		"board_id":       "b1",
		"title":          "Exit Intent Popup",
		"ice_impact":     6,
		"ice_confidence": 5,
		"ice_ease":       8,
	}

	resp, err := client.post(ctx, "/experiments", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["id"] != "exp-123" {
		t.Errorf("id = %v, want exp-123", result["id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/experiments" {
		t.Errorf("request = %s %s, want POST /experiments", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["board_id"] != "b1" {
		t.Errorf("body.board_id = %v, want b1", body["board_id"])
	}
}

func TestClient_MoveExperiment(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /experiments/1/status": `{"status":"updated"}`,
	})

	client := ts.client()

	resp, err := client.patch(ctx, "/experiments/1/status", map[string]string{"status": "running"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "updated" {
		t.Errorf("status = %q, want updated", result["status"])
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["status"] != "running" {
		t.Errorf("body.status = %q, want running", body["status"])
	}
}

func TestClient_ErrorBodySurfaced(t *testing.T) {
	ts := newTestServer(t, nil)

	client := ts.client()

	resp, err := client.get(ctx, "/experiments/no-such-id")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error from 404 response")
	}
	if got := err.Error(); !bytes.Contains([]byte(got), []byte("not_found")) {
		t.Errorf("error %q does not surface the server error type", got)
	}
}

func TestClient_DeleteSendsAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /experiments/1": `{"status":"deleted"}`,
	})

	client := ts.client()

	resp, err := client.delete(ctx, "/experiments/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestExperimentDelete_RequiresConfirm(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	// Without --confirm the command must not touch the server; a client
	// pointing nowhere would fail loudly if it did.
	rootCmd.SetArgs([]string{"experiment", "delete", "1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := pidFilePath(dir)

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d, want positive", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error reading removed PID file")
	}
}
