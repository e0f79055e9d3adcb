package playground

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bb2web/internal/diag"
)

func newTestServer(t *testing.T, path string) (*Server, *httptest.Server) {
	t.Helper()
	s := New(path)
	s.Logger = log.New(io.Discard, "", 0)
	s.Interval = 10 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postTranspile(t *testing.T, url, contentType, body string) (int, Message) {
	t.Helper()
	resp, err := http.Post(url+"/transpile", contentType, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, msg
}

func TestTranspileJSON(t *testing.T) {
	_, ts := newTestServer(t, "")
	status, msg := postTranspile(t, ts.URL, "application/json", `{"source":"Graphics 320,240\nFlip"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, msg = %+v", status, msg)
	}
	if !strings.Contains(msg.Code, "rt.Graphics(320, 240);") || !strings.Contains(msg.Code, "globalThis.rt") {
		t.Errorf("unexpected code:\n%s", msg.Code)
	}
}

func TestTranspileRawBody(t *testing.T) {
	_, ts := newTestServer(t, "")
	status, msg := postTranspile(t, ts.URL, "text/plain", "Cls")
	if status != http.StatusOK || !strings.Contains(msg.Code, "rt.Cls();") {
		t.Errorf("status = %d, code = %q", status, msg.Code)
	}
}

func TestTranspileReportsDiagnostic(t *testing.T) {
	_, ts := newTestServer(t, "")
	status, msg := postTranspile(t, ts.URL, "text/plain", "x = 1\nPlot 1\n")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", status)
	}
	if msg.Diagnostic == nil || msg.Diagnostic.Code != diag.CodeArity || msg.Diagnostic.Line() != 2 {
		t.Errorf("diagnostic = %+v", msg.Diagnostic)
	}
	if msg.Code != "" {
		t.Errorf("code returned with error: %q", msg.Code)
	}
}

func TestTranspileWarnings(t *testing.T) {
	_, ts := newTestServer(t, "")
	_, msg := postTranspile(t, ts.URL, "text/plain", "Cls\nRem never closed")
	if len(msg.Warnings) != 1 || msg.Warnings[0].Code != diag.CodeUnterminatedRem {
		t.Errorf("warnings = %+v", msg.Warnings)
	}
}

func TestTranspileMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, "")
	resp, err := http.Get(ts.URL + "/transpile")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStaticAssets(t *testing.T) {
	_, ts := newTestServer(t, "")
	for path, want := range map[string]string{
		"/":              "bb2web playground",
		"/bb_runtime.js": "bbRuntime",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Errorf("GET %s: status %d, body lacks %q", path, resp.StatusCode, want)
		}
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	s, ts := newTestServer(t, "")
	s.Broadcast(&Message{Code: "first"})

	conn := dial(t, ts)
	if msg := readMessage(t, conn); msg.Code != "first" {
		t.Errorf("latest message = %+v", msg)
	}

	waitFor(t, func() bool { return s.Clients() == 1 })
	s.Broadcast(&Message{Error: "boom"})
	if msg := readMessage(t, conn); msg.Error != "boom" {
		t.Errorf("broadcast message = %+v", msg)
	}

	conn.Close()
	waitFor(t, func() bool { return s.Clients() == 0 })
}

func TestReplayDropsFailedClient(t *testing.T) {
	_, ts := newTestServer(t, "")
	conn := dial(t, ts)

	var logs bytes.Buffer
	s := New("")
	s.Logger = log.New(&logs, "", 0)
	c := &client{id: "page-1", conn: conn}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	conn.Close()

	if s.replay(c, &Message{Code: "x"}) {
		t.Fatal("replay succeeded on a closed connection")
	}
	s.mu.Lock()
	_, registered := s.clients[c]
	s.mu.Unlock()
	if registered {
		t.Error("failed client still registered")
	}
	if !strings.Contains(logs.String(), "dropping client page-1") {
		t.Errorf("drop not logged:\n%s", logs.String())
	}
}

func TestWatchPushesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.bb")
	if err := os.WriteFile(path, []byte("Graphics 10, 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, ts := newTestServer(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)

	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.latest != nil
	})
	conn := dial(t, ts)
	first := readMessage(t, conn)
	if !strings.Contains(first.Code, "rt.Graphics(10, 10);") || first.Source != "Graphics 10, 10\n" {
		t.Fatalf("first message = %+v", first)
	}
	if !strings.Contains(first.Code, "from game.bb") {
		t.Errorf("header lacks file name:\n%s", first.Code)
	}

	waitFor(t, func() bool { return s.Clients() == 1 })
	if err := os.WriteFile(path, []byte("Graphics 20, 20, 32\nPlot 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := readMessage(t, conn)
	if second.Diagnostic == nil || second.Diagnostic.Code != diag.CodeArity {
		t.Errorf("second message = %+v", second)
	}
}

func TestReloadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.bb"))
	s.Logger = log.New(io.Discard, "", 0)
	if msg := s.Reload(); msg.Error == "" {
		t.Error("expected an error for a missing file")
	}
}
