// Package playground serves a browser page that compiles BASIC source to
// JavaScript and runs it on a canvas. When a source file is watched, every
// change is recompiled and pushed to open pages over a websocket.
package playground

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bb2web"
	"bb2web/internal/diag"
)

//go:embed assets
var assets embed.FS

// DefaultInterval is how often a watched file is checked for changes.
const DefaultInterval = 500 * time.Millisecond

// maxSourceSize bounds request bodies.
const maxSourceSize = 1 << 20

// Message is both the /transpile response and the websocket payload.
type Message struct {
	Source     string            `json:"source,omitempty"`
	Code       string            `json:"code,omitempty"`
	Error      string            `json:"error,omitempty"`
	Diagnostic *diag.Diagnostic  `json:"diagnostic,omitempty"`
	Warnings   []diag.Diagnostic `json:"warnings,omitempty"`
}

// Compile transpiles source to JavaScript and packages the outcome.
func Compile(source, filename string) *Message {
	res, err := bb2web.Compile(source, bb2web.Options{Dialect: bb2web.JavaScript, Filename: filename})
	if err != nil {
		msg := &Message{Error: err.Error()}
		var d diag.Diagnostic
		if errors.As(err, &d) {
			msg.Diagnostic = &d
		}
		return msg
	}
	return &Message{Code: res.Code, Warnings: res.Warnings}
}

// Server is the playground HTTP server.
type Server struct {
	// Path is the watched source file; empty disables watching.
	Path     string
	Interval time.Duration
	Logger   *log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
	latest  *Message
}

type client struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// New returns a server watching path.
func New(path string) *Server {
	return &Server{
		Path:     path,
		Interval: DefaultInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]bool),
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Handler returns the playground routes.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	mime.AddExtensionType(".js", "text/javascript; charset=utf-8")

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/transpile", s.handleTranspile)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

type transpileRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleTranspile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSourceSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	source := string(body)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		var req transpileRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		source = req.Source
	}

	msg := Compile(source, "")
	status := http.StatusOK
	if msg.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	s.logf("transpile: %s, status %d", humanize.Bytes(uint64(len(source))), status)
	writeJSON(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("websocket upgrade: %v", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	s.clients[c] = true
	latest := s.latest
	s.mu.Unlock()
	s.logf("websocket: client %s connected from %s", c.id, r.RemoteAddr)

	if latest != nil && !s.replay(c, latest) {
		return
	}

	// Pages never send anything; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

// replay sends msg to one newly connected page, dropping the page when the
// send fails.
func (s *Server) replay(c *client, msg *Message) bool {
	data, err := json.Marshal(msg)
	if err == nil {
		err = c.send(data)
	}
	if err != nil {
		s.logf("websocket: dropping client %s: %v", c.id, err)
		s.drop(c)
		return false
	}
	return true
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		s.logf("websocket: client %s disconnected", c.id)
	}
	c.conn.Close()
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast sends msg to every connected page and keeps it for pages that
// connect later.
func (s *Server) Broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logf("broadcast: %v", err)
		return
	}
	s.mu.Lock()
	s.latest = msg
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			s.logf("websocket: dropping client %s: %v", c.id, err)
			s.drop(c)
		}
	}
}

// Reload recompiles the watched file and broadcasts the result.
func (s *Server) Reload() *Message {
	source, err := os.ReadFile(s.Path)
	var msg *Message
	if err != nil {
		msg = &Message{Error: err.Error()}
	} else {
		msg = Compile(string(source), filepath.Base(s.Path))
		msg.Source = string(source)
	}
	if msg.Error != "" {
		s.logf("reload %s: %s", s.Path, msg.Error)
	} else {
		s.logf("reload %s: ok, %s of code", s.Path, humanize.Bytes(uint64(len(msg.Code))))
	}
	s.Broadcast(msg)
	return msg
}

// Watch reloads the watched file now and whenever its modification time
// or size changes, until ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	if s.Path == "" {
		<-ctx.Done()
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var lastMod time.Time
	var lastSize int64 = -1
	check := func() {
		info, err := os.Stat(s.Path)
		if err != nil {
			if lastSize != -2 {
				lastSize = -2
				s.Reload()
			}
			return
		}
		if !info.ModTime().Equal(lastMod) || info.Size() != lastSize {
			lastMod, lastSize = info.ModTime(), info.Size()
			s.Reload()
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return nil
		}
	}
}

// ListenAndServe serves the playground on addr and watches the source file
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Watch(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	s.logf("playground listening on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
