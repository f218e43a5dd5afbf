// Package web serves the browser configuration companion: a localhost
// page for editing the knowledge-base registry, with background
// description generation and a heartbeat that stops the server once the
// page is closed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/core/ports/driving"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

const (
	// heartbeatGrace covers browser startup before the first beat.
	heartbeatGrace = 12 * time.Second

	// heartbeatTimeout is how long the page may stay silent once the
	// grace period has passed.
	heartbeatTimeout = 5 * time.Second

	// heartbeatPoll is how often the monitor checks for expiry.
	heartbeatPoll = time.Second

	// maxConcurrentJobs bounds parallel description generation.
	maxConcurrentJobs = 2

	// jobTimeout is the wall-clock budget for one generation job.
	jobTimeout = 15 * time.Second

	// shutdownDelay lets the shutdown response flush before the
	// listener closes.
	shutdownDelay = 100 * time.Millisecond
)

// Ports wires the server to the services and files it works against.
type Ports struct {
	Registry driving.RegistryService
	Metadata driving.MetadataService

	// RegistryPath is the backing registry file, watched for external
	// edits. Empty disables watching.
	RegistryPath string

	// ReloadRegistry re-reads the registry file after an external edit
	// so /api/list reflects it.
	ReloadRegistry func() error

	// Output receives user-facing status lines (defaults to stdout).
	Output io.Writer
}

// Server is the local configuration web server. It binds an ephemeral
// localhost port and runs until the page stops sending heartbeats or
// asks for shutdown.
type Server struct {
	ports *Ports

	queue     *descriptionQueue
	heartbeat *heartbeatMonitor

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	url      string
	watcher  *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates the configuration server.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil || ports.Registry == nil {
		return nil, errors.New("registry service is required")
	}
	if ports.Output == nil {
		ports.Output = os.Stdout
	}

	s := &Server{
		ports:     ports,
		heartbeat: newHeartbeatMonitor(heartbeatGrace, heartbeatTimeout),
		done:      make(chan struct{}),
	}
	if ports.Metadata != nil {
		s.queue = newDescriptionQueue(ports.Metadata, maxConcurrentJobs, jobTimeout)
	}
	return s, nil
}

// Start binds an ephemeral port and begins serving. It returns once the
// server is accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/list", s.handleList)
	mux.HandleFunc("/api/task-status", s.handleTaskStatus)
	mux.HandleFunc("/api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/api/save", s.handleSave)
	mux.HandleFunc("/api/set_default", s.handleSetDefault)
	mux.HandleFunc("/api/update-desc", s.handleUpdateDesc)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.url = fmt.Sprintf("http://localhost:%d", tcpAddr.Port)
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server: %v", err)
		}
	}()

	go s.watchHeartbeat()
	if err := s.watchRegistry(); err != nil {
		logger.Warn("watch registry file: %v", err)
	}
	return nil
}

// URL returns the address the server is reachable on.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Wait blocks until the page asks to stop, the heartbeat lapses, or ctx
// is cancelled, then shuts the server down.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.signalStop()
	}
	return s.shutdown()
}

// Stop shuts the server down without waiting for a trigger.
func (s *Server) Stop() error {
	s.signalStop()
	return s.shutdown()
}

func (s *Server) signalStop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Server) shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
	if s.queue != nil {
		s.queue.Close()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// watchHeartbeat polls the monitor and stops the server once the page
// has gone silent.
func (s *Server) watchHeartbeat() {
	ticker := time.NewTicker(heartbeatPoll)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if silent, ok := s.heartbeat.Expired(); ok {
				fmt.Fprintf(s.ports.Output, "\n⏱️ 检测到客户端断开连接（%.1fs无心跳），正在停止服务...\n", silent.Seconds())
				s.signalStop()
				return
			}
		}
	}
}

// watchRegistry reloads the registry when its backing file changes
// outside this process. The parent directory is watched because saves
// typically replace the file rather than writing it in place.
func (s *Server) watchRegistry() error {
	if s.ports.RegistryPath == "" || s.ports.ReloadRegistry == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.ports.RegistryPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.ports.RegistryPath), err)
	}
	s.watcher = watcher

	base := filepath.Base(s.ports.RegistryPath)
	go func() {
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if err := s.ports.ReloadRegistry(); err != nil {
					logger.Warn("reload registry: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("registry watcher: %v", err)
			}
		}
	}()
	return nil
}

// Wire shapes. The page scripts expect descriptions in their legacy
// single-string encoding, sentinels included.

type wireKnowledgeBase struct {
	Name        string `json:"name"`
	APIKey      string `json:"api_key"`
	TopicID     string `json:"topic_id"`
	Description string `json:"description"`
}

func toWire(kb domain.KnowledgeBase) wireKnowledgeBase {
	return wireKnowledgeBase{
		Name:        kb.Name,
		APIKey:      kb.APIKey,
		TopicID:     kb.TopicID,
		Description: domain.LegacyDescription(kb.DescriptionStatus, kb.Description),
	}
}

type listResponse struct {
	KnowledgeBases []wireKnowledgeBase `json:"kbs"`
	Default        string              `json:"default_kb"`
}

type saveRequest struct {
	Name        string `json:"name"`
	APIKey      string `json:"api_key"`
	TopicID     string `json:"topic_id"`
	Description string `json:"description"`
	SetDefault  bool   `json:"set_default"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// queueReply acknowledges an enqueue request.
type queueReply struct {
	Status string `json:"status"`
	Name   string `json:"kb_name,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}

// taskStatusReply is what the page's polling loop consumes.
type taskStatusReply struct {
	Status      string  `json:"status"`
	Description string  `json:"description"`
	Elapsed     float64 `json:"elapsed,omitempty"`
	Message     string  `json:"message,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, pageHTML)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kbs, err := s.ports.Registry.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	wire := make([]wireKnowledgeBase, 0, len(kbs))
	for _, kb := range kbs {
		wire = append(wire, toWire(kb))
	}

	defaultName := ""
	if def, err := s.ports.Registry.Default(); err == nil {
		defaultName = def.Name
	}
	s.sendJSON(w, listResponse{KnowledgeBases: wire, Default: defaultName})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	// "auto" in the description field requests background generation:
	// the entry is stored pending and a job queued.
	if strings.EqualFold(strings.TrimSpace(req.Description), "auto") {
		kb := domain.KnowledgeBase{
			Name:              req.Name,
			APIKey:            req.APIKey,
			TopicID:           req.TopicID,
			DescriptionStatus: domain.DescriptionPending,
		}
		if err := s.ports.Registry.Upsert(kb, req.SetDefault); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.sendJSON(w, map[string]any{
			"status":         "ok",
			"description":    domain.LegacyDescription(domain.DescriptionPending, ""),
			"auto_generated": true,
			"queue_status":   s.enqueue(req.Name),
		})
		return
	}

	status, text := domain.ParseLegacyDescription(strings.TrimSpace(req.Description))
	kb := domain.KnowledgeBase{
		Name:              req.Name,
		APIKey:            req.APIKey,
		TopicID:           req.TopicID,
		Description:       text,
		DescriptionStatus: status,
	}
	if err := s.ports.Registry.Upsert(kb, req.SetDefault); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sendJSON(w, map[string]any{
		"status":         "ok",
		"description":    req.Description,
		"auto_generated": false,
	})
}

func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.ports.Registry.SetDefault(req.Name); err != nil {
		http.Error(w, "KB not found", http.StatusBadRequest)
		return
	}
	s.sendJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdateDesc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if _, err := s.ports.Registry.Get(req.Name); err != nil {
		s.sendJSON(w, map[string]string{"status": "error", "message": "KB not found"})
		return
	}
	s.sendJSON(w, s.enqueue(req.Name))
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		s.sendJSON(w, taskStatusReply{Status: "error", Message: "name parameter required"})
		return
	}

	reply := taskStatusReply{Status: "unknown"}
	if s.queue != nil {
		reply = s.queue.Status(name)
	}
	// Success reports the stored text, which may have been edited since
	// the job finished.
	if reply.Status == "success" {
		if kb, err := s.ports.Registry.Get(name); err == nil && kb.HasDescription() {
			reply.Description = kb.Description
		}
	}
	s.sendJSON(w, reply)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.heartbeat.Beat()
	s.sendJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendJSON(w, map[string]string{"status": "shutdown"})
	time.AfterFunc(shutdownDelay, s.signalStop)
}

func (s *Server) enqueue(name string) queueReply {
	if s.queue == nil {
		return queueReply{Status: "error", Name: name}
	}
	return s.queue.Enqueue(name)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response: %v", err)
	}
}

// OpenBrowser opens the default browser to the given URL.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
