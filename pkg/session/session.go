// Package session binds one graph document to a file on disk. It is the
// mutation gateway the MCP surface talks to: every call goes through the
// command engine under a session-wide mutex, and every successful mutation
// hands the freshly encoded document to a debounced autosave goroutine.
//
// The document core below this package is single-threaded by contract; the
// session's mutex is the external synchronization it requires.
package session

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ktsqep/graphdoc/pkg/graph"
	"github.com/ktsqep/graphdoc/pkg/history"
	"github.com/ktsqep/graphdoc/pkg/ktxml"
	"github.com/ktsqep/graphdoc/pkg/schema"
)

// DefaultAutosaveDelay is how long the autosaver waits after a change so a
// burst of edits (a node drag, say) collapses into one write.
const DefaultAutosaveDelay = 50 * time.Millisecond

type Session struct {
	path   string
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex // guards engine and its document
	engine *history.Engine

	fileMu sync.Mutex    // serializes writes to the file
	saveCh chan string   // one-slot mailbox holding the latest snapshot
	stop   chan struct{}
	done   chan struct{}
}

// Open loads the graph file at path, or starts an empty document when create
// is set or the file does not exist. An empty file is an empty document.
func Open(path string, create bool, delay time.Duration, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}

	var doc *graph.Document
	if _, err := os.Stat(path); err != nil || create {
		doc = graph.NewDocument()
		if err := writeFile(path, ""); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			doc = graph.NewDocument()
		} else {
			doc, err = ktxml.Decode(string(data))
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	s := &Session{
		path:   path,
		delay:  delay,
		logger: logger,
		engine: history.NewEngine(doc),
		saveCh: make(chan string, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.autosaveLoop()
	return s, nil
}

// Path returns the file this session is bound to.
func (s *Session) Path() string { return s.path }

// Save encodes the current document and writes it out immediately.
func (s *Session) Save() error {
	s.mu.Lock()
	xml, err := ktxml.Encode(s.engine.Document())
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return writeFile(s.path, xml)
}

// Close flushes any pending autosave and stops the autosaver. The session
// must not be used afterwards.
func (s *Session) Close() {
	close(s.stop)
	<-s.done
}

// ExportXML returns the current document in KT-SQEP form.
func (s *Session) ExportXML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ktxml.Encode(s.engine.Document())
}

// ImportXML replaces the document with the decoded text. On failure the
// current document stays untouched. History does not survive the swap.
func (s *Session) ImportXML(text string) error {
	doc, err := ktxml.Decode(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset(doc)
	s.notifySaveLocked()
	return nil
}

// Clear replaces the document with an empty one and drops all history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset(graph.NewDocument())
	s.notifySaveLocked()
}

// Snapshot returns copies of the current entities and edges.
func (s *Session) Snapshot() ([]graph.Entity, []graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Document().Entities(), s.engine.Document().Edges()
}

// Counts returns the entity and edge counts.
func (s *Session) Counts() (entities, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Document().EntityCount(), s.engine.Document().EdgeCount()
}

// CanUndo reports whether an undo step is available.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CanUndo()
}

// CanRedo reports whether a redo step is available.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CanRedo()
}

// UndoLabel names the step Undo would revert.
func (s *Session) UndoLabel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.UndoLabel()
}

// RedoLabel names the step Redo would reapply.
func (s *Session) RedoLabel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RedoLabel()
}

// Entity returns a copy of one entity.
func (s *Session) Entity(id uint64) (graph.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Document().Entity(id)
}

// The mutation wrappers below mirror the engine's API and schedule an
// autosave after every successful change.

func (s *Session) AddEntity(content string, t schema.DistinctType, addons schema.AddonSet, x, y float64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.engine.AddEntity(content, t, addons, x, y)
	if err == nil {
		s.notifySaveLocked()
	}
	return id, err
}

func (s *Session) RemoveEntity(id uint64) error {
	return s.mutate(func() error { return s.engine.RemoveEntity(id) })
}

func (s *Session) UpdateEntity(id uint64, content string, addons schema.AddonSet) error {
	return s.mutate(func() error { return s.engine.UpdateEntity(id, content, addons) })
}

func (s *Session) SetContent(id uint64, content string) error {
	return s.mutate(func() error { return s.engine.SetContent(id, content) })
}

func (s *Session) SetPosition(id uint64, x, y float64) error {
	return s.mutate(func() error { return s.engine.SetPosition(id, x, y) })
}

func (s *Session) SetAddons(id uint64, addons schema.AddonSet) error {
	return s.mutate(func() error { return s.engine.SetAddons(id, addons) })
}

func (s *Session) AddEdge(from, to uint64, r schema.Relation) error {
	return s.mutate(func() error { return s.engine.AddEdge(from, to, r) })
}

func (s *Session) RemoveEdge(from, to uint64, r schema.Relation) error {
	return s.mutate(func() error { return s.engine.RemoveEdge(from, to, r) })
}

func (s *Session) RemoveEdgesBetween(from, to uint64) error {
	return s.mutate(func() error { return s.engine.RemoveEdgesBetween(from, to) })
}

func (s *Session) Undo() error {
	return s.mutate(func() error { return s.engine.Undo() })
}

func (s *Session) Redo() error {
	return s.mutate(func() error { return s.engine.Redo() })
}

func (s *Session) mutate(op func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := op(); err != nil {
		return err
	}
	s.notifySaveLocked()
	return nil
}

// notifySaveLocked encodes the current state and drops it into the mailbox,
// replacing any snapshot the autosaver has not picked up yet. Caller holds
// s.mu.
func (s *Session) notifySaveLocked() {
	xml, err := ktxml.Encode(s.engine.Document())
	if err != nil {
		s.logger.Error("autosave encode failed", slog.String("error", err.Error()))
		return
	}
	select {
	case s.saveCh <- xml:
	default:
		select {
		case <-s.saveCh:
		default:
		}
		s.saveCh <- xml
	}
}

func (s *Session) autosaveLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.flushPending()
			return
		case xml := <-s.saveCh:
			// wait out the debounce window, then take the newest
			// snapshot that arrived meanwhile
			timer := time.NewTimer(s.delay)
			select {
			case <-timer.C:
			case <-s.stop:
				timer.Stop()
			}
			select {
			case newer := <-s.saveCh:
				xml = newer
			default:
			}
			s.write(xml)
		}
	}
}

func (s *Session) flushPending() {
	select {
	case xml := <-s.saveCh:
		s.write(xml)
	default:
	}
}

func (s *Session) write(xml string) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if err := writeFile(s.path, xml); err != nil {
		s.logger.Error("autosave failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
