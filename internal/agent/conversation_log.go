package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ashureev/taskforge/internal/config"
)

// ConversationLogEvent is one NDJSON line of the conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// NoopConversationLogger discards events.
type NoopConversationLogger struct{}

func (NoopConversationLogger) Log(ConversationLogEvent) {}
func (NoopConversationLogger) Close() error             { return nil }

// FileConversationLogger appends events to <dir>/<session_id>.ndjson from a
// single background goroutine. Events are dropped when the queue is full.
type FileConversationLogger struct {
	fs     afero.Fs
	dir    string
	queue  chan ConversationLogEvent
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewConversationLogger returns a NoopConversationLogger when logging is
// disabled, otherwise a started FileConversationLogger.
func NewConversationLogger(fs afero.Fs, cfg config.ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return NoopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	l := &FileConversationLogger{
		fs:     fs,
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

// Log enqueues event without blocking.
func (l *FileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event", "session_id", event.SessionID, "event_type", event.EventType)
	}
}

// Close drains the queue and stops the writer.
func (l *FileConversationLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *FileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("Failed to write conversation log", "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *FileConversationLogger) write(event ConversationLogEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	path := filepath.Join(l.dir, logFileName(event.SessionID))
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func logFileName(sessionID string) string {
	name := unsafeFileChars.ReplaceAllString(sessionID, "_")
	if name == "" || strings.Trim(name, ".") == "" {
		name = "unknown"
	}
	return name + ".ndjson"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanForReadability strips control characters and collapses whitespace.
func cleanForReadability(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
