// Package handle persists the id of the active session outside the session
// store so recovery can find it without scanning.
package handle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type record struct {
	SessionID string    `json:"sessionId"`
	SavedAt   time.Time `json:"savedAt"`
}

// FileHandle stores the handle as a small JSON document. Writes go to a
// temporary file that is renamed over the target and the directory is synced
// after the rename, so a crash leaves either the old or the new handle.
type FileHandle struct {
	path string
	mu   sync.Mutex
}

func NewFileHandle(path string) *FileHandle {
	return &FileHandle{path: path}
}

func (h *FileHandle) Path() string {
	return h.path
}

// Get reports the stored session id. A missing file or empty id is not an error.
func (h *FileHandle) Get(_ context.Context) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read session handle: %w", err)
	}
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return "", false, fmt.Errorf("decode session handle: %w", err)
	}
	if rec.SessionID == "" {
		return "", false, nil
	}
	return rec.SessionID, true, nil
}

func (h *FileHandle) Set(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create session handle dir: %w", err)
	}
	payload, err := json.MarshalIndent(record{SessionID: sessionID, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session handle: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".handle-*")
	if err != nil {
		return fmt.Errorf("create session handle temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write session handle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session handle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session handle: %w", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		return fmt.Errorf("replace session handle: %w", err)
	}
	if err := syncDir(filepath.Dir(h.path)); err != nil {
		return fmt.Errorf("sync session handle dir: %w", err)
	}
	return nil
}

// Clear removes the handle. Clearing an absent handle succeeds.
func (h *FileHandle) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear session handle: %w", err)
	}
	if err := syncDir(filepath.Dir(h.path)); err != nil {
		return fmt.Errorf("sync session handle dir: %w", err)
	}
	return nil
}

// syncDir makes a rename or remove inside dir durable.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
