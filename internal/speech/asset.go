package speech

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Asset is an owned reference to a synthesized audio clip. The bytes are
// spilled to a temp file so a long session does not pin every generated clip
// in memory; the in-memory copy may be dropped and re-read from the file.
// Assets must be released when superseded or when the document they belong
// to is unloaded.
type Asset struct {
	// ID uniquely identifies this asset handle.
	ID uuid.UUID

	// MIMEType is the audio container type, e.g. "audio/mpeg".
	MIMEType string

	mu       sync.Mutex
	path     string
	data     []byte
	released bool
}

// NewAsset spills the synthesized bytes to a temp file and returns the
// owning handle.
func NewAsset(data []byte, mimeType string) (*Asset, error) {
	id := uuid.New()

	path := filepath.Join(
		os.TempDir(), fmt.Sprintf("karaoke-audio-%s.mp3", id),
	)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("spill audio asset: %w", err)
	}

	return &Asset{
		ID:       id,
		MIMEType: mimeType,
		path:     path,
		data:     data,
	}, nil
}

// Path returns the on-disk location of the audio clip. The file exists until
// the asset is released.
func (a *Asset) Path() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.path
}

// Bytes returns the audio data, re-reading it from the backing file when the
// in-memory copy has been dropped. Released assets return an error.
func (a *Asset) Bytes() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, fmt.Errorf("audio asset %s released", a.ID)
	}
	if a.data != nil {
		return a.data, nil
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("reload audio asset %s: %w", a.ID, err)
	}
	a.data = data

	return data, nil
}

// DropCache discards the in-memory copy, keeping only the file reference.
func (a *Asset) DropCache() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.data = nil
}

// Release deletes the backing file and invalidates the handle. Release is
// idempotent.
func (a *Asset) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return
	}
	a.released = true
	a.data = nil

	// Best effort: a missing file is already the state we want.
	_ = os.Remove(a.path)
}

// Released reports whether the handle has been released.
func (a *Asset) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.released
}
