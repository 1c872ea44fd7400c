// Package filestore keeps the whole key inventory in a single JSON document.
//
// The document is loaded once at startup and rewritten in full after every
// mutation (write to a temp file, then rename). Concurrent writers are not
// merged: the last rewrite wins. Two legacy layouts are accepted on load, a
// bare array of key records and an object without telegramConfig.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"keystock.backend/internal/domain/entities"
	"keystock.backend/pkg/logger"
)

var (
	nowFunc   = func() time.Time { return time.Now().UTC() }
	readFile  = os.ReadFile
	writeFile = atomicWriteFile
)

// Document is the persisted layout
type Document struct {
	LastWarned     null.Int                     `json:"lastWarned"`
	NextID         int64                        `json:"nextId"`
	Keys           []*entities.Key              `json:"keys"`
	TelegramConfig *entities.NotificationConfig `json:"telegramConfig"`
}

// Store guards a Document and its backing file
type Store struct {
	path string

	mu  sync.Mutex
	doc Document
}

// Open creates a store for path and loads it. Load never fails; an
// unreadable or corrupt file yields an empty inventory.
func Open(ctx context.Context, path string) *Store {
	s := &Store{path: path}
	s.Load(ctx)
	return s
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory document with the file contents
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument()
	if err != nil {
		logger.Warn(ctx, "Key store unreadable, starting empty",
			zap.String("path", s.path), zap.Error(err))
		doc = emptyDocument()
	}
	s.doc = doc
}

func emptyDocument() Document {
	cfg := entities.DefaultNotificationConfig()
	return Document{
		NextID:         1,
		Keys:           []*entities.Key{},
		TelegramConfig: &cfg,
	}
}

func (s *Store) readDocument() (Document, error) {
	data, err := readFile(s.path)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Keys); err != nil {
			return Document{}, fmt.Errorf("decode legacy key list: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("decode key store: %w", err)
	}

	normalize(&doc)
	return doc, nil
}

// normalize back-fills fields introduced after a record was first written
func normalize(doc *Document) {
	now := nowFunc()
	var maxID int64
	keys := make([]*entities.Key, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		if k == nil {
			continue
		}
		if k.History == nil {
			k.History = []entities.HistoryEvent{}
		}
		if k.CreatedAt.IsZero() {
			k.CreatedAt = now
		}
		if k.ID > maxID {
			maxID = k.ID
		}
		keys = append(keys, k)
	}
	doc.Keys = keys

	if doc.NextID <= maxID {
		doc.NextID = maxID + 1
	}

	cfg := entities.DefaultNotificationConfig()
	if doc.TelegramConfig != nil {
		cfg = doc.TelegramConfig.WithDefaults()
	}
	doc.TelegramConfig = &cfg
}

// Save rewrites the backing file with the current document
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.doc)
}

func (s *Store) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key store: %w", err)
	}
	if err := writeFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write key store: %w", err)
	}
	return nil
}

// View runs fn with read access to the document
func (s *Store) View(fn func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.doc)
}

// Mutate runs fn against a copy of the document and persists it. The copy
// replaces the in-memory document only after the file was written, so a
// failed fn or a failed write leaves the store unchanged.
func (s *Store) Mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.doc.clone()
	if err := fn(&work); err != nil {
		return err
	}
	if err := s.write(work); err != nil {
		return err
	}
	s.doc = work
	return nil
}

func (d Document) clone() Document {
	c := d
	c.Keys = make([]*entities.Key, len(d.Keys))
	for i, k := range d.Keys {
		c.Keys[i] = k.Clone()
	}
	if d.TelegramConfig != nil {
		cfg := *d.TelegramConfig
		cfg.Thresholds = append([]int(nil), d.TelegramConfig.Thresholds...)
		c.TelegramConfig = &cfg
	}
	return c
}
