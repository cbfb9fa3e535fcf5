// Package filestore keeps all records in a single JSON document on disk.
// It exists for small deployments and local development where a spreadsheet
// or a database is overkill.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ulugbekdev/cargobot/core/logger"
	"github.com/ulugbekdev/cargobot/store"
)

type document struct {
	Parties []store.Party  `json:"parties"`
	Clients []store.Client `json:"clients"`
}

// Store reads and writes the JSON document under a process-wide mutex.
// Writes go through a temp file and an atomic rename so a crash mid-write
// never truncates the data.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a file-backed store rooted at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Init creates the document with empty tables when the file is absent.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return store.WrapErr("init", "", err)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return store.WrapErr("init", "", err)
		}
	}

	doc := document{Parties: []store.Party{}, Clients: []store.Client{}}
	if err := s.write(&doc); err != nil {
		return store.WrapErr("init", "", err)
	}

	logger.STORE.Info("file store initialized",
		slog.String("event", "init"),
		slog.String("backend", "file"),
		slog.String("path", s.path),
	)
	return nil
}

func (s *Store) ListParties(ctx context.Context) ([]store.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, store.WrapErr("list", store.TableParties, err)
	}
	return doc.Parties, nil
}

func (s *Store) AppendParty(ctx context.Context, p store.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return store.WrapErr("append", store.TableParties, err)
	}
	doc.Parties = append(doc.Parties, p)
	if err := s.write(doc); err != nil {
		return store.WrapErr("append", store.TableParties, err)
	}
	return nil
}

func (s *Store) UpdatePartyStatus(ctx context.Context, code, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return store.WrapErr("update", store.TableParties, err)
	}
	updated := false
	for i := range doc.Parties {
		if doc.Parties[i].Code == code {
			doc.Parties[i].Status = status
			updated = true
		}
	}
	if !updated {
		return store.WrapErr("update", store.TableParties, store.ErrNotFound)
	}
	if err := s.write(doc); err != nil {
		return store.WrapErr("update", store.TableParties, err)
	}
	return nil
}

func (s *Store) DeleteParty(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return store.WrapErr("delete", store.TableParties, err)
	}
	kept := doc.Parties[:0]
	removed := false
	for _, p := range doc.Parties {
		if p.Code == code {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return store.WrapErr("delete", store.TableParties, store.ErrNotFound)
	}
	doc.Parties = kept
	if err := s.write(doc); err != nil {
		return store.WrapErr("delete", store.TableParties, err)
	}
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]store.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, store.WrapErr("list", store.TableClients, err)
	}
	return doc.Clients, nil
}

func (s *Store) AppendClient(ctx context.Context, c store.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return store.WrapErr("append", store.TableClients, err)
	}
	doc.Clients = append(doc.Clients, c)
	if err := s.write(doc); err != nil {
		return store.WrapErr("append", store.TableClients, err)
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return store.WrapErr("delete", store.TableClients, err)
	}
	kept := doc.Clients[:0]
	removed := false
	for _, c := range doc.Clients {
		if c.ID == id {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return store.WrapErr("delete", store.TableClients, store.ErrNotFound)
	}
	doc.Clients = kept
	if err := s.write(doc); err != nil {
		return store.WrapErr("delete", store.TableClients, err)
	}
	return nil
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *Store) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
