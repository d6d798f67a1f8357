package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/reservations/internal/model"
)

var (
	// ErrNotFound is returned when a mutation targets a backing file that
	// has not been created yet.
	ErrNotFound = errors.New("reservations file not found")
	// ErrStorage wraps every read or write failure of the backing file.
	ErrStorage = errors.New("reservation storage failure")
)

// ReservationStore keeps all reservations in a single JSON file. Every
// mutation reads the whole file, changes it in memory and replaces it
// atomically; mu serializes those sequences so concurrent requests cannot
// lose each other's writes.
type ReservationStore struct {
	mu    sync.Mutex
	path  string
	now   func() time.Time
	newID func() string
}

func NewReservationStore(path string) *ReservationStore {
	return &ReservationStore{
		path:  path,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Path returns the location of the backing file.
func (s *ReservationStore) Path() string {
	return s.path
}

// List returns all reservations in insertion order. A missing file is an
// empty collection.
func (s *ReservationStore) List() ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Reservation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Create stores a new reservation built from payload and returns it.
func (s *ReservationStore) Create(payload map[string]any) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	r := model.NewReservation(s.newID(), s.now(), payload)
	list = append(list, r)

	if err := s.write(list); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the reservation whose id matches and reports whether a
// record was removed. An unknown id is not an error.
func (s *ReservationStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	kept := list[:0:0]
	for _, r := range list {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	removed := len(kept) < len(list)

	if err := s.write(kept); err != nil {
		return false, err
	}
	return removed, nil
}

// read loads the file. It returns fs.ErrNotExist, not ErrStorage, when the
// file is absent.
func (s *ReservationStore) read() ([]model.Reservation, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fs.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Reservation{}, nil
	}
	list, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, s.path, err)
	}
	return list, nil
}

// decodeList accepts only a JSON array; null or an object is an error
// rather than an empty collection.
func decodeList(data []byte) ([]model.Reservation, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("document is not a JSON array")
	}
	var list []model.Reservation
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// write replaces the file with list via a temp file in the same directory
// and a rename, so a failed write never leaves a truncated file behind.
func (s *ReservationStore) write(list []model.Reservation) error {
	if list == nil {
		list = []model.Reservation{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrStorage, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrStorage, s.path, err)
	}
	return nil
}

// Snapshot returns the raw contents of the backing file. A missing file
// yields ErrNotFound.
func (s *ReservationStore) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}
	return data, nil
}

// Replace swaps the whole collection for the reservations encoded in data
// and returns how many were loaded. data must decode as a reservation list;
// otherwise the current file is left untouched.
func (s *ReservationStore) Replace(data []byte) (int, error) {
	list, err := decodeList(data)
	if err != nil {
		return 0, fmt.Errorf("%w: decode snapshot: %v", ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(list); err != nil {
		return 0, err
	}
	return len(list), nil
}
