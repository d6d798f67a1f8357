package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func setupReservationStore(t *testing.T) *ReservationStore {
	t.Helper()
	return NewReservationStore(filepath.Join(t.TempDir(), "reservations.json"))
}

func TestReservationListMissingFile(t *testing.T) {
	s := setupReservationStore(t)

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(list) != 0 {
		t.Errorf("len = %d, want 0", len(list))
	}
}

func TestReservationCreateAndList(t *testing.T) {
	s := setupReservationStore(t)
	fixed := time.Date(2024, 4, 20, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	created, err := s.Create(map[string]any{"name": "Ali", "date": "2024-05-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated id")
	}
	if !created.CreatedAt.Equal(fixed) {
		t.Errorf("createdAt = %v, want %v", created.CreatedAt, fixed)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID {
		t.Errorf("id = %q, want %q", got.ID, created.ID)
	}
	if got.Fields["name"] != "Ali" {
		t.Errorf("name = %v, want Ali", got.Fields["name"])
	}
	if got.Fields["date"] != "2024-05-01" {
		t.Errorf("date = %v, want 2024-05-01", got.Fields["date"])
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Errorf("stored createdAt = %v, want %v", got.CreatedAt, fixed)
	}
}

func TestReservationCreateIgnoresClientIDAndTimestamp(t *testing.T) {
	s := setupReservationStore(t)

	created, err := s.Create(map[string]any{"id": "mine", "createdAt": "1999-01-01T00:00:00Z", "name": "Ali"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "mine" {
		t.Error("client id should be replaced by the server id")
	}
	if created.CreatedAt.Year() == 1999 {
		t.Error("client createdAt should be replaced by the server timestamp")
	}
	if _, ok := created.Fields["id"]; ok {
		t.Error("id should not be kept in fields")
	}
}

func TestReservationInsertionOrder(t *testing.T) {
	s := setupReservationStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := s.Create(map[string]any{"seq": i})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, r.ID)
	}

	list, _ := s.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, r := range list {
		if r.ID != ids[i] {
			t.Errorf("list[%d].id = %q, want %q", i, r.ID, ids[i])
		}
	}
}

func TestReservationDeleteExisting(t *testing.T) {
	s := setupReservationStore(t)

	keep, _ := s.Create(map[string]any{"name": "keep"})
	drop, _ := s.Create(map[string]any{"name": "drop"})

	removed, err := s.Delete(drop.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Error("expected removed = true")
	}

	list, _ := s.List()
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].ID != keep.ID {
		t.Errorf("remaining id = %q, want %q", list[0].ID, keep.ID)
	}
}

func TestReservationDeleteUnknownID(t *testing.T) {
	s := setupReservationStore(t)

	s.Create(map[string]any{"name": "a"})
	s.Create(map[string]any{"name": "b"})

	removed, err := s.Delete("does-not-exist")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed {
		t.Error("expected removed = false")
	}

	list, _ := s.List()
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}

func TestReservationDeleteMissingFile(t *testing.T) {
	s := setupReservationStore(t)

	_, err := s.Delete("anything")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(s.Path()); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("delete should not create the backing file")
	}
}

func TestReservationDeleteLegacyNumericID(t *testing.T) {
	s := setupReservationStore(t)
	legacy := `[{"id": 1714550400000, "name": "Ali"}]`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	removed, err := s.Delete("1714550400000")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !removed {
		t.Error("numeric id should match its string form")
	}
}

func TestReservationFileIsIndentedJSON(t *testing.T) {
	s := setupReservationStore(t)
	s.Create(map[string]any{"name": "Ali"})

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Errorf("file is not indented:\n%s", data)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	if raw[0]["createdAt"] == nil || raw[0]["id"] == nil {
		t.Errorf("persisted record missing server fields: %v", raw[0])
	}
}

func TestReservationCorruptFile(t *testing.T) {
	s := setupReservationStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := s.List(); !errors.Is(err, ErrStorage) {
		t.Errorf("list err = %v, want ErrStorage", err)
	}
	if _, err := s.Create(map[string]any{"name": "x"}); !errors.Is(err, ErrStorage) {
		t.Errorf("create err = %v, want ErrStorage", err)
	}

	data, _ := os.ReadFile(s.Path())
	if string(data) != "{not json" {
		t.Error("failed create must not rewrite the file")
	}
}

func TestReservationNonArrayFile(t *testing.T) {
	for _, doc := range []string{"null", `{"id":"a"}`, "  null\n"} {
		s := setupReservationStore(t)
		if err := os.WriteFile(s.Path(), []byte(doc), 0o644); err != nil {
			t.Fatalf("seed file: %v", err)
		}

		if _, err := s.List(); !errors.Is(err, ErrStorage) {
			t.Errorf("list of %q: err = %v, want ErrStorage", doc, err)
		}
		if _, err := s.Create(map[string]any{"name": "x"}); !errors.Is(err, ErrStorage) {
			t.Errorf("create on %q: err = %v, want ErrStorage", doc, err)
		}
		data, _ := os.ReadFile(s.Path())
		if string(data) != doc {
			t.Errorf("file %q was rewritten to %q", doc, data)
		}
	}
}

func TestReservationEmptyFileIsEmptyList(t *testing.T) {
	s := setupReservationStore(t)
	if err := os.WriteFile(s.Path(), []byte("\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %#v, want empty non-nil slice", list)
	}
}

func TestReservationMutationKeepsStoredTimestamps(t *testing.T) {
	s := setupReservationStore(t)
	legacy := `[
  {"id": "keep", "createdAt": "2024-05-01T10:00:00.000Z", "name": "Ali"},
  {"id": "offset", "createdAt": "2024-05-01T13:00:00+03:00", "name": "Ayse"},
  {"id": "gone", "createdAt": "2024-05-02T08:00:00.000Z", "name": "Mehmet"}
]`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := s.Delete("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode file: %v", err)
	}
	want := []string{"2024-05-01T10:00:00.000Z", "2024-05-01T13:00:00+03:00"}
	if len(raw) != len(want) {
		t.Fatalf("len = %d, want %d", len(raw), len(want))
	}
	for i, w := range want {
		if raw[i]["createdAt"] != w {
			t.Errorf("record %d createdAt = %v, want %s", i, raw[i]["createdAt"], w)
		}
	}
}

func TestReservationWriteFailureKeepsFile(t *testing.T) {
	s := NewReservationStore(filepath.Join(t.TempDir(), "missing-dir", "reservations.json"))

	_, err := s.Create(map[string]any{"name": "x"})
	if !errors.Is(err, ErrStorage) {
		t.Errorf("err = %v, want ErrStorage", err)
	}
}

func TestReservationNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewReservationStore(filepath.Join(dir, "reservations.json"))
	s.Create(map[string]any{"name": "a"})
	s.Create(map[string]any{"name": "b"})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the data file", len(entries))
	}
}

func TestReservationConcurrentCreates(t *testing.T) {
	s := setupReservationStore(t)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(map[string]any{"name": fmt.Sprintf("guest-%d", i)}); err != nil {
				t.Errorf("create %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != n {
		t.Errorf("len = %d, want %d (lost updates)", len(list), n)
	}

	seen := make(map[string]bool)
	for _, r := range list {
		if seen[r.ID] {
			t.Errorf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestReservationSnapshotAndReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reservations.json")
	s := NewReservationStore(path)

	if _, err := s.Snapshot(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("snapshot of missing file: err = %v, want ErrNotFound", err)
	}

	if _, err := s.Create(map[string]any{"name": "Ali"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if _, err := s.Create(map[string]any{"name": "Ayse"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := s.Replace(snap)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 1 {
		t.Errorf("replaced count = %d, want 1", n)
	}
	list, _ := s.List()
	if len(list) != 1 || list[0].Fields["name"] != "Ali" {
		t.Errorf("list after replace = %v, want only Ali", list)
	}

	if _, err := s.Replace([]byte("not json")); !errors.Is(err, ErrStorage) {
		t.Errorf("replace with garbage: err = %v, want ErrStorage", err)
	}
	list, _ = s.List()
	if len(list) != 1 {
		t.Errorf("garbage replace changed the file: len = %d", len(list))
	}

	for _, doc := range []string{"null", `{"id":"x"}`, ""} {
		if _, err := s.Replace([]byte(doc)); !errors.Is(err, ErrStorage) {
			t.Errorf("replace with %q: err = %v, want ErrStorage", doc, err)
		}
	}
	list, _ = s.List()
	if len(list) != 1 || list[0].Fields["name"] != "Ali" {
		t.Errorf("non-array replace changed the file: %v", list)
	}
}
