package emulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store persists runtime handles as one JSON file each so entities left
// behind by an aborted run can be found and removed later.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) Save(h Handle) error {
	if h.ID == "" {
		return fmt.Errorf("save handle: missing id")
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(h.ID), data, 0644)
}

func (s *Store) FindByID(id string) (*Handle, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}

	var h Handle
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// List returns the stored handles in creation order: by creation time,
// then by position within their runtime. Files that cannot be read are
// skipped and reported in the returned error alongside the readable
// handles.
func (s *Store) List() ([]Handle, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var handles []Handle
	var errs []error
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		h, err := s.FindByID(strings.TrimSuffix(file.Name(), ".json"))
		if err != nil {
			errs = append(errs, fmt.Errorf("skip handle %s: %w", file.Name(), err))
			continue
		}
		handles = append(handles, *h)
	}

	sort.SliceStable(handles, func(i, j int) bool {
		ti, tj := createdAt(handles[i]), createdAt(handles[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if handles[i].Seq != handles[j].Seq {
			return handles[i].Seq < handles[j].Seq
		}
		return handles[i].ID < handles[j].ID
	})
	return handles, errors.Join(errs...)
}

func createdAt(h Handle) time.Time {
	t, err := time.Parse(time.RFC3339Nano, h.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
