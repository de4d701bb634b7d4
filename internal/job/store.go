package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("job not found")

// Store owns the in-memory job map and mirrors it to a JSON array on disk.
// Every mutation rewrites the whole file synchronously; a failed save is
// logged but the in-memory mutation stands (single-operator tool, no
// durability promise).
type Store struct {
	path    string
	mu      sync.RWMutex
	records map[string]*Record
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		records: make(map[string]*Record),
	}
}

// Load reads the persisted job history. A missing file means an empty
// store; a corrupt file is logged and also yields an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read job history: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("job history is corrupt, starting empty")
		return nil
	}

	for _, r := range records {
		if r.ID == "" {
			continue
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// List returns all records ordered by upload time, oldest first.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].UploadedAt.Before(records[j].UploadedAt)
	})
	return records
}

func (s *Store) Upsert(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[r.ID] = r.Clone()
	s.save()
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	s.save()
	return nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	s.save()
}

// save serializes the full map. Caller must hold the write lock.
func (s *Store) save() {
	records := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].UploadedAt.Before(records[j].UploadedAt)
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("failed to serialize job history")
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to create job history directory")
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to write job history")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("failed to replace job history")
	}
}

type Stats struct {
	Total         int    `json:"total"`
	Uploaded      int    `json:"uploaded"`
	Assigned      int    `json:"assigned"`
	InProgress    int    `json:"in_progress"`
	Completed     int    `json:"completed"`
	AvgDuration   string `json:"avg_duration"`
	AvgDurationMS int64  `json:"avg_duration_ms"`
}

// Stats derives counts per status and the average duration of completed jobs.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{AvgDuration: FormatDuration(0)}
	var sum time.Duration
	var completed int

	for _, r := range s.records {
		stats.Total++
		switch r.Status {
		case StatusUploaded:
			stats.Uploaded++
		case StatusAssigned:
			stats.Assigned++
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
			if d, ok := ParseDuration(r.Duration); ok {
				sum += d
				completed++
			}
		}
	}

	if completed > 0 {
		avg := sum / time.Duration(completed)
		stats.AvgDuration = FormatDuration(avg)
		stats.AvgDurationMS = avg.Milliseconds()
	}
	return stats
}
