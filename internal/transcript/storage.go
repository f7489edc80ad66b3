package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AmbiguousIDError is returned when multiple transcripts match a prefix
type AmbiguousIDError struct {
	Prefix  string
	Matches []Transcript
}

func (e *AmbiguousIDError) Error() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Ambiguous transcript ID %q. Multiple matches found:", e.Prefix))
	for _, match := range e.Matches {
		lines = append(lines, fmt.Sprintf("- %s (%s, %d messages)",
			match.ShortID(),
			match.CreatedAt.Format("2006-01-02"),
			match.MessageCount()))
	}
	lines = append(lines, "")
	lines = append(lines, "Please use a longer prefix or run 'rulechat transcripts list'.")
	return strings.Join(lines, "\n")
}

// Store keeps transcripts as one JSON file each in a directory
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory transcripts are stored in
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a transcript to disk
func (s *Store) Save(t *Transcript) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create transcript directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize transcript: %w", err)
	}

	// Replace atomically via rename
	tmp := s.path(t.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write transcript file: %w", err)
	}
	if err := os.Rename(tmp, s.path(t.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write transcript file: %w", err)
	}
	return nil
}

// Load reads a transcript from disk by full ID
func (s *Store) Load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript not found: %s\n\nRun 'rulechat transcripts list' to see available transcripts.", id)
		}
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript file: %w\n\nThe transcript file may be corrupted.", err)
	}
	return &t, nil
}

// Delete removes a transcript from disk by full ID
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("transcript not found: %s", id)
		}
		return fmt.Errorf("failed to delete transcript file: %w", err)
	}
	return nil
}

// List returns all transcripts sorted by UpdatedAt (newest first).
// Corrupted files are skipped.
func (s *Store) List() ([]Transcript, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var transcripts []Transcript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		t, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		transcripts = append(transcripts, *t)
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].UpdatedAt.After(transcripts[j].UpdatedAt)
	})
	return transcripts, nil
}

// FindByPrefix finds a transcript by short ID prefix (minimum 4 characters).
// "latest" returns the most recently updated transcript.
// Returns *AmbiguousIDError if several transcripts match.
func (s *Store) FindByPrefix(prefix string) (*Transcript, error) {
	if prefix == "latest" {
		return s.Latest()
	}

	if len(prefix) < 4 {
		return nil, fmt.Errorf("transcript ID prefix must be at least 4 characters (got %d)", len(prefix))
	}

	// Full UUID (36 characters with 4 dashes)
	if len(prefix) == 36 && strings.Count(prefix, "-") == 4 {
		return s.Load(prefix)
	}

	transcripts, err := s.List()
	if err != nil {
		return nil, err
	}

	var matches []Transcript
	for _, t := range transcripts {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("transcript not found: %s\n\nRun 'rulechat transcripts list' to see available transcripts.", prefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, &AmbiguousIDError{Prefix: prefix, Matches: matches}
	}
}

// Latest returns the most recently updated transcript
func (s *Store) Latest() (*Transcript, error) {
	transcripts, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(transcripts) == 0 {
		return nil, fmt.Errorf("no transcripts found\n\nStart a conversation with: rulechat start")
	}
	return &transcripts[0], nil
}

// Prune deletes transcripts last updated before cutoff and returns how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	transcripts, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, t := range transcripts {
		if !t.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(t.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Clear deletes every transcript and returns how many were removed.
func (s *Store) Clear() (int, error) {
	transcripts, err := s.List()
	if err != nil {
		return 0, err
	}
	for i, t := range transcripts {
		if err := s.Delete(t.ID); err != nil {
			return i, err
		}
	}
	return len(transcripts), nil
}
