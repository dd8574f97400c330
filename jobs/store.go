// Package jobs is the persistent job application store.
//
// Records live in a single JSON array file. Every mutation runs
// lock -> load -> mutate -> write temp -> fsync -> rename -> unlock under an
// exclusive file lock, so concurrent jobtrail processes sharing the file
// never lose each other's writes. Reads take no lock; the rename guarantees
// they see a complete file.
package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

const (
	// DefaultLockTimeout bounds how long a mutation waits for the file lock
	DefaultLockTimeout = 10 * time.Second

	// minPrefixLen is the shortest id prefix Resolve accepts
	minPrefixLen = 4
)

// Options configures a Store
type Options struct {
	LockTimeout time.Duration
	Now         func() time.Time
	Logger      *zap.SugaredLogger
}

// Store is a job store backed by one file
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	now         func() time.Time
	logger      *zap.SugaredLogger

	// mu serializes mutations within this process; the file lock covers other processes
	mu sync.Mutex
}

// Open prepares a store at path, creating its directory if needed.
// An existing file must parse; a missing file is an empty store.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewValidationError("store path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve store path %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, unwritable(err, abs)
	}
	if _, err := loadFile(abs); err != nil {
		return nil, err
	}

	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.ComponentLogger("jobs")
	}

	return &Store{
		path:        abs,
		lockPath:    abs + ".lock",
		lockTimeout: opts.LockTimeout,
		now:         func() time.Time { return opts.Now().UTC() },
		logger:      opts.Logger,
	}, nil
}

// Path returns the absolute path of the store file
func (s *Store) Path() string {
	return s.path
}

// List returns all records in creation order
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loadFile(s.path)
}

// Get returns the record with the exact id
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	return &records[i], nil
}

// Resolve finds a record by exact id, by 1-based position in List order, or
// by a unique id prefix of at least four characters.
func (s *Store) Resolve(ctx context.Context, ref string) (*Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.NewValidationError("job reference is required")
	}
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	if i := indexOf(records, ref); i >= 0 {
		return &records[i], nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(records) {
		return &records[n-1], nil
	}
	if len(ref) >= minPrefixLen {
		var matches []int
		for i := range records {
			if strings.HasPrefix(records[i].ID, strings.ToLower(ref)) {
				matches = append(matches, i)
			}
		}
		switch len(matches) {
		case 1:
			return &records[matches[0]], nil
		case 0:
		default:
			return nil, errors.WithHint(
				errors.NewValidationError("job reference %q matches %d jobs", ref, len(matches)),
				"use more characters of the id")
		}
	}
	return nil, errors.WithHint(
		errors.NewNotFoundError("job %s", ref),
		"run 'jobtrail ls' to see ids and positions")
}

// Add stores a new record, or updates the content fields of the record
// sharing its source key. It reports whether a record was created.
// Status, notes, id and created_at survive a re-add.
func (s *Store) Add(ctx context.Context, nr NewRecord) (*Record, bool, error) {
	if err := nr.validate(); err != nil {
		return nil, false, err
	}

	var result Record
	created := false
	err := s.mutate(ctx, "add", func(records []Record) ([]Record, error) {
		now := s.now()
		for i := range records {
			if records[i].SourceKey == nr.SourceKey {
				records[i].applyContent(nr)
				records[i].UpdatedAt = now
				result = records[i]
				return records, nil
			}
		}

		rec := Record{
			ID:         uuid.NewString(),
			SourceType: nr.SourceType,
			SourceKey:  nr.SourceKey,
			Status:     StatusSaved,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		rec.applyContent(nr)
		created = true
		result = rec
		return append(records, rec), nil
	})
	if err != nil {
		return nil, false, err
	}

	op := "updated"
	if created {
		op = "created"
	}
	s.logger.Infow("job stored",
		logger.FieldJobID, result.ID,
		logger.FieldSourceType, result.SourceType,
		logger.FieldOperation, op)
	return &result, created, nil
}

// UpdateStatus moves a record to status. An optional note is appended in the
// same commit. Illegal moves wrap ErrInvalidTransition and leave the file untouched.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, note string) (*Record, error) {
	var result Record
	var from Status
	err := s.mutate(ctx, "update_status", func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, errors.NewNotFoundError("job %s", id)
		}
		rec := &records[i]
		if err := checkTransition(rec.ID, rec.Status, status); err != nil {
			return nil, err
		}

		now := s.now()
		from = rec.Status
		rec.Status = status
		rec.UpdatedAt = now
		if text := strings.TrimSpace(note); text != "" {
			rec.Notes = append(rec.Notes, Note{At: now, Text: text})
		}
		result = *rec
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("job status changed",
		logger.FieldJobID, id,
		logger.FieldFromStatus, from,
		logger.FieldStatus, status)
	return &result, nil
}

// AddNote appends a timestamped note to a record
func (s *Store) AddNote(ctx context.Context, id, text string) (*Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewValidationError("note text is required")
	}

	var result Record
	err := s.mutate(ctx, "add_note", func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, errors.NewNotFoundError("job %s", id)
		}
		now := s.now()
		records[i].Notes = append(records[i].Notes, Note{At: now, Text: text})
		records[i].UpdatedAt = now
		result = records[i]
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes a record
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.mutate(ctx, "delete", func(records []Record) ([]Record, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, errors.NewNotFoundError("job %s", id)
		}
		return append(records[:i], records[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	s.logger.Infow("job deleted", logger.FieldJobID, id)
	return nil
}

// Stale returns active records whose last update is older than olderThan,
// least recently updated first
func (s *Store) Stale(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-olderThan)

	var stale []Record
	for _, r := range records {
		if r.Status.IsActive() && r.UpdatedAt.Before(cutoff) {
			stale = append(stale, r)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].UpdatedAt.Before(stale[j].UpdatedAt)
	})
	return stale, nil
}

// mutate runs fn against the freshest file content and commits its result
func (s *Store) mutate(ctx context.Context, op string, fn func([]Record) ([]Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	fl, err := acquireLock(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		s.logger.Warnw("store lock failed",
			logger.FieldOperation, op,
			logger.FieldFile, s.lockPath,
			logger.FieldError, err.Error())
		return err
	}
	defer fl.Unlock()

	records, err := loadFile(s.path)
	if err != nil {
		return err
	}
	records, err = fn(records)
	if err != nil {
		return err
	}
	if err := writeFile(s.path, records); err != nil {
		s.logger.Errorw("store commit failed",
			logger.FieldOperation, op,
			logger.FieldFile, s.path,
			logger.FieldError, err.Error())
		return err
	}

	s.logger.Debugw("store committed",
		logger.FieldOperation, op,
		logger.FieldCount, len(records),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

func indexOf(records []Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
