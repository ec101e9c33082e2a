package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// renameFile is swapped in tests to simulate a crash before the rename.
var renameFile = os.Rename

// Store is the file-backed Storage for one playbook document.
type Store struct {
	path          string
	name          string
	lockTimeout   time.Duration
	retryInterval time.Duration
	failOpen      bool
	backupCorrupt bool
	logger        *zap.Logger
	now           func() time.Time
}

var _ Storage = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long Update waits for the lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// WithRetryInterval sets the lock polling period.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Store) {
		s.retryInterval = d
	}
}

// WithLogger sets the logger used for degraded loads.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFailOpen controls whether an unparseable document loads as an empty
// playbook (true, the default) or fails with *CorruptStateError.
func WithFailOpen(v bool) Option {
	return func(s *Store) {
		s.failOpen = v
	}
}

// WithBackupCorrupt controls whether an unparseable document is copied
// aside before it can be overwritten.
func WithBackupCorrupt(v bool) Option {
	return func(s *Store) {
		s.backupCorrupt = v
	}
}

// WithName sets the name given to playbooks created from scratch.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store for the document at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:          path,
		name:          strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		lockTimeout:   DefaultLockTimeout,
		retryInterval: DefaultLockRetryInterval,
		failOpen:      true,
		backupCorrupt: true,
		logger:        zap.NewNop(),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path implements Storage.
func (s *Store) Path() string { return s.path }

// Load implements Storage. A missing document is an empty playbook.
func (s *Store) Load() (*types.Playbook, error) {
	if s.path == "" {
		return nil, ErrEmptyPath
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.NewPlaybook(s.name, s.now()), nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return types.NewPlaybook(s.name, s.now()), nil
	}

	var pb types.Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return s.degrade(data, err)
	}
	if err := validateDocument(&pb); err != nil {
		return s.degrade(data, err)
	}
	normalize(&pb, s.name)
	return &pb, nil
}

func (s *Store) degrade(data []byte, cause error) (*types.Playbook, error) {
	backup := ""
	if s.backupCorrupt {
		backup = s.backupOf(data)
	}
	if !s.failOpen {
		return nil, &CorruptStateError{Path: s.path, Backup: backup, Err: cause}
	}
	s.logger.Warn("playbook unreadable, continuing with an empty playbook",
		zap.String("path", s.path),
		zap.String("backup", backup),
		zap.Error(cause))
	return types.NewPlaybook(s.name, s.now()), nil
}

// backupOf copies a corrupt document next to the playbook and returns the
// copy's path. Reads of the same damaged bytes reuse the existing copy.
func (s *Store) backupOf(data []byte) string {
	existing, _ := filepath.Glob(s.path + ".corrupt-*")
	for _, p := range existing {
		if prev, err := os.ReadFile(p); err == nil && bytes.Equal(prev, data) {
			return p
		}
	}
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102T150405Z"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		s.logger.Warn("could not back up corrupt playbook",
			zap.String("path", s.path), zap.String("backup", backup), zap.Error(err))
		return ""
	}
	return backup
}

// validateDocument rejects documents that parse as YAML but hold entries
// no playbook could contain.
func validateDocument(pb *types.Playbook) error {
	seen := make(map[string]bool, len(pb.Bullets))
	for i, b := range pb.Bullets {
		if b == nil {
			return fmt.Errorf("bullet %d is empty", i)
		}
		if b.ID == "" {
			return fmt.Errorf("bullet %d has no id", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate bullet id %s", b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

func normalize(pb *types.Playbook, name string) {
	if pb.SchemaVersion == 0 {
		pb.SchemaVersion = types.CurrentSchemaVersion
	}
	if pb.Name == "" {
		pb.Name = name
	}
	if pb.Bullets == nil {
		pb.Bullets = []*types.Bullet{}
	}
	playbook.SyncAll(pb)
}

// Save implements Storage.
func (s *Store) Save(pb *types.Playbook) error {
	if s.path == "" {
		return ErrEmptyPath
	}
	pb.SchemaVersion = types.CurrentSchemaVersion
	pb.Metadata.UpdatedAt = s.now()
	if pb.Metadata.CreatedAt.IsZero() {
		pb.Metadata.CreatedAt = pb.Metadata.UpdatedAt
	}
	playbook.SyncAll(pb)

	err := atomicWrite(s.path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(pb); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// Update implements Storage: lock, load, fn, save, unlock.
func (s *Store) Update(ctx context.Context, fn func(*types.Playbook) error) error {
	lock := NewFileLock(s.path)
	if err := lock.Acquire(ctx, s.lockTimeout, s.retryInterval); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("release playbook lock", zap.String("path", lock.Path()), zap.Error(err))
		}
	}()

	pb, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(pb); err != nil {
		if errors.Is(err, ErrDiscard) {
			return nil
		}
		return err
	}
	return s.Save(pb)
}

// atomicWrite writes to a temp file and renames atomically.
func atomicWrite(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath) //nolint:errcheck // cleanup in error path
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("write content: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close() //nolint:errcheck // cleanup in error path
		return fmt.Errorf("sync file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := renameFile(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}
