// Package storage persists playbooks as YAML documents on the local
// filesystem. Writes are atomic and read-modify-write cycles are serialised
// through an advisory file lock.
package storage

import (
	"context"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

const (
	// DefaultGlobalDir is the per-user playbook directory, relative to $HOME.
	DefaultGlobalDir = ".cass-memory"

	// DefaultWorkspaceDir is the per-repository playbook directory.
	DefaultWorkspaceDir = ".cass"

	// DefaultPlaybookFile is the playbook file name inside either directory.
	DefaultPlaybookFile = "playbook.yaml"
)

// Storage is a single playbook document.
type Storage interface {
	// Path returns the document path.
	Path() string

	// Load reads the playbook without taking the lock.
	Load() (*types.Playbook, error)

	// Save writes the playbook atomically without taking the lock.
	Save(pb *types.Playbook) error

	// Update runs fn against the freshly loaded playbook while holding the
	// lock and saves the result. Nothing is written if fn fails.
	Update(ctx context.Context, fn func(*types.Playbook) error) error
}

// LoadPlaybook reads the playbook at path with default options.
func LoadPlaybook(path string) (*types.Playbook, error) {
	return New(path).Load()
}

// SavePlaybook atomically writes pb to path with default options.
func SavePlaybook(pb *types.Playbook, path string) error {
	return New(path).Save(pb)
}
