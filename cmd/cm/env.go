package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/config"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/curator"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// appEnv is the resolved runtime of one cm invocation.
type appEnv struct {
	cfg    *config.Loaded
	logger *zap.Logger
	home   string
	root   string
	now    func() time.Time
}

// target is one playbook document and the scope it holds.
type target struct {
	Scope types.Scope
	Store storage.Storage
}

func (a *appEnv) globalPath() string    { return a.cfg.GlobalPlaybookPath(a.home) }
func (a *appEnv) workspacePath() string { return a.cfg.WorkspacePlaybookPath(a.root) }

// store opens the document at path. In dry-run mode updates are computed
// but never saved.
func (a *appEnv) store(path string) storage.Storage {
	opts := append(a.cfg.StoreOptions(), storage.WithLogger(a.logger.Named("storage")))
	st := storage.New(path, opts...)
	if GetDryRun() {
		return dryRunStore{st}
	}
	return st
}

// writeTarget is where new bullets go: the workspace playbook with
// --workspace, the global one otherwise.
func (a *appEnv) writeTarget() target {
	if useWorkspace {
		return target{Scope: types.ScopeWorkspace, Store: a.store(a.workspacePath())}
	}
	return target{Scope: types.ScopeGlobal, Store: a.store(a.globalPath())}
}

// readTargets lists the playbooks a command looks at. Without a scope flag
// that is the global playbook plus the workspace one when it exists.
func (a *appEnv) readTargets() []target {
	global := target{Scope: types.ScopeGlobal, Store: a.store(a.globalPath())}
	workspace := target{Scope: types.ScopeWorkspace, Store: a.store(a.workspacePath())}
	switch {
	case useGlobal:
		return []target{global}
	case useWorkspace:
		return []target{workspace}
	}
	targets := []target{global}
	if a.workspacePath() != a.globalPath() && fileExists(a.workspacePath()) {
		targets = append(targets, workspace)
	}
	return targets
}

// locate finds the playbook holding id among the read targets.
func (a *appEnv) locate(id string) (target, *types.Bullet, error) {
	for _, t := range a.readTargets() {
		pb, err := t.Store.Load()
		if err != nil {
			return target{}, nil, err
		}
		if b := playbook.FindBullet(pb, id); b != nil {
			return t, b, nil
		}
	}
	return target{}, nil, fmt.Errorf("%w: %s", types.ErrBulletNotFound, id)
}

// curator builds a Curator from the resolved configuration.
func (a *appEnv) curator() *curator.Curator {
	return curator.New(
		curator.WithConfig(curator.Config{
			Scoring:                  a.cfg.ScoringConfig(),
			DedupSimilarityThreshold: a.cfg.Curation.DedupSimilarityThreshold,
			NewBulletState:           types.State(a.cfg.Curation.NewBulletState),
		}),
		curator.WithClock(a.now),
		curator.WithLogger(a.logger.Named("curator")),
	)
}

// curate applies deltas to the document of t under its lock.
func (a *appEnv) curate(ctx context.Context, t target, deltas []types.Delta) (*curator.Result, error) {
	var res *curator.Result
	err := t.Store.Update(ctx, func(pb *types.Playbook) error {
		res = a.curator().Curate(pb, deltas)
		if res.Applied == 0 {
			return storage.ErrDiscard
		}
		return nil
	})
	if err != nil {
		return nil, retryHint(err)
	}
	return res, nil
}

// retryHint tells the user when a failed write can simply be run again.
func retryHint(err error) error {
	if err == nil || !storage.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w (another cm process is writing this playbook; retry, or raise lock.timeout)", err)
}

// dryRunStore runs updates against a loaded copy and drops the result.
type dryRunStore struct {
	storage.Storage
}

// Update implements storage.Storage without taking the lock or saving.
func (d dryRunStore) Update(ctx context.Context, fn func(*types.Playbook) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pb, err := d.Load()
	if err != nil {
		return err
	}
	if err := fn(pb); err != nil && !errors.Is(err, storage.ErrDiscard) {
		return err
	}
	return nil
}

// Save implements storage.Storage as a no-op.
func (d dryRunStore) Save(*types.Playbook) error { return nil }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
