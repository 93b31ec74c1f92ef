package timetravel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/idgen"
)

// Manager implements TimeTravelManager: checkpoint creation, rollback,
// diffing, and branch bookkeeping.
type Manager struct {
	store Store
	files filestore.Store
	ids   idgen.Generator
	clock clock.Clock
}

// NewManager wires a Manager over store, restoring files through files.
func NewManager(store Store, files filestore.Store, ids idgen.Generator, clk clock.Clock) *Manager {
	return &Manager{store: store, files: files, ids: ids, clock: clk}
}

// HashContent returns the content-addressed hash used to detect
// modification between two snapshots of the same path.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func snapshotFiles(files map[string][]byte) map[string]FileSnapshot {
	out := make(map[string]FileSnapshot, len(files))
	for path, content := range files {
		out[path] = FileSnapshot{Content: content, Hash: HashContent(content)}
	}
	return out
}

// CreateTaskCheckpoint records the files a task has written so far plus
// its test result and status.
func (m *Manager) CreateTaskCheckpoint(taskID, name, description string, files map[string][]byte, testResult *string, taskStatus string) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:           m.ids.NewID(),
		Timestamp:    m.clock.Now(),
		Scope:        ScopeTask,
		Name:         name,
		Description:  description,
		CanRestore:   true,
		CodeSnapshot: snapshotFiles(files),
		TestResult:   testResult,
		TaskStatus:   taskStatus,
		TaskID:       taskID,
	}
	if err := m.store.SaveCheckpoint(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// CreateGlobalCheckpoint records the whole tree's file changes plus a
// flattened node snapshot (for Compare) and an opaque serialized tree blob
// (for full restore, reinterpreted by the caller).
func (m *Manager) CreateGlobalCheckpoint(name, description string, files map[string][]byte, nodes []NodeSnapshot, treeBlob []byte) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:           m.ids.NewID(),
		Timestamp:    m.clock.Now(),
		Scope:        ScopeGlobal,
		Name:         name,
		Description:  description,
		CanRestore:   true,
		CodeSnapshot: snapshotFiles(files),
		Nodes:        nodes,
		TreeBlob:     treeBlob,
	}
	if err := m.store.SaveCheckpoint(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Get returns a checkpoint by id.
func (m *Manager) Get(id string) (*Checkpoint, error) {
	return m.store.GetCheckpoint(id)
}

// List returns every checkpoint in creation order.
func (m *Manager) List() ([]*Checkpoint, error) {
	return m.store.ListCheckpoints()
}

// RollbackToCheckpoint restores a task checkpoint's recorded files to disk
// and returns it so the caller can recover TaskStatus/TestResult.
func (m *Manager) RollbackToCheckpoint(id string) (*Checkpoint, error) {
	cp, err := m.store.GetCheckpoint(id)
	if err != nil {
		return nil, err
	}
	if cp.Scope != ScopeTask {
		return nil, fmt.Errorf("timetravel: checkpoint %s is not task-scoped", id)
	}
	if !cp.CanRestore {
		return nil, fmt.Errorf("timetravel: checkpoint %s cannot be restored", id)
	}
	if err := m.restoreFiles(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// RollbackToGlobalCheckpoint restores a global checkpoint's recorded files
// to disk. Files created after the checkpoint but not present in its
// snapshot are left untouched, matching spec.md §4.2's rollback
// invariant. The caller is responsible for reinterpreting TreeBlob.
func (m *Manager) RollbackToGlobalCheckpoint(id string) (*Checkpoint, error) {
	cp, err := m.store.GetCheckpoint(id)
	if err != nil {
		return nil, err
	}
	if cp.Scope != ScopeGlobal {
		return nil, fmt.Errorf("timetravel: checkpoint %s is not global", id)
	}
	if !cp.CanRestore {
		return nil, fmt.Errorf("timetravel: checkpoint %s cannot be restored", id)
	}
	if err := m.restoreFiles(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (m *Manager) restoreFiles(cp *Checkpoint) error {
	for path, snap := range cp.CodeSnapshot {
		if err := m.files.Write(path, snap.Content); err != nil {
			return fmt.Errorf("timetravel: restore %s: %w", path, err)
		}
	}
	return nil
}

// CreateBranch rolls back to checkpointID and records a named branch
// pointing at it.
func (m *Manager) CreateBranch(checkpointID, name string) (*Branch, error) {
	cp, err := m.store.GetCheckpoint(checkpointID)
	if err != nil {
		return nil, err
	}
	if cp.Scope == ScopeGlobal {
		if _, err := m.RollbackToGlobalCheckpoint(checkpointID); err != nil {
			return nil, err
		}
	} else {
		if _, err := m.RollbackToCheckpoint(checkpointID); err != nil {
			return nil, err
		}
	}

	b := &Branch{Name: name, CheckpointID: checkpointID, CreatedAt: m.clock.Now()}
	if err := m.store.SaveBranch(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SwitchBranch is local bookkeeping only; it does not itself restore any
// files (spec.md §4.9).
func (m *Manager) SwitchBranch(name string) (*Branch, error) {
	return m.store.GetBranch(name)
}
