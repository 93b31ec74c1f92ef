// Package timetravel implements TimeTravelManager (spec §4.9): checkpoint
// creation, rollback, diffing and branch creation. New package — the
// teacher relies on git commits as its only durability mechanism — grounded
// on the checkpoint.State shape from the retrieval pack's kadirpekel-hector
// checkpoint package (phase/type enums, JSON-serializable, time-stamped),
// adapted to the two checkpoint styles of spec.md §4.9. Content hashing
// uses crypto/sha256, the same primitive the teacher's gutter detector
// uses for its own failure-signature hashing.
package timetravel

import "time"

// Scope distinguishes a task-local checkpoint from a whole-tree one.
type Scope string

const (
	ScopeTask   Scope = "task"
	ScopeGlobal Scope = "global"
)

// FileSnapshot is one file's content at checkpoint time.
type FileSnapshot struct {
	Content []byte
	Hash    string
}

// NodeSnapshot is the minimal per-node state a global checkpoint records
// for diffing purposes (spec.md §4.9's taskChanges). The caller (tasktree)
// supplies this flattened view since TimeTravelManager does not depend on
// tasktree's node type.
type NodeSnapshot struct {
	ID     string
	Status string
}

// Checkpoint is one point-in-time recovery record.
type Checkpoint struct {
	ID          string
	Timestamp   time.Time
	Scope       Scope
	Name        string
	Description string
	CanRestore  bool

	// CodeSnapshot is the file set recorded at checkpoint time, keyed by
	// project-relative path.
	CodeSnapshot map[string]FileSnapshot

	// TestResult is set for task checkpoints when a test run accompanied
	// the snapshot.
	TestResult *string
	// TaskStatus is set for task checkpoints.
	TaskStatus string
	// TaskID is set for task checkpoints.
	TaskID string

	// Nodes is set for global checkpoints: the flattened tree state at
	// snapshot time, used by Compare.
	Nodes []NodeSnapshot
	// TreeBlob is an opaque serialized tree (global only), restored
	// verbatim by the caller after RollbackToGlobalCheckpoint returns.
	TreeBlob []byte
}

// Branch records a named point created from a checkpoint.
type Branch struct {
	Name         string
	CheckpointID string
	CreatedAt    time.Time
}
