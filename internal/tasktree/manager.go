package tasktree

import (
	"encoding/json"
	"fmt"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/errs"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/filestore"
	"github.com/devorc/orchestrator/internal/idgen"
	"github.com/devorc/orchestrator/internal/timetravel"
)

// Event names published by Manager.
const (
	EventTaskStatusChanged eventbus.Name = "task_status_changed"
	EventGlobalCheckpoint  eventbus.Name = "global_checkpoint_created"
)

// treeSnapshotDTO is the JSON-serializable form of a TaskTree used as a
// global checkpoint's opaque TreeBlob.
type treeSnapshotDTO struct {
	ID          string      `json:"id"`
	BlueprintID string      `json:"blueprintId"`
	Root        *TaskNode   `json:"root"`
	Stats       Stats       `json:"stats"`
}

// Manager implements TaskTreeManager.
type Manager struct {
	store       Store
	checkpoints *timetravel.Manager
	files       filestore.Store
	ids         idgen.Generator
	clock       clock.Clock
	bus         eventbus.Bus
}

// NewManager wires a Manager with its dependencies.
func NewManager(store Store, checkpoints *timetravel.Manager, files filestore.Store, ids idgen.Generator, clk clock.Clock, bus eventbus.Bus) *Manager {
	return &Manager{store: store, checkpoints: checkpoints, files: files, ids: ids, clock: clk, bus: bus}
}

// GenerateFromBlueprint builds and persists a new TaskTree for bp.
func (m *Manager) GenerateFromBlueprint(bp *blueprint.Blueprint) (*TaskTree, error) {
	tree, err := GenerateFromBlueprint(bp, m.ids)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Get returns the tree with id.
func (m *Manager) Get(id string) (*TaskTree, error) {
	return m.store.Get(id)
}

// FindTask locates a node by id within treeID.
func (m *Manager) FindTask(treeID, taskID string) (*TaskNode, error) {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return nil, err
	}
	node := FindTask(tree.Root, taskID)
	if node == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return node, nil
}

// GetExecutableTasks returns treeID's current executable leaves.
func (m *Manager) GetExecutableTasks(treeID string) ([]*TaskNode, error) {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return nil, err
	}
	return GetExecutableTasks(tree), nil
}

// MarkStatus transitions taskID's status and recomputes ancestor status
// (a parent derives its status from its children, per spec.md §3's
// TaskNode invariant (c)).
func (m *Manager) MarkStatus(treeID, taskID string, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("tasktree: invalid status %q: %w", status, errs.ErrInvalidState)
	}
	tree, err := m.store.Get(treeID)
	if err != nil {
		return err
	}
	node := FindTask(tree.Root, taskID)
	if node == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	now := m.clock.Now()
	node.Status = status
	switch status {
	case StatusTestWriting, StatusCoding, StatusTesting:
		if node.StartedAt == nil {
			node.StartedAt = &now
		}
	case StatusPassed, StatusApproved, StatusRejected, StatusCancelled:
		node.CompletedAt = &now
	}

	derivePath(tree.Root, taskID)
	tree.Stats = computeStats(tree.Root)

	if err := m.store.Save(tree); err != nil {
		return err
	}
	m.bus.Publish(eventbus.Event{Name: EventTaskStatusChanged, Timestamp: now, Payload: map[string]any{
		"treeId": treeID, "taskId": taskID, "status": string(status),
	}})
	return nil
}

// derivePath recomputes the status of every ancestor of id, from the
// immediate parent up to the root, each from its own children.
func derivePath(root *TaskNode, id string) {
	chain := ancestors(root, id)
	for i := len(chain) - 1; i >= 0; i-- {
		deriveFromChildren(chain[i])
	}
}

// deriveFromChildren sets a parent's status from its children: passed
// only once every child has passed or been approved; cancelled if every
// child is cancelled; left unchanged if some child is cancelled; otherwise
// a pending parent becomes blocked and any other parent status is kept.
func deriveFromChildren(node *TaskNode) {
	if len(node.Children) == 0 {
		return
	}
	allDone := true
	anyCancelled := false
	allCancelled := true
	for _, c := range node.Children {
		if !satisfiesDependency(c.Status) {
			allDone = false
		}
		if c.Status == StatusCancelled {
			anyCancelled = true
		} else {
			allCancelled = false
		}
	}
	switch {
	case allCancelled:
		node.Status = StatusCancelled
	case allDone:
		node.Status = StatusPassed
	case anyCancelled:
		// a cancelled sibling does not itself cancel the parent; leave
		// status as-is so remaining siblings can still complete.
	default:
		if node.Status == StatusPending {
			node.Status = StatusBlocked
		}
	}
}

// RecordAcceptanceTestResult appends an acceptance test outcome to taskID.
func (m *Manager) RecordAcceptanceTestResult(treeID, taskID, result string) error {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return err
	}
	node := FindTask(tree.Root, taskID)
	if node == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	node.AcceptanceTests = append(node.AcceptanceTests, result)
	return m.store.Save(tree)
}

// CreateTaskCheckpoint snapshots a task's artifacts via TimeTravelManager
// and records the checkpoint id on the node.
func (m *Manager) CreateTaskCheckpoint(treeID, taskID, name string, files map[string][]byte, testResult *string) (*timetravel.Checkpoint, error) {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return nil, err
	}
	node := FindTask(tree.Root, taskID)
	if node == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	cp, err := m.checkpoints.CreateTaskCheckpoint(taskID, name, "", files, testResult, string(node.Status))
	if err != nil {
		return nil, err
	}
	node.Checkpoints = append(node.Checkpoints, cp.ID)
	return cp, m.store.Save(tree)
}

// CreateGlobalCheckpoint snapshots the whole tree plus the given file set.
func (m *Manager) CreateGlobalCheckpoint(treeID, name, description string, files map[string][]byte) (*timetravel.Checkpoint, error) {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return nil, err
	}

	nodes := make([]timetravel.NodeSnapshot, 0)
	walk(tree.Root, func(n *TaskNode) {
		nodes = append(nodes, timetravel.NodeSnapshot{ID: n.ID, Status: string(n.Status)})
	})

	blob, err := json.Marshal(treeSnapshotDTO{ID: tree.ID, BlueprintID: tree.BlueprintID, Root: tree.Root, Stats: tree.Stats})
	if err != nil {
		return nil, err
	}

	cp, err := m.checkpoints.CreateGlobalCheckpoint(name, description, files, nodes, blob)
	if err != nil {
		return nil, err
	}
	tree.GlobalCheckpoints = append(tree.GlobalCheckpoints, cp.ID)
	m.bus.Publish(eventbus.Event{Name: EventGlobalCheckpoint, Timestamp: m.clock.Now(), Payload: map[string]any{"treeId": treeID, "checkpointId": cp.ID}})
	return cp, m.store.Save(tree)
}

// RollbackToCheckpoint restores a task checkpoint's subtree only: the
// node's status and recorded files, leaving the rest of the tree alone.
func (m *Manager) RollbackToCheckpoint(treeID, taskID, checkpointID string) error {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return err
	}
	node := FindTask(tree.Root, taskID)
	if node == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	cp, err := m.checkpoints.RollbackToCheckpoint(checkpointID)
	if err != nil {
		return err
	}
	node.Status = Status(cp.TaskStatus)
	return m.store.Save(tree)
}

// RollbackToGlobalCheckpoint replaces the whole tree with the snapshot
// recorded at checkpointID and restores its file set. Files added after
// the checkpoint but not recorded in it are left untouched.
func (m *Manager) RollbackToGlobalCheckpoint(treeID, checkpointID string) error {
	tree, err := m.store.Get(treeID)
	if err != nil {
		return err
	}
	cp, err := m.checkpoints.RollbackToGlobalCheckpoint(checkpointID)
	if err != nil {
		return err
	}

	var dto treeSnapshotDTO
	if err := json.Unmarshal(cp.TreeBlob, &dto); err != nil {
		return fmt.Errorf("tasktree: decode checkpoint tree snapshot: %w", err)
	}
	tree.Root = dto.Root
	tree.Stats = dto.Stats
	return m.store.Save(tree)
}
