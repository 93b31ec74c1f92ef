package blueprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devorc/orchestrator/internal/clock"
	"github.com/devorc/orchestrator/internal/errs"
	"github.com/devorc/orchestrator/internal/eventbus"
	"github.com/devorc/orchestrator/internal/idgen"
)

// Event names published by Manager.
const (
	EventSubmitted eventbus.Name = "blueprint_submitted"
	EventApproved  eventbus.Name = "blueprint_approved"
	EventRejected  eventbus.Name = "blueprint_rejected"
	EventExecuting eventbus.Name = "blueprint_executing"
)

// transitions enumerates every legal Status -> Status edge (spec §4.1).
var transitions = map[Status][]Status{
	StatusDraft:     {StatusInReview},
	StatusInReview:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusCompleted},
	StatusRejected:  {StatusDraft},
	StatusCompleted: {StatusArchived},
}

func canTransition(from, to Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Manager implements BlueprintManager: CRUD plus the approval workflow.
type Manager struct {
	store Store
	ids   idgen.Generator
	clock clock.Clock
	bus   eventbus.Bus
}

// NewManager wires a Manager over store with the given id/clock/event
// capabilities.
func NewManager(store Store, ids idgen.Generator, clk clock.Clock, bus eventbus.Bus) *Manager {
	return &Manager{store: store, ids: ids, clock: clk, bus: bus}
}

// Create starts a new Blueprint in StatusDraft.
func (m *Manager) Create(name, description, projectPath string) (*Blueprint, error) {
	now := m.clock.Now()
	bp := &Blueprint{
		ID:          m.ids.NewID(),
		Name:        name,
		Description: description,
		ProjectPath: projectPath,
		Version:     "0.1.0",
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// Get returns the blueprint with id.
func (m *Manager) Get(id string) (*Blueprint, error) {
	return m.store.Get(id)
}

// List returns every known blueprint.
func (m *Manager) List() ([]*Blueprint, error) {
	return m.store.List()
}

// Update replaces name/description on a draft or rejected blueprint.
func (m *Manager) Update(id, name, description string) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if bp.Status != StatusDraft && bp.Status != StatusRejected {
		return nil, &errs.InvalidStateError{Entity: "blueprint", From: string(bp.Status), To: "updated"}
	}
	bp.Name = name
	bp.Description = description
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// AddModule appends mod to the blueprint, generating an id if unset.
func (m *Manager) AddModule(id string, mod Module) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if mod.ID == "" {
		mod.ID = m.ids.NewID()
	}
	bp.Modules = append(bp.Modules, mod)
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// AddProcess appends a BusinessProcess to the blueprint.
func (m *Manager) AddProcess(id string, proc BusinessProcess) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if proc.ID == "" {
		proc.ID = m.ids.NewID()
	}
	if err := validateStepOrder(proc.Steps); err != nil {
		return nil, err
	}
	bp.Processes = append(bp.Processes, proc)
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// AddNFR appends a NonFunctionalRequirement to the blueprint.
func (m *Manager) AddNFR(id string, nfr NonFunctionalRequirement) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if nfr.ID == "" {
		nfr.ID = m.ids.NewID()
	}
	bp.NFRs = append(bp.NFRs, nfr)
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

func validateStepOrder(steps []ProcessStep) error {
	for i, step := range steps {
		if step.Order != i+1 {
			return fmt.Errorf("blueprint: process step order must be contiguous from 1, got %d at position %d: %w", step.Order, i, errs.ErrInvalidState)
		}
	}
	return nil
}

// SubmitForReview moves a draft blueprint into review.
func (m *Manager) SubmitForReview(id string) (*Blueprint, error) {
	bp, err := m.transition(id, StatusInReview)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(eventbus.Event{Name: EventSubmitted, Timestamp: m.clock.Now(), Payload: map[string]any{"blueprintId": id}})
	return bp, nil
}

// Approve moves a blueprint under review into approved, recording approver.
func (m *Manager) Approve(id, approver string) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !canTransition(bp.Status, StatusApproved) {
		return nil, &errs.InvalidStateError{Entity: "blueprint", From: string(bp.Status), To: string(StatusApproved)}
	}
	bp.Status = StatusApproved
	bp.ApprovedBy = approver
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	m.bus.Publish(eventbus.Event{Name: EventApproved, Timestamp: m.clock.Now(), Payload: map[string]any{"blueprintId": id, "approvedBy": approver}})
	return bp, nil
}

// Reject moves a blueprint under review back into rejected, recording reason.
func (m *Manager) Reject(id, reason string) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !canTransition(bp.Status, StatusRejected) {
		return nil, &errs.InvalidStateError{Entity: "blueprint", From: string(bp.Status), To: string(StatusRejected)}
	}
	bp.Status = StatusRejected
	bp.RejectionReason = reason
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	m.bus.Publish(eventbus.Event{Name: EventRejected, Timestamp: m.clock.Now(), Payload: map[string]any{"blueprintId": id, "reason": reason}})
	return bp, nil
}

// StartExecution moves an approved blueprint into executing, for treeID's
// TaskTreeManager-generated tree.
func (m *Manager) StartExecution(id, treeID string) (*Blueprint, error) {
	bp, err := m.transition(id, StatusExecuting)
	if err != nil {
		return nil, err
	}
	m.bus.Publish(eventbus.Event{Name: EventExecuting, Timestamp: m.clock.Now(), Payload: map[string]any{"blueprintId": id, "treeId": treeID}})
	return bp, nil
}

// Complete moves an executing blueprint into completed.
func (m *Manager) Complete(id string) (*Blueprint, error) {
	return m.transition(id, StatusCompleted)
}

func (m *Manager) transition(id string, to Status) (*Blueprint, error) {
	bp, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !canTransition(bp.Status, to) {
		return nil, &errs.InvalidStateError{Entity: "blueprint", From: string(bp.Status), To: string(to)}
	}
	bp.Status = to
	bp.UpdatedAt = m.clock.Now()
	if err := m.store.Save(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// CreateIncrementalBlueprint clones base, bumps its patch version, and
// appends a new module synthesized from requirement. It never mutates
// base. impactedModuleIDs, if non-empty, names existing modules whose
// responsibilities gain a note referencing requirement instead of a new
// module being created — the ImpactAnalyzer supplies this list when the
// requirement extends existing modules rather than introducing one.
func (m *Manager) CreateIncrementalBlueprint(base *Blueprint, requirement string, impactedModuleIDs []string) (*Blueprint, error) {
	clone := cloneBlueprint(base)
	clone.ID = m.ids.NewID()
	clone.Version = bumpPatch(base.Version)
	clone.Status = StatusDraft
	clone.ApprovedBy = ""
	clone.RejectionReason = ""
	now := m.clock.Now()
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if len(impactedModuleIDs) == 0 {
		clone.Modules = append(clone.Modules, Module{
			ID:               m.ids.NewID(),
			Name:             "incremental-" + clone.Version,
			Description:      requirement,
			Type:             ModuleOther,
			Responsibilities: []string{requirement},
		})
	} else {
		impacted := make(map[string]bool, len(impactedModuleIDs))
		for _, id := range impactedModuleIDs {
			impacted[id] = true
		}
		for i := range clone.Modules {
			if impacted[clone.Modules[i].ID] {
				clone.Modules[i].Responsibilities = append(clone.Modules[i].Responsibilities, requirement)
			}
		}
	}

	if err := m.store.Save(clone); err != nil {
		return nil, err
	}
	return clone, nil
}

func cloneBlueprint(base *Blueprint) *Blueprint {
	clone := *base
	clone.Modules = append([]Module(nil), base.Modules...)
	for i := range clone.Modules {
		clone.Modules[i].Responsibilities = append([]string(nil), base.Modules[i].Responsibilities...)
		clone.Modules[i].DependsOn = append([]string(nil), base.Modules[i].DependsOn...)
		clone.Modules[i].Interfaces = append([]Interface(nil), base.Modules[i].Interfaces...)
		clone.Modules[i].TechStack = append([]string(nil), base.Modules[i].TechStack...)
	}
	clone.Processes = append([]BusinessProcess(nil), base.Processes...)
	clone.NFRs = append([]NonFunctionalRequirement(nil), base.NFRs...)
	clone.DesignImages = append([]DesignImage(nil), base.DesignImages...)
	return &clone
}

// bumpPatch increments the patch component of a semver string. Malformed
// input is treated as 0.0.0 before bumping.
func bumpPatch(version string) string {
	parts := strings.SplitN(version, ".", 3)
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			nums = []int{0, 0, 0}
			break
		}
		nums[i] = n
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]+1)
}

