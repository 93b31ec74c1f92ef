// Package blueprint implements BlueprintManager (spec §4.1): CRUD for
// project blueprints and the draft/review/approval workflow that gates
// everything downstream. Grounded on the teacher's taskstore package
// (model.go's status/Validate pattern, store.go's sentinel+wrapper error
// pair), generalized from a flat task record to the richer Blueprint
// aggregate of spec.md §3.
package blueprint

import "time"

// Status is a Blueprint's position in its approval workflow.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInReview   Status = "in_review"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

var validStatuses = map[Status]bool{
	StatusDraft: true, StatusInReview: true, StatusApproved: true,
	StatusRejected: true, StatusExecuting: true, StatusCompleted: true,
	StatusArchived: true,
}

func (s Status) IsValid() bool { return validStatuses[s] }

// ModuleType classifies a Module's architectural role.
type ModuleType string

const (
	ModuleFrontend      ModuleType = "frontend"
	ModuleBackend       ModuleType = "backend"
	ModuleDatabase      ModuleType = "database"
	ModuleService       ModuleType = "service"
	ModuleInfrastructure ModuleType = "infrastructure"
	ModuleOther         ModuleType = "other"
)

// InterfaceDirection is a Module Interface's data-flow direction.
type InterfaceDirection string

const (
	DirectionIn   InterfaceDirection = "in"
	DirectionOut  InterfaceDirection = "out"
	DirectionBoth InterfaceDirection = "both"
)

// InterfaceKind classifies a Module Interface's transport.
type InterfaceKind string

const (
	InterfaceAPI     InterfaceKind = "api"
	InterfaceEvent   InterfaceKind = "event"
	InterfaceMessage InterfaceKind = "message"
	InterfaceFile    InterfaceKind = "file"
	InterfaceOther   InterfaceKind = "other"
)

// Interface is one input/output surface a Module exposes or consumes.
type Interface struct {
	ID        string
	Direction InterfaceDirection
	Kind      InterfaceKind
}

// Module is one architectural unit of the system under development.
type Module struct {
	ID              string
	Name            string
	Description     string
	Type            ModuleType
	Responsibilities []string
	DependsOn       []string
	Interfaces      []Interface
	TechStack       []string
	// RootPath is the module's exclusive file-system claim, consumed by
	// BoundaryChecker. Optional — falls back to src/<Name>/.
	RootPath string
}

// ProcessKind distinguishes a documented current-state process from a
// proposed future one.
type ProcessKind string

const (
	ProcessAsIs ProcessKind = "as-is"
	ProcessToBe ProcessKind = "to-be"
)

// ProcessStep is one ordered step of a BusinessProcess.
type ProcessStep struct {
	Order       int
	Name        string
	Description string
	Actor       string
}

// BusinessProcess documents one workflow the system participates in.
type BusinessProcess struct {
	ID          string
	Name        string
	Description string
	Kind        ProcessKind
	Steps       []ProcessStep
	Actors      []string
	Inputs      []string
	Outputs     []string
}

// NonFunctionalRequirement records a cross-cutting quality constraint
// (latency, availability, compliance, ...).
type NonFunctionalRequirement struct {
	ID          string
	Category    string
	Description string
	// Metric names what is measured (e.g. "p99 latency", "uptime"); Target
	// is the value it must meet (e.g. "200ms", "99.9%").
	Metric string
	Target string
}

// DesignImage is an optional reference to an external design artifact
// (wireframe, diagram) — the blueprint only carries the reference, never
// the asset itself.
type DesignImage struct {
	ID  string
	URL string
	Alt string
}

// TechStack is the blueprint-wide technology descriptor.
type TechStack struct {
	Languages  []string
	Frameworks []string
	Databases  []string
	Infra      []string
}

// Blueprint is the top-level design artifact TaskTreeManager generates a
// TaskTree from, once approved.
type Blueprint struct {
	ID              string
	Name            string
	Description     string
	ProjectPath     string
	Version         string
	Status          Status
	Modules         []Module
	Processes       []BusinessProcess
	NFRs            []NonFunctionalRequirement
	DesignImages    []DesignImage
	TechStack       TechStack
	ApprovedBy      string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate reports the first structural problem found, or nil.
func (b *Blueprint) Validate() error {
	if b.ID == "" {
		return errRequiredField("id")
	}
	if b.Name == "" {
		return errRequiredField("name")
	}
	if !b.Status.IsValid() {
		return errInvalidStatus(b.Status)
	}
	if requiresApprovedBy(b.Status) && b.ApprovedBy == "" {
		return errApprovedByRequired()
	}
	if err := checkAcyclicModules(b.Modules); err != nil {
		return err
	}
	return nil
}
