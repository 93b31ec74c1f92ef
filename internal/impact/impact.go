// Package impact implements ImpactAnalyzer (spec §4.4): mapping a new
// requirement onto an existing blueprint's modules, producing a risk
// assessment and a derived SafetyBoundary. New package — grounded on the
// teacher's internal/decomposer for the *shape* of requirement-to-module
// scoring (keyword matching against responsibilities), adapted from an
// LLM-prompt-driven construction to a deterministic scoring function:
// spec.md §4.4 describes the algorithm at design level without mandating
// an LLM call.
package impact

import (
	"strings"
	"sync"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/boundary"
)

// ChangeKind classifies how a requirement is expected to touch a module.
type ChangeKind string

const (
	ChangeNone      ChangeKind = "none"
	ChangeAdditive  ChangeKind = "additive"
	ChangeIntrusive ChangeKind = "intrusive"
)

// RiskLevel is a module or overall risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// ModuleImpact is one module's assessed impact from a requirement.
type ModuleImpact struct {
	ModuleID   string
	ChangeKind ChangeKind
	Risk       RiskLevel
	Score      int
}

// Report is ImpactAnalyzer's output for one requirement.
type Report struct {
	PerModule             []ModuleImpact
	OverallRiskLevel      RiskLevel
	RequiresHumanApproval bool
	SafetyBoundary        SafetyBoundary
}

// SafetyBoundary restricts writes to the affected modules unless the
// overall risk is critical, in which case nothing is pre-approved and a
// reviewer signal is additionally required.
type SafetyBoundary struct {
	AllowedModuleIDs      []string
	ForbiddenModuleIDs    []string
	RequiresReviewerSignal bool
}

// Scoring weights: exact name match far outweighs a responsibility
// substring hit, which in turn outweighs a tech-stack match.
const (
	weightExactName      = 100
	weightResponsibility = 10
	weightTechStack      = 1
)

// Analyze maps requirement text onto bp's modules. It counts, for each
// module, how many other modules in bp declare it as a dependency, and uses
// that count to escalate intrusive changes with many dependents to critical
// risk.
func Analyze(requirement string, bp *blueprint.Blueprint) Report {
	lower := strings.ToLower(requirement)
	words := strings.Fields(lower)

	dependents := countDependents(bp.Modules)

	var perModule []ModuleImpact
	for _, mod := range bp.Modules {
		score := scoreModule(lower, words, mod)
		kind := classifyChange(score)
		risk := classifyRisk(kind, dependents[mod.ID])

		perModule = append(perModule, ModuleImpact{
			ModuleID:   mod.ID,
			ChangeKind: kind,
			Risk:       risk,
			Score:      score,
		})
	}

	overall := RiskLow
	for _, mi := range perModule {
		if riskOrder[mi.Risk] > riskOrder[overall] {
			overall = mi.Risk
		}
	}

	requiresApproval := overall == RiskHigh || overall == RiskCritical

	return Report{
		PerModule:             perModule,
		OverallRiskLevel:      overall,
		RequiresHumanApproval: requiresApproval,
		SafetyBoundary:        deriveSafetyBoundary(perModule, overall),
	}
}

func countDependents(modules []blueprint.Module) map[string]int {
	counts := make(map[string]int, len(modules))
	for _, mod := range modules {
		for _, dep := range mod.DependsOn {
			counts[dep]++
		}
	}
	return counts
}

func scoreModule(lowerRequirement string, words []string, mod blueprint.Module) int {
	score := 0
	name := strings.ToLower(mod.Name)
	for _, w := range words {
		if w == name {
			score += weightExactName
		}
	}

	for _, resp := range mod.Responsibilities {
		if strings.Contains(lowerRequirement, strings.ToLower(resp)) {
			score += weightResponsibility
		}
	}

	for _, tech := range mod.TechStack {
		if strings.Contains(lowerRequirement, strings.ToLower(tech)) {
			score += weightTechStack
		}
	}

	return score
}

func classifyChange(score int) ChangeKind {
	switch {
	case score >= weightExactName:
		return ChangeIntrusive
	case score >= weightResponsibility:
		return ChangeAdditive
	default:
		return ChangeNone
	}
}

// manyDependentsThreshold is the dependent count above which an intrusive
// change is escalated to critical risk.
const manyDependentsThreshold = 3

func classifyRisk(kind ChangeKind, dependentCount int) RiskLevel {
	switch kind {
	case ChangeIntrusive:
		if dependentCount >= manyDependentsThreshold {
			return RiskCritical
		}
		return RiskHigh
	case ChangeAdditive:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Analyzer is the stateful ImpactAnalyzer of spec.md §4.4: Initialize binds
// a codebase's baseline blueprint once, after which AnalyzeRequirement scores
// requirements against it and CreateBoundaryValidator turns a requirement's
// SafetyBoundary into an enforceable boundary.Checker.
type Analyzer struct {
	mu       sync.Mutex
	codebase *blueprint.Blueprint
}

// NewAnalyzer builds an uninitialized Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Initialize records codebase as the baseline AnalyzeRequirement scores
// against, per spec.md §4.4's `initialize(codebase)`.
func (a *Analyzer) Initialize(codebase *blueprint.Blueprint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.codebase = codebase
}

// AnalyzeRequirement maps requirement onto the initialized codebase's
// modules. If Initialize was never called, it falls back to bp so callers
// that already hold the blueprint in hand keep working without it.
func (a *Analyzer) AnalyzeRequirement(requirement string, bp *blueprint.Blueprint) Report {
	a.mu.Lock()
	base := a.codebase
	a.mu.Unlock()
	if base == nil {
		base = bp
	}
	return Analyze(requirement, base)
}

// CreateBoundaryValidator derives a boundary.Checker from policy narrowed by
// sb, per spec.md §4.4's `createBoundaryValidator(boundary)`: the validator
// a WorkerExecutor checks writes against once a requirement's impact is
// known, not just the blueprint's raw module roots.
func (a *Analyzer) CreateBoundaryValidator(sb SafetyBoundary, policy boundary.Policy) *boundary.Checker {
	return boundary.New(ApplySafetyBoundary(policy, sb))
}

// ApplySafetyBoundary narrows policy so that only sb's allowed modules
// remain writable, or locks every path when sb requires a reviewer signal,
// implementing spec.md §4.4's "the safetyBoundary restricts writes to the
// affected modules' roots unless overallRiskLevel = critical (then also
// requires a reviewer signal)".
func ApplySafetyBoundary(policy boundary.Policy, sb SafetyBoundary) boundary.Policy {
	if sb.RequiresReviewerSignal {
		policy.ForbiddenPaths = append(append([]string{}, policy.ForbiddenPaths...), "**")
		return policy
	}
	if len(sb.ForbiddenModuleIDs) == 0 {
		return policy
	}
	forbidden := make(map[string]bool, len(sb.ForbiddenModuleIDs))
	for _, id := range sb.ForbiddenModuleIDs {
		forbidden[id] = true
	}
	filtered := make([]boundary.ModuleRoot, 0, len(policy.Modules))
	for _, m := range policy.Modules {
		if !forbidden[m.ModuleID] {
			filtered = append(filtered, m)
		}
	}
	policy.Modules = filtered
	return policy
}

func deriveSafetyBoundary(perModule []ModuleImpact, overall RiskLevel) SafetyBoundary {
	if overall == RiskCritical {
		return SafetyBoundary{RequiresReviewerSignal: true}
	}

	var allowed, forbidden []string
	for _, mi := range perModule {
		if mi.ChangeKind == ChangeNone {
			forbidden = append(forbidden, mi.ModuleID)
		} else {
			allowed = append(allowed, mi.ModuleID)
		}
	}
	return SafetyBoundary{AllowedModuleIDs: allowed, ForbiddenModuleIDs: forbidden}
}
