// Package boundary implements BoundaryChecker (spec §4.3): purely lexical
// validation of a file path against a blueprint's module ownership and a
// configured forbidden-path policy. New package — the teacher partitions
// work by git branch, not by an explicit per-path checker — grounded on
// doublestar glob matching (seen in the retrieval pack's C360Studio-semspec)
// and the path-normalization style of the teacher's internal/state helpers.
package boundary

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/devorc/orchestrator/internal/errs"
)

// ModuleRoot describes one module's exclusive file-system claim.
type ModuleRoot struct {
	ModuleID string
	// RootPath is the module's declared root, relative to the project
	// root. If empty, it falls back to src/<ModuleName>/.
	RootPath string
	// ModuleName is used for the src/<moduleName>/ fallback when
	// RootPath is unset.
	ModuleName string
}

// Policy is the per-blueprint boundary configuration: every module's
// exclusive root plus the forbidden-path globs that dominate all of them.
type Policy struct {
	ProjectRoot    string
	Modules        []ModuleRoot
	ForbiddenPaths []string
}

// Checker evaluates file writes against a Policy.
type Checker struct {
	policy Policy
}

// New builds a Checker for policy. Paths in policy are interpreted relative
// to policy.ProjectRoot.
func New(policy Policy) *Checker {
	return &Checker{policy: policy}
}

// resolvedRoot returns the normalized, project-root-relative root claimed by
// a module, using the src/<moduleName>/ fallback when RootPath is unset.
func (m ModuleRoot) resolvedRoot() string {
	if m.RootPath != "" {
		return normalizeRel(m.RootPath)
	}
	return normalizeRel(filepath.Join("src", m.ModuleName))
}

func normalizeRel(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// Check validates path (relative to the project root) for moduleID.
// moduleID may be empty, meaning the write claims no module ownership; it
// is then only allowed if no module claims the path.
func (c *Checker) Check(moduleID, path string) (bool, error) {
	rel := normalizeRel(path)

	for _, glob := range c.policy.ForbiddenPaths {
		matched, err := doublestar.Match(glob, rel)
		if err != nil {
			return false, err
		}
		if matched {
			return false, &errs.BoundaryViolationError{TaskID: moduleID, Path: path, Reason: "matches forbidden path " + glob}
		}
	}

	var owner *ModuleRoot
	for i := range c.policy.Modules {
		m := &c.policy.Modules[i]
		if underRoot(rel, m.resolvedRoot()) {
			owner = m
			break
		}
	}

	if moduleID == "" {
		if owner != nil {
			return false, &errs.BoundaryViolationError{Path: path, Reason: "path is claimed by module " + owner.ModuleID}
		}
		return true, nil
	}

	if owner == nil {
		return false, &errs.BoundaryViolationError{TaskID: moduleID, Path: path, Reason: "path is outside any declared module root"}
	}
	if owner.ModuleID != moduleID {
		return false, &errs.BoundaryViolationError{TaskID: moduleID, Path: path, Reason: "path belongs to module " + owner.ModuleID}
	}
	return true, nil
}

func underRoot(rel, root string) bool {
	if root == "." {
		return true
	}
	return rel == root || strings.HasPrefix(rel, root+"/")
}
