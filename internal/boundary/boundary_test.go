package boundary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/errs"
)

func policyWithTwoModules() Policy {
	return Policy{
		Modules: []ModuleRoot{
			{ModuleID: "mod-api", RootPath: "services/api"},
			{ModuleID: "mod-web", ModuleName: "web"},
		},
		ForbiddenPaths: []string{"**/.git/**", ".devorc/**"},
	}
}

func TestCheckAllowsPathUnderOwnModuleRoot(t *testing.T) {
	c := New(policyWithTwoModules())
	ok, err := c.Check("mod-api", "services/api/handler.go")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckUsesSrcModuleNameFallback(t *testing.T) {
	c := New(policyWithTwoModules())
	ok, err := c.Check("mod-web", "src/web/index.tsx")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckDeniesPathUnderAnotherModulesRoot(t *testing.T) {
	c := New(policyWithTwoModules())
	_, err := c.Check("mod-api", "src/web/index.tsx")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrBoundaryViolation))
}

func TestCheckDeniesForbiddenGlobRegardlessOfOwnership(t *testing.T) {
	c := New(policyWithTwoModules())
	_, err := c.Check("mod-api", "services/api/.git/config")
	require.Error(t, err)
}

func TestCheckWithNoModuleIDOnlyAllowsUnclaimedPaths(t *testing.T) {
	c := New(policyWithTwoModules())

	ok, err := c.Check("", "README.md")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Check("", "services/api/handler.go")
	require.Error(t, err)
}

func TestCheckDeniesPathOutsideAnyDeclaredRoot(t *testing.T) {
	c := New(policyWithTwoModules())
	_, err := c.Check("mod-api", "scripts/deploy.sh")
	require.Error(t, err)
}
