package tasktree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devorc/orchestrator/internal/blueprint"
	"github.com/devorc/orchestrator/internal/idgen"
)

func sampleBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		ID:   "bp-1",
		Name: "checkout",
		Modules: []blueprint.Module{
			{
				ID:               "mod-api",
				Name:             "api",
				Responsibilities: []string{"validate cart", "charge card"},
				Interfaces: []blueprint.Interface{
					{ID: "iface-1", Direction: blueprint.DirectionIn, Kind: blueprint.InterfaceAPI},
				},
			},
		},
		Processes: []blueprint.BusinessProcess{
			{
				Name: "refund",
				Steps: []blueprint.ProcessStep{
					{Order: 1, Name: "request"},
					{Order: 2, Name: "approve"},
					{Order: 3, Name: "issue"},
				},
			},
		},
	}
}

func TestGenerateFromBlueprintEmitsModuleAndChildTasks(t *testing.T) {
	tree, err := GenerateFromBlueprint(sampleBlueprint(), &idgen.Sequential{Prefix: "n"})
	require.NoError(t, err)
	require.Equal(t, "bp-1", tree.BlueprintID)

	require.Len(t, tree.Root.Children, 1+3, "one module task plus three process-step tasks")
	moduleTask := tree.Root.Children[0]
	require.Equal(t, "api", moduleTask.Name)
	require.Len(t, moduleTask.Children, 3, "two responsibilities plus one interface")
}

func TestGenerateFromBlueprintChainsProcessStepDependencies(t *testing.T) {
	tree, err := GenerateFromBlueprint(sampleBlueprint(), &idgen.Sequential{Prefix: "n"})
	require.NoError(t, err)

	stepTasks := tree.Root.Children[1:]
	require.Empty(t, stepTasks[0].Dependencies)
	require.Equal(t, []string{stepTasks[0].ID}, stepTasks[1].Dependencies)
	require.Equal(t, []string{stepTasks[1].ID}, stepTasks[2].Dependencies)
}
