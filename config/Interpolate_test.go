package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAdoptsType(t *testing.T) {
	tree := Tree{
		"prior": Tree{"num_actions": 20},
		"expert": Tree{
			"prior": Tree{"num_actions": "${prior.num_actions}"},
		},
	}

	require.NoError(t, Resolve(tree))

	got := tree["expert"].(Tree)["prior"].(Tree)["num_actions"]
	// Whole-token references adopt the value, not its string form.
	assert.Equal(t, 20, got)
}

func TestResolveEmbeddedToken(t *testing.T) {
	tree := Tree{
		"seed":    7,
		"project": "experior",
		"out_dir": "./out/${project}-${seed}",
	}

	require.NoError(t, Resolve(tree))
	assert.Equal(t, "./out/experior-7", tree["out_dir"])
}

func TestResolveTransitive(t *testing.T) {
	tree := Tree{
		"a": "${b}",
		"b": "${c}",
		"c": 3.5,
	}

	require.NoError(t, Resolve(tree))
	assert.Equal(t, 3.5, tree["a"])
	assert.Equal(t, 3.5, tree["b"])
}

func TestResolveInSequence(t *testing.T) {
	tree := Tree{
		"n":     4,
		"sizes": []interface{}{"${n}", 8},
	}

	require.NoError(t, Resolve(tree))
	assert.Equal(t, []interface{}{4, 8}, tree["sizes"])
}

func TestResolveMissingReference(t *testing.T) {
	tree := Tree{"a": "${no.such.key}"}

	err := Resolve(tree)
	require.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestResolveCycle(t *testing.T) {
	tree := Tree{
		"a": "${b}",
		"b": "${a}",
	}

	err := Resolve(tree)
	require.ErrorIs(t, err, ErrInterpolationCycle)
}

func TestResolveSelfCycle(t *testing.T) {
	tree := Tree{"a": "x${a}"}

	err := Resolve(tree)
	require.ErrorIs(t, err, ErrInterpolationCycle)
}

func TestResolveEmbeddedMapReference(t *testing.T) {
	tree := Tree{
		"prior": Tree{"num_actions": 3},
		"name":  "run-${prior}",
	}

	require.Error(t, Resolve(tree))
}

func TestResolveLeavesPlainStrings(t *testing.T) {
	tree := Tree{"name": "beta", "cost": "$100"}

	require.NoError(t, Resolve(tree))
	assert.Equal(t, "beta", tree["name"])
	assert.Equal(t, "$100", tree["cost"])
}
