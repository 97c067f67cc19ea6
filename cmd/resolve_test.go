package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolvePrintsComposedDocument(t *testing.T) {
	out, err := execute(t, "resolve",
		filepath.Join("..", "conf", "smoke.yaml"))
	require.NoError(t, err)

	var tree map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))

	assert.Equal(t, 42, tree["seed"])
	assert.NotContains(t, tree, "defaults")

	prior := tree["prior"].(map[string]interface{})
	assert.Equal(t, 3, prior["num_actions"])

	// Interpolations are resolved in the printed document.
	expert := tree["expert"].(map[string]interface{})
	assert.Equal(t, 3,
		expert["prior"].(map[string]interface{})["num_actions"])
}

func TestResolveAppliesOverrides(t *testing.T) {
	out, err := execute(t, "resolve",
		filepath.Join("..", "conf", "smoke.yaml"), "seed=9",
		"prior.num_actions=4")
	require.NoError(t, err)

	var tree map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))

	assert.Equal(t, 9, tree["seed"])
	assert.Equal(t, 4,
		tree["prior"].(map[string]interface{})["num_actions"])
}

func TestResolveRejectsInvalidDocument(t *testing.T) {
	// The composed document must also decode and validate.
	_, err := execute(t, "resolve",
		filepath.Join("..", "conf", "smoke.yaml"), "prior.num_actions=1")
	assert.Error(t, err)
}

func TestResolveMissingFile(t *testing.T) {
	_, err := execute(t, "resolve", "no-such-config.yaml")
	assert.Error(t, err)
}
