package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDoc writes a YAML document under dir, creating group
// directories as needed.
func writeDoc(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComposeMergeOrder(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\nn_blocks: 1\n")
	writeDoc(t, dir, "model/large.yaml", "h_dim: 256\nn_blocks: 8\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: small
  - _self_

model:
  n_blocks: 3
seed: 1
`)

	tree, err := Compose(root, nil)
	require.NoError(t, err)

	model := tree["model"].(Tree)
	// The document's own keys merge after the fragment.
	assert.Equal(t, 3, model["n_blocks"])
	assert.Equal(t, 32, model["h_dim"])
	assert.Equal(t, 1, tree["seed"])
	assert.NotContains(t, tree, "defaults")
}

func TestComposeSelfFirst(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - _self_
  - model: small

model:
  h_dim: 999
`)

	tree, err := Compose(root, nil)
	require.NoError(t, err)

	// With _self_ first, the fragment wins.
	assert.Equal(t, 32, tree["model"].(Tree)["h_dim"])
}

func TestComposeNoSelfMarker(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: small

model:
  h_dim: 64
`)

	tree, err := Compose(root, nil)
	require.NoError(t, err)

	// Without a marker the document's keys merge last.
	assert.Equal(t, 64, tree["model"].(Tree)["h_dim"])
}

func TestComposeNestedGroup(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "trainer/policy_trainer/adam.yaml", "lr: 0.001\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - trainer.policy_trainer: adam
  - _self_
`)

	tree, err := Compose(root, nil)
	require.NoError(t, err)

	trainer := tree["trainer"].(Tree)
	assert.Equal(t, 0.001,
		trainer["policy_trainer"].(Tree)["lr"])
}

func TestComposeOverrideEntry(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\n")
	writeDoc(t, dir, "model/large.yaml", "h_dim: 256\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: small
  - override model: large
  - _self_
`)

	tree, err := Compose(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 256, tree["model"].(Tree)["h_dim"])
}

func TestComposeOverrideUnknownGroup(t *testing.T) {
	dir := t.TempDir()
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - override model: large
  - _self_
`)

	_, err := Compose(root, nil)
	require.ErrorIs(t, err, ErrUnknownGroup)
}

func TestComposeMalformedDefaults(t *testing.T) {
	dir := t.TempDir()

	for name, doc := range map[string]string{
		"scalar defaults": "defaults: 3\n",
		"stray string":    "defaults:\n  - nonsense\n",
		"repeated self":   "defaults:\n  - _self_\n  - _self_\n",
		"multi-key entry": "defaults:\n  - a: b\n    c: d\n",
	} {
		t.Run(name, func(t *testing.T) {
			root := writeDoc(t, dir, name+".yaml", doc)
			_, err := Compose(root, nil)
			assert.ErrorIs(t, err, ErrBadDefaults)
		})
	}
}

func TestComposeCommandLineOverrides(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\n")
	writeDoc(t, dir, "model/large.yaml", "h_dim: 256\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: small
  - _self_

seed: 1
`)

	tree, err := Compose(root, []string{
		"model=large",
		"seed=9",
		"model.h_dim=128",
		"out_dir=./out/x",
	})
	require.NoError(t, err)

	model := tree["model"].(Tree)
	// Key overrides apply after group re-selection.
	assert.Equal(t, 128, model["h_dim"])
	assert.Equal(t, 9, tree["seed"])
	assert.Equal(t, "./out/x", tree["out_dir"])
}

func TestComposeGroupOverrideKeepsPosition(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/small.yaml", "h_dim: 32\n")
	writeDoc(t, dir, "model/large.yaml", "h_dim: 256\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - _self_
  - model: small
`)

	// The re-selected fragment still merges after _self_.
	tree, err := Compose(root, []string{"model=large"})
	require.NoError(t, err)
	assert.Equal(t, 256, tree["model"].(Tree)["h_dim"])
}

func TestComposeBadOverride(t *testing.T) {
	dir := t.TempDir()
	root := writeDoc(t, dir, "root.yaml", "seed: 1\n")

	_, err := Compose(root, []string{"no-equals-sign"})
	require.Error(t, err)
}

func TestComposeFragmentWithDefaults(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "model/bad.yaml", "defaults:\n  - _self_\nh_dim: 1\n")
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: bad
  - _self_
`)

	_, err := Compose(root, nil)
	require.Error(t, err)
}

func TestComposeMissingFragment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "model"), 0o755))
	root := writeDoc(t, dir, "root.yaml", `
defaults:
  - model: nonexistent
  - _self_
`)

	_, err := Compose(root, nil)
	require.Error(t, err)
}
