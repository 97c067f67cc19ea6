package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved keys and markers of the composition layer.
const (
	defaultsKey = "defaults"
	selfMarker  = "_self_"
	overrideKey = "override"
)

// Composition errors. Errors returned from Compose and Load wrap one
// of these where applicable.
var (
	// ErrUnknownGroup is returned when an override names a defaults
	// group that the document never selected.
	ErrUnknownGroup = errors.New("no such defaults group")

	// ErrBadDefaults is returned when a defaults list entry cannot be
	// parsed.
	ErrBadDefaults = errors.New("malformed defaults list")
)

// Tree is a hierarchical configuration tree as produced by the YAML
// parser: nested map[string]interface{} with scalar and sequence
// leaves.
type Tree = map[string]interface{}

// selection is one resolved entry of a defaults list: the named
// fragment of group is merged under the group's key path.
type selection struct {
	group  string
	option string
}

// Compose builds the merged configuration tree for the root document
// at path. Fragments named by the document's defaults list are read
// from sibling group directories (<dir>/<group>/<option>.yaml) and
// merged in list order; the _self_ marker positions the document's own
// keys in that order. Overrides are applied after composition and take
// one of two forms:
//
//	group=option     re-selects the fragment for a defaults group
//	path.to.key=val  sets a single value in the merged tree
//
// Interpolations are resolved after all merging. The returned tree is
// fully resolved.
func Compose(path string, overrides []string) (Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	var root Tree
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("compose: parsing %v: %w", path, err)
	}

	selections, selfAt, err := parseDefaults(root)
	if err != nil {
		return nil, fmt.Errorf("compose: %v: %w", path, err)
	}
	delete(root, defaultsKey)

	confDir := filepath.Dir(path)

	// Group overrides re-select fragments before any merging happens,
	// so a re-selected fragment occupies the original entry's position
	// in the merge order.
	var keyOverrides []string
	for _, o := range overrides {
		k, v, err := splitOverride(o)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		if !strings.Contains(k, ".") && isGroup(confDir, k) {
			if err := reselect(selections, k, v); err != nil {
				return nil, fmt.Errorf("compose: %w", err)
			}
			continue
		}
		keyOverrides = append(keyOverrides, o)
	}

	merged := make(Tree)
	for i, sel := range selections {
		if i == selfAt {
			mergeTrees(merged, root)
		}
		fragment, err := loadFragment(confDir, sel)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		mergeTrees(merged, fragment)
	}
	if selfAt >= len(selections) {
		mergeTrees(merged, root)
	}

	for _, o := range keyOverrides {
		k, v, _ := splitOverride(o)
		var parsed interface{}
		if err := yaml.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("compose: override %v: %w", o, err)
		}
		setPath(merged, strings.Split(k, "."), parsed)
	}

	if err := Resolve(merged); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}

	return merged, nil
}

// Load composes the document at path and decodes the resolved tree
// into a validated Config.
func Load(path string, overrides []string) (*Config, error) {
	tree, err := Compose(path, overrides)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	conf, err := Decode(tree)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	return conf, nil
}

// Decode converts a resolved tree into a validated Config.
func Decode(tree Tree) (*Config, error) {
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var conf Config
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return &conf, nil
}

// parseDefaults extracts the ordered selections of the document's
// defaults list and the merge position of the document's own keys.
// A document without a defaults list merges only its own keys. When
// the list carries no _self_ marker the document's keys merge last,
// overriding every fragment.
func parseDefaults(root Tree) ([]selection, int, error) {
	rawList, ok := root[defaultsKey]
	if !ok {
		return nil, 0, nil
	}

	list, ok := rawList.([]interface{})
	if !ok {
		return nil, 0, fmt.Errorf("%w: defaults must be a list",
			ErrBadDefaults)
	}

	var selections []selection
	selfAt := -1

	for _, entry := range list {
		switch e := entry.(type) {
		case string:
			if e != selfMarker {
				return nil, 0, fmt.Errorf("%w: unexpected entry %q",
					ErrBadDefaults, e)
			}
			if selfAt >= 0 {
				return nil, 0, fmt.Errorf("%w: repeated %v marker",
					ErrBadDefaults, selfMarker)
			}
			selfAt = len(selections)

		case Tree:
			if len(e) != 1 {
				return nil, 0, fmt.Errorf("%w: entries must hold a single "+
					"group", ErrBadDefaults)
			}
			for group, rawOption := range e {
				option, ok := rawOption.(string)
				if !ok {
					return nil, 0, fmt.Errorf("%w: option for group %q must "+
						"be a string", ErrBadDefaults, group)
				}
				if rest, isOverride := overrideGroup(group); isOverride {
					if err := reselect(selections, rest, option); err != nil {
						return nil, 0, err
					}
					continue
				}
				selections = append(selections, selection{group, option})
			}

		default:
			return nil, 0, fmt.Errorf("%w: unexpected entry of type %T",
				ErrBadDefaults, entry)
		}
	}

	if selfAt < 0 {
		selfAt = len(selections)
	}
	return selections, selfAt, nil
}

// overrideGroup reports whether a defaults list key is an "override
// <group>" entry, returning the named group.
func overrideGroup(key string) (string, bool) {
	fields := strings.Fields(key)
	if len(fields) == 2 && fields[0] == overrideKey {
		return fields[1], true
	}
	return "", false
}

// reselect replaces the option of an already-selected group, keeping
// its position in the merge order.
func reselect(selections []selection, group, option string) error {
	for i := range selections {
		if selections[i].group == group {
			selections[i].option = option
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
}

// loadFragment reads a group fragment and nests it under the group's
// key path. Dots in a group name denote nesting, so a fragment of
// group "trainer.policy_trainer" merges under that path.
func loadFragment(confDir string, sel selection) (Tree, error) {
	name := filepath.Join(confDir, filepath.FromSlash(sel.group),
		sel.option+".yaml")

	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("group %v: %w", sel.group, err)
	}

	var fragment Tree
	if err := yaml.Unmarshal(raw, &fragment); err != nil {
		return nil, fmt.Errorf("group %v: parsing %v: %w", sel.group, name,
			err)
	}
	if _, ok := fragment[defaultsKey]; ok {
		return nil, fmt.Errorf("group %v: fragment %v carries its own "+
			"defaults list", sel.group, name)
	}

	nested := make(Tree)
	setPath(nested, strings.Split(sel.group, "."), fragment)
	return nested, nil
}

// isGroup reports whether the configuration directory holds a group
// directory of the given name.
func isGroup(confDir, name string) bool {
	info, err := os.Stat(filepath.Join(confDir, name))
	return err == nil && info.IsDir()
}

// splitOverride splits a key=value override.
func splitOverride(o string) (string, string, error) {
	i := strings.Index(o, "=")
	if i <= 0 {
		return "", "", fmt.Errorf("override %q is not of the form key=value",
			o)
	}
	return o[:i], o[i+1:], nil
}

// mergeTrees deep-merges src into dst. Maps merge recursively at
// matching key paths; scalars and sequences in src replace whatever
// dst holds.
func mergeTrees(dst, src Tree) {
	for k, v := range src {
		srcMap, srcIsMap := v.(Tree)
		dstMap, dstIsMap := dst[k].(Tree)
		if srcIsMap && dstIsMap {
			mergeTrees(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			// Copy so later merges never mutate a fragment's tree.
			c := make(Tree)
			mergeTrees(c, srcMap)
			dst[k] = c
			continue
		}
		dst[k] = v
	}
}

// setPath sets the value at a dotted key path, creating intermediate
// maps as needed. An intermediate scalar is replaced by a map.
func setPath(tree Tree, path []string, value interface{}) {
	for _, k := range path[:len(path)-1] {
		next, ok := tree[k].(Tree)
		if !ok {
			next = make(Tree)
			tree[k] = next
		}
		tree = next
	}
	tree[path[len(path)-1]] = value
}
