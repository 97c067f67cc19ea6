package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Interpolation errors. Errors returned from Resolve wrap one of
// these.
var (
	// ErrUnresolvedReference is returned when an interpolation names a
	// key path missing from the merged tree.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrInterpolationCycle is returned when interpolations reference
	// each other cyclically.
	ErrInterpolationCycle = errors.New("interpolation cycle")
)

// interpPattern matches ${path.to.key} interpolation tokens.
var interpPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_][A-Za-z0-9_.]*)\}`)

// Resolve replaces every ${path.to.key} token in the tree with the
// value at the referenced key path, in place. A scalar consisting of
// exactly one token adopts the referenced value and its type; a token
// embedded in a longer string substitutes the referenced scalar
// textually. References resolve transitively, so a referenced value
// may itself interpolate, but cycles are errors.
func Resolve(tree Tree) error {
	r := resolver{root: tree, visiting: make(map[string]bool)}
	return r.resolveTree(tree, "")
}

type resolver struct {
	root Tree

	// visiting holds the key paths currently being resolved, for
	// cycle detection.
	visiting map[string]bool
}

func (r *resolver) resolveTree(tree Tree, at string) error {
	for k, v := range tree {
		resolved, err := r.resolveValue(v, childPath(at, k))
		if err != nil {
			return err
		}
		tree[k] = resolved
	}
	return nil
}

func (r *resolver) resolveValue(v interface{}, at string) (interface{},
	error) {
	switch val := v.(type) {
	case string:
		return r.resolveString(val, at)

	case Tree:
		if err := r.resolveTree(val, at); err != nil {
			return nil, err
		}
		return val, nil

	case []interface{}:
		for i, item := range val {
			resolved, err := r.resolveValue(item,
				fmt.Sprintf("%v[%d]", at, i))
			if err != nil {
				return nil, err
			}
			val[i] = resolved
		}
		return val, nil

	default:
		return v, nil
	}
}

func (r *resolver) resolveString(s, at string) (interface{}, error) {
	// A scalar that is exactly one token adopts the referenced value,
	// whatever its type.
	if m := interpPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		return r.lookup(m[1], at)
	}

	var firstErr error
	out := interpPattern.ReplaceAllStringFunc(s, func(tok string) string {
		ref := interpPattern.FindStringSubmatch(tok)[1]
		v, err := r.lookup(ref, at)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return tok
		}
		switch v.(type) {
		case Tree, []interface{}:
			if firstErr == nil {
				firstErr = fmt.Errorf("resolve: %v: reference %v is not a "+
					"scalar", at, ref)
			}
			return tok
		}
		return fmt.Sprint(v)
	})

	return out, firstErr
}

// lookup resolves the value at a dotted key path, resolving any
// interpolations the referenced value itself carries.
func (r *resolver) lookup(ref, at string) (interface{}, error) {
	if r.visiting[ref] {
		return nil, fmt.Errorf("resolve: %v: %w through %v", at,
			ErrInterpolationCycle, ref)
	}

	tree := r.root
	parts := strings.Split(ref, ".")
	for _, k := range parts[:len(parts)-1] {
		next, ok := tree[k].(Tree)
		if !ok {
			return nil, fmt.Errorf("resolve: %v: %w: ${%v}", at,
				ErrUnresolvedReference, ref)
		}
		tree = next
	}

	leaf := parts[len(parts)-1]
	v, ok := tree[leaf]
	if !ok {
		return nil, fmt.Errorf("resolve: %v: %w: ${%v}", at,
			ErrUnresolvedReference, ref)
	}

	r.visiting[ref] = true
	defer delete(r.visiting, ref)

	resolved, err := r.resolveValue(v, ref)
	if err != nil {
		return nil, err
	}
	tree[leaf] = resolved
	return resolved, nil
}

func childPath(at, k string) string {
	if at == "" {
		return k
	}
	return at + "." + k
}
