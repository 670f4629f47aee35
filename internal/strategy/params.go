package strategy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

// ApplyParams returns a deep copy of def with each dotted path set to its value.
// Paths follow the JSON field names, with [n] for list elements, for example
// "indicators[0].period" or "risk.stop_loss.value". The template is never modified.
func ApplyParams(def Definition, params map[string]interface{}) (Definition, error) {
	root, err := toTree(def)
	if err != nil {
		return Definition{}, err
	}

	// sorted for deterministic error reporting
	paths := make([]string, 0, len(params))
	for p := range params {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := setPath(root, p, params[p]); err != nil {
			return Definition{}, errs.NewConfigurationError("strategy", "param %q: %v", p, err)
		}
	}

	raw, err := json.Marshal(root)
	if err != nil {
		return Definition{}, errs.Wrap(err, errs.CategoryConfiguration, "strategy", "apply_params", "re-encode definition")
	}
	var out Definition
	if err := json.Unmarshal(raw, &out); err != nil {
		return Definition{}, errs.NewConfigurationError("strategy", "params do not fit the definition: %v", err)
	}
	return out, nil
}

// ResolvePath returns the current value at path in def.
func ResolvePath(def Definition, path string) (interface{}, error) {
	root, err := toTree(def)
	if err != nil {
		return nil, err
	}
	parent, key, err := walk(root, path)
	if err != nil {
		return nil, errs.NewConfigurationError("strategy", "param %q: %v", path, err)
	}
	switch node := parent.(type) {
	case map[string]interface{}:
		return node[key.name], nil
	case []interface{}:
		return node[key.index], nil
	}
	return nil, errs.NewConfigurationError("strategy", "param %q: not addressable", path)
}

func toTree(def Definition) (interface{}, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryConfiguration, "strategy", "apply_params", "encode definition")
	}
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errs.Wrap(err, errs.CategoryConfiguration, "strategy", "apply_params", "decode definition")
	}
	return root, nil
}

type pathKey struct {
	name    string
	index   int
	isIndex bool
}

func parsePath(path string) ([]pathKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty path")
	}
	var keys []pathKey
	for _, part := range strings.Split(path, ".") {
		name := part
		var indexes []int
		for {
			open := strings.IndexByte(name, '[')
			if open < 0 {
				break
			}
			end := strings.IndexByte(name[open:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unclosed index in %q", part)
			}
			idx, err := strconv.Atoi(name[open+1 : open+end])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("bad index in %q", part)
			}
			indexes = append(indexes, idx)
			name = name[:open] + name[open+end+1:]
		}
		if name == "" {
			return nil, fmt.Errorf("empty segment in %q", path)
		}
		keys = append(keys, pathKey{name: name})
		for _, idx := range indexes {
			keys = append(keys, pathKey{index: idx, isIndex: true})
		}
	}
	return keys, nil
}

// walk returns the container holding the last path key. Every key must already exist.
func walk(root interface{}, path string) (interface{}, pathKey, error) {
	keys, err := parsePath(path)
	if err != nil {
		return nil, pathKey{}, err
	}

	node := root
	for i, k := range keys {
		last := i == len(keys)-1
		var next interface{}
		switch n := node.(type) {
		case map[string]interface{}:
			if k.isIndex {
				return nil, pathKey{}, fmt.Errorf("%q is not a list", keys[i-1].name)
			}
			v, ok := n[k.name]
			if !ok {
				return nil, pathKey{}, fmt.Errorf("unknown field %q", k.name)
			}
			next = v
		case []interface{}:
			if !k.isIndex {
				return nil, pathKey{}, fmt.Errorf("field %q on a list", k.name)
			}
			if k.index >= len(n) {
				return nil, pathKey{}, fmt.Errorf("index %d out of range (len %d)", k.index, len(n))
			}
			next = n[k.index]
		default:
			return nil, pathKey{}, fmt.Errorf("cannot descend into %q", k.name)
		}
		if last {
			return node, k, nil
		}
		if next == nil {
			return nil, pathKey{}, fmt.Errorf("%q is not set", k.name)
		}
		node = next
	}
	return nil, pathKey{}, fmt.Errorf("empty path")
}

func setPath(root interface{}, path string, value interface{}) error {
	parent, key, err := walk(root, path)
	if err != nil {
		return err
	}
	switch node := parent.(type) {
	case map[string]interface{}:
		node[key.name] = value
	case []interface{}:
		node[key.index] = value
	}
	return nil
}
