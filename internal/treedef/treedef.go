// Package treedef loads tree definitions from YAML or JSON documents and
// checks them before they reach the node store.
package treedef

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/nodestore"
	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

//go:embed schema.cue
var schemaSource string

// Format is the encoding of a definition document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file name or content type. Anything
// that does not look like YAML is JSON.
func FormatOf(nameOrType string) Format {
	s := strings.ToLower(nameOrType)
	if strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml") || strings.Contains(s, "yaml") {
		return FormatYAML
	}
	return FormatJSON
}

// Definition is one tree: its id and its nodes, nested or flat.
type Definition struct {
	TreeID string           `json:"treeId"`
	Nodes  []types.TreeNode `json:"nodes"`
}

// Flat returns the definition's nodes flattened and stamped with TreeID.
func (d Definition) Flat() []types.TreeNode {
	flat := nodestore.Flatten(d.Nodes)
	for i := range flat {
		flat[i].TreeID = d.TreeID
	}
	return flat
}

// Load reads and parses a definition file.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read %s: %w", path, err)
	}
	def, err := Parse(data, FormatOf(path))
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDir loads every .json, .yaml and .yml file of dir, in name order.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var defs []Definition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		def, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Parse decodes a definition document, validates it against the schema and
// checks that its nodes form a forest.
func Parse(data []byte, format Format) (Definition, error) {
	normalized, err := normalize(data, format)
	if err != nil {
		return Definition{}, err
	}
	if err := validateSchema(normalized); err != nil {
		return Definition{}, err
	}
	var def Definition
	if err := json.Unmarshal(normalized, &def); err != nil {
		return Definition{}, fmt.Errorf("decode definition: %w", err)
	}
	if err := CheckForest(def.Flat()); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// normalize returns the document as JSON text. JSON input is checked and
// returned as-is so integer literals stay integers for the schema.
func normalize(data []byte, format Format) ([]byte, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	if doc == nil {
		return nil, errors.New("empty definition")
	}
	if format != FormatYAML {
		return data, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize definition: %w", err)
	}
	return out, nil
}

func validateSchema(doc []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	tree := schema.LookupPath(cue.ParsePath("#Tree"))
	val := ctx.CompileBytes(doc, cue.Filename("definition.json"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	if err := tree.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid definition: %w", err)
	}
	return nil
}

// CheckForest verifies that ids are unique, parents exist and parent edges
// have no cycles. All problems are reported together.
func CheckForest(nodes []types.TreeNode) error {
	var errs []error
	parent := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if _, dup := parent[n.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate node id %q", n.ID))
			continue
		}
		parent[n.ID] = n.ParentID
	}
	for _, n := range nodes {
		if n.ParentID == "" {
			continue
		}
		if _, ok := parent[n.ParentID]; !ok {
			errs = append(errs, fmt.Errorf("node %q: unknown parent %q", n.ID, n.ParentID))
		}
	}

	// Walk up from every node; a walk longer than the node count loops.
	ids := make([]string, 0, len(parent))
	for id := range parent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	reported := make(map[string]bool)
	for _, id := range ids {
		cur := id
		for steps := 0; cur != ""; steps++ {
			if steps > len(parent) {
				if !reported[id] {
					errs = append(errs, fmt.Errorf("node %q: parent cycle", id))
					reported[id] = true
				}
				break
			}
			cur = parent[cur]
		}
	}
	return errors.Join(errs...)
}
