package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/policygap/internal/model"
	"gopkg.in/yaml.v3"
)

// Input files are YAML or JSON; yaml.v3 reads both. Each list-shaped input
// may be a bare list or a mapping holding the list under its usual key.

// LoadRules reads a rule graph ({rules: [...]} or a bare list)
func LoadRules(path string) (model.RuleGraph, error) {
	rules, err := decodeList[model.Rule](path, "rules")
	if err != nil {
		return model.RuleGraph{}, err
	}
	return model.RuleGraph{Rules: rules}, nil
}

// LoadCategories reads planned categories ({categories: [...]} or a bare list)
func LoadCategories(path string) ([]model.Category, error) {
	return decodeList[model.Category](path, "categories")
}

// LoadScenarios reads golden scenarios ({scenarios: [...]} or a bare list)
func LoadScenarios(path string) ([]model.GoldenScenario, error) {
	return decodeList[model.GoldenScenario](path, "scenarios")
}

// ParseScenarios decodes scenarios from an in-memory document
func ParseScenarios(data []byte, name string) ([]model.GoldenScenario, error) {
	node, err := parseNode(data, name)
	if err != nil {
		return nil, err
	}
	return decodeListNode[model.GoldenScenario](node, name, "scenarios")
}

// LoadTaxonomy reads a taxonomy ({sub_categories: [...], reasoning: ...} or a bare list).
// Duplicate ids are rejected rather than repaired.
func LoadTaxonomy(path string) (model.SubCategoryTaxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SubCategoryTaxonomy{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseTaxonomy(data, path)
}

// ParseTaxonomy decodes a taxonomy from an in-memory document; path only labels errors
func ParseTaxonomy(data []byte, path string) (model.SubCategoryTaxonomy, error) {
	node, err := parseNode(data, path)
	if err != nil {
		return model.SubCategoryTaxonomy{}, err
	}

	var tax model.SubCategoryTaxonomy
	if node.Kind == yaml.SequenceNode {
		err = node.Decode(&tax.SubCategories)
	} else {
		err = node.Decode(&tax)
	}
	if err != nil {
		return model.SubCategoryTaxonomy{}, fmt.Errorf("%w: decode taxonomy %s: %w", model.ErrInvalidInput, path, err)
	}

	seen := make(map[string]bool, tax.Len())
	for i := range tax.SubCategories {
		sc := &tax.SubCategories[i]
		if sc.Priority == "" {
			sc.Priority = model.PriorityMedium
		}
		if seen[sc.ID] {
			return model.SubCategoryTaxonomy{}, fmt.Errorf("%w: %s: duplicate sub-category id %s", model.ErrInvalidInput, path, sc.ID)
		}
		seen[sc.ID] = true
	}
	return tax, nil
}

// LoadReport reads a coverage report written by the JSON renderer.
// Derived fields (counts, overall, heatmap) are recomputed from the entries.
func LoadReport(path string) (model.CoverageReport, error) {
	node, err := readNode(path)
	if err != nil {
		return model.CoverageReport{}, err
	}

	var report model.CoverageReport
	if err := node.Decode(&report); err != nil {
		return model.CoverageReport{}, fmt.Errorf("%w: decode report %s: %w", model.ErrInvalidInput, path, err)
	}
	return report.Clone(), nil
}

// WriteYAML writes v as YAML to path
func WriteYAML(path string, v any) error {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// EncodeYAML writes v as YAML with two-space indentation
func EncodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return nil
}

func decodeList[T any](path, key string) ([]T, error) {
	node, err := readNode(path)
	if err != nil {
		return nil, err
	}
	return decodeListNode[T](node, path, key)
}

func decodeListNode[T any](node *yaml.Node, path, key string) ([]T, error) {
	var items []T
	var err error
	switch node.Kind {
	case yaml.SequenceNode:
		err = node.Decode(&items)
	case yaml.MappingNode:
		wrapped := map[string]yaml.Node{}
		if err = node.Decode(&wrapped); err == nil {
			inner, ok := wrapped[key]
			if !ok {
				return nil, fmt.Errorf("%w: %s: expected a list or a %q key", model.ErrInvalidInput, path, key)
			}
			err = inner.Decode(&items)
		}
	default:
		return nil, fmt.Errorf("%w: %s: expected a list or a %q key", model.ErrInvalidInput, path, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", model.ErrInvalidInput, path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// readNode returns the document's root content node
func readNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseNode(data, path)
}

func parseNode(data []byte, path string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", model.ErrInvalidInput, path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", model.ErrInvalidInput, path)
	}
	return doc.Content[0], nil
}
