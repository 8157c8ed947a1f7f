package accounts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/ledger/internal/accounting"
)

//go:embed default_chart.yaml
var defaultChartYAML []byte

// ChartNode is one node of a chart template.
type ChartNode struct {
	Code     string                 `yaml:"code"`
	Name     string                 `yaml:"name"`
	Type     accounting.AccountType `yaml:"type"`
	Group    bool                   `yaml:"group"`
	Children []ChartNode            `yaml:"children"`
}

// DefaultChart returns the standard chart template.
func DefaultChart() ([]ChartNode, error) {
	return ParseChart(defaultChartYAML)
}

// ParseChart decodes a YAML chart template, filling child types from their parent.
func ParseChart(raw []byte) ([]ChartNode, error) {
	var nodes []ChartNode
	if err := yaml.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("accounts: parse chart: %w", err)
	}
	for i := range nodes {
		if !nodes[i].Type.Valid() {
			return nil, fmt.Errorf("accounts: chart root %q has invalid type %q", nodes[i].Code, nodes[i].Type)
		}
		if err := inheritTypes(&nodes[i]); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func inheritTypes(node *ChartNode) error {
	if len(node.Children) > 0 && !node.Group {
		return fmt.Errorf("accounts: chart node %q has children but is not a group", node.Code)
	}
	for i := range node.Children {
		child := &node.Children[i]
		if child.Type == "" {
			child.Type = node.Type
		}
		if child.Type != node.Type {
			return fmt.Errorf("accounts: chart node %q type %q differs from parent %q", child.Code, child.Type, node.Code)
		}
		if err := inheritTypes(child); err != nil {
			return err
		}
	}
	return nil
}
