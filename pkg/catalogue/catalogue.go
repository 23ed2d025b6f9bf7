// Package catalogue loads the workflow catalogue: which flows exist, which
// node category runs them, their default action order, and the script behind
// every action.
package catalogue

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/registry"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Workflow is one selectable flow.
type Workflow struct {
	Name        string          `yaml:"-"`
	Description string          `yaml:"description"`
	Category    domain.Category `yaml:"category"`
	Actions     []string        `yaml:"actions"`
}

// Tool binds an action name to its script.
type Tool struct {
	Name        string `yaml:"-"`
	Script      string `yaml:"script"`
	Description string `yaml:"description"`
}

// Catalogue is read-only once loaded.
type Catalogue struct {
	Workflows map[string]Workflow `yaml:"workflows"`
	Tools     map[string]Tool     `yaml:"tools"`
}

// Default returns the catalogue shipped with the binary.
func Default() *Catalogue {
	c, err := Parse(defaultYAML, "yaml")
	if err != nil {
		panic("catalogue: embedded default is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalogue file. The format follows the extension:
// .hcl for HCL, anything else is parsed as YAML.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		format = "hcl"
	}
	c, err := parse(data, format, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalogue data in the given format ("yaml" or "hcl").
func Parse(data []byte, format string) (*Catalogue, error) {
	return parse(data, format, "catalogue."+format)
}

func parse(data []byte, format, filename string) (*Catalogue, error) {
	var c *Catalogue
	var err error
	switch format {
	case "yaml", "yml":
		c, err = parseYAML(data)
	case "hcl":
		c, err = parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("unsupported catalogue format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseYAML(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue yaml: %w", err)
	}
	c.fillNames()
	return &c, nil
}

func (c *Catalogue) fillNames() {
	for name, wf := range c.Workflows {
		wf.Name = name
		c.Workflows[name] = wf
	}
	for name, tool := range c.Tools {
		tool.Name = name
		c.Tools[name] = tool
	}
}

// Validate checks that every workflow runs on a known category and only
// references registered tools.
func (c *Catalogue) Validate() error {
	if len(c.Workflows) == 0 {
		return errors.New("catalogue defines no workflows")
	}
	var errs []error
	for _, name := range c.workflowNames() {
		wf := c.Workflows[name]
		if !wf.Category.Valid() {
			errs = append(errs, fmt.Errorf("workflow %s: unknown category %q", name, wf.Category))
		}
		if len(wf.Actions) == 0 {
			errs = append(errs, fmt.Errorf("workflow %s: no actions", name))
		}
		for _, action := range wf.Actions {
			if _, ok := c.Tools[action]; !ok {
				errs = append(errs, fmt.Errorf("workflow %s: action %q has no tool definition", name, action))
			}
		}
	}
	for name, tool := range c.Tools {
		if tool.Script == "" {
			errs = append(errs, fmt.Errorf("tool %s: no script", name))
		}
	}
	return errors.Join(errs...)
}

// CategoryOf returns the node category that runs flow.
func (c *Catalogue) CategoryOf(flow string) (domain.Category, bool) {
	wf, ok := c.Workflows[flow]
	if !ok {
		return "", false
	}
	return wf.Category, true
}

// Registry builds the closed action registry from the tool table.
func (c *Catalogue) Registry() (*registry.Registry, error) {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	actions := make([]registry.Action, 0, len(names))
	for _, name := range names {
		t := c.Tools[name]
		actions = append(actions, registry.Action{Name: name, Script: t.Script, Description: t.Description})
	}
	return registry.New(actions...)
}

// Summaries describes the workflows for the Decision Maker, ordered by name.
func (c *Catalogue) Summaries() []domain.WorkflowSummary {
	out := make([]domain.WorkflowSummary, 0, len(c.Workflows))
	for _, name := range c.workflowNames() {
		wf := c.Workflows[name]
		out = append(out, domain.WorkflowSummary{Name: name, Description: wf.Description, Actions: wf.Actions})
	}
	return out
}

func (c *Catalogue) workflowNames() []string {
	names := make([]string, 0, len(c.Workflows))
	for name := range c.Workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
