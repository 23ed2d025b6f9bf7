package catalogue

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

// hclRoot decodes the top-level blocks of an HCL catalogue:
//
//	workflow "ADUserCreation" {
//	  description = "..."
//	  category    = "ad_agent"
//	  actions     = ["parse_variables", "create_ad_user"]
//	}
//
//	tool "create_ad_user" {
//	  script      = "Create-ADUser"
//	  description = "..."
//	}
type hclRoot struct {
	Workflows []hclWorkflow `hcl:"workflow,block"`
	Tools     []hclTool     `hcl:"tool,block"`
}

type hclWorkflow struct {
	Name        string   `hcl:"name,label"`
	Description string   `hcl:"description,optional"`
	Category    string   `hcl:"category"`
	Actions     []string `hcl:"actions"`
}

type hclTool struct {
	Name        string `hcl:"name,label"`
	Script      string `hcl:"script"`
	Description string `hcl:"description,optional"`
}

func parseHCL(data []byte, filename string) (*Catalogue, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse catalogue hcl: %w", diags)
	}

	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode catalogue hcl: %w", diags)
	}

	c := &Catalogue{
		Workflows: make(map[string]Workflow, len(root.Workflows)),
		Tools:     make(map[string]Tool, len(root.Tools)),
	}
	for _, wf := range root.Workflows {
		if _, dup := c.Workflows[wf.Name]; dup {
			return nil, fmt.Errorf("workflow %s declared twice", wf.Name)
		}
		c.Workflows[wf.Name] = Workflow{
			Name:        wf.Name,
			Description: wf.Description,
			Category:    domain.Category(wf.Category),
			Actions:     wf.Actions,
		}
	}
	for _, t := range root.Tools {
		if _, dup := c.Tools[t.Name]; dup {
			return nil, fmt.Errorf("tool %s declared twice", t.Name)
		}
		c.Tools[t.Name] = Tool{Name: t.Name, Script: t.Script, Description: t.Description}
	}
	return c, nil
}
