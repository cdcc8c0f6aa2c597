// File: internal/scenario/scenario.go
// Description: YAML scenario definitions. A scenario is an ordered list of
// steps driven against one engine; elements are declared once and referenced
// by name from steps.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// StepAction enumerates the supported step kinds.
type StepAction string

const (
	ActionNavigate   StepAction = "navigate"
	ActionClick      StepAction = "click"
	ActionFill       StepAction = "fill"
	ActionAssertText StepAction = "assert_text"
	ActionWait       StepAction = "wait"
	ActionWaitIdle   StepAction = "wait_idle"
)

// Scenario is one YAML test file.
type Scenario struct {
	ID       string             `yaml:"id"`
	Name     string             `yaml:"name"`
	BaseURL  string             `yaml:"base_url"`
	Elements map[string]Element `yaml:"elements"`
	Steps    []Step             `yaml:"steps"`
}

// Element is the YAML declaration of a logical element.
type Element struct {
	Description    string `yaml:"description,omitempty"`
	LocatorType    string `yaml:"locator_type"`
	LocatorValue   string `yaml:"locator_value"`
	Strict         bool   `yaml:"strict,omitempty"`
	RequireVisible bool   `yaml:"require_visible,omitempty"`
	RequireEnabled bool   `yaml:"require_enabled,omitempty"`
}

// Step is one action in a scenario.
type Step struct {
	ID      string     `yaml:"id"`
	Action  StepAction `yaml:"action"`
	Element string     `yaml:"element,omitempty"`
	// Value is the URL for navigate, the input for fill, the expected text
	// for assert_text, and the duration for wait / wait_idle.
	Value   string        `yaml:"value,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.ID == "" {
		return fmt.Errorf("missing scenario id")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	for i, step := range s.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d has no id", i+1)
		}
		switch step.Action {
		case ActionNavigate:
			if step.Value == "" && s.BaseURL == "" {
				return fmt.Errorf("step %q: navigate needs a value or scenario base_url", step.ID)
			}
		case ActionClick, ActionFill, ActionAssertText:
			if step.Element == "" {
				return fmt.Errorf("step %q: %s needs an element", step.ID, step.Action)
			}
			if _, ok := s.Elements[step.Element]; !ok {
				return fmt.Errorf("step %q references undeclared element %q", step.ID, step.Element)
			}
		case ActionWait, ActionWaitIdle:
			if _, err := time.ParseDuration(step.Value); step.Value != "" && err != nil {
				return fmt.Errorf("step %q: bad duration %q: %w", step.ID, step.Value, err)
			}
		default:
			return fmt.Errorf("step %q has unknown action %q", step.ID, step.Action)
		}
	}
	return nil
}

// Descriptor converts the named element declaration to its runtime form, the
// declaration key doubling as the element name.
func (s *Scenario) Descriptor(name string) schemas.ElementDescriptor {
	e := s.Elements[name]
	return schemas.ElementDescriptor{
		Name:           name,
		Description:    e.Description,
		LocatorType:    schemas.LocatorType(e.LocatorType),
		LocatorValue:   e.LocatorValue,
		Strict:         e.Strict,
		RequireVisible: e.RequireVisible,
		RequireEnabled: e.RequireEnabled,
	}
}
