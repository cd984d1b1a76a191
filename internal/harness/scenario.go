package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/awareness/internal/world"
)

// Scenario is one executable awareness scenario.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Roster is the subscriber roster file. Steps register entries by id.
	Roster string `yaml:"roster"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`

	// Dir resolves relative paths. Set by LoadScenario.
	Dir string `yaml:"-"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Push loads a snapshot file and pushes it.
	Push string `yaml:"push,omitempty"`
	// Snapshot pushes an inline snapshot.
	Snapshot *world.Snapshot `yaml:"snapshot,omitempty"`
	// Inject queues an external change for the next cycle.
	Inject *world.Change `yaml:"inject,omitempty"`

	Register   []string `yaml:"register,omitempty"`
	Unregister []string `yaml:"unregister,omitempty"`

	// Cycle runs one cycle immediately.
	Cycle bool `yaml:"cycle,omitempty"`
}

// Step kinds.
const (
	StepPush       = "push"
	StepInject     = "inject"
	StepRegister   = "register"
	StepUnregister = "unregister"
	StepCycle      = "cycle"
)

// Kind reports which action the step performs.
func (s Step) Kind() (string, error) {
	var kinds []string
	if s.Push != "" || s.Snapshot != nil {
		kinds = append(kinds, StepPush)
	}
	if s.Push != "" && s.Snapshot != nil {
		return "", fmt.Errorf("push and snapshot are mutually exclusive")
	}
	if s.Inject != nil {
		kinds = append(kinds, StepInject)
	}
	if len(s.Register) > 0 {
		kinds = append(kinds, StepRegister)
	}
	if len(s.Unregister) > 0 {
		kinds = append(kinds, StepUnregister)
	}
	if s.Cycle {
		kinds = append(kinds, StepCycle)
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("step has no action")
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("step has several actions: %s", strings.Join(kinds, ", "))
	}
}

// Assertion checks the notifications and cycle summaries of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Subscriber scopes notification assertions. Empty means everyone
	// (notification_count only).
	Subscriber string `yaml:"subscriber,omitempty"`

	// Cycle selects a cycle for change_count and dropped_count.
	Cycle int64 `yaml:"cycle,omitempty"`

	Count int `yaml:"count"`

	// Expect holds notification fields to match (notification_has).
	// Subset match: only listed fields are compared.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertNotificationCount = "notification_count"
	AssertNotificationHas   = "notification_has"
	AssertChangeCount       = "change_count"
	AssertDroppedCount      = "dropped_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml/.yml scenario in dir, sorted by file name.
// Files named roster.* are skipped.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if strings.TrimSuffix(name, ext) == "roster" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// resolve joins a scenario-relative path.
func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		kind, err := step.Kind()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if kind == StepRegister && s.Roster == "" {
			return fmt.Errorf("step %d: register requires a roster", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertNotificationCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be >= 0", a.Type)
		}
	case AssertNotificationHas:
		if a.Subscriber == "" {
			return fmt.Errorf("%s requires subscriber", a.Type)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("%s requires expect", a.Type)
		}
		for field := range a.Expect {
			if _, ok := notificationFields[field]; !ok {
				return fmt.Errorf("%s: unknown field %q", a.Type, field)
			}
		}
	case AssertChangeCount, AssertDroppedCount:
		if a.Cycle < 1 {
			return fmt.Errorf("%s requires cycle >= 1", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
