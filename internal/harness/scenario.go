package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario drives an authoritative manager and a set of replicas through a
// sequence of mutations and checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Classes is the CUE file or directory declaring the object classes.
	// Relative paths are resolved against the scenario file.
	Classes string `yaml:"classes"`

	// Replicas is the number of replica managers. Each holds a proxy of
	// every object.
	Replicas int `yaml:"replicas"`

	// Access installs an access controller on every object. The only
	// supported value is "server_only".
	Access string `yaml:"access,omitempty"`

	// Objects are registered, in order, before the steps run.
	Objects []ObjectDef `yaml:"objects"`

	// Steps mutate the objects. The managers are drained after every step.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// ObjectDef declares one object.
type ObjectDef struct {
	Name  string         `yaml:"name"`
	Class string         `yaml:"class"`
	Init  map[string]any `yaml:"init,omitempty"`

	// DeathWish destroys the object once its last subscriber leaves.
	DeathWish bool `yaml:"death_wish,omitempty"`
}

// Step is one mutation.
type Step struct {
	// Object names the object to mutate.
	Object string `yaml:"object"`

	// Via selects the copy to act on: 0 for the authoritative copy, n for
	// the proxy on replica n.
	Via int `yaml:"via,omitempty"`

	// Source is stamped on the event as its source oid.
	Source int `yaml:"source,omitempty"`

	// Op is one of the Op constants.
	Op string `yaml:"op"`

	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`
	Index int    `yaml:"index,omitempty"`
	Key   string `yaml:"key,omitempty"`

	// Target names the object an oid list operation refers to. Oid is used
	// instead when Target is empty.
	Target string `yaml:"target,omitempty"`
	Oid    int    `yaml:"oid,omitempty"`

	Args []any `yaml:"args,omitempty"`

	// Steps is the body of a transaction. Cancel discards it.
	Steps  []Step `yaml:"steps,omitempty"`
	Cancel bool   `yaml:"cancel,omitempty"`
}

// Step operations.
const (
	OpChange      = "change"
	OpUpdate      = "update"
	OpAdd         = "add"
	OpUpdateEntry = "update_entry"
	OpRemove      = "remove"
	OpAddOid      = "add_oid"
	OpRemoveOid   = "remove_oid"
	OpMessage     = "message"
	OpDestroy     = "destroy"
	OpTransaction = "transaction"
	OpUnsubscribe = "unsubscribe"
)

// Assertion validates the outcome.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	Object string `yaml:"object,omitempty"`

	// Replica selects the copy to inspect: 0 for the authoritative copy.
	Replica int `yaml:"replica,omitempty"`

	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`
	Key   string `yaml:"key,omitempty"`

	Target string `yaml:"target,omitempty"`
	Oid    int    `yaml:"oid,omitempty"`

	// Absent inverts a contains assertion.
	Absent bool `yaml:"absent,omitempty"`

	// Kind and Count are used by event_count and notified.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count"`
}

// Assertion types.
const (
	// AssertConverged: every live object's proxies match the authoritative
	// copy and destroyed objects have no proxies left.
	AssertConverged = "converged"

	// AssertAttribute: the named attribute equals value.
	AssertAttribute = "attribute"

	// AssertContains: a set holds key, or an oid list holds target/oid.
	AssertContains = "contains"

	// AssertDestroyed: the object is no longer registered.
	AssertDestroyed = "destroyed"

	// AssertEventCount: the journal holds count events of kind, optionally
	// restricted to one object.
	AssertEventCount = "event_count"

	// AssertNotified: listeners of the chosen copy heard count events of
	// kind, or count events in total if kind is empty.
	AssertNotified = "notified"

	// AssertReplay: replaying the object from the journal reproduces the
	// authoritative copy.
	AssertReplay = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file. The classes path is
// resolved relative to the scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Classes != "" && !filepath.IsAbs(scenario.Classes) {
		scenario.Classes = filepath.Join(filepath.Dir(path), scenario.Classes)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Classes == "" {
		return fmt.Errorf("classes is required")
	}
	if s.Replicas < 0 {
		return fmt.Errorf("replicas must be non-negative")
	}
	if s.Access != "" && s.Access != "server_only" {
		return fmt.Errorf("unknown access %q", s.Access)
	}
	if len(s.Objects) == 0 {
		return fmt.Errorf("at least one object is required")
	}

	names := make(map[string]bool, len(s.Objects))
	for i, o := range s.Objects {
		if o.Name == "" || o.Class == "" {
			return fmt.Errorf("objects[%d]: name and class are required", i)
		}
		if names[o.Name] {
			return fmt.Errorf("objects[%d]: duplicate object %q", i, o.Name)
		}
		names[o.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(s, names, step, fmt.Sprintf("steps[%d]", i)); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(s, names, a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, names map[string]bool, step Step, where string) error {
	if !names[step.Object] {
		return fmt.Errorf("%s: unknown object %q", where, step.Object)
	}
	if step.Via < 0 || step.Via > s.Replicas {
		return fmt.Errorf("%s: via %d out of range", where, step.Via)
	}

	switch step.Op {
	case OpChange, OpUpdate, OpAdd, OpUpdateEntry, OpMessage:
		if step.Name == "" {
			return fmt.Errorf("%s: name is required for %s", where, step.Op)
		}
	case OpRemove:
		if step.Name == "" || step.Key == "" {
			return fmt.Errorf("%s: name and key are required for remove", where)
		}
	case OpAddOid, OpRemoveOid:
		if step.Name == "" {
			return fmt.Errorf("%s: name is required for %s", where, step.Op)
		}
		if step.Target != "" && !names[step.Target] {
			return fmt.Errorf("%s: unknown target %q", where, step.Target)
		}
		if step.Target == "" && step.Oid == 0 {
			return fmt.Errorf("%s: target or oid is required for %s", where, step.Op)
		}
	case OpDestroy:
	case OpUnsubscribe:
		if step.Via == 0 {
			return fmt.Errorf("%s: unsubscribe needs a replica", where)
		}
	case OpTransaction:
		if len(step.Steps) == 0 {
			return fmt.Errorf("%s: transaction needs steps", where)
		}
		for i, inner := range step.Steps {
			if inner.Object == "" {
				inner.Object = step.Object
			}
			if inner.Object != step.Object || inner.Via != step.Via {
				return fmt.Errorf("%s.steps[%d]: transactions are confined to one copy", where, i)
			}
			switch inner.Op {
			case OpTransaction, OpDestroy, OpUnsubscribe:
				return fmt.Errorf("%s.steps[%d]: %s is not allowed in a transaction", where, i, inner.Op)
			}
			if err := validateStep(s, names, inner, fmt.Sprintf("%s.steps[%d]", where, i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	return nil
}

func validateAssertion(s *Scenario, names map[string]bool, a Assertion, index int) error {
	needObject := func() error {
		if !names[a.Object] {
			return fmt.Errorf("assertions[%d]: unknown object %q", index, a.Object)
		}
		return nil
	}
	if a.Replica < 0 || a.Replica > s.Replicas {
		return fmt.Errorf("assertions[%d]: replica %d out of range", index, a.Replica)
	}

	switch a.Type {
	case AssertConverged:
	case AssertAttribute:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for attribute", index)
		}
		return needObject()
	case AssertContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for contains", index)
		}
		if a.Target != "" && !names[a.Target] {
			return fmt.Errorf("assertions[%d]: unknown target %q", index, a.Target)
		}
		return needObject()
	case AssertDestroyed, AssertReplay, AssertNotified:
		return needObject()
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
		if a.Object != "" {
			return needObject()
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
