package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/neko/internal/duration"
)

// DefaultStart is the fake clock's start time when a scenario sets none.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario defines a lifecycle scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 time the fake clock starts at.
	Start string `yaml:"start,omitempty"`

	// Seed seeds the winner draw. Zero uses 1.
	Seed uint64 `yaml:"seed,omitempty"`

	// Flow is executed in order.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action in a scenario flow. Which fields apply depends on Action.
type Step struct {
	Action string `yaml:"action"`

	Event       string `yaml:"event,omitempty"`
	Participant string `yaml:"participant,omitempty"`

	Title   string `yaml:"title,omitempty"`
	Length  string `yaml:"length,omitempty"`
	Channel string `yaml:"channel,omitempty"`
	Winners *int   `yaml:"winners,omitempty"`
	Image   string `yaml:"image,omitempty"`

	// By is the clock advance for the advance action.
	By string `yaml:"by,omitempty"`

	// ExpectError is the engine error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final state of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Events is the exact id set for live and stored.
	Events []string `yaml:"events,omitempty"`

	// Event, Entrants and Winners are used by archived.
	Event    string `yaml:"event,omitempty"`
	Entrants *int   `yaml:"entrants,omitempty"`
	Winners  *int   `yaml:"winners,omitempty"`

	// Count and Contains are used by announcements.
	Count    *int   `yaml:"count,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// Step actions.
const (
	ActionCreate    = "create"
	ActionEnter     = "enter"
	ActionWithdraw  = "withdraw"
	ActionConclude  = "conclude"
	ActionCancel    = "cancel"
	ActionExtend    = "extend"
	ActionAdvance   = "advance"
	ActionGone      = "gone"
	ActionReconcile = "reconcile"
	ActionRestart   = "restart"
)

// Assertion type constants.
const (
	AssertLive          = "live"
	AssertStored        = "stored"
	AssertArchived      = "archived"
	AssertAnnouncements = "announcements"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
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

// StartTime returns the parsed start time.
func (s *Scenario) StartTime() time.Time {
	if s.Start == "" {
		return DefaultStart
	}
	t, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return DefaultStart
	}
	return t.UTC()
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start must be RFC 3339: %w", err)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Action {
	case "":
		return fmt.Errorf("flow[%d]: action is required", index)
	case ActionCreate, ActionReconcile, ActionRestart:
	case ActionEnter, ActionWithdraw:
		if st.Event == "" || st.Participant == "" {
			return fmt.Errorf("flow[%d]: event and participant are required for %s", index, st.Action)
		}
	case ActionConclude, ActionCancel:
		if st.Event == "" {
			return fmt.Errorf("flow[%d]: event is required for %s", index, st.Action)
		}
	case ActionExtend:
		if st.Event == "" {
			return fmt.Errorf("flow[%d]: event is required for extend", index)
		}
	case ActionAdvance:
		if duration.Parse(st.By) <= 0 {
			return fmt.Errorf("flow[%d]: by must be a positive duration for advance", index)
		}
	case ActionGone:
		if st.Channel == "" {
			return fmt.Errorf("flow[%d]: channel is required for gone", index)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertLive, AssertStored:
	case AssertArchived:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for archived", index)
		}
	case AssertAnnouncements:
		if a.Count == nil && a.Contains == "" {
			return fmt.Errorf("assertions[%d]: count or contains is required for announcements", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
