package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mtessier/reactsync/internal/chat"
)

// Scenario defines a conformance test scenario: a binding and link
// configuration, seeded member role sets, and a stream of events. The
// scenario runs against an in-memory engine with throttling disabled,
// producing a deterministic trace of role writes.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden
	// trace file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bindings is the symbol-to-role configuration.
	Bindings []ScenarioBinding `yaml:"bindings"`

	// Links lists mutually-exclusive message groups.
	Links []ScenarioLink `yaml:"links,omitempty"`

	// Members seeds live role sets before any event fires.
	Members []ScenarioMember `yaml:"members,omitempty"`

	// Events is the inbound stream, applied in order. The queue is
	// drained once, after every event has been handled, so bursts
	// coalesce exactly as they would under a busy worker.
	Events []ScenarioEvent `yaml:"events"`

	// Expect optionally pins final role sets. Members not listed are
	// not checked.
	Expect []ScenarioMember `yaml:"expect,omitempty"`
}

// ScenarioBinding is one symbol-to-role mapping.
type ScenarioBinding struct {
	Server  string `yaml:"server"`
	Channel string `yaml:"channel"`
	Message string `yaml:"message"`
	Symbol  string `yaml:"symbol"`
	Role    string `yaml:"role"`
}

// Ref returns the bound message.
func (b ScenarioBinding) Ref() chat.MessageRef {
	return chat.MessageRef{
		Server:  chat.ServerID(b.Server),
		Channel: chat.ChannelID(b.Channel),
		Message: chat.MessageID(b.Message),
	}
}

// ScenarioLink is one link group.
type ScenarioLink struct {
	Server   string            `yaml:"server"`
	Group    string            `yaml:"group"`
	Messages []ScenarioMessage `yaml:"messages"`
}

// ScenarioMessage identifies a message within a scenario's server.
type ScenarioMessage struct {
	Channel string `yaml:"channel"`
	Message string `yaml:"message"`
}

// ScenarioMember seeds or asserts a member's role set.
type ScenarioMember struct {
	Server string   `yaml:"server"`
	Member string   `yaml:"member"`
	Roles  []string `yaml:"roles"`
}

// Event type constants for scenario events.
const (
	EventReactionAdd    = "reaction_add"
	EventReactionRemove = "reaction_remove"
	EventMessageDelete  = "message_delete"
)

// ScenarioEvent is one inbound event.
type ScenarioEvent struct {
	// Type is reaction_add, reaction_remove, or message_delete.
	Type string `yaml:"type"`

	Server  string `yaml:"server"`
	Channel string `yaml:"channel"`
	Message string `yaml:"message"`

	// Member and Symbol apply to reaction events only.
	Member string `yaml:"member,omitempty"`
	Symbol string `yaml:"symbol,omitempty"`
}

// Ref returns the event's message.
func (e ScenarioEvent) Ref() chat.MessageRef {
	return chat.MessageRef{
		Server:  chat.ServerID(e.Server),
		Channel: chat.ChannelID(e.Channel),
		Message: chat.MessageID(e.Message),
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Bindings) == 0 {
		return fmt.Errorf("bindings list is required and must be non-empty")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	for i, b := range s.Bindings {
		if b.Server == "" || b.Channel == "" || b.Message == "" {
			return fmt.Errorf("bindings[%d]: server, channel, and message are required", i)
		}
		if b.Symbol == "" || b.Role == "" {
			return fmt.Errorf("bindings[%d]: symbol and role are required", i)
		}
	}

	for i, l := range s.Links {
		if l.Server == "" || l.Group == "" {
			return fmt.Errorf("links[%d]: server and group are required", i)
		}
		if len(l.Messages) < 2 {
			return fmt.Errorf("links[%d]: a group needs at least two messages", i)
		}
	}

	for i, ev := range s.Events {
		switch ev.Type {
		case EventReactionAdd, EventReactionRemove:
			if ev.Member == "" || ev.Symbol == "" {
				return fmt.Errorf("events[%d]: member and symbol are required for %s", i, ev.Type)
			}
		case EventMessageDelete:
		case "":
			return fmt.Errorf("events[%d]: type is required", i)
		default:
			return fmt.Errorf("events[%d]: unknown event type %q", i, ev.Type)
		}
		if ev.Server == "" || ev.Channel == "" || ev.Message == "" {
			return fmt.Errorf("events[%d]: server, channel, and message are required", i)
		}
	}

	return nil
}
