// Package agent defines the Agent configuration unit and the communication
// graph wiring agents together. The graph is static: edges are declared up
// front and determine which recipients each agent may message at runtime.
package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentrelay/guardrail"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/tool"
)

// ValidatorFunc checks a candidate final response. A non-nil error carries
// the guidance replayed to the model for another attempt.
type ValidatorFunc func(ctx context.Context, text string) error

// Agent is the configuration of one conversational participant: its model,
// tools, guardrails and response validator. Agents are passive; the runner
// drives them.
type Agent struct {
	// Name uniquely identifies the agent inside a graph.
	Name string

	// Description is shown to other agents when they choose a recipient.
	Description string

	// Instructions is the system prompt for every turn of this agent.
	Instructions string

	// Model generates this agent's responses.
	Model model.Model

	// Tools the agent may call, beyond the messaging tool the graph injects.
	Tools []tool.Tool

	// InputGuardrails run against incoming user messages before the model
	// sees them.
	InputGuardrails []*guardrail.Guardrail

	// OutputGuardrails run against candidate final responses.
	OutputGuardrails []*guardrail.Guardrail

	// Validator, when set, must accept the final response text. On rejection
	// the model is re-invoked with the validator's guidance.
	Validator ValidatorFunc

	// MaxValidationAttempts caps validator-driven retries. Zero means the
	// runner default.
	MaxValidationAttempts int
}

// Validate checks the agent configuration for structural problems.
func (a *Agent) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("agent name must not be empty")
	}
	if a.Model == nil {
		return fmt.Errorf("agent %q has no model", a.Name)
	}
	seen := map[string]bool{}
	for _, t := range a.Tools {
		if seen[t.Name()] {
			return fmt.Errorf("agent %q registers tool %q twice", a.Name, t.Name())
		}
		seen[t.Name()] = true
	}
	return nil
}

// Graph is the static communication topology: which agents exist and who may
// message whom. A Graph is built once and then read-only.
type Graph struct {
	agents map[string]*Agent
	edges  map[string][]string
	entry  []string
}

// NewGraph creates an empty communication graph.
func NewGraph() *Graph {
	return &Graph{
		agents: make(map[string]*Agent),
		edges:  make(map[string][]string),
	}
}

// AddAgent registers an agent. The first registered agent is also the default
// entry point for user messages.
func (g *Graph) AddAgent(a *Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, exists := g.agents[a.Name]; exists {
		return fmt.Errorf("agent %q already registered", a.Name)
	}
	g.agents[a.Name] = a
	g.entry = append(g.entry, a.Name)
	return nil
}

// AddEdge declares that from may send messages to to. Both agents must be
// registered; duplicate edges are rejected.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.agents[from]; !ok {
		return fmt.Errorf("unknown agent %q", from)
	}
	if _, ok := g.agents[to]; !ok {
		return fmt.Errorf("unknown agent %q", to)
	}
	if from == to {
		return fmt.Errorf("agent %q cannot message itself", from)
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return fmt.Errorf("edge %s->%s already declared", from, to)
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// Get returns the named agent, or an error when no such agent exists.
func (g *Graph) Get(name string) (*Agent, error) {
	a, ok := g.agents[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", name)
	}
	return a, nil
}

// Recipients returns the names an agent may message, in declaration order.
func (g *Graph) Recipients(name string) []string {
	out := make([]string, len(g.edges[name]))
	copy(out, g.edges[name])
	return out
}

// Names returns all registered agent names, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.agents))
	for n := range g.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EntryPoint returns the default recipient for user messages: the first
// registered agent.
func (g *Graph) EntryPoint() (string, error) {
	if len(g.entry) == 0 {
		return "", fmt.Errorf("graph has no agents")
	}
	return g.entry[0], nil
}
