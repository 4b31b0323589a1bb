// Copyright (c) 2025-present deep.rent GmbH (https://deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package container

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Encoding selects the output format of a consistency report.
type Encoding uint8

const (
	EncodingText Encoding = iota // Human-readable line format.
	EncodingJSON                 // JSON, suitable for tooling.
	EncodingYAML                 // YAML, suitable for tooling.
)

// Event names one lifecycle phase of one resource, the node unit of the
// checker's phase event graph.
type Event struct {
	Resource string `json:"resource" yaml:"resource"`
	Phase    string `json:"phase"    yaml:"phase"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s of %s", e.Phase, e.Resource)
}

// Conflict is one dependency edge whose two events could not be ordered:
// the edge lies on a cycle, or both of its events wait on one. Event cannot
// happen before Requires has happened.
type Conflict struct {
	Event    Event `json:"event"    yaml:"event"`
	Requires Event `json:"requires" yaml:"requires"`
}

// Missing records a dependency that appears in some injection list but was
// never declared with the container.
type Missing struct {
	Resource   string `json:"resource"   yaml:"resource"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Via        string `json:"via"        yaml:"via"`
}

// Report is the structured result of a consistency check. A configuration
// is consistent when its phase event graph is acyclic and every declared
// dependency has a manager.
type Report struct {
	Consistent bool       `json:"consistent"           yaml:"consistent"`
	Cycles     []Conflict `json:"cycles,omitempty"     yaml:"cycles,omitempty"`
	Undeclared []Missing  `json:"undeclared,omitempty" yaml:"undeclared,omitempty"`
}

// Encode writes the report to w in the requested encoding.
func (r *Report) Encode(w io.Writer, enc Encoding) error {
	switch enc {
	case EncodingJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case EncodingYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return r.writeText(w)
	}
}

func (r *Report) writeText(w io.Writer) error {
	if r.Consistent {
		_, err := fmt.Fprintln(w, "consistency: ok")
		return err
	}
	if _, err := fmt.Fprintln(w, "consistency: failed"); err != nil {
		return err
	}
	for _, c := range r.Cycles {
		_, err := fmt.Fprintf(w, "%s: %s requires %s\n",
			reasonCycle, c.Event, c.Requires)
		if err != nil {
			return err
		}
	}
	for _, m := range r.Undeclared {
		_, err := fmt.Fprintf(w, "%s: %s requires %s via %s\n",
			reasonUndeclared, m.Resource, m.Dependency, m.Via)
		if err != nil {
			return err
		}
	}
	return nil
}

// Check verifies that the declared configuration can be instantiated and
// disposed without ordering conflicts, writes a textual report to w, and
// returns whether the configuration is consistent. It never fails itself;
// write errors on the sink are swallowed.
func (c *Container) Check(w io.Writer) bool {
	r := c.Report()
	_ = r.Encode(w, EncodingText)
	return r.Consistent
}

// event is the internal, comparable node of the phase event graph.
type event struct {
	id ID
	ph Phase
}

// Report runs the consistency check and returns its structured result.
//
// The check builds a graph with five nodes per declared resource, one per
// phase, and edges for every "must happen before" constraint:
//
//   - each phase requires the preceding phase of the same resource,
//   - providing a resource requires each provider dependency to be
//     provided,
//   - injecting requires each injector dependency to be provided,
//   - creation requires each initializer dependency to be injected,
//   - disposal requires each disposer dependency to be created, and the
//     dependency in turn must be disposed only after its consumer.
//
// A topological sort of this graph succeeds exactly when every declared
// resource can be taken through all of its phases, disposal included, in
// some order; any leftover edges are reported as cycles. Dependencies that lack a manager produce
// undeclared entries instead of edges.
func (c *Container) Report() *Report {
	c.mu.RLock()
	managers := make(map[ID]*Manager, len(c.managers))
	for id, m := range c.managers {
		managers[id] = m
	}
	c.mu.RUnlock()

	g := newGraph()
	phases := []Phase{Allocated, Provided, Injected, Created, Disposed}
	for id := range managers {
		for _, ph := range phases[1:] {
			g.require(event{id, ph}, event{id, ph - 1})
		}
	}

	report := &Report{}
	declared := func(rid ID, dep ID, via string) bool {
		if _, ok := managers[dep]; ok {
			return true
		}
		report.Undeclared = append(report.Undeclared, Missing{
			Resource:   rid.String(),
			Dependency: dep.String(),
			Via:        via,
		})
		return false
	}

	for id, m := range managers {
		for _, dep := range m.ProviderDeps() {
			if declared(id, dep, "provider") {
				g.require(event{id, Provided}, event{dep, Provided})
			}
		}
		for i := range m.NumInjectors() {
			via := fmt.Sprintf("injector %d", i)
			for _, dep := range m.InjectorDeps(i) {
				if declared(id, dep, via) {
					g.require(event{id, Injected}, event{dep, Provided})
				}
			}
		}
		for _, dep := range m.InitializerDeps() {
			if declared(id, dep, "initializer") {
				g.require(event{id, Created}, event{dep, Injected})
			}
		}
		for _, dep := range m.DisposerDeps() {
			if declared(id, dep, "disposer") {
				g.require(event{id, Disposed}, event{dep, Created})
				g.require(event{dep, Disposed}, event{id, Disposed})
			}
		}
	}

	report.Cycles = g.cycles()
	report.Consistent = len(report.Cycles) == 0 && len(report.Undeclared) == 0

	slices.SortFunc(report.Undeclared, func(a, b Missing) int {
		if n := strings.Compare(a.Resource, b.Resource); n != 0 {
			return n
		}
		return strings.Compare(a.Dependency, b.Dependency)
	})
	return report
}

// graph is the phase event graph under construction. Edges point from a
// requirement to its dependents, the direction a topological sort walks.
type graph struct {
	next     map[event][]event
	indegree map[event]int
}

func newGraph() *graph {
	return &graph{
		next:     make(map[event][]event),
		indegree: make(map[event]int),
	}
}

// require records that e cannot happen before req has happened.
func (g *graph) require(e, req event) {
	if _, ok := g.indegree[e]; !ok {
		g.indegree[e] = 0
	}
	if _, ok := g.indegree[req]; !ok {
		g.indegree[req] = 0
	}
	g.next[req] = append(g.next[req], e)
	g.indegree[e]++
}

// cycles runs Kahn's algorithm and reports every edge both of whose
// endpoints could not be ordered: the edges of the graph's cycles together
// with the edges among events that wait on a cycle.
func (g *graph) cycles() []Conflict {
	queue := make([]event, 0, len(g.indegree))
	indegree := make(map[event]int, len(g.indegree))
	for e, d := range g.indegree {
		indegree[e] = d
		if d == 0 {
			queue = append(queue, e)
		}
	}

	resolved := 0
	for len(queue) > 0 {
		e := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		resolved++
		for _, n := range g.next[e] {
			indegree[n]--
			if indegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	if resolved == len(indegree) {
		return nil
	}

	var conflicts []Conflict
	for req, dependents := range g.next {
		if indegree[req] == 0 {
			continue
		}
		for _, e := range dependents {
			if indegree[e] > 0 {
				conflicts = append(conflicts, Conflict{
					Event:    Event{e.id.String(), e.ph.String()},
					Requires: Event{req.id.String(), req.ph.String()},
				})
			}
		}
	}
	slices.SortFunc(conflicts, func(a, b Conflict) int {
		if n := strings.Compare(a.Event.Resource, b.Event.Resource); n != 0 {
			return n
		}
		if n := strings.Compare(a.Event.Phase, b.Event.Phase); n != 0 {
			return n
		}
		return strings.Compare(a.Requires.Resource, b.Requires.Resource)
	})
	return conflicts
}
