package tools

import (
	"errors"
	"fmt"
	"slices"
)

// Matcher recognizes a bare parameter set as a call to Tool when every
// key in Keys is present.
type Matcher struct {
	Tool string
	Keys []string
}

// Matches reports whether params carries every key in m.Keys.
func (m Matcher) Matches(params map[string]any) bool {
	for _, k := range m.Keys {
		if _, ok := params[k]; !ok {
			return false
		}
	}
	return true
}

// Shadow records a matcher that can never win structural matching
// because an earlier matcher needs a subset of its keys.
type Shadow struct {
	Tool string
	By   string
}

// Catalog is the immutable set of tool specs plus the ordered match
// table used to recognize unnamed actions. Construct one at startup and
// pass it to the Dispatcher and the model gateway.
type Catalog struct {
	specs    []Spec
	byName   map[string]int
	matchers []Matcher
}

// NewCatalog builds a catalog. order lists tool names in the sequence
// they are tried during structural matching; the first match wins, so
// tools with more required keys belong before tools with fewer. Specs
// left out of order are reachable only by name.
func NewCatalog(specs []Spec, order []string) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(specs))}
	var errs []error

	for _, s := range specs {
		if s.Name == "" {
			errs = append(errs, errors.New("tool spec with empty name"))
			continue
		}
		if _, dup := c.byName[s.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate tool %q", s.Name))
			continue
		}
		c.byName[s.Name] = len(c.specs)
		c.specs = append(c.specs, s)
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		i, ok := c.byName[name]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("match order names unknown tool %q", name))
			continue
		case seen[name]:
			errs = append(errs, fmt.Errorf("match order lists %q twice", name))
			continue
		}
		seen[name] = true
		keys := c.specs[i].RequiredKeys()
		if len(keys) == 0 {
			errs = append(errs, fmt.Errorf("tool %q has no required keys to match on", name))
			continue
		}
		c.matchers = append(c.matchers, Matcher{Tool: name, Keys: keys})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// AllSpecs returns every spec in declaration order.
func (c *Catalog) AllSpecs() []Spec {
	return slices.Clone(c.specs)
}

// Spec looks up a tool by name.
func (c *Catalog) Spec(name string) (Spec, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Spec{}, false
	}
	return c.specs[i], true
}

// Matchers returns the match table in evaluation order.
func (c *Catalog) Matchers() []Matcher {
	return slices.Clone(c.matchers)
}

// Match returns the first tool in match order whose required keys are
// all present in params.
func (c *Catalog) Match(params map[string]any) (string, bool) {
	for _, m := range c.matchers {
		if m.Matches(params) {
			return m.Tool, true
		}
	}
	return "", false
}

// Definitions renders every spec for a model request.
func (c *Catalog) Definitions() []map[string]any {
	defs := make([]map[string]any, len(c.specs))
	for i, s := range c.specs {
		defs[i] = s.Definition()
	}
	return defs
}

// Shadowed lists matchers that are unreachable by structural matching.
// They stay callable when the model names the tool.
func (c *Catalog) Shadowed() []Shadow {
	var out []Shadow
	for j, later := range c.matchers {
		for _, earlier := range c.matchers[:j] {
			if isSubset(earlier.Keys, later.Keys) {
				out = append(out, Shadow{Tool: later.Tool, By: earlier.Tool})
				break
			}
		}
	}
	return out
}

func isSubset(sub, super []string) bool {
	for _, k := range sub {
		if !slices.Contains(super, k) {
			return false
		}
	}
	return true
}
