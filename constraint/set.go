package constraint

import "strings"

// Set is a collection of constraints deduplicated by ID: the first
// registration of an ID wins and later registrations are dropped.
// Registration order is preserved for rendering.
type Set struct {
	order []string
	byID  map[string]Constraint
}

// NewSet creates a set from the given constraints, applying
// first-registration-wins deduplication. Invalid constraints are dropped.
func NewSet(constraints ...Constraint) *Set {
	s := &Set{byID: make(map[string]Constraint)}
	for _, c := range constraints {
		s.Add(c)
	}
	return s
}

// Add registers a constraint. Returns false if the constraint is invalid
// or its ID is already registered.
func (s *Set) Add(c Constraint) bool {
	if c.Validate() != nil {
		return false
	}
	if _, exists := s.byID[c.ID]; exists {
		return false
	}
	if c.Severity == "" {
		c.Severity = Hard
	}
	s.byID[c.ID] = c
	s.order = append(s.order, c.ID)
	return true
}

// Get returns the constraint with the given ID.
func (s *Set) Get(id string) (Constraint, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Len returns the number of registered constraints.
func (s *Set) Len() int {
	return len(s.order)
}

// All returns the constraints in registration order.
func (s *Set) All() []Constraint {
	out := make([]Constraint, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Set) ofType(t Type) []Constraint {
	var out []Constraint
	for _, id := range s.order {
		if c := s.byID[id]; c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Prohibitions returns the prohibition constraints in registration order.
func (s *Set) Prohibitions() []Constraint { return s.ofType(Prohibition) }

// Requirements returns the requirement constraints in registration order.
func (s *Set) Requirements() []Constraint { return s.ofType(Requirement) }

// Permissions returns the permission constraints in registration order.
func (s *Set) Permissions() []Constraint { return s.ofType(Permission) }

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{
		order: append([]string(nil), s.order...),
		byID:  make(map[string]Constraint, len(s.byID)),
	}
	for id, con := range s.byID {
		c.byID[id] = con
	}
	return c
}

// Escalate returns a copy of the set in which the named constraints are
// promoted to Critical severity. The receiver is left untouched; retry
// escalation carries state forward functionally rather than mutating a
// shared set.
func (s *Set) Escalate(ids ...string) *Set {
	c := s.Clone()
	for _, id := range ids {
		if con, ok := c.byID[id]; ok {
			con.Severity = Critical
			c.byID[id] = con
		}
	}
	return c
}

// Render produces the three directive blocks consumed by prompt assembly:
// prohibitions ("must NOT"), requirements ("MUST"), and permissions
// ("MAY"). Empty blocks are omitted.
func (s *Set) Render() string {
	var b strings.Builder

	writeBlock := func(header string, constraints []Constraint) {
		if len(constraints) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(header)
		b.WriteString("\n")
		for _, c := range constraints {
			b.WriteString("- ")
			b.WriteString(c.Directive())
			b.WriteString("\n")
		}
	}

	writeBlock("You must NOT:", s.Prohibitions())
	writeBlock("You MUST:", s.Requirements())
	writeBlock("You MAY:", s.Permissions())
	return b.String()
}
