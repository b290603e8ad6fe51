package constraint

import (
	"errors"
	"strings"
	"testing"
)

func TestConstraintValidate(t *testing.T) {
	valid := Constraint{ID: "c1", Type: Prohibition, Description: "no spoilers"}

	cases := []struct {
		name   string
		mutate func(*Constraint)
		wantOK bool
	}{
		{"valid", func(*Constraint) {}, true},
		{"missing id", func(c *Constraint) { c.ID = "" }, false},
		{"unknown type", func(c *Constraint) { c.Type = "suggestion" }, false},
		{"unknown severity", func(c *Constraint) { c.Severity = "fatal" }, false},
		{"empty severity ok", func(c *Constraint) { c.Severity = "" }, true},
		{"missing description", func(c *Constraint) { c.Description = "" }, false},
		{"prompt injection suffices", func(c *Constraint) {
			c.Description = ""
			c.PromptInjection = "Do not reveal spoilers."
		}, true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err == nil) != tt.wantOK {
				t.Errorf("Validate() = %v, wantOK %v", err, tt.wantOK)
			}
			if err != nil && !errors.Is(err, ErrInvalidConstraint) {
				t.Errorf("error does not wrap ErrInvalidConstraint: %v", err)
			}
		})
	}
}

func TestDirective(t *testing.T) {
	c := Constraint{ID: "c", Type: Requirement, Description: "greet the player"}
	if got := c.Directive(); got != "greet the player" {
		t.Errorf("Directive = %q", got)
	}
	c.PromptInjection = "Always open with a greeting."
	if got := c.Directive(); got != "Always open with a greeting." {
		t.Errorf("Directive with injection = %q", got)
	}
}

func TestSetAdd(t *testing.T) {
	s := NewSet()

	if !s.Add(Constraint{ID: "a", Type: Prohibition, Description: "x"}) {
		t.Fatal("valid add rejected")
	}
	if s.Add(Constraint{ID: "a", Type: Requirement, Description: "y"}) {
		t.Error("duplicate id accepted")
	}
	if s.Add(Constraint{ID: "bad", Type: "nope", Description: "z"}) {
		t.Error("invalid constraint accepted")
	}

	got, ok := s.Get("a")
	if !ok || got.Type != Prohibition {
		t.Errorf("first registration did not win: %+v", got)
	}
	if got.Severity != Hard {
		t.Errorf("empty severity not defaulted to Hard: %s", got.Severity)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSetTypeFilters(t *testing.T) {
	s := NewSet(
		Constraint{ID: "p1", Type: Prohibition, Description: "a"},
		Constraint{ID: "r1", Type: Requirement, Description: "b"},
		Constraint{ID: "m1", Type: Permission, Description: "c"},
		Constraint{ID: "p2", Type: Prohibition, Description: "d"},
	)

	prohibitions := s.Prohibitions()
	if len(prohibitions) != 2 || prohibitions[0].ID != "p1" || prohibitions[1].ID != "p2" {
		t.Errorf("Prohibitions = %+v", prohibitions)
	}
	if len(s.Requirements()) != 1 || len(s.Permissions()) != 1 {
		t.Error("type filters miscounted")
	}
	if len(s.All()) != 4 {
		t.Errorf("All = %d, want 4", len(s.All()))
	}
}

func TestEscalateIsFunctional(t *testing.T) {
	s := NewSet(
		Constraint{ID: "a", Type: Prohibition, Description: "x", Severity: Hard},
		Constraint{ID: "b", Type: Prohibition, Description: "y", Severity: Hard},
	)

	esc := s.Escalate("a", "missing-id")

	got, _ := esc.Get("a")
	if got.Severity != Critical {
		t.Errorf("escalated severity = %s, want critical", got.Severity)
	}
	got, _ = esc.Get("b")
	if got.Severity != Hard {
		t.Errorf("untouched constraint escalated: %s", got.Severity)
	}

	// Receiver untouched.
	orig, _ := s.Get("a")
	if orig.Severity != Hard {
		t.Error("Escalate mutated the receiver")
	}
}

func TestCloneIndependent(t *testing.T) {
	s := NewSet(Constraint{ID: "a", Type: Permission, Description: "x"})
	c := s.Clone()
	c.Add(Constraint{ID: "b", Type: Permission, Description: "y"})

	if s.Len() != 1 || c.Len() != 2 {
		t.Errorf("clone shares state: %d/%d", s.Len(), c.Len())
	}
}

func TestRender(t *testing.T) {
	s := NewSet(
		Constraint{ID: "p", Type: Prohibition, Description: "reveal the ending"},
		Constraint{ID: "r", Type: Requirement, Description: "stay in character"},
		Constraint{ID: "m", Type: Permission, Description: "mention rumors", PromptInjection: "You may repeat tavern rumors."},
	)

	out := s.Render()
	for _, want := range []string{
		"You must NOT:\n- reveal the ending",
		"You MUST:\n- stay in character",
		"You MAY:\n- You may repeat tavern rumors.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render missing %q in:\n%s", want, out)
		}
	}

	if got := NewSet().Render(); got != "" {
		t.Errorf("empty set rendered %q", got)
	}
}
