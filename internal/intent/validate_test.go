package intent

import (
	"errors"
	"strings"
	"testing"
)

func validBundle() *Bundle {
	return &Bundle{
		Manifest: Manifest{Project: Project{Name: "demo"}},
		Intents: []Intent{
			{ID: "a", Title: "A", Complexity: Trivial, SourceFile: "a.md"},
			{ID: "b", Title: "B", Complexity: Simple, DependsOn: []string{"a"}, SourceFile: "b.md"},
			{ID: "c", Title: "C", Complexity: Moderate, DependsOn: []string{"b"}, SourceFile: "c.md"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if errs := Validate(validBundle()); len(errs) != 0 {
		t.Errorf("valid bundle produced errors: %v", errs)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Bundle)
		wantCat  ValidationCategory
		wantErr  error
		wantMsg  string
	}{
		{
			name:    "missing project name",
			mutate:  func(b *Bundle) { b.Manifest.Project.Name = "" },
			wantCat: ValCatMissingField,
			wantErr: ErrMissingField,
			wantMsg: "project.name",
		},
		{
			name: "missing id",
			mutate: func(b *Bundle) {
				b.Intents[0].ID = ""
				// Drop the edge into the now-anonymous intent so the only
				// finding is the missing field itself.
				b.Intents[1].DependsOn = nil
			},
			wantCat: ValCatMissingField,
			wantErr: ErrMissingField,
		},
		{
			name:    "missing title",
			mutate:  func(b *Bundle) { b.Intents[1].Title = "" },
			wantCat: ValCatMissingField,
			wantErr: ErrMissingField,
			wantMsg: "title",
		},
		{
			name:    "missing complexity",
			mutate:  func(b *Bundle) { b.Intents[2].Complexity = "" },
			wantCat: ValCatMissingField,
			wantErr: ErrMissingField,
			wantMsg: "complexity",
		},
		{
			name:    "unknown complexity",
			mutate:  func(b *Bundle) { b.Intents[0].Complexity = "heroic" },
			wantCat: ValCatUnknownComplexity,
			wantErr: ErrUnknownComplexity,
			wantMsg: "heroic",
		},
		{
			name:    "quality floor above one",
			mutate:  func(b *Bundle) { b.Intents[0].QualityFloor = 1.5 },
			wantCat: ValCatBoundsViolation,
			wantMsg: "quality_floor",
		},
		{
			name:    "negative tokens",
			mutate:  func(b *Bundle) { b.Intents[0].EstimatedTokens = -1 },
			wantCat: ValCatBoundsViolation,
			wantMsg: "estimated_tokens",
		},
		{
			name:    "negative story points",
			mutate:  func(b *Bundle) { b.Intents[0].StoryPoints = -2 },
			wantCat: ValCatBoundsViolation,
			wantMsg: "story_points",
		},
		{
			name: "negative deadline",
			mutate: func(b *Bundle) {
				d := -3
				b.Intents[0].Deadline = &d
			},
			wantCat: ValCatBoundsViolation,
			wantMsg: "deadline",
		},
		{
			name: "duplicate id",
			mutate: func(b *Bundle) {
				b.Intents[2].ID = "a"
				b.Intents[2].DependsOn = nil
				b.Intents[1].DependsOn = nil
			},
			wantCat: ValCatDuplicateID,
			wantErr: ErrDuplicateID,
			wantMsg: "already defined in a.md",
		},
		{
			name:    "unknown dependency",
			mutate:  func(b *Bundle) { b.Intents[1].DependsOn = []string{"ghost"} },
			wantCat: ValCatUnknownDep,
			wantErr: ErrUnknownDep,
			wantMsg: `unknown intent "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := validBundle()
			tt.mutate(b)

			errs := Validate(b)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			ve := errs[0]
			if ve.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", ve.Category, tt.wantCat)
			}
			if tt.wantErr != nil && !errors.Is(&ve, tt.wantErr) {
				t.Errorf("error %v should wrap %v", ve.Err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(ve.Error(), tt.wantMsg) {
				t.Errorf("message %q should contain %q", ve.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_Cycle(t *testing.T) {
	t.Parallel()

	b := &Bundle{
		Manifest: Manifest{Project: Project{Name: "demo"}},
		Intents: []Intent{
			{ID: "a", Title: "A", Complexity: Trivial, DependsOn: []string{"c"}, SourceFile: "a.md"},
			{ID: "b", Title: "B", Complexity: Simple, DependsOn: []string{"a"}, SourceFile: "b.md"},
			{ID: "c", Title: "C", Complexity: Moderate, DependsOn: []string{"b"}, SourceFile: "c.md"},
		},
	}

	errs := Validate(b)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	ve := errs[0]
	if ve.Category != ValCatCycle {
		t.Errorf("category = %q, want cycle", ve.Category)
	}
	if !errors.Is(&ve, ErrDependencyCycle) {
		t.Errorf("error %v should wrap ErrDependencyCycle", ve.Err)
	}
	// The message names the cycle members in dependency order.
	msg := ve.Error()
	if !strings.Contains(msg, " -> ") {
		t.Errorf("message should trace the cycle path, got %q", msg)
	}
	for _, id := range []string{"a", "b", "c"} {
		if !strings.Contains(msg, id) {
			t.Errorf("message %q should name cycle member %q", msg, id)
		}
	}
	if ve.IntentID == "" {
		t.Error("cycle error should name an intent on the cycle")
	}
}

func TestValidate_SelfDependency(t *testing.T) {
	t.Parallel()

	b := validBundle()
	b.Intents[0].DependsOn = []string{"a"}

	errs := Validate(b)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Category != ValCatCycle {
		t.Errorf("category = %q, want cycle", errs[0].Category)
	}
	if !strings.Contains(errs[0].Error(), "a -> a") {
		t.Errorf("message = %q, want self loop trace", errs[0].Error())
	}
}

func TestGraph_WeightsCarryTokens(t *testing.T) {
	t.Parallel()

	b := validBundle()
	g, err := Graph(b)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	// Trivial intent defaults to 500 tokens.
	if n := g.Node("a"); n == nil || n.Weight != 500 {
		t.Errorf("node a weight = %v, want 500", n)
	}
	waves, err := g.Waves()
	if err != nil {
		t.Fatalf("Waves: %v", err)
	}
	if len(waves) != 3 {
		t.Errorf("chain should partition into 3 waves, got %v", waves)
	}
}
