package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gman622/qroute/internal/dag"
)

// Validate checks a bundle for structural correctness:
// required fields, known tiers, sane numeric ranges, unique IDs,
// resolvable dependencies, no cycles.
func Validate(b *Bundle) []ValidationError {
	var errs []ValidationError

	if b.Manifest.Project.Name == "" {
		errs = append(errs, ValidationError{
			Category:   ValCatMissingField,
			SourceFile: ManifestFileName,
			Field:      "project.name",
			Err:        fmt.Errorf("%w: project.name", ErrMissingField),
		})
	}
	if f := b.Manifest.Defaults.QualityFloor; f < 0 || f > 1 {
		errs = append(errs, ValidationError{
			Category:   ValCatBoundsViolation,
			SourceFile: ManifestFileName,
			Field:      "defaults.quality_floor",
			Err:        fmt.Errorf("defaults.quality_floor must be in [0, 1], got %g", f),
		})
	}

	seen := make(map[string]string) // id → source file
	ids := make(map[string]bool)

	for i := range b.Intents {
		it := &b.Intents[i]

		// Required fields.
		if it.ID == "" {
			errs = append(errs, ValidationError{
				Category:   ValCatMissingField,
				SourceFile: it.SourceFile,
				Field:      "id",
				Err:        fmt.Errorf("%w: id", ErrMissingField),
			})
			continue
		}
		if it.Title == "" {
			errs = append(errs, ValidationError{
				Category:   ValCatMissingField,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "title",
				Err:        fmt.Errorf("%w: title", ErrMissingField),
			})
		}
		if it.Complexity == "" {
			errs = append(errs, ValidationError{
				Category:   ValCatMissingField,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "complexity",
				Err:        fmt.Errorf("%w: complexity", ErrMissingField),
			})
		} else if !it.Complexity.Valid() {
			errs = append(errs, ValidationError{
				Category:   ValCatUnknownComplexity,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "complexity",
				Err:        fmt.Errorf("%w: %q", ErrUnknownComplexity, it.Complexity),
			})
		}

		// Numeric bounds.
		if it.QualityFloor < 0 || it.QualityFloor > 1 {
			errs = append(errs, ValidationError{
				Category:   ValCatBoundsViolation,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "quality_floor",
				Err:        fmt.Errorf("quality_floor must be in [0, 1], got %g", it.QualityFloor),
			})
		}
		if it.EstimatedTokens < 0 {
			errs = append(errs, ValidationError{
				Category:   ValCatBoundsViolation,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "estimated_tokens",
				Err:        fmt.Errorf("estimated_tokens must be >= 0, got %d", it.EstimatedTokens),
			})
		}
		if it.StoryPoints < 0 {
			errs = append(errs, ValidationError{
				Category:   ValCatBoundsViolation,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "story_points",
				Err:        fmt.Errorf("story_points must be >= 0, got %d", it.StoryPoints),
			})
		}
		if it.Deadline != nil && *it.Deadline < 0 {
			errs = append(errs, ValidationError{
				Category:   ValCatBoundsViolation,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Field:      "deadline",
				Err:        fmt.Errorf("deadline must be >= 0, got %d", *it.Deadline),
			})
		}

		// Duplicate IDs.
		if prev, ok := seen[it.ID]; ok {
			errs = append(errs, ValidationError{
				Category:   ValCatDuplicateID,
				IntentID:   it.ID,
				SourceFile: it.SourceFile,
				Err:        fmt.Errorf("%w: %q already defined in %s", ErrDuplicateID, it.ID, prev),
			})
		}
		seen[it.ID] = it.SourceFile
		ids[it.ID] = true
	}

	// Validate dependencies reference known IDs.
	for i := range b.Intents {
		it := &b.Intents[i]
		for _, dep := range it.DependsOn {
			if dep == it.ID {
				errs = append(errs, ValidationError{
					Category:   ValCatCycle,
					IntentID:   it.ID,
					SourceFile: it.SourceFile,
					Field:      "depends_on",
					Err:        fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, it.ID, it.ID),
				})
				continue
			}
			if !ids[dep] {
				errs = append(errs, ValidationError{
					Category:   ValCatUnknownDep,
					IntentID:   it.ID,
					SourceFile: it.SourceFile,
					Field:      "depends_on",
					Err:        fmt.Errorf("%w: %q depends on unknown intent %q", ErrUnknownDep, it.ID, dep),
				})
			}
		}
	}

	// Cycle detection via wave partitioning. Only meaningful once the
	// graph is otherwise well formed.
	if len(errs) == 0 {
		g, err := Graph(b)
		if err == nil {
			_, err = g.Waves()
		}
		if err != nil {
			ve := ValidationError{
				Category:   ValCatCycle,
				SourceFile: ManifestFileName,
				Err:        fmt.Errorf("%w: %v", ErrDependencyCycle, err),
			}
			var ce *dag.CycleError
			if errors.As(err, &ce) && len(ce.Path) > 0 {
				ve.IntentID = ce.Path[0]
				ve.Err = fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(ce.Path, " -> "))
			}
			errs = append(errs, ve)
		}
	}

	return errs
}

// Graph builds the dependency DAG for a bundle. Node weights carry token
// estimates so that critical-path analysis reflects workload duration.
// Edges point dependent → dependency.
func Graph(b *Bundle) (*dag.DAG, error) {
	return GraphOf(b.Intents)
}

// GraphOf builds the dependency DAG for a bare intent slice.
func GraphOf(intents []Intent) (*dag.DAG, error) {
	g := dag.New()
	for i := range intents {
		it := &intents[i]
		if err := g.AddNode(it.ID, float64(it.Tokens())); err != nil {
			return nil, err
		}
	}
	for i := range intents {
		it := &intents[i]
		for _, dep := range it.DependsOn {
			if err := g.AddEdge(it.ID, dep); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
