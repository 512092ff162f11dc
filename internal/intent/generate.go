package intent

import (
	"fmt"
	"strings"
)

// workloadTemplates name the synthetic intents generated per tier. Template
// names double as tags, so the hyphenated words steer profile selection
// (fix-* toward bug investigation, *-test toward testing, design-* toward
// planning, and so on).
var workloadTemplates = map[Complexity][]string{
	Trivial: {
		"fix-typo", "fix-lint", "fix-whitespace", "fix-indent",
		"rename-var", "sort-imports", "remove-unused-import",
		"add-newline-eof", "remove-console-log", "fix-semicolon",
	},
	Simple: {
		"add-type-hint", "update-version-bump", "fix-trailing-comma",
		"update-todo-comment", "fix-bracket-style", "swap-quotes",
		"add-missing-return", "fix-null-check", "update-env-var", "fix-off-by-one",
	},
	Moderate: {
		"implement-helper-function", "write-unit-test", "add-input-validation",
		"fix-bug-in-handler", "add-error-handling", "refactor-loop",
		"add-api-endpoint", "update-db-query", "add-retry-logic",
		"implement-dto", "add-request-logging", "fix-async-await",
		"add-rate-limiter", "update-middleware", "add-cache-layer",
		"implement-pagination", "fix-memory-leak", "add-health-check",
		"update-serializer", "implement-webhook-handler",
		"review-pr-for-bugs", "find-security-vulns", "analyze-dep-tree",
		"audit-test-coverage", "find-dead-code", "measure-cyclomatic-complexity",
		"review-error-handling", "find-code-duplication",
	},
	Complex: {
		"architect-new-service", "design-db-schema", "implement-auth-flow",
		"build-ci-cd-pipeline", "migrate-to-graphql", "optimize-query-perf",
		"implement-search-index", "design-rest-api", "build-admin-dashboard",
		"implement-job-queue", "design-caching-strategy", "build-monitoring",
		"implement-oauth2", "design-microservice-split", "build-etl-pipeline",
		"implement-graphql-schema", "design-event-bus", "build-deploy-pipeline",
		"implement-rate-limiting", "design-db-sharding",
		"review-pr-architecture", "debug-prod-incident", "plan-migration-strategy",
		"evaluate-framework-choice", "design-for-scale", "analyze-security-surface",
		"plan-tech-debt-paydown", "review-system-design", "analyze-perf-bottleneck",
		"plan-rollback-strategy", "evaluate-buy-vs-build", "design-disaster-recovery",
	},
	VeryComplex: {
		"design-distributed-system", "implement-consensus-protocol",
		"build-real-time-pipeline", "architect-multi-region-deploy",
		"design-zero-downtime-migration", "implement-cqrs-event-sourcing",
		"build-observability-platform", "design-api-gateway",
		"implement-distributed-cache", "architect-data-mesh",
	},
	Epic: {
		"redesign-platform-architecture", "build-ml-training-infra",
		"implement-multi-tenant-isolation", "architect-global-cdn",
		"design-compliance-framework", "build-developer-platform",
	},
}

type tierCount struct {
	tier  Complexity
	count int
	floor float64
}

// workloadDistribution sets how many intents of each tier a full-scale
// generated bundle carries, and the quality floor per tier.
var workloadDistribution = []tierCount{
	{Trivial, 200, 0.40},
	{Simple, 300, 0.50},
	{Moderate, 250, 0.70},
	{Complex, 150, 0.85},
	{VeryComplex, 70, 0.90},
	{Epic, 30, 0.95},
}

// timePerStep is the deadline buffer, in days, back-propagated per chain
// step during workflow construction.
var timePerStep = map[Complexity]int{
	Trivial:     3,
	Simple:      7,
	Moderate:    14,
	Complex:     21,
	VeryComplex: 30,
	Epic:        60,
}

// GenerateOptions configures Generate.
type GenerateOptions struct {
	// Scale multiplies the per-tier intent counts. 1.0 yields the full
	// thousand-intent workload; 0.05 yields a small demo bundle.
	// Values <= 0 default to 1.0.
	Scale float64
	// HorizonDays spreads deadlines across this many days.
	// Values <= 0 default to 1095 (a three-year program).
	HorizonDays int
	// Project names the generated bundle. Defaults to "generated-workload".
	Project string
}

// Generate builds a synthetic intent bundle from the tier templates and
// distribution, then threads workflow chains (feature development, bug fix,
// infrastructure) through it and assigns deadlines. The output is fully
// deterministic for a given set of options.
func Generate(opts GenerateOptions) *Bundle {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1.0
	}
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = 1095
	}
	project := opts.Project
	if project == "" {
		project = "generated-workload"
	}

	var intents []Intent
	seq := 0
	for _, tc := range workloadDistribution {
		templates := workloadTemplates[tc.tier]
		count := int(float64(tc.count) * scale)
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			template := templates[i%len(templates)]
			intents = append(intents, Intent{
				ID:              fmt.Sprintf("%s-%d", template, seq),
				Title:           strings.ReplaceAll(template, "-", " "),
				Complexity:      tc.tier,
				QualityFloor:    tc.floor,
				EstimatedTokens: TokenEstimates[tc.tier],
				Tags:            []string{template},
				Body:            fmt.Sprintf("Synthetic %s workload intent generated from the %q template.", tc.tier, template),
			})
			seq++
		}
	}

	buildWorkflowChains(intents, horizon)

	return &Bundle{
		Manifest: Manifest{
			Project: Project{
				Name:        project,
				Description: fmt.Sprintf("Generated workload: %d intents across %d tiers.", len(intents), len(workloadDistribution)),
			},
		},
		Intents: intents,
	}
}

// chainStages labels chain steps front to back as pipeline stages.
var chainStages = []string{"design", "implement", "integrate", "harden"}

// chainShapes describe the workflow chains threaded through a generated
// bundle: how many of each, and the tier sequence of their steps.
var chainShapes = []struct {
	workflow string
	count    int
	steps    []Complexity
}{
	{"feature-dev", 25, []Complexity{Trivial, Simple, Complex, VeryComplex}},
	{"bug-fix", 15, []Complexity{Simple, Moderate, Complex}},
	{"infra", 10, []Complexity{Moderate, Complex, VeryComplex}},
}

// buildWorkflowChains links intents into dependency chains and assigns
// deadlines: chain tails get completion dates spread across the horizon,
// earlier steps get back-propagated deadlines with a per-tier buffer, and
// unchained intents get evenly spread deadlines of their own.
func buildWorkflowChains(intents []Intent, horizonDays int) {
	used := make(map[int]bool)

	findFree := func(tier Complexity) int {
		for idx := range intents {
			if intents[idx].Complexity == tier && !used[idx] && len(intents[idx].DependsOn) == 0 {
				return idx
			}
		}
		return -1
	}

	type chain struct {
		workflow string
		steps    []int
	}
	var chains []chain

	for _, shape := range chainShapes {
		for c := 0; c < shape.count; c++ {
			steps := make([]int, 0, len(shape.steps))
			ok := true
			for _, tier := range shape.steps {
				idx := findFree(tier)
				if idx < 0 {
					ok = false
					break
				}
				steps = append(steps, idx)
				used[idx] = true
			}
			if !ok {
				// Tier exhausted at this scale; release partial picks.
				for _, idx := range steps {
					delete(used, idx)
				}
				continue
			}
			name := fmt.Sprintf("%s-%d", shape.workflow, len(chains))
			for k, idx := range steps {
				intents[idx].Workflow = name
				intents[idx].Stage = chainStages[k]
				if k > 0 {
					intents[idx].DependsOn = []string{intents[steps[k-1]].ID}
				}
			}
			chains = append(chains, chain{workflow: name, steps: steps})
		}
	}

	// Chain tails complete at evenly spaced dates across the horizon;
	// earlier steps inherit the next step's deadline minus its buffer.
	chained := make(map[int]bool)
	for i, ch := range chains {
		completion := horizonDays * (i + 1) / (len(chains) + 1)
		tail := ch.steps[len(ch.steps)-1]
		intents[tail].Deadline = intPtr(completion)
		chained[tail] = true

		for j := len(ch.steps) - 2; j >= 0; j-- {
			next := ch.steps[j+1]
			buffer := timePerStep[intents[next].Complexity]
			d := *intents[next].Deadline - buffer
			intents[ch.steps[j]].Deadline = intPtr(d)
			chained[ch.steps[j]] = true
		}
	}

	var independent []int
	for idx := range intents {
		if !chained[idx] {
			independent = append(independent, idx)
		}
	}
	for i, idx := range independent {
		d := horizonDays * (i + 1) / (len(independent) + 1)
		intents[idx].Deadline = intPtr(d)
	}

	for idx := range intents {
		if intents[idx].Deadline != nil && *intents[idx].Deadline < 0 {
			intents[idx].Deadline = intPtr(0)
		}
	}
}

func intPtr(v int) *int { return &v }
