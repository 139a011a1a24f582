package teamformation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/logging"
	"github.com/jonathan/teamforge/internal/prompts"
	"github.com/jonathan/teamforge/internal/schemas"
	"github.com/jonathan/teamforge/internal/timezone"
	"github.com/jonathan/teamforge/internal/types"
	"github.com/jonathan/teamforge/internal/vector"
	rootschemas "github.com/jonathan/teamforge/schemas"
)

// Defaults for Pipeline fields left zero.
const (
	DefaultTopK    = 5
	DefaultMaxDiff = timezone.DefaultMaxDiff
)

// FallbackReasoning is attached to candidates the ranking model did not score.
const FallbackReasoning = "Skill match based on profile analysis."

// Pipeline runs team formation. It holds no per-run state and may be shared.
type Pipeline struct {
	LLM      llm.Client
	Searcher vector.Searcher
	Scorer   *timezone.Scorer
	TopK     int
	MaxDiff  float64
	Logger   *slog.Logger
}

// New creates a pipeline with default settings.
func New(client llm.Client, searcher vector.Searcher) *Pipeline {
	return &Pipeline{
		LLM:      client,
		Searcher: searcher,
		Scorer:   timezone.NewScorer(),
		TopK:     DefaultTopK,
		MaxDiff:  DefaultMaxDiff,
	}
}

// RunOptions carries per-run hooks.
type RunOptions struct {
	RunID      uuid.UUID
	OnProgress agents.ProgressCallback
	Artifacts  agents.ArtifactStore
}

// Run executes every stage and returns the recommendations. Stage failures are
// reported in Result.Error; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context, in Input, opts RunOptions) *Result {
	state := p.Execute(ctx, NewState(in), opts)
	return &Result{Recommendations: state.Recommendations, Error: state.Error}
}

// RunTeamFormation staffs a project with a default pipeline.
func RunTeamFormation(ctx context.Context, client llm.Client, searcher vector.Searcher, in Input) *Result {
	return New(client, searcher).Run(ctx, in, RunOptions{})
}

// Execute runs the stages against a prepared state and returns it.
func (p *Pipeline) Execute(ctx context.Context, state *State, opts RunOptions) *State {
	agents.Run(ctx, state, p.stages(), agents.Options{
		Pipeline:   PipelineName,
		ProjectID:  state.ProjectID,
		RunID:      opts.RunID,
		Logger:     p.Logger,
		OnProgress: opts.OnProgress,
		Artifacts:  opts.Artifacts,
	})
	return state
}

func (p *Pipeline) stages() []agents.Stage[*State] {
	return []agents.Stage[*State]{
		{
			Name: StageRoleAnalysis,
			Run:  p.analyzeRoles,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Identified %d roles", len(s.Roles)), s.Roles
			},
		},
		{
			Name: StageCandidateRetrieval,
			Run:  p.retrieveCandidates,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Retrieved %d candidates", len(s.Candidates)), nil
			},
		},
		{
			Name: StageCandidateFilter,
			Run:  p.filterCandidates,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("%d candidates within %.1fh of %s", len(s.Candidates), p.maxDiff(), s.OwnerTimezone), nil
			},
		},
		{
			Name: StageCandidateRanking,
			Run:  p.rankCandidates,
			Output: func(s *State) (string, any) {
				return fmt.Sprintf("Ranked %d recommendations", len(s.Recommendations)), s.Recommendations
			},
		},
	}
}

func (p *Pipeline) topK() int {
	if p.TopK <= 0 {
		return DefaultTopK
	}
	return p.TopK
}

func (p *Pipeline) maxDiff() float64 {
	if p.MaxDiff <= 0 {
		return DefaultMaxDiff
	}
	return p.MaxDiff
}

func (p *Pipeline) scorer() *timezone.Scorer {
	if p.Scorer == nil {
		return timezone.NewScorer()
	}
	return p.Scorer
}

// analyzeRoles asks the model for the roles the project needs.
// On any failure roles are left empty.
func (p *Pipeline) analyzeRoles(ctx context.Context, s *State) error {
	s.Roles = []types.Role{}

	system, user := prompts.MustRender(prompts.TeamFormation, "role-analysis", map[string]string{
		"ProjectTitle":   s.ProjectTitle,
		"RequiredSkills": strings.Join(s.RequiredSkills, ", "),
		"TeamSize":       strconv.Itoa(s.TeamSize),
		"Timeline":       s.Timeline,
	})
	value, raw, err := llm.GenerateJSON(ctx, p.LLM, system, user, llm.TierStandard)
	if err != nil {
		return fmt.Errorf("role analysis call failed: %w", err)
	}

	items, ok := value.Unwrap("roles")
	if !ok {
		return fmt.Errorf("role analysis returned no role list: %s", llm.Preview(raw, 200))
	}
	if err := schemas.ValidateValue(rootschemas.Roles, items); err != nil {
		return fmt.Errorf("role analysis output rejected: %w", err)
	}

	var roles []types.Role
	if err := llm.DecodeInto(items, &roles); err != nil {
		return fmt.Errorf("failed to decode roles: %w", err)
	}
	s.Roles = roles
	return nil
}

// retrieveCandidates runs one similarity search per role. Results are not
// deduplicated: a developer may be proposed for several roles.
func (p *Pipeline) retrieveCandidates(ctx context.Context, s *State) error {
	s.Candidates = []types.Candidate{}
	if p.Searcher == nil && len(s.Roles) > 0 {
		return fmt.Errorf("no vector searcher configured")
	}

	var failed []string
	var lastErr error
	for _, role := range s.Roles {
		query := strings.Join(role.Skills, " ")
		if strings.TrimSpace(query) == "" {
			query = role.Role
		}

		matches, err := p.Searcher.Search(ctx, query, p.topK())
		if err != nil {
			failed = append(failed, role.Role)
			lastErr = err
			continue
		}

		for _, m := range matches {
			s.Candidates = append(s.Candidates, candidateFrom(role.Role, m))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("search failed for roles %s: %w", strings.Join(failed, ", "), lastErr)
	}
	return nil
}

func candidateFrom(role string, m vector.Match) types.Candidate {
	tz := m.Profile.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return types.Candidate{
		Role:              role,
		Name:              m.Profile.Name,
		Username:          m.Profile.Username,
		Email:             m.Profile.Email,
		Skills:            m.Profile.SkillsText,
		SimilarityScore:   m.Score,
		AvailabilityHours: m.Profile.AvailabilityHours,
		Timezone:          tz,
	}
}

func (p *Pipeline) filterCandidates(_ context.Context, s *State) error {
	s.Candidates = p.scorer().FilterByTimezone(s.Candidates, s.OwnerTimezone, p.maxDiff())
	return nil
}

// rankCandidates scores every candidate with a single model call. Candidates the
// model skipped, or every candidate when the call fails, fall back to their
// similarity score.
func (p *Pipeline) rankCandidates(ctx context.Context, s *State) error {
	s.Recommendations = []types.Recommendation{}
	if len(s.Candidates) == 0 {
		return nil
	}

	evaluations, rankErr := p.evaluate(ctx, s)
	s.Recommendations = Merge(s.Candidates, evaluations)
	return rankErr
}

func (p *Pipeline) evaluate(ctx context.Context, s *State) (map[string]types.CandidateEvaluation, error) {
	candidatesJSON, err := json.MarshalIndent(s.Candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	system, user := prompts.MustRender(prompts.TeamFormation, "candidate-evaluation", map[string]string{
		"ProjectTitle":   s.ProjectTitle,
		"RequiredSkills": strings.Join(s.RequiredSkills, ", "),
		"CandidatesJSON": string(candidatesJSON),
	})
	value, raw, err := llm.GenerateJSON(ctx, p.LLM, system, user, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("candidate ranking call failed: %w", err)
	}

	items, ok := value.Unwrap("evaluations")
	if !ok {
		return nil, fmt.Errorf("candidate ranking returned no evaluation list: %s", llm.Preview(raw, 200))
	}
	if err := schemas.ValidateValue(rootschemas.Evaluations, items); err != nil {
		// malformed entries are skipped below; the rest still count
		logging.ForPipeline(p.Logger, PipelineName, s.ProjectID).Warn("candidate evaluations do not match schema", "error", err)
	}

	lookup := make(map[string]types.CandidateEvaluation, len(items))
	for _, item := range items {
		var ev types.CandidateEvaluation
		if err := llm.DecodeInto(item, &ev); err != nil || ev.Email == "" {
			continue
		}
		if _, dup := lookup[ev.Email]; !dup {
			lookup[ev.Email] = ev
		}
	}
	return lookup, nil
}

// Merge joins candidates with model evaluations by email. Every candidate yields
// exactly one recommendation; the result is sorted by match score, highest first,
// keeping input order among equal scores.
func Merge(candidates []types.Candidate, evaluations map[string]types.CandidateEvaluation) []types.Recommendation {
	recs := make([]types.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		rec := types.Recommendation{
			Candidate:  c,
			MatchScore: clampScore(math.Round(c.SimilarityScore * 100)),
			Reasoning:  FallbackReasoning,
		}
		if ev, ok := evaluations[c.Email]; ok {
			if ev.MatchScore != nil {
				rec.MatchScore = clampScore(math.Round(*ev.MatchScore))
			}
			if strings.TrimSpace(ev.Reasoning) != "" {
				rec.Reasoning = ev.Reasoning
			}
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MatchScore > recs[j].MatchScore })
	return recs
}

func clampScore(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}
