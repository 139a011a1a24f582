package teamformation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/teamforge/internal/agents"
	"github.com/jonathan/teamforge/internal/llm"
	"github.com/jonathan/teamforge/internal/llm/llmtest"
	"github.com/jonathan/teamforge/internal/timezone"
	"github.com/jonathan/teamforge/internal/types"
	"github.com/jonathan/teamforge/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var winter = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]vector.Match
	fail    map[string]error
	all     []vector.Match
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]vector.Match, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if err := f.fail[query]; err != nil {
		return nil, err
	}
	res, ok := f.results[query]
	if !ok {
		res = f.all
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func match(email, tz string, score float64) vector.Match {
	return vector.Match{
		Profile: types.ProfileMetadata{
			Name:       strings.Split(email, "@")[0],
			Email:      email,
			Timezone:   tz,
			SkillsText: "React Node",
		},
		Score: score,
	}
}

func newTestPipeline(mock *llmtest.MockClient, searcher vector.Searcher) *Pipeline {
	p := New(mock, searcher)
	p.Scorer = &timezone.Scorer{Now: func() time.Time { return winter }}
	return p
}

func happyPathSearcher() *fakeSearcher {
	return &fakeSearcher{all: []vector.Match{
		match("asha@x.io", "IST", 0.91),
		match("ravi@x.io", "IST", 0.88),
		match("pat@x.io", "PST", 0.86),
		match("omar@x.io", "GST", 0.80),
		match("uma@x.io", "UTC", 0.75),
	}}
}

func TestRun_HappyPath(t *testing.T) {
	mock := &llmtest.MockClient{CompleteFunc: llmtest.Route(map[string]string{
		"identify the specific team roles": "```json\n[{\"role\": \"Full Stack\", \"count\": 2, \"skills\": [\"React\", \"Node\"]}]\n```",
		"Candidates (with their email":     `[{"email": "omar@x.io", "match_score": 95, "reasoning": "Strong Node."}, {"email": "asha@x.io", "match_score": 70, "reasoning": "Good React."}]`,
	}, "")}
	searcher := happyPathSearcher()

	res := newTestPipeline(mock, searcher).Run(context.Background(), Input{
		ProjectID:      "p-1",
		ProjectTitle:   "Marketplace",
		RequiredSkills: []string{"React", "Node"},
		OwnerTimezone:  "IST",
	}, RunOptions{})

	require.Nil(t, res.Error)
	assert.Equal(t, []string{"React Node"}, searcher.queries)
	require.Len(t, res.Recommendations, 3)

	emails := make([]string, len(res.Recommendations))
	for i, r := range res.Recommendations {
		emails[i] = r.Email
		assert.Equal(t, "Full Stack", r.Role)
		require.NotNil(t, r.TimezoneDiff)
		assert.LessOrEqual(t, *r.TimezoneDiff, 4.0)
	}
	// omar 95, ravi falls back to round(0.88*100), asha 70
	assert.Equal(t, []string{"omar@x.io", "ravi@x.io", "asha@x.io"}, emails)
	assert.Equal(t, 95, res.Recommendations[0].MatchScore)
	assert.Equal(t, 88, res.Recommendations[1].MatchScore)
	assert.Equal(t, FallbackReasoning, res.Recommendations[1].Reasoning)
	assert.InDelta(t, 1.5, *res.Recommendations[0].TimezoneDiff, 1e-9)

	assert.Len(t, mock.Calls(), 2)
}

func TestRun_RolesWrappedInObject(t *testing.T) {
	mock := &llmtest.MockClient{CompleteFunc: llmtest.Route(map[string]string{
		"identify the specific team roles": `{"roles": [{"role": "Frontend", "count": 1, "skills": []}, {"role": "Backend", "count": 1, "skills": ["Go"]}]}`,
		"Candidates (with their email":     `[]`,
	}, "")}
	searcher := &fakeSearcher{all: []vector.Match{match("a@x.io", "UTC", 0.5)}}

	res := newTestPipeline(mock, searcher).Run(context.Background(), Input{ProjectID: "p"}, RunOptions{})

	require.Nil(t, res.Error)
	assert.Equal(t, []string{"Frontend", "Go"}, searcher.queries, "empty skills fall back to the role name")
	// the same developer is proposed once per role
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Frontend", res.Recommendations[0].Role)
	assert.Equal(t, "Backend", res.Recommendations[1].Role)
	assert.Equal(t, 50, res.Recommendations[0].MatchScore)
}

func TestRun_RoleAnalysisUnparseable(t *testing.T) {
	mock := &llmtest.MockClient{DefaultResponse: "I cannot help with that."}
	searcher := &fakeSearcher{}

	res := newTestPipeline(mock, searcher).Run(context.Background(), Input{ProjectID: "p"}, RunOptions{})

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, StageRoleAnalysis)
	assert.Empty(t, res.Recommendations)
	assert.NotNil(t, res.Recommendations)
	assert.Empty(t, searcher.queries)
	assert.Len(t, mock.Calls(), 1, "ranking is skipped when there are no candidates")
}

func TestRun_RoleAnalysisShapeRejected(t *testing.T) {
	mock := &llmtest.MockClient{DefaultResponse: `[{"count": 1}]`}
	res := newTestPipeline(mock, &fakeSearcher{}).Run(context.Background(), Input{}, RunOptions{})
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "rejected")
}

func TestRun_RankingFailureFallsBackToSimilarity(t *testing.T) {
	calls := 0
	mock := &llmtest.MockClient{CompleteFunc: func(_ context.Context, _, user string, _ llm.ModelTier) (string, error) {
		calls++
		if strings.Contains(user, "Candidates (with their email") {
			return "", errors.New("rate limited")
		}
		return `[{"role": "Dev", "count": 1, "skills": ["React"]}]`, nil
	}}
	searcher := &fakeSearcher{all: []vector.Match{
		match("low@x.io", "UTC", 0.41),
		match("high@x.io", "UTC", 0.93),
		match("over@x.io", "UTC", 1.7),
	}}

	res := newTestPipeline(mock, searcher).Run(context.Background(), Input{}, RunOptions{})

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "rate limited")
	require.Len(t, res.Recommendations, 3)
	assert.Equal(t, []int{100, 93, 41}, scores(res.Recommendations))
	for _, r := range res.Recommendations {
		assert.Equal(t, FallbackReasoning, r.Reasoning)
	}
}

func TestRun_PartialSearchFailure(t *testing.T) {
	mock := &llmtest.MockClient{CompleteFunc: llmtest.Route(map[string]string{
		"identify the specific team roles": `[{"role": "A", "skills": ["broken"]}, {"role": "B", "skills": ["ok"]}]`,
	}, "[]")}
	searcher := &fakeSearcher{
		all:  []vector.Match{match("b@x.io", "UTC", 0.6)},
		fail: map[string]error{"broken": errors.New("index offline")},
	}

	res := newTestPipeline(mock, searcher).Run(context.Background(), Input{}, RunOptions{})

	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "index offline")
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "B", res.Recommendations[0].Role)
}

func TestRun_ProgressEvents(t *testing.T) {
	mock := &llmtest.MockClient{CompleteFunc: llmtest.Route(map[string]string{
		"identify the specific team roles": `[{"role": "Dev", "skills": ["Go"]}]`,
	}, "[]")}
	var stages []string
	newTestPipeline(mock, happyPathSearcher()).Run(context.Background(), Input{}, RunOptions{
		OnProgress: func(e agents.ProgressEvent) {
			if e.Status == agents.StatusCompleted {
				stages = append(stages, e.Stage)
			}
		},
	})
	assert.Equal(t, []string{StageRoleAnalysis, StageCandidateRetrieval, StageCandidateFilter, StageCandidateRanking}, stages)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &llmtest.MockClient{}

	res := newTestPipeline(mock, &fakeSearcher{}).Run(ctx, Input{}, RunOptions{})

	require.NotNil(t, res.Error)
	assert.Empty(t, mock.Calls())
	assert.NotNil(t, res.Recommendations)
}

func TestMerge(t *testing.T) {
	candidates := []types.Candidate{
		{Email: "a", SimilarityScore: 0.5},
		{Email: "b", SimilarityScore: 0.5},
		{Email: "c", SimilarityScore: 0.2},
		{Email: "d", SimilarityScore: 0.9},
		{Email: "a", SimilarityScore: 0.1, Role: "second role"},
		{Email: "e", SimilarityScore: 0.9},
	}
	evals := map[string]types.CandidateEvaluation{
		"c": {Email: "c", MatchScore: scoreOf(250), Reasoning: "overflow"},
		"d": {Email: "d", MatchScore: scoreOf(-3)},
		"e": {Email: "e", Reasoning: "strong backend match"},
	}

	recs := Merge(candidates, evals)

	require.Len(t, recs, len(candidates), "one recommendation per candidate")
	assert.Equal(t, []string{"c", "e", "a", "b", "a", "d"}, recEmails(recs))
	assert.Equal(t, []int{100, 90, 50, 50, 10, 0}, scores(recs))
	assert.Equal(t, "strong backend match", recs[1].Reasoning, "missing score keeps similarity but takes reasoning")
	assert.Equal(t, FallbackReasoning, recs[5].Reasoning, "blank reasoning keeps the fallback")
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].MatchScore, recs[i].MatchScore)
	}
}

func scoreOf(v float64) *float64 { return &v }

func TestMerge_Empty(t *testing.T) {
	recs := Merge(nil, nil)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestNewState_Defaults(t *testing.T) {
	s := NewState(Input{})
	assert.Equal(t, "UTC", s.OwnerTimezone)
	assert.Equal(t, 4, s.TeamSize)
	assert.Equal(t, "4 weeks", s.Timeline)
	assert.Nil(t, s.Error)

	s.RecordError("first")
	s.RecordError("second")
	assert.Equal(t, "second", *s.Error)
}

func scores(recs []types.Recommendation) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.MatchScore
	}
	return out
}

func recEmails(recs []types.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Email
	}
	return out
}

func TestInputFromProject(t *testing.T) {
	p := &types.Project{
		ID:                "p-1",
		Title:             "Payments",
		RequiredSkills:    []string{"Go"},
		TeamSizeMin:       2,
		EstimatedDuration: "6 weeks",
	}
	in := InputFromProject(p, "Asia/Kolkata")
	assert.Equal(t, "p-1", in.ProjectID)
	assert.Equal(t, "Payments", in.ProjectTitle)
	assert.Equal(t, 2, in.TeamSize, "falls back to the minimum size")
	assert.Equal(t, "6 weeks", in.Timeline)
	assert.Equal(t, "Asia/Kolkata", in.OwnerTimezone)

	p.TeamSizeMax = 5
	assert.Equal(t, 5, InputFromProject(p, "").TeamSize)
}
