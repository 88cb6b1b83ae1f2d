package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"mapagov/internal/catalog"
	"mapagov/internal/config"
	"mapagov/internal/store"
)

func TestMain(m *testing.M) {
	// The genai client starts an opencensus stats worker with no shutdown hook.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// stubEngine returns canned vectors per normalized text, a fallback for
// everything else, or a fixed error.
type stubEngine struct {
	vectors  map[string][]float32
	fallback []float32
	err      error

	mu    sync.Mutex
	calls int
}

func (s *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return s.fallback, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var err error
		if out[i], err = s.Embed(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 2 }
func (s *stubEngine) Name() string    { return "stub:test" }

func (s *stubEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubLabeler returns sequentially numbered labels, or a fixed error.
type stubLabeler struct {
	prefix string
	err    error

	mu  sync.Mutex
	seq int
}

func (s *stubLabeler) ActivityLabel(ctx context.Context, description string, anchor catalog.Anchor) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s %d", s.prefix, s.seq), nil
}

func testCfg() config.PipelineConfig {
	return config.Default().Pipeline
}

func newTestStore(t *testing.T) *store.CatalogStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.SeedDemo()
	require.NoError(t, err)
	return s
}

var testAuthor = catalog.Author{Name: "Maria Silva", ID: "srv-001"}

func TestResolveValidation(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	_, err := p.Resolve(context.Background(), "", "CGBEN", testAuthor)
	require.ErrorIs(t, err, ErrValidation)

	_, err = p.Resolve(context.Background(), "analisar algo", "   ", testAuthor)
	require.ErrorIs(t, err, ErrValidation)
}

func TestResolveExact(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	res, err := p.Resolve(context.Background(), "Conceder benefício estatutário geral", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginMatchExact, res.Origin)
	require.Equal(t, 1.0, res.Score)
	require.True(t, res.Success)
	require.NotNil(t, res.Activity)
	require.Equal(t, "Conceder benefício estatutário geral", res.Activity.Activity)
	require.ElementsMatch(t, []Action{ActionConfirm, ActionSelectManually}, res.Actions)
}

func TestResolveExactIgnoresCaseAndDiacritics(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	res, err := p.Resolve(context.Background(), "  conceder BENEFICIO estatutario geral ", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginMatchExact, res.Origin)
}

func TestResolveFuzzy(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	// One edit away from a seeded entry, equal to none.
	res, err := p.Resolve(context.Background(), "Conceder benefício estatutário gera", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginMatchFuzzy, res.Origin)
	require.True(t, res.Success)
	require.Greater(t, res.Score, 0.82)
	require.Less(t, res.Score, 1.0)
	require.NotNil(t, res.Activity)
	require.Equal(t, "Conceder benefício estatutário geral", res.Activity.Activity)
	require.NotEmpty(t, res.Candidates)
	require.LessOrEqual(t, len(res.Candidates), testCfg().MaxCandidates)
}

func TestResolveSemantic(t *testing.T) {
	s := newTestStore(t)

	target := catalog.Normalize("Analisar requerimento de aposentadoria")
	query := catalog.Normalize("analiso aposentadorias")
	engine := &stubEngine{
		vectors: map[string][]float32{
			target: {0.95, 0.05},
			query:  {1, 0},
		},
		fallback: []float32{0, 1},
	}

	entries, err := s.Entries("CGBEN")
	require.NoError(t, err)
	require.NoError(t, s.IndexEntries(context.Background(), engine, nil, entries))

	p := New(s, engine, nil, testCfg(), 0)
	res, err := p.Resolve(context.Background(), "analiso aposentadorias", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginSemantic, res.Origin)
	require.True(t, res.Success)
	require.Greater(t, res.Score, 0.75)
	require.NotNil(t, res.Activity)
	require.Equal(t, "Analisar requerimento de aposentadoria", res.Activity.Activity)
	require.LessOrEqual(t, len(res.Candidates), testCfg().MaxCandidates)
	for _, c := range res.Candidates {
		require.Equal(t, StrategySemantic, c.Strategy)
	}
}

func TestResolveDropdownWhenNothingQualifies(t *testing.T) {
	s := newTestStore(t)

	// Orthogonal query vector: semantic scores are all ~0.
	engine := &stubEngine{fallback: []float32{0, 1}, vectors: map[string][]float32{}}
	entries, err := s.Entries("CGTIC")
	require.NoError(t, err)
	require.NoError(t, s.IndexEntries(context.Background(), engine, nil, entries))
	engine.vectors[catalog.Normalize("desenvolvo sistemas de machine learning para previsão de demandas")] = []float32{1, 0}

	p := New(s, engine, nil, testCfg(), 0)
	res, err := p.Resolve(context.Background(), "desenvolvo sistemas de machine learning para previsão de demandas", "CGTIC", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginDropdownRequired, res.Origin)
	require.False(t, res.Success)
	require.Nil(t, res.Activity)
	require.Equal(t, []Action{ActionSelectManually}, res.Actions)
	require.NotEmpty(t, res.Hierarchy)
	require.NotEmpty(t, res.Hierarchy.Processes("Gestão de Tecnologia da Informação"))
}

func TestResolveSemanticDegradesOnProviderOutage(t *testing.T) {
	s := newTestStore(t)
	engine := &stubEngine{err: errors.New("provider unreachable")}

	p := New(s, engine, nil, testCfg(), 0)
	res, err := p.Resolve(context.Background(), "atividade totalmente desconhecida", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginDropdownRequired, res.Origin)
	require.NotEmpty(t, res.Hierarchy)
}

func TestResolveEarlyExitSkipsEmbedding(t *testing.T) {
	engine := &stubEngine{fallback: []float32{1, 0}}
	p := New(newTestStore(t), engine, nil, testCfg(), 0)

	_, err := p.Resolve(context.Background(), "Conceder benefício estatutário geral", "CGBEN", testAuthor)
	require.NoError(t, err)
	require.Zero(t, engine.callCount(), "exact match must not trigger paid embedding calls")
}

func TestResolveIdempotent(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	a, err := p.Resolve(context.Background(), "Conceder benefício estatutário gera", "CGBEN", testAuthor)
	require.NoError(t, err)
	b, err := p.Resolve(context.Background(), "Conceder benefício estatutário gera", "CGBEN", testAuthor)
	require.NoError(t, err)

	require.Equal(t, a.Origin, b.Origin)
	require.Equal(t, a.Activity, b.Activity)
	require.Equal(t, a.Score, b.Score)
}

func TestBrowseHierarchy(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	h, err := p.BrowseHierarchy()
	require.NoError(t, err)
	require.NotEmpty(t, h)
	// Every leaf list is non-empty.
	for _, macro := range h.Macroprocesses() {
		for _, proc := range h.Processes(macro) {
			for _, sub := range h.Subprocesses(macro, proc) {
				require.NotEmpty(t, h.Activities(macro, proc, sub))
			}
		}
	}
}

func TestProposeWithAnchor(t *testing.T) {
	p := New(newTestStore(t), nil, nil, testCfg(), 0)

	_, err := p.ProposeWithAnchor(catalog.Anchor{Macroprocess: "só o macro"})
	require.ErrorIs(t, err, ErrValidation)

	// A complete anchor still has to name a real hierarchy path.
	_, err = p.ProposeWithAnchor(catalog.Anchor{
		Macroprocess: "Gestão de Tecnologia da Informação",
		Process:      "Governança de TI",
		Subprocess:   "Subprocesso inexistente",
	})
	require.ErrorIs(t, err, ErrValidation)

	anchor := catalog.Anchor{
		Macroprocess: "Gestão de Tecnologia da Informação",
		Process:      "Governança de TI",
		Subprocess:   "Planejamento",
	}
	res, err := p.ProposeWithAnchor(anchor)
	require.NoError(t, err)
	require.Equal(t, OriginRAGAwaiting, res.Origin)
	require.True(t, res.Success)
	require.NotNil(t, res.InheritedHierarchy)
	require.Equal(t, anchor, *res.InheritedHierarchy)
	require.Nil(t, res.Activity)
}

func TestFinalizeWithDescription(t *testing.T) {
	s := newTestStore(t)
	engine := &stubEngine{fallback: []float32{1, 0}}
	labeler := &stubLabeler{prefix: "Desenvolver modelos de aprendizado de máquina"}
	p := New(s, engine, labeler, testCfg(), 0)

	anchor := catalog.Anchor{
		Macroprocess: "Gestão de Tecnologia da Informação",
		Process:      "Governança de TI",
		Subprocess:   "Planejamento",
	}
	res, err := p.FinalizeWithDescription(context.Background(), "desenvolvo sistemas de machine learning", anchor, "CGTIC", testAuthor)
	require.NoError(t, err)
	require.Equal(t, OriginNew, res.Origin)
	require.True(t, res.Success)
	require.Equal(t, catalog.CodeTypeGeneratedRAG, res.CodeType)
	require.NotNil(t, res.Activity)
	require.Equal(t, anchor.Macroprocess, res.Activity.Macroprocess)
	require.Equal(t, anchor.Process, res.Activity.Process)
	require.Equal(t, anchor.Subprocess, res.Activity.Subprocess)
	require.Equal(t, "CGTIC.GER.001", res.Activity.Code)
	require.Equal(t, catalog.CodeTypeGeneratedRAG, res.Activity.CodeType)

	// The minted entry is persisted and vector-indexed.
	entries, err := s.Entries("CGTIC")
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Code == res.Activity.Code {
			found = true
		}
	}
	require.True(t, found, "minted entry missing from catalog")

	n, err := s.VectorCount("CGTIC")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFinalizeValidation(t *testing.T) {
	p := New(newTestStore(t), nil, &stubLabeler{prefix: "X"}, testCfg(), 0)
	anchor := catalog.Anchor{
		Macroprocess: "Gestão de Tecnologia da Informação",
		Process:      "Governança de TI",
		Subprocess:   "Planejamento",
	}

	_, err := p.FinalizeWithDescription(context.Background(), "", anchor, "CGTIC", testAuthor)
	require.ErrorIs(t, err, ErrValidation)

	_, err = p.FinalizeWithDescription(context.Background(), "descrição", catalog.Anchor{}, "CGTIC", testAuthor)
	require.ErrorIs(t, err, ErrValidation)

	// Anchors pointing outside the known hierarchy are rejected before any
	// generative call or code allocation.
	fake := catalog.Anchor{Macroprocess: "Macro inventado", Process: "P", Subprocess: "S"}
	_, err = p.FinalizeWithDescription(context.Background(), "descrição", fake, "CGTIC", testAuthor)
	require.ErrorIs(t, err, ErrValidation)
}

func TestFinalizeLabelerFailureIsRetryable(t *testing.T) {
	s := newTestStore(t)
	labeler := &stubLabeler{err: errors.New("deadline exceeded")}
	p := New(s, nil, labeler, testCfg(), 0)

	before, err := s.Entries("CGTIC")
	require.NoError(t, err)

	anchor := catalog.Anchor{
		Macroprocess: "Gestão de Tecnologia da Informação",
		Process:      "Sustentação de Sistemas",
		Subprocess:   "Suporte",
	}
	res, err := p.FinalizeWithDescription(context.Background(), "descrição qualquer", anchor, "CGTIC", testAuthor)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
	require.Nil(t, res.Activity)

	// No half-allocated code: the catalog is unchanged.
	after, err := s.Entries("CGTIC")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestFinalizeConcurrentCodesAreUnique(t *testing.T) {
	s := newTestStore(t)
	labeler := &stubLabeler{prefix: "Executar atividade gerada"}
	p := New(s, nil, labeler, testCfg(), 0)

	anchor := catalog.Anchor{
		Macroprocess: "Gestão de Benefícios",
		Process:      "Concessão de Benefícios",
		Subprocess:   "Aposentadoria",
	}

	const n = 16
	results := make([]*Result, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := p.FinalizeWithDescription(context.Background(), fmt.Sprintf("descrição %d", i), anchor, "CGBEN", testAuthor)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("finalize failed: %s", res.Error)
			}
			results[i] = res
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for _, res := range results {
		require.NotNil(t, res.Activity)
		require.False(t, seen[res.Activity.Code], "duplicate code %s", res.Activity.Code)
		seen[res.Activity.Code] = true
	}
	require.Len(t, seen, n)
}
