package phase

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/llm"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a fixed tree at a fixed head commit.
type fakeSource struct {
	sha   string
	files map[string]string
}

func (s *fakeSource) Resolve(ctx context.Context) (string, string, error) {
	return "main", s.sha, nil
}

func (s *fakeSource) ListFiles(ctx context.Context, commitSHA string) ([]reposource.FileMeta, error) {
	var out []reposource.FileMeta
	for path, content := range s.files {
		out = append(out, reposource.FileMeta{Path: path, BlobID: "blob-" + path, Size: int64(len(content))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *fakeSource) FetchBlob(ctx context.Context, blobID string) ([]byte, error) {
	for path, content := range s.files {
		if "blob-"+path == blobID {
			return []byte(content), nil
		}
	}
	return nil, errors.Newf(errors.KindSourceUnavailable, "no blob %s", blobID)
}

func (s *fakeSource) Clone(ctx context.Context, commitSHA, destDir string) error { return nil }

func (s *fakeSource) URL() string { return "https://github.com/acme/widget" }

// echoProvider answers every classification with a fixed verdict.
type echoProvider struct{}

func (echoProvider) Name() string                             { return "echo" }
func (echoProvider) TestConnection(ctx context.Context) error { return nil }
func (echoProvider) Classify(ctx context.Context, path, extension string, content []byte) (*llm.Classification, error) {
	return &llm.Classification{
		Purpose:           "Test fixture",
		Category:          manifest.CategoryOther,
		Confidence:        0.8,
		SecurityRelevance: "low",
		Reasoning:         "fixture",
		Provider:          "echo",
		Model:             "echo-1",
	}, nil
}

func init() {
	llm.Register("echo", func(cfg *config.Config, logger *logrus.Logger) (llm.Provider, error) {
		return echoProvider{}, nil
	})
}

func testController(t *testing.T, source reposource.Source) (*Controller, *config.Config, string) {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.DefaultProvider = "echo"
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := NewController(source, cfg, manifest.NewStore(), logger)
	return c, cfg, filepath.Join(t.TempDir(), "manifest.json")
}

func defaultTree() map[string]string {
	return map[string]string{
		"README.md":   "# readme",
		"app/auth.py": "def login(): pass",
		"app/main.py": "print('hi')",
	}
}

func TestInventoryCreatesManifest(t *testing.T) {
	c, _, path := testController(t, &fakeSource{sha: "sha-1", files: defaultTree()})

	result, err := c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Inventory}})
	require.NoError(t, err)
	assert.Equal(t, []Phase{Inventory}, result.Ran)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sha-1", m.Repository.CommitSHA)
	assert.Equal(t, "main", m.Repository.DefaultBranch)
	require.Len(t, m.Files, 3)
	assert.Equal(t, "README.md", m.Files[0].Path)
	assert.Equal(t, ".md", m.Files[0].Extension)
	assert.Equal(t, "app/auth.py", m.Files[1].Path)
}

func TestInventoryEmptyRepository(t *testing.T) {
	c, _, path := testController(t, &fakeSource{sha: "sha-1", files: nil})

	_, err := c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Inventory}})
	require.NoError(t, err)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.Empty(t, m.Files)
	assert.Equal(t, "sha-1", m.Repository.CommitSHA)
}

func TestInventoryRejectsStaleManifest(t *testing.T) {
	source := &fakeSource{sha: "sha-2", files: defaultTree()}
	c, _, path := testController(t, source)

	stale := manifest.New(source.URL(), "main", "sha-1", testTime())
	require.NoError(t, manifest.NewStore().Save(path, stale))

	_, err := c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Inventory}})
	assert.True(t, errors.IsKind(err, errors.KindStaleManifest))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestLaterPhaseRejectsStaleManifest(t *testing.T) {
	source := &fakeSource{sha: "sha-2", files: defaultTree()}
	c, _, path := testController(t, source)

	stale := manifest.New(source.URL(), "main", "sha-1", testTime())
	require.NoError(t, manifest.NewStore().Save(path, stale))

	// The head moved after inventory: token accounting alone must refuse
	// to enrich the old pin.
	_, err := c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Tokens}})
	assert.True(t, errors.IsKind(err, errors.KindStaleManifest))
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestLaterPhaseRequiresManifest(t *testing.T) {
	c, _, path := testController(t, &fakeSource{sha: "sha-1", files: defaultTree()})

	_, err := c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Tokens}})
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}

func TestTokensPhaseAnnotatesAnalyzableFiles(t *testing.T) {
	c, cfg, path := testController(t, &fakeSource{sha: "sha-1", files: defaultTree()})

	_, err := c.Run(context.Background(), Options{
		ManifestPath: path,
		Phases:       []Phase{Inventory, Tokens},
		TokenReport:  true,
	})
	require.NoError(t, err)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.Nil(t, m.Entry("README.md").TokenStats)
	require.NotNil(t, m.Entry("app/auth.py").TokenStats)
	assert.Equal(t, 150, m.Entry("app/auth.py").TokenStats.EstimatedResponseTokens)
	assert.Greater(t, m.Entry("app/auth.py").TokenStats.TotalTokens, 150)

	_, statErr := os.Stat(cfg.TokenAnalysisPath(path))
	assert.NoError(t, statErr)
}

func TestClassifyPhasePersistsResults(t *testing.T) {
	c, _, path := testController(t, &fakeSource{sha: "sha-1", files: defaultTree()})

	result, err := c.Run(context.Background(), Options{
		ManifestPath: path,
		Phases:       []Phase{Inventory, Classify},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Classify)
	assert.Equal(t, 2, result.Classify.Classified)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.False(t, m.Entry("README.md").Classified())
	assert.True(t, m.Entry("app/auth.py").Classified())
	assert.Equal(t, "echo", m.Entry("app/auth.py").Provider)
}

func TestClassifyPhaseHonorsDeclinedPreview(t *testing.T) {
	c, _, path := testController(t, &fakeSource{sha: "sha-1", files: defaultTree()})

	result, err := c.Run(context.Background(), Options{
		ManifestPath:   path,
		Phases:         []Phase{Inventory, Classify},
		ConfirmPreview: func(p *analyzer.Preview) bool { return false },
	})
	require.NoError(t, err)
	assert.True(t, result.PreviewDeclined)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.False(t, m.Entry("app/auth.py").Classified())
}

func TestRerunKeepsEarlierEnrichment(t *testing.T) {
	source := &fakeSource{sha: "sha-1", files: defaultTree()}
	c, _, path := testController(t, source)

	_, err := c.Run(context.Background(), Options{
		ManifestPath: path,
		Phases:       []Phase{Inventory, Classify},
	})
	require.NoError(t, err)

	// Running inventory again against the same head must not discard the
	// classification.
	_, err = c.Run(context.Background(), Options{ManifestPath: path, Phases: []Phase{Inventory}})
	require.NoError(t, err)

	m, err := manifest.NewStore().Load(path)
	require.NoError(t, err)
	assert.True(t, m.Entry("app/auth.py").Classified())
	assert.Equal(t, "Test fixture", m.Entry("app/auth.py").Purpose)
}

func testTime() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
