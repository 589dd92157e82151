package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *app {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return &app{cfg: config.Default(), logger: logger}
}

func TestShowAcceptsManifestPathArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := manifest.New("https://github.com/acme/widget", "main", "sha-1", time.Now())
	require.NoError(t, manifest.NewStore().Save(path, m))

	cmd := newShowCmd(testApp(t))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{path})
	assert.NoError(t, cmd.Execute())
}

func TestShowRejectsMissingManifest(t *testing.T) {
	cmd := newShowCmd(testApp(t))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.json")})
	err := cmd.Execute()
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}

func TestAnalyzeTokensRequiresManifest(t *testing.T) {
	cmd := newAnalyzeTokensCmd(testApp(t))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.json")})
	err := cmd.Execute()
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}
