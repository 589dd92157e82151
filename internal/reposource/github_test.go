package reposource

import (
	"strings"
	"testing"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		in    string
		owner string
		repo  string
	}{
		{"https://github.com/acme/widget", "acme", "widget"},
		{"https://github.com/acme/widget.git", "acme", "widget"},
		{"https://github.com/acme/widget/", "acme", "widget"},
		{"http://github.com/acme/widget", "acme", "widget"},
		{"git@github.com:acme/widget.git", "acme", "widget"},
		{"acme/widget", "acme", "widget"},
	}
	for _, c := range cases {
		owner, repo, err := ParseRepoURL(c.in)
		require.NoError(t, err, "url=%s", c.in)
		assert.Equal(t, c.owner, owner, "url=%s", c.in)
		assert.Equal(t, c.repo, repo, "url=%s", c.in)
	}
}

func TestParseRepoURLRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "widget", "a/b/c", "https://github.com/", "https://github.com/acme"} {
		_, _, err := ParseRepoURL(in)
		assert.True(t, errors.IsKind(err, errors.KindConfigInvalid), "url=%s", in)
	}
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	c, err := NewClient("acme/widget", "", "", 0, nil, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", c.client.BaseURL.String())
}

func TestNewClientEnterpriseBaseURL(t *testing.T) {
	c, err := NewClient("acme/widget", "", "https://ghe.example.com", 0, nil, logrus.New())
	require.NoError(t, err)
	base := c.client.BaseURL.String()
	assert.Contains(t, base, "ghe.example.com")
	assert.True(t, strings.HasSuffix(base, "/api/v3/"), "base=%s", base)
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := NewClient("acme/widget", "", "://bad", 0, nil, logrus.New())
	assert.True(t, errors.IsKind(err, errors.KindConfigInvalid))
}
