package reposource

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FileMeta describes one blob in the repository tree.
type FileMeta struct {
	Path   string
	BlobID string
	Size   int64
}

// Source yields file paths, blob identities and bytes for a repository at
// a pinned revision. Implemented against the GitHub API; the analyzer and
// phase controller only see this interface.
type Source interface {
	Resolve(ctx context.Context) (defaultBranch, commitSHA string, err error)
	ListFiles(ctx context.Context, commitSHA string) ([]FileMeta, error)
	FetchBlob(ctx context.Context, blobID string) ([]byte, error)
	Clone(ctx context.Context, commitSHA, destDir string) error
	URL() string
}

// Client wraps the GitHub API client with rate limiting, retry and an
// optional on-disk blob cache. Safe for concurrent use by analyzer workers.
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	retry       Backoff
	cache       *BlobCache
	logger      *logrus.Entry

	repoURL string
	owner   string
	repo    string
}

// NewClient creates a GitHub-backed source for repoURL. A non-empty
// baseURL points the API client at a GitHub Enterprise host. A non-nil
// cache memoizes FetchBlob results by blob identity (content-addressed,
// so no invalidation is needed).
func NewClient(repoURL, token, baseURL string, rateLimit int, cache *BlobCache, logger *logrus.Logger) (*Client, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfigInvalid, "configure GitHub base URL")
		}
	}
	return &Client{
		client:      gh,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		retry:       DefaultBackoff(),
		cache:       cache,
		logger:      logger.WithField("component", "reposource"),
		repoURL:     repoURL,
		owner:       owner,
		repo:        repo,
	}, nil
}

// URL returns the origin repository URL.
func (c *Client) URL() string { return c.repoURL }

// ParseRepoURL extracts owner and repo from a GitHub URL or "owner/repo"
// shorthand.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	path := repoURL
	if strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://") {
		u, err := url.Parse(repoURL)
		if err != nil {
			return "", "", errors.Wrap(err, errors.KindConfigInvalid, "parse repository URL")
		}
		path = strings.Trim(u.Path, "/")
	} else if strings.HasPrefix(repoURL, "git@") {
		// git@github.com:owner/repo.git
		if i := strings.Index(repoURL, ":"); i >= 0 {
			path = strings.Trim(repoURL[i+1:], "/")
		}
	}
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Newf(errors.KindConfigInvalid, "invalid repository URL %q", repoURL)
	}
	return parts[0], parts[1], nil
}

// Resolve pins the default branch and its head commit. Called once per run;
// all later fetches use the returned commit.
func (c *Client) Resolve(ctx context.Context) (string, string, error) {
	var branch, sha string
	err := c.retry.Do(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		repo, _, err := c.client.Repositories.Get(ctx, c.owner, c.repo)
		if err != nil {
			return classify(err)
		}
		branch = repo.GetDefaultBranch()

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		b, _, err := c.client.Repositories.GetBranch(ctx, c.owner, c.repo, branch, 0)
		if err != nil {
			return classify(err)
		}
		sha = b.GetCommit().GetSHA()
		return nil
	})
	if err != nil {
		return "", "", err
	}
	c.logger.WithFields(logrus.Fields{"branch": branch, "commit": sha}).Info("repository resolved")
	return branch, sha, nil
}

// ListFiles enumerates blobs reachable from commitSHA, recursively, in
// lexicographic path order. Submodules (tree entries of type "commit") and
// symlinks (mode 120000) are excluded.
func (c *Client) ListFiles(ctx context.Context, commitSHA string) ([]FileMeta, error) {
	var tree *github.Tree
	err := c.retry.Do(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		t, _, err := c.client.Git.GetTree(ctx, c.owner, c.repo, commitSHA, true)
		if err != nil {
			return classify(err)
		}
		tree = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make([]FileMeta, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if entry.GetMode() == "120000" { // symlink
			continue
		}
		files = append(files, FileMeta{
			Path:   entry.GetPath(),
			BlobID: entry.GetSHA(),
			Size:   int64(entry.GetSize()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	c.logger.WithField("files", len(files)).Debug("tree listed")
	return files, nil
}

// FetchBlob retrieves raw blob bytes by identity, consulting the cache
// first.
func (c *Client) FetchBlob(ctx context.Context, blobID string) ([]byte, error) {
	if c.cache != nil {
		if data, ok := c.cache.Get(blobID); ok {
			return data, nil
		}
	}

	var data []byte
	err := c.retry.Do(ctx, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		blob, _, err := c.client.Git.GetBlob(ctx, c.owner, c.repo, blobID)
		if err != nil {
			return classify(err)
		}
		raw := blob.GetContent()
		if blob.GetEncoding() == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw, "\n", ""))
			if err != nil {
				return errors.Wrap(err, errors.KindSourceUnavailable, "decode blob")
			}
			data = decoded
			return nil
		}
		data = []byte(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(blobID, data); err != nil {
			c.logger.WithError(err).Warn("blob cache write failed")
		}
	}
	return data, nil
}

// Clone materializes a working tree at exactly commitSHA in destDir.
// Uses the git CLI: fetching an arbitrary commit needs a real clone, which
// the REST API does not provide.
func (c *Client) Clone(ctx context.Context, commitSHA, destDir string) error {
	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", c.owner, c.repo)

	cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", cloneURL, destDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out))),
			errors.KindSourceUnavailable, "git clone")
	}

	cmd = exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "--quiet", "--detach", commitSHA)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(fmt.Errorf("%v: %s", err, strings.TrimSpace(string(out))),
			errors.KindSourceUnavailable, "git checkout")
	}
	return nil
}

// classify maps go-github errors onto the pipeline taxonomy: throttling is
// retryable, 5xx is retryable, permanent host errors abort the phase.
func classify(err error) error {
	switch e := err.(type) {
	case *github.RateLimitError, *github.AbuseRateLimitError:
		return errors.Wrap(err, errors.KindRateLimited, "github throttled")
	case *github.ErrorResponse:
		if e.Response != nil {
			code := e.Response.StatusCode
			switch {
			case code == 429:
				return errors.Wrap(err, errors.KindRateLimited, "github throttled")
			case code >= 500:
				return errors.Wrap(err, errors.KindRateLimited, "github transient error")
			case code == 401 || code == 403 || code == 404:
				return errors.Wrap(err, errors.KindSourceUnavailable, "github permanent error")
			}
		}
	}
	return errors.Wrap(err, errors.KindSourceUnavailable, "github request failed")
}
