// Package source implements the source manager of spec §3.6 and §4.3: it
// turns a (source name, version constraint) pair into a resolved commit SHA
// and a checked-out worktree, backed by one bare clone per URL and a
// reference-counted pool of per-commit worktrees. Content reads are served
// from an in-memory cache keyed by (source, commit, path) and deduplicated
// across concurrent callers with golang.org/x/sync/singleflight, mirroring
// how the teacher's pkg/parser caches remote fetches.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/fsutil"
	"github.com/agpm-dev/agpm/pkg/globalconfig"
	"github.com/agpm-dev/agpm/pkg/gitutil"
	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/repoutil"
	"github.com/agpm-dev/agpm/pkg/version"
)

var log = logger.New("agpm:source")

const maxRetries = 4

// Manager is the source manager: one per install/update invocation.
type Manager struct {
	cacheDir string
	resolver globalconfig.Resolver

	gitSem chan struct{}
	group  singleflight.Group

	mu    sync.Mutex
	bares map[string]*bareRepo

	wtMu      sync.Mutex
	worktrees map[string]*worktreeEntry

	contentMu sync.Mutex
	content   map[contentKey][]byte
}

type bareRepo struct {
	mu          sync.Mutex // serializes ref resolution/fetches for one source
	dir         string
	url         string
	fetchedOnce bool
}

type worktreeEntry struct {
	mu       sync.Mutex
	path     string
	bareDir  string
	refcount int
}

type contentKey struct {
	source string
	commit string
	path   string
}

// NewManager constructs a Manager rooted at cacheDir (typically
// ~/.agpm/cache). gitConcurrency bounds parallel git subprocess
// invocations; a value <= 0 defaults to runtime.NumCPU().
func NewManager(cacheDir string, resolver globalconfig.Resolver, gitConcurrency int) *Manager {
	if gitConcurrency <= 0 {
		gitConcurrency = runtime.NumCPU()
	}
	return &Manager{
		cacheDir:  cacheDir,
		resolver:  resolver,
		gitSem:    make(chan struct{}, gitConcurrency),
		bares:     map[string]*bareRepo{},
		worktrees: map[string]*worktreeEntry{},
		content:   map[contentKey][]byte{},
	}
}

func (m *Manager) acquireGit() func() {
	m.gitSem <- struct{}{}
	return func() { <-m.gitSem }
}

// Resolved describes a fully resolved dependency location.
type Resolved struct {
	CommitSHA   string
	ResolvedRef string // tag, branch, or literal ref that was resolved
}

// Resolve turns (sourceName, configuredURL, kind, value) into a Resolved
// commit, per spec §4.3's ref-resolution rules. kind is "version", "branch",
// "rev", or "" (no constraint given, treated as the wildcard "*" — resolve
// to HEAD of the default branch).
func (m *Manager) Resolve(ctx context.Context, sourceName, configuredURL, kind, value string) (*Resolved, error) {
	br, err := m.ensureBare(ctx, sourceName, configuredURL)
	if err != nil {
		return nil, err
	}

	br.mu.Lock()
	defer br.mu.Unlock()

	switch kind {
	case "branch":
		return m.resolveBranch(ctx, br, value)
	case "rev":
		return m.resolveRev(ctx, br, value)
	case "version", "":
		c, err := version.Parse(value)
		if err != nil {
			if value == "" {
				c = &version.Constraint{Kind: version.KindGitRef, Ref: "*"}
			} else {
				return nil, agpmerr.Wrap(agpmerr.KindValidation, err, "parsing version constraint %q", value).
					WithContext("", sourceName, "", value)
			}
		}
		return m.resolveConstraint(ctx, br, sourceName, c)
	default:
		return nil, agpmerr.New(agpmerr.KindValidation, "unknown version kind %q", kind)
	}
}

func (m *Manager) resolveConstraint(ctx context.Context, br *bareRepo, sourceName string, c *version.Constraint) (*Resolved, error) {
	switch c.Kind {
	case version.KindExact, version.KindRequirement:
		if err := m.fetch(ctx, br); err != nil {
			return nil, err
		}
		tags, err := gitutil.ListTags(ctx, br.dir)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindSourceUnavailable, err, "listing tags for %s", sourceName)
		}
		best, bestTag := bestMatchingTag(c, tags)
		if best == nil {
			return nil, agpmerr.New(agpmerr.KindNoMatchingVersion, "no tag in %s satisfies %q", sourceName, c.Raw).
				WithContext("", sourceName, "", c.Raw)
		}
		sha, err := gitutil.RevParse(ctx, br.dir, bestTag)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindRefNotFound, err, "resolving tag %s", bestTag)
		}
		return &Resolved{CommitSHA: sha, ResolvedRef: bestTag}, nil

	case version.KindGitRef:
		if c.Ref == "*" {
			if err := m.fetch(ctx, br); err != nil {
				return nil, err
			}
			branch, err := gitutil.DefaultBranch(ctx, br.dir)
			if err != nil {
				return nil, agpmerr.Wrap(agpmerr.KindSourceUnavailable, err, "determining default branch for %s", sourceName)
			}
			sha, err := gitutil.RevParse(ctx, br.dir, branch)
			if err != nil {
				return nil, agpmerr.Wrap(agpmerr.KindRefNotFound, err, "resolving default branch %s", branch)
			}
			return &Resolved{CommitSHA: sha, ResolvedRef: branch}, nil
		}
		if err := m.fetch(ctx, br); err != nil {
			return nil, err
		}
		sha, err := gitutil.RevParse(ctx, br.dir, c.Ref)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindRefNotFound, err, "resolving ref %q in %s", c.Ref, sourceName).
				WithContext("", sourceName, "", c.Ref)
		}
		return &Resolved{CommitSHA: sha, ResolvedRef: c.Ref}, nil
	}
	return nil, agpmerr.New(agpmerr.KindValidation, "unsupported constraint kind %v", c.Kind)
}

func (m *Manager) resolveBranch(ctx context.Context, br *bareRepo, branch string) (*Resolved, error) {
	if err := m.fetch(ctx, br); err != nil {
		return nil, err
	}
	sha, err := gitutil.RevParse(ctx, br.dir, branch)
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindRefNotFound, err, "resolving branch %q", branch).WithContext("", "", "", branch)
	}
	return &Resolved{CommitSHA: sha, ResolvedRef: branch}, nil
}

func (m *Manager) resolveRev(ctx context.Context, br *bareRepo, rev string) (*Resolved, error) {
	sha, err := gitutil.RevParse(ctx, br.dir, rev)
	if err != nil {
		if err2 := m.fetch(ctx, br); err2 != nil {
			return nil, err2
		}
		sha, err = gitutil.RevParse(ctx, br.dir, rev)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindRefNotFound, err, "resolving rev %q", rev).WithContext("", "", "", rev)
		}
	}
	return &Resolved{CommitSHA: sha, ResolvedRef: rev}, nil
}

// Tags returns every tag known for (sourceName, configuredURL), fetching
// first if needed. The resolver uses this to evaluate several dependents'
// constraints against the same candidate set before committing to one.
func (m *Manager) Tags(ctx context.Context, sourceName, configuredURL string) ([]string, error) {
	br, err := m.ensureBare(ctx, sourceName, configuredURL)
	if err != nil {
		return nil, err
	}
	br.mu.Lock()
	defer br.mu.Unlock()
	if err := m.fetch(ctx, br); err != nil {
		return nil, err
	}
	tags, err := gitutil.ListTags(ctx, br.dir)
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindSourceUnavailable, err, "listing tags for %s", sourceName)
	}
	return tags, nil
}

// bestMatchingTag finds the tag with the highest version satisfying c,
// following the precedence rules of spec §4.2: stable preferred unless the
// constraint itself allows prereleases.
func bestMatchingTag(c *version.Constraint, tags []string) (*semver.Version, string) {
	var bestV *semver.Version
	bestTag := ""
	allowPre := c.AllowsPrerelease()
	for _, tag := range tags {
		v, ok := c.MatchesTag(tag)
		if !ok {
			continue
		}
		if v.Prerelease() != "" && !allowPre {
			continue
		}
		if bestV == nil || v.GreaterThan(bestV) {
			bestV, bestTag = v, tag
		}
	}
	return bestV, bestTag
}

// ensureBare guarantees a bare clone of configuredURL exists locally,
// cloning it on first use (spec §4.3 "one bare clone per URL").
func (m *Manager) ensureBare(ctx context.Context, sourceName, configuredURL string) (*bareRepo, error) {
	key := repoutil.CacheKey(configuredURL)

	m.mu.Lock()
	if br, ok := m.bares[key]; ok {
		m.mu.Unlock()
		return br, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		dir := filepath.Join(m.cacheDir, "sources", key+".git")
		lockPath := filepath.Join(m.cacheDir, "locks", "source-"+key+".lock")

		var cloneErr error
		lockErr := fsutil.FileLock(lockPath, func() error {
			if fsutil.Exists(dir) {
				return nil
			}
			resolvedURL, err := m.resolver.ResolveURL(sourceName, configuredURL)
			if err != nil {
				cloneErr = err
				return nil
			}
			cloneErr = m.withRetry(func() error {
				release := m.acquireGit()
				defer release()
				return gitutil.CloneBare(ctx, resolvedURL, dir)
			})
			return nil
		})
		if lockErr != nil {
			return nil, agpmerr.Wrap(agpmerr.KindIO, lockErr, "locking source cache for %s", sourceName)
		}
		if cloneErr != nil {
			return nil, classifyGitError(sourceName, configuredURL, cloneErr)
		}

		br := &bareRepo{dir: dir, url: configuredURL}
		m.mu.Lock()
		m.bares[key] = br
		m.mu.Unlock()
		return br, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bareRepo), nil
}

// fetch runs "git fetch" on br at most once per Manager lifetime, per spec
// §4.3 "fetches are batched per source."
func (m *Manager) fetch(ctx context.Context, br *bareRepo) error {
	if br.fetchedOnce {
		return nil
	}
	// The bare clone's "origin" remote already carries whatever credentials
	// were resolved at clone time, so fetches need no further resolution.
	err := m.withRetry(func() error {
		release := m.acquireGit()
		defer release()
		return gitutil.Fetch(ctx, br.dir)
	})
	if err != nil {
		return classifyGitError("", br.url, err)
	}
	br.fetchedOnce = true
	return nil
}

// withRetry retries fn with exponential backoff, bounded at maxRetries,
// only for transient git failures (spec §4.3's failure semantics).
func (m *Manager) withRetry(fn func() error) error {
	var err error
	delay := 200 * time.Millisecond
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !gitutil.IsTransient(err.Error()) {
			return err
		}
		log.Printf("transient git failure (attempt %d/%d): %v", attempt+1, maxRetries, err)
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func classifyGitError(sourceName, url string, err error) error {
	msg := err.Error()
	if gitutil.IsAuthError(msg) {
		return agpmerr.Wrap(agpmerr.KindAuthenticationFailed, err, "authenticating to %s", url).WithContext("", sourceName, "", "")
	}
	return agpmerr.Wrap(agpmerr.KindSourceUnavailable, err, "accessing source %s", url).WithContext("", sourceName, "", "")
}

// Checkout ensures a worktree for (configuredURL, commitSHA) exists and
// returns its path plus a release function the caller must call when done
// with it, implementing the reference-counted worktree pool of spec §3.6.
func (m *Manager) Checkout(ctx context.Context, sourceName, configuredURL, commitSHA string) (path string, release func(), err error) {
	br, err := m.ensureBare(ctx, sourceName, configuredURL)
	if err != nil {
		return "", nil, err
	}

	wtKey := repoutil.WorktreeDirName(configuredURL, commitSHA)
	m.wtMu.Lock()
	we, ok := m.worktrees[wtKey]
	if !ok {
		we = &worktreeEntry{path: filepath.Join(m.cacheDir, "worktrees", wtKey), bareDir: br.dir}
		m.worktrees[wtKey] = we
	}
	m.wtMu.Unlock()

	we.mu.Lock()
	defer we.mu.Unlock()
	if we.refcount == 0 {
		lockPath := filepath.Join(m.cacheDir, "locks", "worktree-"+repoutil.CacheKey(wtKey)+".lock")
		lockErr := fsutil.FileLock(lockPath, func() error {
			if fsutil.Exists(we.path) {
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(we.path), 0o755); err != nil {
				return fmt.Errorf("creating worktree parent dir: %w", err)
			}
			release := m.acquireGit()
			defer release()
			return gitutil.AddWorktree(ctx, br.dir, we.path, commitSHA)
		})
		if lockErr != nil {
			return "", nil, agpmerr.Wrap(agpmerr.KindIO, lockErr, "checking out %s@%s", sourceName, commitSHA)
		}
	}
	we.refcount++

	releaseFn := func() {
		we.mu.Lock()
		defer we.mu.Unlock()
		we.refcount--
	}
	return we.path, releaseFn, nil
}

// ReadFile returns the bytes of relPath inside (configuredURL, commitSHA),
// serving from the in-memory content cache when possible and deduplicating
// concurrent identical reads via singleflight (spec §3.6).
func (m *Manager) ReadFile(ctx context.Context, sourceName, configuredURL, commitSHA, relPath string) ([]byte, error) {
	key := contentKey{source: sourceName, commit: commitSHA, path: relPath}

	m.contentMu.Lock()
	if b, ok := m.content[key]; ok {
		m.contentMu.Unlock()
		return b, nil
	}
	m.contentMu.Unlock()

	sfKey := fmt.Sprintf("%s\x00%s\x00%s", sourceName, commitSHA, relPath)
	v, err, _ := m.group.Do("read:"+sfKey, func() (any, error) {
		path, release, err := m.Checkout(ctx, sourceName, configuredURL, commitSHA)
		if err != nil {
			return nil, err
		}
		defer release()
		full := filepath.Join(path, filepath.FromSlash(relPath))
		ok, err := fsutil.CanonicalUnder(path, full)
		if err == nil && !ok {
			return nil, agpmerr.New(agpmerr.KindPathEscapesRoot, "path %q escapes source %s", relPath, sourceName).
				WithContext("", sourceName, relPath, "")
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, agpmerr.Wrap(agpmerr.KindIO, err, "reading %s from %s@%s", relPath, sourceName, commitSHA).
				WithContext("", sourceName, relPath, "")
		}
		m.contentMu.Lock()
		m.content[key] = data
		m.contentMu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Close tears down every pooled worktree, per spec §3.6 "torn down on
// process exit."
func (m *Manager) Close(ctx context.Context) {
	m.wtMu.Lock()
	entries := make([]*worktreeEntry, 0, len(m.worktrees))
	for _, we := range m.worktrees {
		entries = append(entries, we)
	}
	m.wtMu.Unlock()

	for _, we := range entries {
		we.mu.Lock()
		path, bareDir := we.path, we.bareDir
		we.mu.Unlock()
		if !fsutil.Exists(path) {
			continue
		}
		release := m.acquireGit()
		_ = gitutil.RemoveWorktree(ctx, bareDir, path)
		release()
	}
}
