// Package gitutil wraps the "git" CLI for the operations the source manager
// needs: bare clones, fetches, worktree management, and ref resolution. Every
// call shells out to a real git binary found on PATH rather than reimplementing
// the Git protocol, mirroring how the teacher codebase drives external CLIs
// (gh, git) via os/exec rather than linking a Git library.
package gitutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/agpm-dev/agpm/pkg/logger"
)

var log = logger.New("agpm:gitutil")

// IsAuthError checks if an error message indicates an authentication issue,
// used to classify clone/fetch failures as fatal rather than retryable.
func IsAuthError(errMsg string) bool {
	lowerMsg := strings.ToLower(errMsg)
	return strings.Contains(lowerMsg, "gh_token") ||
		strings.Contains(lowerMsg, "github_token") ||
		strings.Contains(lowerMsg, "authentication") ||
		strings.Contains(lowerMsg, "not logged into") ||
		strings.Contains(lowerMsg, "unauthorized") ||
		strings.Contains(lowerMsg, "forbidden") ||
		strings.Contains(lowerMsg, "permission denied") ||
		strings.Contains(lowerMsg, "could not read username") ||
		strings.Contains(lowerMsg, "could not read password")
}

// IsHexString checks if a string contains only hexadecimal characters.
// This is used to validate Git commit SHAs and other hexadecimal identifiers.
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// IsTransient reports whether a git failure is worth retrying with backoff:
// network hiccups and secondary rate limits, but never auth failures or a
// missing ref (those are fatal per spec §4.3's failure semantics).
func IsTransient(errMsg string) bool {
	if IsAuthError(errMsg) {
		return false
	}
	lowerMsg := strings.ToLower(errMsg)
	return strings.Contains(lowerMsg, "could not resolve host") ||
		strings.Contains(lowerMsg, "connection reset") ||
		strings.Contains(lowerMsg, "connection timed out") ||
		strings.Contains(lowerMsg, "timed out") ||
		strings.Contains(lowerMsg, "temporary failure") ||
		strings.Contains(lowerMsg, "rate limit") ||
		strings.Contains(lowerMsg, "the remote end hung up unexpectedly") ||
		strings.Contains(lowerMsg, "early eof")
}

// Run executes a git subcommand in dir and returns trimmed stdout. Stderr is
// captured and folded into the returned error on failure.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Printf("running git %s (dir=%s)", strings.Join(args, " "), dir)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CloneBare performs "git clone --bare <url> <dest>".
func CloneBare(ctx context.Context, url, dest string) error {
	_, err := Run(ctx, "", "clone", "--bare", url, dest)
	return err
}

// Fetch runs "git fetch" inside a bare repository, retrieving all branches
// and tags plus any additional refspecs supplied (e.g. a specific commit SHA
// not yet reachable from a branch tip).
func Fetch(ctx context.Context, bareDir string, refspecs ...string) error {
	args := []string{"fetch", "--prune", "origin",
		"+refs/heads/*:refs/heads/*", "+refs/tags/*:refs/tags/*"}
	args = append(args, refspecs...)
	_, err := Run(ctx, bareDir, args...)
	return err
}

// ListTags returns all tag names in a bare repository, most recent creation
// order irrelevant — callers sort by parsed semver themselves.
func ListTags(ctx context.Context, bareDir string) ([]string, error) {
	out, err := Run(ctx, bareDir, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListBranches returns all local branch names in a bare repository.
func ListBranches(ctx context.Context, bareDir string) ([]string, error) {
	out, err := Run(ctx, bareDir, "branch", "--list", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RevParse resolves any ref expression (tag, branch, abbreviated or full SHA)
// to a full 40-character commit SHA.
func RevParse(ctx context.Context, bareDir, ref string) (string, error) {
	out, err := Run(ctx, bareDir, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("ref not found: %s", ref)
	}
	return out, nil
}

// DefaultBranch returns the remote's default branch name (e.g. "main"),
// preferring "main" over "master" when both are present and HEAD cannot be
// determined, per the pinned behavior of the original implementation.
func DefaultBranch(ctx context.Context, bareDir string) (string, error) {
	if out, err := Run(ctx, bareDir, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(out, "origin/"), nil
	}
	branches, err := ListBranches(ctx, bareDir)
	if err != nil {
		return "", err
	}
	for _, b := range branches {
		if b == "main" {
			return "main", nil
		}
	}
	for _, b := range branches {
		if b == "master" {
			return "master", nil
		}
	}
	if len(branches) > 0 {
		return branches[0], nil
	}
	return "", errors.New("no branches found")
}

// AddWorktree checks out commitSHA from a bare repository into destDir as a
// detached worktree.
func AddWorktree(ctx context.Context, bareDir, destDir, commitSHA string) error {
	_, err := Run(ctx, bareDir, "worktree", "add", "--detach", destDir, commitSHA)
	return err
}

// RemoveWorktree removes a previously added worktree and prunes its metadata.
func RemoveWorktree(ctx context.Context, bareDir, destDir string) error {
	_, err := Run(ctx, bareDir, "worktree", "remove", "--force", destDir)
	if err != nil {
		// The directory may already be gone (process crash, manual cleanup);
		// prune stale administrative files and move on.
		_, _ = Run(ctx, bareDir, "worktree", "prune")
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
