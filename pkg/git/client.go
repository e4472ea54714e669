package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultLockTimeout bounds how long Lock waits for another process.
const DefaultLockTimeout = 10 * time.Second

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for git lock")

// Commit is one entry of the history of a file.
type Commit struct {
	Hash    string
	Time    time.Time
	Subject string
}

// Client wraps git command execution with a file-based lock for process safety.
type Client struct {
	WorkDir     string
	Logger      *slog.Logger
	LockTimeout time.Duration
	lockPath    string
}

// NewClient creates a new git client for the given working directory.
// lockName is the lock file name relative to workDir.
func NewClient(workDir, lockName string, logger *slog.Logger) *Client {
	return &Client{
		WorkDir:     workDir,
		Logger:      logger,
		LockTimeout: DefaultLockTimeout,
		lockPath:    lockName,
	}
}

// IsInstalled reports whether the git binary is on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo reports whether WorkDir is inside a git work tree.
func (c *Client) IsRepo() bool {
	out, err := c.Run("rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Lock acquires the file-based lock. It spins until the lock is free or
// LockTimeout elapses.
func (c *Client) Lock() (func(), error) {
	fullLockPath := filepath.Join(c.WorkDir, c.lockPath)
	deadline := time.Now().Add(c.LockTimeout)

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL, 0666)
		if err == nil {
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if c.LockTimeout > 0 && time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Run executes a raw git command in the working directory.
// It does NOT acquire the lock. Callers serialize writes via Lock.
func (c *Client) Run(args ...string) (string, error) {
	if c.Logger != nil {
		c.Logger.Debug("executing git", "args", args, "dir", c.WorkDir)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = c.WorkDir

	out, err := cmd.CombinedOutput()
	output := string(out)

	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\nOutput: %s", args[0], err, output)
	}

	return strings.TrimSpace(output), nil
}

// Init initializes a new git repository. Re-running it is harmless.
func (c *Client) Init() error {
	_, err := c.Run("init")
	return err
}

// Add adds files to the stage.
func (c *Client) Add(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add"}, files...)
	_, err := c.Run(args...)
	return err
}

// Commit records staged changes. The identity is pinned so commits work on
// machines without a configured user.
func (c *Client) Commit(msg string) error {
	_, err := c.Run("-c", "user.name=pedigree", "-c", "user.email=pedigree@localhost", "commit", "-m", msg)
	return err
}

// Status returns the porcelain status of the given paths, or of the repo.
func (c *Client) Status(paths ...string) (string, error) {
	args := append([]string{"status", "--porcelain", "--"}, paths...)
	return c.Run(args...)
}

// Log returns the commits touching path, newest first.
func (c *Client) Log(path string) ([]Commit, error) {
	out, err := c.Run("log", "--format=%H%x09%ct%x09%s", "--", path)
	if err != nil {
		// A repository without commits has no history.
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected git log line %q: %w", line, err)
		}
		commits = append(commits, Commit{Hash: parts[0], Time: time.Unix(ts, 0), Subject: parts[2]})
	}
	return commits, nil
}

// Show returns the content of path at rev.
func (c *Client) Show(rev, path string) (string, error) {
	cmd := exec.Command("git", "show", rev+":"+filepath.ToSlash(path))
	cmd.Dir = c.WorkDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git show %s failed: %w", rev, err)
	}
	return string(out), nil
}
