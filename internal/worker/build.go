package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrBuildFailed indicates the build command exited unsuccessfully.
var ErrBuildFailed = errors.New("build failed")

// Environment variables the build command never sees.
var isolatedPrefixes = []string{"AWS_", "STORAGE_", "NATS_", "REDIS_", "LOG_STREAM", "LOG_SUBJECT_PREFIX", "LOG_PARTITIONS", "LOG_CHANNEL_PREFIX"}

const maxLineSize = 1024 * 1024

// waitDelay bounds how long Wait lingers on pipes after the build is killed.
const waitDelay = 5 * time.Second

// lineFunc receives one line of build output.
type lineFunc func(line string, stderr bool)

// runBuild executes command through the shell in dir, streaming every output
// line to onLine. It returns the exit code of the command. When ctx ends first
// the whole process tree is killed and the context error is returned.
func runBuild(ctx context.Context, command, dir string, onLine lineFunc) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = buildEnv(os.Environ())
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start build: %w", err)
	}
	// Descendants hold the pipes open, so the scanners below only return
	// once the group is gone.
	stop := context.AfterFunc(ctx, func() { _ = killProcessGroup(cmd) })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, false, onLine)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, true, onLine)
	}()
	// Pipes must be drained before Wait closes them.
	wg.Wait()
	stop()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("build command killed: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait build: %w", err)
}

func scanLines(r io.Reader, stderr bool, onLine lineFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		onLine(line, stderr)
	}
	// Keep draining so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func buildEnv(environ []string) []string {
	env := make([]string, 0, len(environ)+1)
	for _, entry := range environ {
		key, _, _ := strings.Cut(entry, "=")
		if isolated(key) {
			continue
		}
		env = append(env, entry)
	}
	return append(env, "CI=true")
}

func isolated(key string) bool {
	for _, prefix := range isolatedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
