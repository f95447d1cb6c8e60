package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/git"
	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/internal/workspace"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []transport.Event
}

func (e *recordingEmitter) Emit(_ context.Context, event transport.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Message)
	}
	return out
}

func (e *recordingEmitter) last() transport.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

type fakeUploader struct {
	keys    []string
	failOn  string
	uploads int
}

func (u *fakeUploader) Upload(_ context.Context, key string, body io.ReadSeeker, _ int64, _ string) error {
	u.uploads++
	if u.failOn != "" && key == u.failOn {
		return errors.New("access denied")
	}
	if _, err := io.ReadAll(body); err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	return nil
}

func newRunner(t *testing.T, command string, uploader *fakeUploader, emitter *recordingEmitter) *Runner {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	runner, err := New(Config{
		Build: domain.BuildContext{
			ProjectID:        "p1",
			ProjectSubdomain: "brave-red-fox",
			DeploymentID:     "d1",
			RepositoryURL:    "https://example.com/a/b",
		},
		BuildCommand: command,
		KeyPrefix:    "__outputs",
	}, emitter, uploader, ws, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	runner.clone = func(_ context.Context, _ string, dest string, _ git.CloneOptions) (string, error) {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", err
		}
		return "0123456789abcdef", os.WriteFile(filepath.Join(dest, "package.json"), []byte("{}"), 0o644)
	}
	return runner
}

func TestRunUploadsOutputAndReportsReady(t *testing.T) {
	emitter := &recordingEmitter{}
	uploader := &fakeUploader{}
	runner := newRunner(t, "mkdir -p dist/assets && echo hi > dist/index.html && echo x > dist/assets/app.js && echo compiled && echo warning >&2", uploader, emitter)

	require.NoError(t, runner.Run(context.Background()))

	assert.ElementsMatch(t, []string{"__outputs/brave-red-fox/index.html", "__outputs/brave-red-fox/assets/app.js"}, uploader.keys)
	msgs := emitter.messages()
	assert.Contains(t, msgs, "compiled")
	assert.Contains(t, msgs, "Error: warning")
	assert.Equal(t, domain.DeploymentStatusInProgress, emitter.events[0].Status)
	last := emitter.last()
	assert.Equal(t, "Done", last.Message)
	assert.Equal(t, domain.DeploymentStatusReady, last.Status)
}

func TestRunBuildFailureUploadsNothing(t *testing.T) {
	emitter := &recordingEmitter{}
	uploader := &fakeUploader{}
	runner := newRunner(t, "mkdir -p dist && echo hi > dist/index.html && exit 3", uploader, emitter)

	err := runner.Run(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.Zero(t, uploader.uploads)
	last := emitter.last()
	assert.Equal(t, "Build failed with exit code 3", last.Message)
	assert.Equal(t, domain.DeploymentStatusFailed, last.Status)
}

func TestRunMissingOutputDirFails(t *testing.T) {
	emitter := &recordingEmitter{}
	runner := newRunner(t, "true", &fakeUploader{}, emitter)

	err := runner.Run(context.Background())
	require.ErrorIs(t, err, ErrOutputDirNotFound)
	assert.Equal(t, domain.DeploymentStatusFailed, emitter.last().Status)
	assert.Contains(t, emitter.last().Message, "build, dist, public, out, .output, .next")
}

func TestRunAbortsRemainingUploadsOnFailure(t *testing.T) {
	emitter := &recordingEmitter{}
	uploader := &fakeUploader{failOn: "__outputs/brave-red-fox/b.txt"}
	runner := newRunner(t, "mkdir -p build && echo 1 > build/a.txt && echo 2 > build/b.txt && echo 3 > build/c.txt", uploader, emitter)

	require.Error(t, runner.Run(context.Background()))
	assert.Equal(t, []string{"__outputs/brave-red-fox/a.txt"}, uploader.keys)
	assert.Equal(t, 2, uploader.uploads)
	assert.Equal(t, domain.DeploymentStatusFailed, emitter.last().Status)
}

func TestRunCloneFailureReported(t *testing.T) {
	emitter := &recordingEmitter{}
	runner := newRunner(t, "true", &fakeUploader{}, emitter)
	runner.clone = func(context.Context, string, string, git.CloneOptions) (string, error) {
		return "", errors.New("repository not found")
	}

	require.Error(t, runner.Run(context.Background()))
	assert.Equal(t, domain.DeploymentStatusFailed, emitter.last().Status)
	assert.Contains(t, emitter.last().Message, "repository not found")
}

func TestBuildEnvHidesCredentials(t *testing.T) {
	env := buildEnv([]string{"PATH=/bin", "AWS_ACCESS_KEY_ID=x", "NATS_TOKEN=y", "REDIS_URL=z", "HOME=/root"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "CI=true"}, env)
}

func TestRunBuildKillsProcessTreeOnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var lines []string
	start := time.Now()
	code, err := runBuild(ctx, "echo started; sleep 4; echo done", t.TempDir(), func(line string, _ bool) {
		lines = append(lines, line)
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{"started"}, lines)
}

func TestRunReportsBuildTimeout(t *testing.T) {
	emitter := &recordingEmitter{}
	uploader := &fakeUploader{}
	runner := newRunner(t, "mkdir -p dist && echo hi > dist/index.html && sleep 4", uploader, emitter)
	runner.cfg.BuildTimeout = 300 * time.Millisecond

	start := time.Now()
	err := runner.Run(context.Background())

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, uploader.uploads)
	last := emitter.last()
	assert.Equal(t, domain.DeploymentStatusFailed, last.Status)
	assert.Contains(t, last.Message, "build exceeded 300ms")
}

func TestRunStreamsCloneProgress(t *testing.T) {
	emitter := &recordingEmitter{}
	runner := newRunner(t, "mkdir -p dist && echo hi > dist/index.html", &fakeUploader{}, emitter)
	clone := runner.clone
	runner.clone = func(ctx context.Context, url, dest string, opts git.CloneOptions) (string, error) {
		require.NotNil(t, opts.Progress)
		_, _ = io.WriteString(opts.Progress, "Counting objects: 50% (1/2)\rCounting objects: 100% (2/2), done.\n")
		_, _ = io.WriteString(opts.Progress, "Total 2 (delta 0)")
		return clone(ctx, url, dest, opts)
	}

	require.NoError(t, runner.Run(context.Background()))

	msgs := emitter.messages()
	assert.Contains(t, msgs, "git: Counting objects: 100% (2/2), done.")
	assert.Contains(t, msgs, "git: Total 2 (delta 0)")
	assert.NotContains(t, msgs, "git: Counting objects: 50% (1/2)")
}

func TestProgressWriterSplitsLines(t *testing.T) {
	var got []string
	w := &progressWriter{onLine: func(line string) { got = append(got, line) }}

	_, _ = w.Write([]byte("Enumerating objects: 3, done.\nCompress"))
	_, _ = w.Write([]byte("ing: 100%\r\n\n"))
	w.Flush()

	assert.Equal(t, []string{"Enumerating objects: 3, done.", "Compressing: 100%"}, got)
}
