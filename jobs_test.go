package scandoc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/scandoc"
)

// fakeRunner writes a small output file unless told to fail. When release is
// set it waits for it, or for cancellation, before finishing.
type fakeRunner struct {
	fail    error
	release chan struct{}

	mu       sync.Mutex
	requests []scandoc.ConvertRequest
}

func (r *fakeRunner) Convert(ctx context.Context, req scandoc.ConvertRequest) (*scandoc.ConvertResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	req.Progress(30, "Running OCR")
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.fail != nil {
		return nil, r.fail
	}
	if err := os.WriteFile(req.OutputPath, []byte("converted"), 0o644); err != nil {
		return nil, err
	}
	return &scandoc.ConvertResult{OutputPath: req.OutputPath}, nil
}

func newJobManager(t *testing.T, runner scandoc.JobRunner) (*scandoc.JobManager, scandoc.ServerConfig) {
	t.Helper()
	dir := t.TempDir()
	config := scandoc.ServerConfig{
		UploadDir: filepath.Join(dir, "uploads"),
		OutputDir: filepath.Join(dir, "outputs"),
		JobTTL:    time.Hour,
	}
	jobs, err := scandoc.NewJobManager(runner, config, nil)
	require.NoError(t, err)
	t.Cleanup(jobs.Close)
	return jobs, config
}

func waitForStatus(t *testing.T, jobs *scandoc.JobManager, id string, status scandoc.JobStatus) scandoc.JobSnapshot {
	t.Helper()
	var snapshot scandoc.JobSnapshot
	require.Eventually(t, func() bool {
		var ok bool
		snapshot, ok = jobs.Get(id)
		return ok && snapshot.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return snapshot
}

func TestJobManager_Completes(t *testing.T) {
	runner := &fakeRunner{}
	jobs, config := newJobManager(t, runner)

	id, err := jobs.Submit(strings.NewReader("scan"), "../../Q3 report.pdf",
		scandoc.ConvertOptions{Format: scandoc.FormatDocx})
	require.NoError(t, err)

	snapshot := waitForStatus(t, jobs, id, scandoc.JobCompleted)
	assert.Equal(t, 100, snapshot.Progress)
	assert.Equal(t, "Processing completed!", snapshot.Message)
	assert.Equal(t, "Q3_report.pdf", snapshot.InputFile)
	assert.Equal(t, id+"_Q3_report.docx", snapshot.OutputFile)

	path, name, ok := jobs.Result(id)
	require.True(t, ok)
	assert.Equal(t, snapshot.OutputFile, name)
	assert.Equal(t, filepath.Join(config.OutputDir, name), path)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, filepath.Dir(runner.requests[0].InputPath), config.UploadDir)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(runner.requests[0].InputPath)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond, "upload is removed after the job")
}

func TestJobManager_Failure(t *testing.T) {
	jobs, _ := newJobManager(t, &fakeRunner{fail: errors.Wrap(scandoc.ErrOCRFailure, "tesseract")})

	id, err := jobs.Submit(strings.NewReader("scan"), "scan.png", scandoc.ConvertOptions{})
	require.NoError(t, err)

	snapshot := waitForStatus(t, jobs, id, scandoc.JobError)
	assert.True(t, strings.HasPrefix(snapshot.Message, "Error: "))
	assert.Contains(t, snapshot.Message, "tesseract")

	_, _, ok := jobs.Result(id)
	assert.False(t, ok)
}

func TestJobManager_RejectsUnsupported(t *testing.T) {
	jobs, config := newJobManager(t, &fakeRunner{})

	_, err := jobs.Submit(strings.NewReader("hello"), "notes.txt", scandoc.ConvertOptions{})
	assert.ErrorIs(t, err, scandoc.ErrUnsupportedInput)

	entries, err := os.ReadDir(config.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJobManager_UnknownJob(t *testing.T) {
	jobs, _ := newJobManager(t, &fakeRunner{})

	_, ok := jobs.Get("missing")
	assert.False(t, ok)
	_, _, ok = jobs.Result("missing")
	assert.False(t, ok)
}

func TestJobManager_Sweep(t *testing.T) {
	runner := &fakeRunner{}
	jobs, config := newJobManager(t, runner)

	done, err := jobs.Submit(strings.NewReader("scan"), "done.pdf", scandoc.ConvertOptions{})
	require.NoError(t, err)
	waitForStatus(t, jobs, done, scandoc.JobCompleted)
	output, _, ok := jobs.Result(done)
	require.True(t, ok)

	runner.release = make(chan struct{})
	busy, err := jobs.Submit(strings.NewReader("scan"), "busy.pdf", scandoc.ConvertOptions{})
	require.NoError(t, err)

	stale := filepath.Join(config.OutputDir, "orphan.pdf")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	assert.Zero(t, jobs.Sweep(time.Now()), "nothing has expired yet")

	removed := jobs.Sweep(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)

	_, ok = jobs.Get(done)
	assert.False(t, ok)
	assert.NoFileExists(t, output)
	assert.NoFileExists(t, stale)

	snapshot, ok := jobs.Get(busy)
	require.True(t, ok, "running jobs survive a sweep")
	assert.Equal(t, scandoc.JobProcessing, snapshot.Status)

	close(runner.release)
	waitForStatus(t, jobs, busy, scandoc.JobCompleted)
}
