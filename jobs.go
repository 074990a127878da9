package scandoc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// JobStatus is the state of a conversion job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// JobSnapshot is a copy of a job's state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message"`
	InputFile  string    `json:"input_file"`
	OutputFile string    `json:"output_file"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobRunner performs conversions. *Converter implements it.
type JobRunner interface {
	Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error)
}

type job struct {
	snapshot   JobSnapshot
	uploadPath string
	outputPath string
}

// JobManager runs conversions in the background and tracks their state.
// Each job runs in its own goroutine; state is read through Get.
type JobManager struct {
	runner    JobRunner
	uploadDir string
	outputDir string
	ttl       time.Duration
	log       logrus.FieldLogger

	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobManager creates the upload and output directories and returns a
// manager. A zero ttl keeps finished jobs for an hour.
func NewJobManager(runner JobRunner, config ServerConfig, log logrus.FieldLogger) (*JobManager, error) {
	if log == nil {
		log = discardLogger()
	}
	for _, dir := range []string{config.UploadDir, config.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	ttl := config.JobTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		runner:    runner,
		uploadDir: config.UploadDir,
		outputDir: config.OutputDir,
		ttl:       ttl,
		log:       log,
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Submit stores an upload and starts converting it. It returns the job id.
func (m *JobManager) Submit(src io.Reader, filename string, opts ConvertOptions) (string, error) {
	name := sanitizeFilename(filename)
	if !SupportedInput(name) {
		return "", markf(ErrUnsupportedInput, nil, "%q", filepath.Ext(name))
	}
	if opts.Format == "" {
		opts.Format = FormatPDF
	}

	id := uuid.NewString()
	uploadPath := filepath.Join(m.uploadDir, id+"_"+name)
	if err := saveUpload(src, uploadPath); err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	outputFile := id + "_" + stem + opts.Format.Extension()

	j := &job{
		snapshot: JobSnapshot{
			ID:         id,
			Status:     JobProcessing,
			Message:    "Starting processing...",
			InputFile:  name,
			OutputFile: outputFile,
			CreatedAt:  time.Now(),
		},
		uploadPath: uploadPath,
		outputPath: filepath.Join(m.outputDir, outputFile),
	}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(j, opts)

	return id, nil
}

func (m *JobManager) run(j *job, opts ConvertOptions) {
	defer m.wg.Done()

	id := j.snapshot.ID
	log := m.log.WithField("job_id", id)
	defer func() {
		if err := os.Remove(j.uploadPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to remove upload")
		}
	}()

	_, err := m.runner.Convert(m.ctx, ConvertRequest{
		InputPath:  j.uploadPath,
		OutputPath: j.outputPath,
		Options:    opts,
		Progress: func(percent int, message string) {
			m.update(id, func(s *JobSnapshot) {
				s.Progress = percent
				s.Message = message
			})
		},
	})

	if err != nil {
		log.WithError(err).Error("conversion failed")
		m.update(id, func(s *JobSnapshot) {
			s.Status = JobError
			s.Message = "Error: " + err.Error()
		})
		return
	}

	log.Info("conversion completed")
	m.update(id, func(s *JobSnapshot) {
		s.Status = JobCompleted
		s.Progress = 100
		s.Message = "Processing completed!"
	})
}

func (m *JobManager) update(id string, fn func(*JobSnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(&j.snapshot)
	}
}

// Get returns a job's current state.
func (m *JobManager) Get(id string) (JobSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return JobSnapshot{}, false
	}
	return j.snapshot, true
}

// Result returns the output path and download name of a completed job.
func (m *JobManager) Result(id string) (path, name string, ok bool) {
	m.mu.RLock()
	j, found := m.jobs[id]
	var snapshot JobSnapshot
	if found {
		snapshot = j.snapshot
		path = j.outputPath
	}
	m.mu.RUnlock()

	if !found || snapshot.Status != JobCompleted {
		return "", "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", false
	}
	return path, snapshot.OutputFile, true
}

// Sweep forgets finished jobs older than the TTL, deletes their outputs and
// removes stale files from the output directory. It returns the number of
// jobs removed.
func (m *JobManager) Sweep(now time.Time) int {
	removed := 0

	m.mu.Lock()
	for id, j := range m.jobs {
		if j.snapshot.Status == JobProcessing || now.Sub(j.snapshot.CreatedAt) <= m.ttl {
			continue
		}
		if err := os.Remove(j.outputPath); err != nil && !os.IsNotExist(err) {
			m.log.WithError(err).WithField("job_id", id).Warn("failed to remove output")
		}
		delete(m.jobs, id)
		removed++
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		m.log.WithError(err).Warn("failed to list output directory")
		return removed
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= m.ttl {
			continue
		}
		if err := os.Remove(filepath.Join(m.outputDir, entry.Name())); err != nil {
			m.log.WithError(err).WithField("file", entry.Name()).Warn("failed to remove stale output")
		}
	}

	return removed
}

// Close cancels running jobs and waits for them to stop.
func (m *JobManager) Close() {
	m.cancel()
	m.wg.Wait()
}

func saveUpload(src io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to store upload")
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrap(err, "failed to store upload")
	}
	return errors.Wrap(f.Close(), "failed to store upload")
}

// sanitizeFilename keeps the base name and replaces anything outside
// letters, digits, dot, dash and underscore.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}
