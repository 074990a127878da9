package scandoc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewHTTPHandler exposes a job manager over HTTP:
//
//	POST /upload          multipart form, starts a job
//	GET  /status/{id}     job state as JSON
//	GET  /download/{id}   the output of a completed job
//	POST /cleanup         sweeps expired jobs and outputs
func NewHTTPHandler(jobs *JobManager, maxUpload int64, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = discardLogger()
	}
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	s := &server{jobs: jobs, maxUpload: maxUpload, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.upload)
	mux.HandleFunc("GET /status/{id}", s.status)
	mux.HandleFunc("GET /download/{id}", s.download)
	mux.HandleFunc("POST /cleanup", s.cleanup)
	return mux
}

type server struct {
	jobs      *JobManager
	maxUpload int64
	log       logrus.FieldLogger
}

func (s *server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no selected file")
		return
	}

	opts, err := formOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.jobs.Submit(file, header.Filename, opts)
	if err != nil {
		if errors.Is(err, ErrUnsupportedInput) {
			writeError(w, http.StatusBadRequest, "file type not allowed")
			return
		}
		s.log.WithError(err).Error("failed to start job")
		writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  id,
		"message": "Processing started",
	})
}

// formOptions reads conversion options from the upload form. Checkbox
// fields count as set when present.
func formOptions(r *http.Request) (ConvertOptions, error) {
	format, err := ParseOutputFormat(r.FormValue("output_format"))
	if err != nil {
		return ConvertOptions{}, err
	}

	language := r.FormValue("language")
	if language == "" {
		language = "eng"
	}

	dpi := 300
	if v := r.FormValue("dpi"); v != "" {
		dpi, err = strconv.Atoi(v)
		if err != nil || dpi <= 0 {
			return ConvertOptions{}, errors.New("dpi must be a positive integer")
		}
	}

	_, deskew := r.Form["deskew"]
	_, clean := r.Form["clean"]
	_, tables := r.Form["table_detection"]

	return ConvertOptions{
		Format:     format,
		TableStyle: ParseTableStyle(r.FormValue("table_style")),
		OCR: OCROptions{
			Language: language,
			DPI:      dpi,
			Deskew:   deskew,
			Clean:    clean,
		},
		DetectTables: tables,
	}, nil
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *server) download(w http.ResponseWriter, r *http.Request) {
	path, name, ok := s.jobs.Result(r.PathValue("id"))
	if !ok {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

func (s *server) cleanup(w http.ResponseWriter, _ *http.Request) {
	removed := s.jobs.Sweep(time.Now())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
