package scandoc

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// commandRunner runs an external command and returns its standard output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "%s: %s", name, msg)
		}
		return nil, errors.Wrap(err, name)
	}
	return out, nil
}

// HeuristicBackend runs tabula-java on the Java runtime.
type HeuristicBackend struct {
	java string
	jar  string

	run      commandRunner
	lookPath func(string) (string, error)
}

// NewHeuristicBackend returns a backend running jar with the java executable.
func NewHeuristicBackend(java, jar string) *HeuristicBackend {
	if java == "" {
		java = "java"
	}
	return &HeuristicBackend{
		java:     java,
		jar:      jar,
		run:      execRunner,
		lookPath: exec.LookPath,
	}
}

func (b *HeuristicBackend) Kind() BackendKind { return BackendHeuristic }

// Compatible checks for a working Java runtime and the tabula jar.
func (b *HeuristicBackend) Compatible(ctx context.Context, _ string) error {
	if _, err := b.lookPath(b.java); err != nil {
		return markf(ErrBackendUnavailable, err, "java runtime %q not found", b.java)
	}
	if _, err := b.run(ctx, b.java, "-version"); err != nil {
		return markf(ErrBackendUnavailable, err, "java runtime %q not working", b.java)
	}
	if b.jar == "" {
		return markf(ErrBackendUnavailable, nil, "no tabula jar configured")
	}
	if _, err := os.Stat(b.jar); err != nil {
		return markf(ErrBackendUnavailable, err, "tabula jar %q", b.jar)
	}
	return nil
}

// Extract runs tabula in lattice mode and falls back to stream mode when
// lattice finds no tables.
func (b *HeuristicBackend) Extract(ctx context.Context, path string, page int) ([]TableCandidate, error) {
	tables, err := b.runTabula(ctx, path, page, "--lattice")
	if err != nil {
		return nil, err
	}
	if len(tables) > 0 {
		return tables, nil
	}
	return b.runTabula(ctx, path, page, "--stream")
}

func (b *HeuristicBackend) runTabula(ctx context.Context, path string, page int, mode string) ([]TableCandidate, error) {
	out, err := b.run(ctx, b.java, "-jar", b.jar,
		"--format", "JSON",
		"--pages", strconv.Itoa(page+1),
		mode,
		path,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "tabula %s", mode)
	}
	return parseTabulaJSON(out)
}

// tabulaTable is one table of tabula's JSON output.
type tabulaTable struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Data   [][]struct {
		Text string `json:"text"`
	} `json:"data"`
}

// parseTabulaJSON converts tabula's JSON into candidates. The first row is
// taken as the header, as tabula-py does when reading into data frames.
func parseTabulaJSON(data []byte) ([]TableCandidate, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []tabulaTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse tabula output")
	}

	tables := make([]TableCandidate, 0, len(raw))
	for _, t := range raw {
		rows := make([][]string, 0, len(t.Data))
		for _, r := range t.Data {
			row := make([]string, 0, len(r))
			for _, cell := range r {
				row = append(row, strings.TrimSpace(cell.Text))
			}
			rows = append(rows, row)
		}

		candidate := TableCandidate{
			Rows:   normalizeGrid(rows),
			Header: len(rows) > 0,
			Source: BackendHeuristic,
		}
		if t.Right > t.Left && t.Bottom > t.Top {
			candidate.BBox = &Rect{X0: t.Left, Y0: t.Top, X1: t.Right, Y1: t.Bottom}
		}
		tables = append(tables, candidate)
	}
	return tables, nil
}
