package scandoc_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/scandoc"
)

// fakeBackend is a scripted table backend.
type fakeBackend struct {
	kind   scandoc.BackendKind
	tables []scandoc.TableCandidate
	err    error
	panics bool

	// block, when set, stalls Extract until closed, ignoring ctx
	block chan struct{}

	// incompatible reports whether the n-th Compatible call (1-based) fails
	incompatible func(n int) bool

	probes   atomic.Int32
	extracts atomic.Int32
}

func (f *fakeBackend) Kind() scandoc.BackendKind { return f.kind }

func (f *fakeBackend) Compatible(context.Context, string) error {
	n := int(f.probes.Add(1))
	if f.incompatible != nil && f.incompatible(n) {
		return scandoc.ErrBackendUnavailable
	}
	return nil
}

func (f *fakeBackend) Extract(context.Context, string, int) ([]scandoc.TableCandidate, error) {
	f.extracts.Add(1)
	if f.panics {
		panic("backend exploded")
	}
	if f.block != nil {
		<-f.block
	}
	return f.tables, f.err
}

func never(int) bool  { return false }
func always(int) bool { return true }

func table(cells ...string) scandoc.TableCandidate {
	return scandoc.TableCandidate{Rows: [][]string{cells}}
}

func TestSelectionOrder(t *testing.T) {
	geometry := &fakeBackend{kind: scandoc.BackendGeometry}
	border := &fakeBackend{kind: scandoc.BackendBorder}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic}

	order := scandoc.SelectionOrder([]scandoc.Backend{geometry, heuristic, border}, geometry)
	assert.Equal(t, []scandoc.Backend{border, heuristic, geometry}, order)

	order = scandoc.SelectionOrder([]scandoc.Backend{heuristic}, geometry)
	assert.Equal(t, []scandoc.Backend{heuristic}, order)

	order = scandoc.SelectionOrder(nil, geometry)
	assert.Equal(t, []scandoc.Backend{geometry}, order)
}

type panickyProbe struct{ fakeBackend }

func (p *panickyProbe) Compatible(context.Context, string) error { panic("probe exploded") }

func TestProbe(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	border := &fakeBackend{kind: scandoc.BackendBorder, incompatible: always}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic}
	broken := &panickyProbe{fakeBackend{kind: scandoc.BackendBorder}}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry}

	compatible := scandoc.Probe(context.Background(), "doc.pdf",
		[]scandoc.Backend{geometry, border, broken, heuristic}, log)

	assert.Equal(t, []scandoc.Backend{geometry, heuristic}, compatible)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "a panicking probe should be logged")
}

func TestExtractPage_PreferredSuccessSkipsOthers(t *testing.T) {
	border := &fakeBackend{kind: scandoc.BackendBorder, tables: []scandoc.TableCandidate{table("b")}}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, tables: []scandoc.TableCandidate{table("h")}}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry}

	extractor := scandoc.NewTableExtractor([]scandoc.Backend{heuristic, border}, geometry, scandoc.ExtractorOptions{})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 3)

	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"b"}}, tables[0].Rows)
	assert.Equal(t, scandoc.BackendBorder, tables[0].Source)
	assert.Equal(t, 3, tables[0].Page)
	assert.Zero(t, heuristic.extracts.Load())
	assert.Zero(t, geometry.extracts.Load())
}

func TestExtractPage_EmptyPreferredUsesEveryOtherBackend(t *testing.T) {
	shared := scandoc.TableCandidate{Rows: [][]string{{"a", "b"}, {"1", "2"}}}

	border := &fakeBackend{kind: scandoc.BackendBorder}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, tables: []scandoc.TableCandidate{shared}}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry, tables: []scandoc.TableCandidate{shared, table("g")}}

	extractor := scandoc.NewTableExtractor(
		[]scandoc.Backend{geometry, heuristic, border}, geometry, scandoc.ExtractorOptions{})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)

	require.Len(t, tables, 2)
	assert.Equal(t, scandoc.BackendHeuristic, tables[0].Source, "the higher-priority duplicate wins")
	assert.Equal(t, scandoc.BackendGeometry, tables[1].Source)
	assert.Equal(t, int32(1), border.extracts.Load())
}

func TestExtractPage_NothingCompatibleUsesFallback(t *testing.T) {
	border := &fakeBackend{kind: scandoc.BackendBorder, incompatible: always}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, incompatible: always}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry, tables: []scandoc.TableCandidate{table("g")}}

	extractor := scandoc.NewTableExtractor([]scandoc.Backend{border, heuristic}, geometry, scandoc.ExtractorOptions{})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)

	require.Len(t, tables, 1)
	assert.Equal(t, scandoc.BackendGeometry, tables[0].Source)
	assert.Zero(t, border.extracts.Load())
	assert.Zero(t, heuristic.extracts.Load())
}

func TestExtractPage_FailuresCostOnlyTables(t *testing.T) {
	log, hook := test.NewNullLogger()

	border := &fakeBackend{kind: scandoc.BackendBorder, panics: true}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, err: errors.New("tabula crashed")}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry, tables: []scandoc.TableCandidate{table("g")}}

	extractor := scandoc.NewTableExtractor(
		[]scandoc.Backend{border, heuristic, geometry}, geometry,
		scandoc.ExtractorOptions{Logger: log})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)

	require.Len(t, tables, 1)
	assert.Equal(t, scandoc.BackendGeometry, tables[0].Source)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
			assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), scandoc.ErrBackendExtraction)
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestExtractPage_TimeoutIsZeroCandidates(t *testing.T) {
	log, hook := test.NewNullLogger()

	stall := make(chan struct{})
	t.Cleanup(func() { close(stall) })

	border := &fakeBackend{kind: scandoc.BackendBorder, block: stall, tables: []scandoc.TableCandidate{table("late")}}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, tables: []scandoc.TableCandidate{table("h")}}

	extractor := scandoc.NewTableExtractor(
		[]scandoc.Backend{border, heuristic}, heuristic,
		scandoc.ExtractorOptions{Timeout: 20 * time.Millisecond, Logger: log})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)

	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"h"}}, tables[0].Rows)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestExtractPage_MethodRestrictsBackends(t *testing.T) {
	border := &fakeBackend{kind: scandoc.BackendBorder, tables: []scandoc.TableCandidate{table("b")}}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic, tables: []scandoc.TableCandidate{table("h")}}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry}

	extractor := scandoc.NewTableExtractor(
		[]scandoc.Backend{border, heuristic}, geometry,
		scandoc.ExtractorOptions{Method: "tabula"})
	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)

	require.Len(t, tables, 1)
	assert.Equal(t, scandoc.BackendHeuristic, tables[0].Source)
	assert.Zero(t, border.probes.Load())
}

func TestExtractPage_UnknownMethodWarns(t *testing.T) {
	border := &fakeBackend{kind: scandoc.BackendBorder, tables: []scandoc.TableCandidate{table("b")}}
	heuristic := &fakeBackend{kind: scandoc.BackendHeuristic}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry}

	log, hook := test.NewNullLogger()
	extractor := scandoc.NewTableExtractor(
		[]scandoc.Backend{border, heuristic}, geometry,
		scandoc.ExtractorOptions{Method: "pdfplumber", Logger: log})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Data[logrus.ErrorKey].(error).Error(), `"pdfplumber"`)

	tables := extractor.ExtractPage(context.Background(), "doc.pdf", 0)
	require.Len(t, tables, 1)
	assert.Equal(t, scandoc.BackendBorder, tables[0].Source)
	assert.Equal(t, int32(1), heuristic.probes.Load(), "every backend is still checked for compatibility")
}

func TestExtractAll_HeuristicLostMidDocument(t *testing.T) {
	border := &fakeBackend{kind: scandoc.BackendBorder, incompatible: always}
	heuristic := &fakeBackend{
		kind:         scandoc.BackendHeuristic,
		tables:       []scandoc.TableCandidate{table("tabula")},
		incompatible: func(n int) bool { return n == 5 },
	}
	geometry := &fakeBackend{kind: scandoc.BackendGeometry, tables: []scandoc.TableCandidate{table("geometry")}}

	extractor := scandoc.NewTableExtractor([]scandoc.Backend{border, heuristic}, geometry, scandoc.ExtractorOptions{})
	tables, err := extractor.ExtractAll(context.Background(), "doc.pdf", 10)
	require.NoError(t, err)

	require.Len(t, tables, 10)
	for i, tbl := range tables {
		assert.Equal(t, i, tbl.Page)
		if i == 4 {
			assert.Equal(t, scandoc.BackendGeometry, tbl.Source)
			continue
		}
		assert.Equal(t, scandoc.BackendHeuristic, tbl.Source)
	}
	assert.Equal(t, int32(1), geometry.extracts.Load())
}

func TestExtractAll_Cancelled(t *testing.T) {
	geometry := &fakeBackend{kind: scandoc.BackendGeometry, incompatible: never}
	extractor := scandoc.NewTableExtractor(nil, geometry, scandoc.ExtractorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extractor.ExtractAll(ctx, "doc.pdf", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, geometry.extracts.Load())
}
