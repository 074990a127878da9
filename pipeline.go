package scandoc

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ExtractorOptions configures a TableExtractor.
type ExtractorOptions struct {
	// Method restricts the backends: all, geometry, border or heuristic
	Method string

	// Timeout bounds each backend call; zero means no limit
	Timeout time.Duration

	Logger logrus.FieldLogger
}

// TableExtractor runs the backend pipeline over a document: probe, select,
// run the preferred backend, fall back to the others on an empty result and
// reconcile per page.
type TableExtractor struct {
	backends []Backend
	fallback Backend
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewTableExtractor builds an extractor. fallback is used when no backend
// in the set is compatible; it is normally the geometry backend.
func NewTableExtractor(backends []Backend, fallback Backend, opts ExtractorOptions) *TableExtractor {
	log := opts.Logger
	if log == nil {
		log = discardLogger()
	}
	backends, err := filterByMethod(backends, opts.Method)
	if err != nil {
		log.WithError(err).Warn("ignoring table extraction method, using every backend")
	}
	return &TableExtractor{
		backends: backends,
		fallback: fallback,
		timeout:  opts.Timeout,
		log:      log,
	}
}

// ExtractPage returns the reconciled tables of one 0-based page.
func (e *TableExtractor) ExtractPage(ctx context.Context, path string, page int) []ReconciledTable {
	compatible := Probe(ctx, path, e.backends, e.log)
	order := SelectionOrder(compatible, e.fallback)
	if order[0] == nil {
		return nil
	}

	log := e.log.WithField("page", page)
	log.WithField("backend", order[0].Kind().String()).Debug("running preferred table backend")

	preferred := invokeBackend(ctx, order[0], path, page, e.timeout, e.log)
	if len(preferred) > 0 || len(order) == 1 {
		return Reconcile(page, preferred)
	}

	log.Debug("preferred backend found no tables, trying the remaining backends")

	rest := order[1:]
	results := make([][]TableCandidate, len(rest))
	var g errgroup.Group
	for i, b := range rest {
		g.Go(func() error {
			results[i] = invokeBackend(ctx, b, path, page, e.timeout, e.log)
			return nil
		})
	}
	_ = g.Wait()

	return Reconcile(page, results...)
}

// ExtractAll processes pages in order and returns every reconciled table.
// Backend failures only cost tables; the sole error is ctx cancellation.
func (e *TableExtractor) ExtractAll(ctx context.Context, path string, pageCount int) ([]ReconciledTable, error) {
	var all []ReconciledTable
	for page := range pageCount {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		all = append(all, e.ExtractPage(ctx, path, page)...)
	}
	return all, nil
}
