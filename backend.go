package scandoc

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Backend is one table detection strategy.
type Backend interface {
	Kind() BackendKind

	// Compatible returns nil when the backend can run on the document. A
	// missing runtime dependency is reported as ErrBackendUnavailable.
	Compatible(ctx context.Context, path string) error

	// Extract returns the tables found on a 0-based page.
	Extract(ctx context.Context, path string, page int) ([]TableCandidate, error)
}

// invokeBackend runs one backend on one page. It never fails: errors, panics
// and timeouts are logged and reported as zero candidates. A timeout of zero
// means no limit.
func invokeBackend(ctx context.Context, b Backend, path string, page int, timeout time.Duration, log logrus.FieldLogger) []TableCandidate {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fields := logrus.Fields{"backend": b.Kind().String(), "page": page}

	type result struct {
		tables []TableCandidate
		err    error
	}
	// Buffered so an abandoned call can still finish and exit
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: markf(ErrBackendExtraction, fmt.Errorf("panic: %v", r), "%s backend", b.Kind())}
			}
		}()
		tables, err := b.Extract(ctx, path, page)
		done <- result{tables: tables, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		log.WithFields(fields).WithError(ctx.Err()).Warn("table backend did not finish, using zero candidates")
		return nil
	}

	if res.err != nil {
		log.WithFields(fields).WithError(markf(ErrBackendExtraction, res.err, "%s backend", b.Kind())).
			Warn("table extraction failed, using zero candidates")
		return nil
	}

	out := make([]TableCandidate, 0, len(res.tables))
	for _, t := range res.tables {
		t.Rows = normalizeGrid(t.Rows)
		t.Source = b.Kind()
		out = append(out, t)
	}
	return out
}

// Probe asks every backend whether it can run on the document. Probes run
// concurrently and share no state; an error or panic counts as incompatible.
// The result keeps the input order.
func Probe(ctx context.Context, path string, backends []Backend, log logrus.FieldLogger) []Backend {
	if log == nil {
		log = discardLogger()
	}

	ok := make([]bool, len(backends))
	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("backend", b.Kind().String()).Warnf("compatibility probe panicked: %v", r)
				}
			}()
			if err := b.Compatible(ctx, path); err != nil {
				log.WithField("backend", b.Kind().String()).WithError(err).Debug("backend not compatible")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	// Probe errors are absorbed above, Wait only joins
	_ = g.Wait()

	var compatible []Backend
	for i, b := range backends {
		if ok[i] {
			compatible = append(compatible, b)
		}
	}
	return compatible
}
