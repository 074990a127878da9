package scandoc

import (
	"sort"

	"github.com/pkg/errors"
)

// selectionRank orders backend kinds by preference. Kinds not listed rank
// after all listed ones.
func selectionRank(k BackendKind) int {
	switch k {
	case BackendBorder:
		return 0
	case BackendHeuristic:
		return 1
	default:
		return 2
	}
}

// SelectionOrder returns the compatible backends in the order they should be
// tried: border first, then heuristic, then the rest in their given order.
// The first element is the preferred backend. When nothing is compatible the
// fallback is returned alone, so the order is never empty.
func SelectionOrder(compatible []Backend, fallback Backend) []Backend {
	if len(compatible) == 0 {
		return []Backend{fallback}
	}

	order := make([]Backend, len(compatible))
	copy(order, compatible)
	sort.SliceStable(order, func(i, j int) bool {
		return selectionRank(order[i].Kind()) < selectionRank(order[j].Kind())
	})
	return order
}

// filterByMethod restricts backends to a configured method name. "all" or an
// empty method keeps every backend. An unknown method is an error and also
// keeps every backend.
func filterByMethod(backends []Backend, method string) ([]Backend, error) {
	if method == "" || method == "all" {
		return backends, nil
	}
	kind, ok := ParseBackendKind(method)
	if !ok {
		return backends, errors.Errorf("unknown table extraction method %q", method)
	}

	var out []Backend
	for _, b := range backends {
		if b.Kind() == kind {
			out = append(out, b)
		}
	}
	return out, nil
}
