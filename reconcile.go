package scandoc

import (
	"fmt"
	"strings"
)

// signatureSample is the size of the top-left window compared by Signature.
const signatureSample = 3

// Signature identifies a table by its dimensions and the text of its top-left
// 3x3 corner. Tables of at most 3x3 are compared on their full content;
// larger tables sharing dimensions and corner are treated as one.
func Signature(c TableCandidate) string {
	var sample []string
	for r := 0; r < len(c.Rows) && r < signatureSample; r++ {
		row := c.Rows[r]
		for col := 0; col < len(row) && col < signatureSample; col++ {
			sample = append(sample, row[col])
		}
	}
	return fmt.Sprintf("%dx%d:%q", c.NumRows(), c.NumCols(), strings.Join(sample, "\x1f"))
}

// Reconcile merges candidate lists for one page. Lists are taken in priority
// order; within the merged sequence the first candidate of every signature
// wins. Empty candidates are discarded.
func Reconcile(page int, lists ...[]TableCandidate) []ReconciledTable {
	seen := make(map[string]bool)
	var out []ReconciledTable
	for _, list := range lists {
		for _, c := range list {
			if c.NumRows() == 0 || c.IsEmpty() {
				continue
			}
			sig := Signature(c)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			out = append(out, ReconciledTable{TableCandidate: c, Page: page})
		}
	}
	return out
}

// Candidates returns the reconciled tables as plain candidates.
func Candidates(tables []ReconciledTable) []TableCandidate {
	out := make([]TableCandidate, len(tables))
	for i, t := range tables {
		out[i] = t.TableCandidate
	}
	return out
}
