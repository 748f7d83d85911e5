package research

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veridex/internal/model"
)

// buildQueries composes 2-3 search queries for a target claim from its
// statement and its expected-evidence hint. Query composition is plain
// templating over the claim text; no model call is involved.
func buildQueries(claim model.AtomicClaim) []string {
	stmt := strings.TrimSpace(claim.Statement)
	queries := []string{stmt}

	if hint := strings.TrimSpace(claim.ExpectedEvidenceProfile); hint != "" {
		queries = append(queries, stmt+" "+hint)
	}
	queries = append(queries, fmt.Sprintf("%q evidence", stmt))

	return queries
}

// buildContradictionQueries composes counter-phrased queries for the
// contradiction phase: negation plus criticism/rebuttal framing.
func buildContradictionQueries(claim model.AtomicClaim) []string {
	stmt := strings.TrimSpace(claim.Statement)
	return []string{
		fmt.Sprintf("is it true that %s", stmt),
		stmt + " criticism",
		stmt + " rebuttal debunked",
	}
}
