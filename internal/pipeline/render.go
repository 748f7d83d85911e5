package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/veridex/internal/model"
)

// Renderer writes a finished assessment as JSON, Markdown, or a terminal
// summary.
type Renderer struct {
	cfg model.OutputConfig
}

// NewRenderer creates a renderer.
func NewRenderer(cfg model.OutputConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// JSON writes the assessment as indented JSON.
func (r *Renderer) JSON(w io.Writer, a *model.OverallAssessment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// Markdown writes a reader-facing report.
func (r *Renderer) Markdown(w io.Writer, a *model.OverallAssessment) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification Report\n\n")
	fmt.Fprintf(&b, "**Input:** %s\n\n", a.Input)
	fmt.Fprintf(&b, "**Verdict:** %s (truth %.0f%%, confidence %.0f%%)\n\n",
		strings.ToUpper(string(a.Verdict)), a.TruthPercentage, a.Confidence)
	if a.Status != model.StatusOK {
		fmt.Fprintf(&b, "> Run status: %s\n\n", a.Status)
	}

	if n := a.VerdictNarrative; n != nil {
		fmt.Fprintf(&b, "%s\n\n", n.Summary)
		if len(n.KeyEvidence) > 0 {
			fmt.Fprintf(&b, "## Key Evidence\n\n")
			for _, line := range n.KeyEvidence {
				fmt.Fprintf(&b, "- %s\n", line)
			}
			fmt.Fprintln(&b)
		}
		if len(n.Limitations) > 0 {
			fmt.Fprintf(&b, "## Limitations\n\n")
			for _, line := range n.Limitations {
				fmt.Fprintf(&b, "- %s\n", line)
			}
			fmt.Fprintln(&b)
		}
	}

	fmt.Fprintf(&b, "## Claims\n\n")
	fmt.Fprintf(&b, "| Claim | Truth | Confidence | Rating | Triangulation |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, v := range a.ClaimVerdicts {
		tri := string(v.Triangulation)
		if v.IsContested {
			tri += " (contested)"
		}
		fmt.Fprintf(&b, "| %s | %.0f%% | %.0f%% (%s) | %s | %s |\n",
			v.ClaimID, v.TruthPercentage, v.Confidence, v.ConfidenceTier, v.Rating, tri)
	}
	fmt.Fprintln(&b)

	if r.cfg.Verbose {
		fmt.Fprintf(&b, "## Assessment Boundaries\n\n")
		for _, bd := range a.ClaimBoundaries {
			fmt.Fprintf(&b, "- **%s** (%s): %s (coherence %.2f)\n",
				bd.Name, bd.ID, bd.ScopeSummary, bd.InternalCoherence)
		}
		fmt.Fprintln(&b)

		if len(a.Warnings) > 0 {
			fmt.Fprintf(&b, "## Warnings\n\n")
			for _, warn := range a.Warnings {
				fmt.Fprintf(&b, "- %s\n", warn)
			}
			fmt.Fprintln(&b)
		}
	}

	g := a.QualityGates
	fmt.Fprintf(&b, "## Quality Gates\n\n")
	fmt.Fprintf(&b, "- Claims extracted: %d of %d candidates kept\n", g.ExtractionKept, g.ExtractionTotal)
	fmt.Fprintf(&b, "- Confidence tiers: %d high / %d medium / %d low\n",
		g.HighConfidence, g.MediumConfidence, g.LowConfidence)
	fmt.Fprintf(&b, "- Structural warnings: %d\n", g.StructuralWarnings)
	if g.ClusteringFallback {
		fmt.Fprintf(&b, "- Boundary clustering fell back to a single boundary\n")
	}
	if g.DebateFallback {
		fmt.Fprintf(&b, "- One or more verdicts were synthesized placeholders\n")
	}
	fmt.Fprintln(&b)

	if r.cfg.IncludeFooter {
		fmt.Fprintf(&b, "---\n*Generated by veridex (run %s) at %s*\n",
			a.RunID, a.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary writes the one-screen terminal summary.
func (r *Renderer) Summary(w io.Writer, a *model.OverallAssessment) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Verdict: %s  truth %.0f%%  confidence %.0f%%  status %s\n",
		strings.ToUpper(string(a.Verdict)), a.TruthPercentage, a.Confidence, a.Status)
	for _, v := range a.ClaimVerdicts {
		marker := " "
		if v.IsContested {
			marker = "!"
		}
		fmt.Fprintf(&b, "  %s %-6s %3.0f%%  %-13s %s\n",
			marker, v.ClaimID, v.TruthPercentage, v.Rating, v.Triangulation)
	}
	if len(a.Warnings) > 0 {
		fmt.Fprintf(&b, "  %d warning(s); use --verbose or the markdown report for details\n", len(a.Warnings))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
