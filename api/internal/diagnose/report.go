package diagnose

import (
	"fmt"
	"strings"
)

// ConfidencePercent is confidence on a 0..100 scale.
func (r Result) ConfidencePercent() float64 { return r.Confidence * 100 }

// ConfidenceBand buckets the confidence the way the result card colours it.
func (r Result) ConfidenceBand() string {
	switch p := r.ConfidencePercent(); {
	case p > 90:
		return "high"
	case p > 70:
		return "medium"
	default:
		return "low"
	}
}

// FormatText renders a plain-text report for terminals and chat clients.
func FormatText(r Result) string {
	var b strings.Builder
	if r.IsHealthy {
		b.WriteString("Great news! Your crop appears to be healthy.\n")
		if r.DIYTip != "" {
			fmt.Fprintf(&b, "\nTip: %s\n", r.DIYTip)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%s (%s)\n", r.IssueName, r.IssueType)
	fmt.Fprintf(&b, "AI confidence: %.1f%% (%s)\n", r.ConfidencePercent(), r.ConfidenceBand())
	if r.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Description)
	}
	writeList(&b, "Treatment plan", r.Treatment)
	writeList(&b, "Prevention tips", r.Prevention)
	if r.DIYTip != "" {
		fmt.Fprintf(&b, "\nQuick DIY tip: %s\n", r.DIYTip)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
