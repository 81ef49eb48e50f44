package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"meridian/internal/core"
	"meridian/internal/email"
	"meridian/internal/ingest"
	"meridian/internal/send"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1F4E79"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	impactStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#0F766E"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
)

// renderDigest formats a stored digest for the terminal
func renderDigest(d core.Digest) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s", headerStyle.Render(email.FormatDate(d.DigestDate)), mutedStyle.Render(string(d.Status)))
	if d.Meta.Fallback {
		header += mutedStyle.Render("  (fallback)")
	}
	b.WriteString(header)
	b.WriteString("\n")
	if d.Content.BriefSummary != "" {
		b.WriteString(boxStyle.Render(d.Content.BriefSummary))
		b.WriteString("\n")
	}

	writeSection(&b, "Banking", d.Content.BankingStories)
	writeSection(&b, "AI", d.Content.AIStories)

	if d.Content.TotalStories() == 0 {
		b.WriteString(mutedStyle.Render("No qualifying stories today."))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, label string, stories []core.DigestStory) {
	if len(stories) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render(label))
	b.WriteString("\n")
	for i, s := range stories {
		fmt.Fprintf(b, "%d. %s\n", i+1, titleStyle.Render(s.Title))
		if s.ExecutiveSummary != "" {
			fmt.Fprintf(b, "   %s\n", s.ExecutiveSummary)
		}
		if s.BusinessImpact != "" {
			fmt.Fprintf(b, "   %s\n", impactStyle.Render(s.BusinessImpact))
		}
		fmt.Fprintf(b, "   %s\n", mutedStyle.Render(s.SourceURL))
	}
}

func printIngestStats(w io.Writer, stats *ingest.Stats) {
	fmt.Fprintf(w, "Ingest: %d attempted, %d new, %d duplicates\n", stats.Attempted, stats.Inserted, stats.Duplicates)
	for _, src := range stats.FailedSources {
		fmt.Fprintf(w, "  failed: %s\n", mutedStyle.Render(src))
	}
}

func printSendResult(w io.Writer, res *send.Result) {
	if res.Skipped != "" {
		fmt.Fprintf(w, "Send %s: skipped (%s)\n", res.Date, res.Skipped)
		return
	}
	fmt.Fprintf(w, "Send %s: %d sent, %d failed\n", res.Date, res.Sent, res.Failed)
}
