package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/f1re/watchdog/internal/types"
)

// maxMessageLength is Telegram's message limit
const maxMessageLength = 4096

// statusLine is the human summary of the service's final state
func statusLine(r *types.RecoveryReport) string {
	if r.Succeeded() {
		return "healthy (confirmed by probe)"
	}
	if r.Error != "" {
		return "down, agent failed to recover it"
	}
	return "down, manual intervention needed"
}

// FormatText renders a report as plain text
func FormatText(r *types.RecoveryReport) string {
	var b strings.Builder
	b.WriteString(r.Title())
	b.WriteString("\n")
	fmt.Fprintf(&b, "Outcome: %s\n", r.Outcome)
	if r.AgentOutcome != "" {
		fmt.Fprintf(&b, "Agent reported: %s\n", r.AgentOutcome)
	}
	fmt.Fprintf(&b, "Status: %s\n", statusLine(r))
	fmt.Fprintf(&b, "Restart attempts: %d\n", r.Attempts)
	if r.Duration > 0 {
		fmt.Fprintf(&b, "Escalation took: %s\n", r.Duration.Round(time.Second))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	if r.RootCause != "" {
		fmt.Fprintf(&b, "Root cause: %s\n", r.RootCause)
	}
	if len(r.Actions) > 0 {
		b.WriteString("Actions taken:\n")
		for _, a := range r.Actions {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHTML renders a report using Telegram's HTML subset
func FormatHTML(r *types.RecoveryReport) string {
	icon := "⚠️"
	if r.Succeeded() {
		icon = "✅"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", icon, html.EscapeString(r.Title()))
	fmt.Fprintf(&b, "<b>Outcome:</b> %s\n", html.EscapeString(string(r.Outcome)))
	if r.AgentOutcome != "" {
		fmt.Fprintf(&b, "<b>Agent reported:</b> %s\n", html.EscapeString(string(r.AgentOutcome)))
	}
	fmt.Fprintf(&b, "<b>Status:</b> %s\n", html.EscapeString(statusLine(r)))
	fmt.Fprintf(&b, "<b>Restart attempts:</b> %d\n", r.Attempts)
	if r.Error != "" {
		fmt.Fprintf(&b, "<b>Error:</b> <code>%s</code>\n", html.EscapeString(r.Error))
	}
	if r.RootCause != "" {
		fmt.Fprintf(&b, "\n<b>Root cause:</b>\n%s\n", html.EscapeString(r.RootCause))
	}
	if len(r.Actions) > 0 {
		b.WriteString("\n<b>Actions taken:</b>\n")
		for _, a := range r.Actions {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(a))
		}
	}
	return truncateMessage(strings.TrimRight(b.String(), "\n"), maxMessageLength)
}

// formatStartupHTML renders the startup announcement
func formatStartupHTML(s Startup) string {
	var b strings.Builder
	b.WriteString("🐕 <b>Watchdog started</b>\n\n")
	fmt.Fprintf(&b, "<b>Monitoring:</b> %s\n", html.EscapeString(strings.Join(s.Services, ", ")))
	fmt.Fprintf(&b, "<b>Check interval:</b> %s\n", s.Interval)
	fmt.Fprintf(&b, "<b>Max simple restarts:</b> %d\n", s.MaxRestarts)
	if s.Agent != "" {
		fmt.Fprintf(&b, "<b>Agent:</b> %s", html.EscapeString(s.Agent))
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncateMessage cuts s to at most limit bytes on a rune boundary
func truncateMessage(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const suffix = "\n…"
	cut := limit - len(suffix)
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
