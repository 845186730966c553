package agent

import (
	"fmt"
	"strings"
)

const reportInstructions = `When you are done, end your reply with a single JSON object and nothing after it:
{"outcome": "recovered" | "failed", "root_cause": "<one or two sentences>", "actions": ["<action taken>", ...]}
Use "recovered" only if you verified the service is healthy again.`

// remediationPrompt asks an autonomous agent to diagnose and fix the service
func remediationPrompt(req *Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s service has crashed and failed to recover after %d simple restart attempts.\n\n",
		req.Spec.Name, req.Attempts)
	fmt.Fprintf(&b, "Service configuration: %s\n", req.Spec)
	if req.Spec.RestartCommand != "" {
		fmt.Fprintf(&b, "Restart command: %s\n", req.Spec.RestartCommand)
	}
	if req.Spec.HealthCheckCommand != "" {
		fmt.Fprintf(&b, "Health check command: %s\n", req.Spec.HealthCheckCommand)
	}
	b.WriteString("\nDiagnostics captured by the watchdog:\n")
	b.WriteString(req.Diagnostics.Summary())
	b.WriteString(`
Use the available tools to:
1. Analyze the diagnostics and error logs and identify the root cause
2. Apply fixes using Bash commands (clear caches, update config, fix permissions, etc.)
3. Restart the service if needed
4. Verify the service is healthy after fixes

Be autonomous and thorough. Fix the issue completely.

`)
	b.WriteString(reportInstructions)
	return b.String()
}

// analysisPrompt asks a model for a root-cause analysis only
func analysisPrompt(req *Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s service is down and %d simple restarts did not bring it back.\n", req.Spec.Name, req.Attempts)
	b.WriteString("You cannot run commands. Based only on the diagnostics below, identify the most likely root cause and the actions an operator should take.\n\n")
	b.WriteString(req.Diagnostics.Summary())
	b.WriteString(`
Respond with JSON only:
{"root_cause": "<one or two sentences>", "actions": ["<recommended action>", ...]}`)
	return b.String()
}
