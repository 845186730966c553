package ai

import (
	"testing"
)

type testReport struct {
	Outcome   string   `json:"outcome"`
	RootCause string   `json:"root_cause"`
	Actions   []string `json:"actions"`
}

func TestParse_DirectJSON(t *testing.T) {
	result := Parse[testReport](`{"outcome": "recovered", "root_cause": "disk full"}`, "")
	if !result.Success {
		t.Fatalf("Expected successful parse, got error: %s", result.Error)
	}
	if result.Data.Outcome != "recovered" {
		t.Errorf("Expected outcome=recovered, got %q", result.Data.Outcome)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	result := Parse[testReport]("   ", "agent report")
	if result.Success {
		t.Error("Expected parse to fail on empty input")
	}
	if result.Error != "agent report: empty input" {
		t.Errorf("Unexpected error: %s", result.Error)
	}
}

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"outcome\": \"failed\"}\n```",
			want:  "failed",
		},
		{
			name:  "fence with preamble",
			input: "Here's my report:\n```json\n{\"outcome\": \"recovered\"}\n```\nDone.",
			want:  "recovered",
		},
		{
			name:  "trailing comma",
			input: `{"outcome": "unknown", "actions": ["a", "b",],}`,
			want:  "unknown",
		},
		{
			name:  "unquoted keys",
			input: `{outcome: "recovered"}`,
			want:  "recovered",
		},
		{
			name:  "comments",
			input: "{\n  // the final verdict\n  \"outcome\": \"failed\"\n}",
			want:  "failed",
		},
		{
			name:  "prose around object",
			input: `I restarted nginx and verified it. Final report: {"outcome": "recovered", "root_cause": "bad config"} Thanks!`,
			want:  "recovered",
		},
		{
			name: "last object wins",
			input: `Checked {"service": "api"} status first.
Then fixed it.
{"outcome": "recovered", "actions": ["restarted"]}`,
			want: "recovered",
		},
		{
			name:  "braces inside strings",
			input: `Result: {"outcome": "failed", "root_cause": "template had an unmatched { brace"}`,
			want:  "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[testReport](tt.input, "test")
			if !result.Success {
				t.Fatalf("parse failed: %s", result.Error)
			}
			if result.Data.Outcome != tt.want {
				t.Errorf("outcome = %q, want %q", result.Data.Outcome, tt.want)
			}
		})
	}
}

func TestParse_NoJSON(t *testing.T) {
	result := Parse[testReport]("I could not fix the service.", "agent")
	if result.Success {
		t.Fatal("expected failure")
	}
}

func TestParseOrDefault(t *testing.T) {
	fallback := testReport{Outcome: "unknown"}
	got := ParseOrDefault("not json", fallback, "")
	if got.Outcome != "unknown" {
		t.Errorf("expected fallback, got %+v", got)
	}
	got = ParseOrDefault(`{"outcome": "failed"}`, fallback, "")
	if got.Outcome != "failed" {
		t.Errorf("expected parsed value, got %+v", got)
	}
}

func TestObjectCandidates(t *testing.T) {
	got := objectCandidates(`a {"x": {"y": 1}} b {"z": "}"} c {unclosed`)
	want := []string{`{"z": "}"}`, `{"x": {"y": 1}}`}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncate long = %q", got)
	}
}
