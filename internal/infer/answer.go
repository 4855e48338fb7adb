package infer

import "strings"

// FailKind classifies why an ask produced no real answer.
type FailKind string

const (
	FailNone      FailKind = ""
	FailTransport FailKind = "transport"
	FailAPI       FailKind = "api"
	FailEmpty     FailKind = "empty_response"
)

// Answer is the tagged result of one inference call. Failures travel as
// values, never as Go errors: a model that cannot answer still produces an
// entry in the result file.
type Answer struct {
	Text   string
	Kind   FailKind
	Detail string
}

// OK wraps real model output.
func OK(text string) Answer { return Answer{Text: strings.TrimSpace(text)} }

// Failed reports whether the answer is a recorded failure.
func (a Answer) Failed() bool { return a.Kind != FailNone }

// String serializes the answer for the result file. Failures keep the exact
// sentinel prefixes earlier tooling scans for, so files stay compatible.
func (a Answer) String() string {
	switch a.Kind {
	case FailNone:
		return a.Text
	case FailTransport:
		return "API Call Error: " + a.Detail
	case FailEmpty:
		return "ERROR: Received an empty or invalid response from the model."
	default:
		return "ERROR: " + a.Detail
	}
}

// IsSentinel reports whether a serialized answer string marks a recorded
// failure rather than real model output.
func IsSentinel(s string) bool {
	return strings.HasPrefix(s, "ERROR") || strings.HasPrefix(s, "API Call Error")
}
