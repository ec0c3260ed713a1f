package analyzer

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens when a single frame cannot be classified
type FailurePolicy string

const (
	// PolicyIsolate labels the failed frame Unknown and carries on
	PolicyIsolate FailurePolicy = "isolate"
	// PolicyAbort stops the invocation at the first failed frame
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy validates a policy name
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyIsolate, PolicyAbort:
		return p, nil
	case "":
		return PolicyIsolate, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}
