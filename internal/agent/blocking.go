package agent

import (
	"strings"
)

// Phrases that mean the agent could not proceed at all, as opposed to
// partial progress. Matched case-insensitively against combined output.
var blockingPhrases = []string{
	"cannot proceed",
	"unable to continue",
	"blocking error",
	"cannot continue",
	"i am unable to",
	"permission denied by policy",
}

// contextWindow is how many bytes of surrounding output are kept around a
// matched phrase for user-facing reporting.
const contextWindow = 120

// DetectBlockingError scans agent output for phrases indicating the agent
// gave up entirely. It returns a case-preserved excerpt around the first
// match. This must be checked even on a zero exit code: the agent may
// report success while having silently given up.
func DetectBlockingError(stdout, stderr []byte) (string, bool) {
	combined := string(stdout) + "\n" + string(stderr)
	lowered := strings.ToLower(combined)

	for _, phrase := range blockingPhrases {
		idx := strings.Index(lowered, phrase)
		if idx == -1 {
			continue
		}
		start := idx - contextWindow
		if start < 0 {
			start = 0
		}
		end := idx + len(phrase) + contextWindow
		if end > len(combined) {
			end = len(combined)
		}
		return strings.TrimSpace(combined[start:end]), true
	}
	return "", false
}
