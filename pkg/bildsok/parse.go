package bildsok

import (
	"strings"
)

// Fields maps semantic keys (KeySummary, KeyObjects, ...) to trimmed values.
type Fields map[string]string

// Parse splits a labeled vision description into its component fields.
// Lines that match no label in the mode's table are dropped; a label seen
// again overwrites the earlier value. Parse never fails - an unlabeled blob
// yields an empty map.
func Parse(description string, mode Mode) Fields {
	parsed := Fields{}
	rules := mode.spec().labels

	for _, line := range strings.Split(strings.TrimSpace(description), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, rule := range rules {
			if !strings.HasPrefix(line, rule.label) {
				continue
			}
			parsed[rule.key] = strings.TrimSpace(strings.TrimPrefix(line, rule.label))
			break
		}
	}

	return parsed
}
