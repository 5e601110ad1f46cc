package synthesis

import "strings"

// FallbackReply is returned by Normalize when the model produced
// nothing usable. It is a valid Reply, not an error.
const FallbackReply = "Sorry, I could not generate a response."

// Normalize sanitizes raw model output into a display/speech-ready
// string: leading/trailing whitespace is trimmed, internal whitespace
// runs (including newlines) collapse to single spaces, and markdown
// asterisks become double quotes so emphasis never leaks into spoken
// or plain-text output. Blank input yields FallbackReply. Normalize
// never fails and is idempotent.
func Normalize(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return FallbackReply
	}
	return strings.ReplaceAll(strings.Join(fields, " "), "*", `"`)
}
