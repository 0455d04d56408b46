package bot

import "strings"

// Confirmation vocabulary for the destructive-action detour. Matching is
// whole-message and case-insensitive so an ordinary sentence containing
// "no" is never mistaken for an answer.
var (
	yesWords = []string{"yes", "y", "да", "ha"}
	noWords  = []string{"no", "n", "нет", "yo'q"}
)

// ParseConfirmation classifies text as a yes/no answer. The second return
// value is false when the text is neither.
func ParseConfirmation(text string) (confirmed, recognized bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!")

	for _, w := range yesWords {
		if normalized == w {
			return true, true
		}
	}
	for _, w := range noWords {
		if normalized == w {
			return false, true
		}
	}
	return false, false
}
