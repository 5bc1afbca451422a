package chat

import "strings"

const maxTitleRunes = 60

// DeriveTitle turns a first message into a session title. It returns ""
// when the message has no visible text.
func DeriveTitle(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= maxTitleRunes {
		return collapsed
	}
	return string(runes[:maxTitleRunes]) + "…"
}
