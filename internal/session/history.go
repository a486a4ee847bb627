package session

// DefaultHistoryLimit is one system turn plus nine dialogue turns.
const DefaultHistoryLimit = 10

// Trim keeps the first (system) turn and the most recent limit-1 turns.
// Histories at or under the limit are returned unchanged.
func Trim(messages []Turn, limit int) []Turn {
	if limit < 2 || len(messages) <= limit {
		return messages
	}
	trimmed := make([]Turn, 0, limit)
	trimmed = append(trimmed, messages[0])
	return append(trimmed, messages[len(messages)-(limit-1):]...)
}
