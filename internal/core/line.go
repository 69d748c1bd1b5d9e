package core

import "strings"

const (
	byteBackspace = 8
	byteDelete    = 127
)

// IsErase reports whether b is a backspace or delete byte.
func IsErase(b byte) bool {
	return b == byteBackspace || b == byteDelete
}

// FoldBackspaces applies each backspace/delete byte in raw left-to-right as
// "remove previous character".
func FoldBackspaces(raw []byte) []byte {
	folded := make([]byte, 0, len(raw))
	for _, b := range raw {
		if IsErase(b) {
			if len(folded) > 0 {
				folded = folded[:len(folded)-1]
			}
			continue
		}
		folded = append(folded, b)
	}
	return folded
}

// CleanLine folds editing bytes out of raw and trims surrounding
// whitespace. ok is false when the line carries non-ASCII bytes; such
// lines are dropped by the caller.
func CleanLine(raw []byte) (line string, ok bool) {
	folded := FoldBackspaces(raw)
	for _, b := range folded {
		if b > 127 {
			return "", false
		}
	}
	return strings.TrimSpace(string(folded)), true
}
