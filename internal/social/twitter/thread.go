package twitter

import (
	"strings"
	"unicode"
)

// SplitThread breaks text into segments of at most limit runes. A segment
// ends at the last whitespace inside the final fifth of the limit when there
// is one, otherwise the text is cut hard at the limit.
func SplitThread(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	if limit <= 0 {
		return []string{string(runes)}
	}

	var segments []string
	floor := limit - limit/5
	for len(runes) > limit {
		cut := limit
		for i := limit; i >= floor; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if seg := strings.TrimSpace(string(runes[:cut])); seg != "" {
			segments = append(segments, seg)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		segments = append(segments, string(runes))
	}
	return segments
}
