package event

import "strings"

// First returns the content of the first [..] pair of s.
func First(s string) (string, bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return "", false
	}
	return closeAt(s, open)
}

// After returns the content of the [..] pair opened by marker, e.g. After(s, "for [").
// The marker has to end with '['.
func After(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 || !strings.HasSuffix(marker, "[") {
		return "", false
	}
	return closeAt(s, idx+len(marker)-1)
}

// Last returns the content of the last [..] pair of s.
func Last(s string) (string, bool) {
	open := strings.LastIndexByte(s, '[')
	if open < 0 {
		return "", false
	}
	return closeAt(s, open)
}

func closeAt(s string, open int) (string, bool) {
	end := strings.IndexByte(s[open+1:], ']')
	if end < 0 {
		return "", false
	}
	return s[open+1 : open+1+end], true
}

// stripANSI removes terminal escape sequences mwc713 uses to color output.
func stripANSI(s string) string {
	if strings.IndexByte(s, '\x1b') < 0 {
		return s
	}
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
