package dialect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder is one named parameter token found in SQL text.
type Placeholder struct {
	Name   string // without the marker
	Marker byte   // '@' or ':'
	Start  int    // byte offset of the marker
	End    int    // byte offset just past the name
}

// Placeholders scans query for @name and :name tokens in occurrence order.
// Quoted literals and identifiers, comments, :: casts, := assignments and
// @@ system variables are skipped.
func Placeholders(query string) []Placeholder {
	var out []Placeholder
	n := len(query)
	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
		case c == '-' && i+1 < n && query[i+1] == '-':
			if nl := strings.IndexByte(query[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = n
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			if end := strings.Index(query[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = n
			}
		case c == '@' || c == ':':
			if i+1 < n && (query[i+1] == c || (c == ':' && query[i+1] == '=')) {
				i = skipWord(query, i+2)
				continue
			}
			if i > 0 && precededByWord(query, i) {
				i++
				continue
			}
			end := skipWord(query, i+1)
			if end == i+1 {
				i++
				continue
			}
			out = append(out, Placeholder{Name: query[i+1 : end], Marker: c, Start: i, End: end})
			i = end
		default:
			i++
		}
	}
	return out
}

// skipQuoted returns the offset just past the literal or identifier opened at i.
// Doubled quotes escape in every engine; a backslash escapes inside '' and ""
// as MySQL and PostgreSQL E'' strings do.
func skipQuoted(query string, i int, quote byte) int {
	n := len(query)
	for j := i + 1; j < n; j++ {
		if query[j] == '\\' && quote != '`' {
			j++
			continue
		}
		if query[j] != quote {
			continue
		}
		if j+1 < n && query[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return n
}

func skipWord(query string, i int) int {
	for i < len(query) {
		r, size := utf8.DecodeRuneInString(query[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	return i
}

func precededByWord(query string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(query[:i])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
