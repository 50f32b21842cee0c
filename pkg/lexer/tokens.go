package lexer

// Token is an identifier occurrence within a line.
type Token struct {
	Text  string
	Start int
	End   int
}

// IsIdentStart reports whether b may begin a Dart identifier.
func IsIdentStart(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IsIdentPart reports whether b may continue a Dart identifier.
func IsIdentPart(b byte) bool {
	return IsIdentStart(b) || (b >= '0' && b <= '9')
}

// Identifiers returns the maximal identifier tokens of text in order.
// Digits directly following a number are not treated as identifiers, so
// "0x1F" and "1e10" yield nothing.
func Identifiers(text string) []Token {
	var tokens []Token
	n := len(text)
	for i := 0; i < n; {
		c := text[i]
		if c >= '0' && c <= '9' {
			for i < n && IsIdentPart(text[i]) {
				i++
			}
			continue
		}
		if !IsIdentStart(c) {
			i++
			continue
		}
		start := i
		for i < n && IsIdentPart(text[i]) {
			i++
		}
		tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
	}
	return tokens
}

// PrevNonSpace returns the index of the last non-whitespace byte before i, or -1.
func PrevNonSpace(text string, i int) int {
	for j := i - 1; j >= 0; j-- {
		if text[j] != ' ' && text[j] != '\t' {
			return j
		}
	}
	return -1
}

// NextNonSpace returns the index of the first non-whitespace byte at or after i, or -1.
func NextNonSpace(text string, i int) int {
	for j := i; j < len(text); j++ {
		if text[j] != ' ' && text[j] != '\t' {
			return j
		}
	}
	return -1
}

// IdentBefore returns the identifier that ends exactly at i (exclusive) and its start.
func IdentBefore(text string, i int) (string, int) {
	j := i
	for j > 0 && IsIdentPart(text[j-1]) {
		j--
	}
	if j == i || !IsIdentStart(text[j]) {
		return "", i
	}
	return text[j:i], j
}
