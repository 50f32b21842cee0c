package collector

import (
	"strings"

	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

// maxSignatureLines bounds how far a parameter list and body opener are
// followed across lines.
const maxSignatureLines = 64

// declModifiers are keywords that may directly precede a function name.
var declModifiers = map[string]bool{
	"static":    true,
	"factory":   true,
	"external":  true,
	"const":     true,
	"void":      true,
	"dynamic":   true,
	"covariant": true,
	"Function":  true,
}

type funcMatch struct {
	name      string
	col       int
	empty     bool
	ctor      bool
	hasPrefix bool
}

// matchFunction looks for a function or constructor declaration starting on
// codes[line]. owner is the innermost open type body, nil at top level.
// When single is set an abstract ";" body is rejected; commented-out code is
// matched this way, one line at a time.
func matchFunction(codes []string, line int, owner *frame, single bool) (funcMatch, bool) {
	code := codes[line]
	ownerName := ""
	if owner != nil && owner.category != models.CategoryExtension && owner.category != models.CategoryAnonymousExtension {
		ownerName = owner.name
	}
	for _, tok := range lexer.Identifiers(code) {
		if lexer.IsKeyword(tok.Text) {
			continue
		}
		prefix := strings.TrimRight(code[:tok.Start], " \t")
		if strings.Contains(prefix, "=") {
			return funcMatch{}, false
		}
		if !acceptablePrefix(prefix) {
			continue
		}

		name := tok.Text
		j := lexer.NextNonSpace(code, tok.End)
		if j >= 0 && code[j] == '.' {
			k := lexer.NextNonSpace(code, j+1)
			if k < 0 || !lexer.IsIdentStart(code[k]) {
				continue
			}
			end := k
			for end < len(code) && lexer.IsIdentPart(code[end]) {
				end++
			}
			name += "." + code[k:end]
			j = lexer.NextNonSpace(code, end)
		}
		if j >= 0 && code[j] == '<' {
			j = skipAngles(code, j)
			if j >= 0 {
				j = lexer.NextNonSpace(code, j)
			}
		}
		if j < 0 || code[j] != '(' {
			continue
		}

		ctor := ownerName != "" && (name == ownerName || strings.HasPrefix(name, ownerName+"."))
		if strings.Contains(name, ".") && !ctor {
			continue
		}

		sig, ok := scanSignature(codes, line, j, ctor)
		if !ok || (sig.abstract && (single || (!ctor && owner != nil && owner.category == models.CategoryEnum))) {
			continue
		}
		return funcMatch{
			name:      name,
			col:       tok.Start,
			empty:     sig.empty,
			ctor:      ctor,
			hasPrefix: prefix != "",
		}, true
	}
	return funcMatch{}, false
}

// acceptablePrefix reports whether text before a candidate name can be a
// return type or modifier list rather than part of an expression.
func acceptablePrefix(prefix string) bool {
	if prefix == "" {
		return true
	}
	last := prefix[len(prefix)-1]
	switch {
	case last == '.' || last == ':' || last == '@':
		return false
	case last == '>' || last == '?' || last == ')':
		return true
	case !lexer.IsIdentPart(last):
		return false
	}
	word, _ := lexer.IdentBefore(prefix, len(prefix))
	switch word {
	case "set", "operator", "get":
		return false
	}
	if lexer.IsKeyword(word) && !declModifiers[word] {
		return false
	}
	return true
}

// skipAngles returns the index just past the '>' matching the '<' at i, or -1.
func skipAngles(code string, i int) int {
	depth := 0
	for ; i < len(code); i++ {
		switch code[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '(', ')', '{', '}', ';', '=':
			return -1
		}
	}
	return -1
}

type signature struct {
	empty    bool
	abstract bool // terminated by ';' without a body
}

// cursor walks code text across line boundaries, treating line breaks as blanks.
type cursor struct {
	codes     []string
	line, col int
	end       int
}

func newCursor(codes []string, line, col int) *cursor {
	end := line + maxSignatureLines
	if end > len(codes) {
		end = len(codes)
	}
	return &cursor{codes: codes, line: line, col: col, end: end}
}

// skipSpace moves to the next non-blank byte and reports whether one exists.
func (c *cursor) skipSpace() bool {
	for c.line < c.end {
		text := c.codes[c.line]
		for c.col < len(text) {
			if b := text[c.col]; b != ' ' && b != '\t' {
				return true
			}
			c.col++
		}
		c.line++
		c.col = 0
	}
	return false
}

func (c *cursor) peek() byte {
	return c.codes[c.line][c.col]
}

func (c *cursor) hasPrefix(s string) bool {
	return strings.HasPrefix(c.codes[c.line][c.col:], s)
}

func (c *cursor) hasWord(w string) bool {
	if !c.hasPrefix(w) {
		return false
	}
	rest := c.codes[c.line][c.col+len(w):]
	return rest == "" || !lexer.IsIdentPart(rest[0])
}

// skipBalanced consumes a parenthesized group starting at the cursor.
func (c *cursor) skipBalanced() bool {
	depth := 0
	for c.skipSpace() {
		switch c.peek() {
		case '(':
			depth++
		case ')':
			depth--
		}
		c.col++
		if depth == 0 {
			return true
		}
	}
	return false
}

// scanSignature follows a parameter list starting at the '(' at (line, col)
// and decides whether a function body follows it.
func scanSignature(codes []string, line, col int, ctor bool) (signature, bool) {
	c := newCursor(codes, line, col)
	if !c.skipBalanced() {
		return signature{}, false
	}

	for c.skipSpace() {
		n := 0
		if c.hasWord("async") {
			n = len("async")
		} else if c.hasWord("sync") {
			n = len("sync")
		}
		if n == 0 {
			break
		}
		c.col += n
		if c.col < len(c.codes[c.line]) && c.peek() == '*' {
			c.col++
		}
	}
	if !c.skipSpace() {
		return signature{}, false
	}

	if c.peek() == ':' && ctor {
		c.col++
		depth := 0
		for c.skipSpace() {
			b := c.peek()
			switch {
			case b == '(':
				depth++
			case b == ')':
				depth--
			case depth == 0 && (b == '{' || b == ';' || c.hasPrefix("=>")):
				return body(c)
			}
			c.col++
		}
		return signature{}, false
	}
	return body(c)
}

// body classifies the body opener at the cursor.
func body(c *cursor) (signature, bool) {
	switch {
	case c.hasPrefix("=>"):
		return signature{}, true
	case c.peek() == ';':
		return signature{empty: true, abstract: true}, true
	case c.peek() == '{':
		c.col++
		if !c.skipSpace() {
			return signature{}, true
		}
		return signature{empty: c.peek() == '}'}, true
	}
	return signature{}, false
}
