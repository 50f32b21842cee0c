// Package lexer classifies Dart source text into code, comment and string
// regions without building a syntax tree.
//
// Scanning is line oriented: a State carries nested block comments, open
// multi-line strings and string interpolation across line boundaries, so a
// file is processed by feeding its lines to one State in order.
package lexer

import "strings"

// Class is the lexical class of a single byte.
type Class uint8

const (
	Code Class = iota
	Comment
	String
)

// String returns the string representation.
func (c Class) String() string {
	switch c {
	case Comment:
		return "comment"
	case String:
		return "string"
	default:
		return "code"
	}
}

// frame is one entry of the string/interpolation stack.
type frame struct {
	interp bool
	braces int // open braces inside an interpolation

	quote  byte
	triple bool
	raw    bool
}

// State is the scanner state carried from one line to the next.
// The zero value is ready to use and starts in code.
type State struct {
	commentDepth int
	stack        []frame
}

// InComment reports whether the next line starts inside a block comment.
func (s *State) InComment() bool {
	return s.commentDepth > 0
}

// InString reports whether the next line starts inside a string literal.
func (s *State) InString() bool {
	top := s.top()
	return top != nil && !top.interp
}

func (s *State) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

func (s *State) push(f frame) {
	s.stack = append(s.stack, f)
}

func (s *State) pop() {
	s.stack = s.stack[:len(s.stack)-1]
}

// Line is a classified source line.
type Line struct {
	Text string
	// StartsInComment is true when the line begins inside a block comment.
	StartsInComment bool
	// StartsInString is true when the line begins inside a multi-line string.
	StartsInString bool

	classes []Class
}

// Class returns the class of the byte at i. Out of range offsets are Code.
func (l Line) Class(i int) Class {
	if i < 0 || i >= len(l.classes) {
		return Code
	}
	return l.classes[i]
}

// IsCode reports whether the byte at i is code.
func (l Line) IsCode(i int) bool {
	return l.Class(i) == Code
}

// Code returns the line with every comment and string byte replaced by a space.
// Byte offsets are preserved.
func (l Line) Code() string {
	return l.mask(func(c Class) bool { return c == Code })
}

// WithoutComments returns the line with comment bytes blanked but string
// literals kept, which is what directive parsing needs.
func (l Line) WithoutComments() string {
	return l.mask(func(c Class) bool { return c != Comment })
}

func (l Line) mask(keep func(Class) bool) string {
	b := []byte(l.Text)
	for i := range b {
		if !keep(l.classes[i]) {
			b[i] = ' '
		}
	}
	return string(b)
}

// HasCode reports whether any non-whitespace byte of the line is code.
func (l Line) HasCode() bool {
	return strings.TrimSpace(l.Code()) != ""
}

// Scan classifies one line and advances the state past it.
func (s *State) Scan(text string) Line {
	line := Line{
		Text:            text,
		StartsInComment: s.InComment(),
		StartsInString:  s.InString(),
		classes:         make([]Class, len(text)),
	}
	cls := line.classes
	n := len(text)

	for i := 0; i < n; {
		if s.commentDepth > 0 {
			cls[i] = Comment
			switch {
			case hasPrefixAt(text, i, "/*"):
				s.commentDepth++
				cls[i+1] = Comment
				i += 2
			case hasPrefixAt(text, i, "*/"):
				s.commentDepth--
				cls[i+1] = Comment
				i += 2
			default:
				i++
			}
			continue
		}

		if top := s.top(); top != nil && !top.interp {
			i = s.scanString(text, i, cls, top)
			continue
		}

		c := text[i]
		switch {
		case hasPrefixAt(text, i, "//"):
			for j := i; j < n; j++ {
				cls[j] = Comment
			}
			i = n
		case hasPrefixAt(text, i, "/*"):
			s.commentDepth = 1
			cls[i], cls[i+1] = Comment, Comment
			i += 2
		case c == '\'' || c == '"':
			f := frame{quote: c}
			if i > 0 && (text[i-1] == 'r' || text[i-1] == 'R') && (i < 2 || !IsIdentPart(text[i-2])) {
				f.raw = true
				cls[i-1] = String
			}
			width := 1
			if hasPrefixAt(text, i, strings.Repeat(string(c), 3)) {
				f.triple = true
				width = 3
			}
			for j := i; j < i+width; j++ {
				cls[j] = String
			}
			s.push(f)
			i += width
		case c == '{':
			if top := s.top(); top != nil && top.interp {
				top.braces++
			}
			cls[i] = Code
			i++
		case c == '}':
			if top := s.top(); top != nil && top.interp {
				if top.braces == 0 {
					s.pop()
				} else {
					top.braces--
				}
			}
			cls[i] = Code
			i++
		default:
			cls[i] = Code
			i++
		}
	}

	// Single-quoted literals cannot span lines; an unterminated one is a
	// syntax error, so recover to code rather than poison the rest of the file.
	for {
		top := s.top()
		if top == nil || top.interp || top.triple {
			break
		}
		s.pop()
	}

	return line
}

// scanString consumes string content starting at i and returns the next offset.
func (s *State) scanString(text string, i int, cls []Class, f *frame) int {
	n := len(text)
	c := text[i]

	if !f.raw && c == '\\' {
		cls[i] = String
		if i+1 < n {
			cls[i+1] = String
		}
		return i + 2
	}

	if !f.raw && c == '$' && i+1 < n {
		if text[i+1] == '{' {
			cls[i], cls[i+1] = String, Code
			s.push(frame{interp: true})
			return i + 2
		}
		if IsIdentStart(text[i+1]) && text[i+1] != '$' {
			cls[i] = String
			j := i + 1
			for j < n && IsIdentPart(text[j]) && text[j] != '$' {
				cls[j] = Code
				j++
			}
			return j
		}
	}

	if f.triple {
		if hasPrefixAt(text, i, strings.Repeat(string(f.quote), 3)) {
			cls[i], cls[i+1], cls[i+2] = String, String, String
			s.pop()
			return i + 3
		}
	} else if c == f.quote {
		cls[i] = String
		s.pop()
		return i + 1
	}

	cls[i] = String
	return i + 1
}

// ScanAll classifies every line of src with a fresh state.
func ScanAll(src string) []Line {
	raw := SplitLines(src)
	lines := make([]Line, len(raw))
	var st State
	for i, text := range raw {
		lines[i] = st.Scan(text)
	}
	return lines
}

// SplitLines splits src into lines, dropping the terminators ("\n" or "\r\n").
func SplitLines(src string) []string {
	if src == "" {
		return nil
	}
	lines := strings.Split(src, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// LineOffsets returns the byte offset at which each line of src starts.
func LineOffsets(src string) []int {
	offsets := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' && i+1 < len(src) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func hasPrefixAt(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}
