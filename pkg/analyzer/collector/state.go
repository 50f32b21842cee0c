package collector

import (
	"strings"

	"github.com/panbanda/dartrefs/pkg/models"
)

// frame is an open type body.
type frame struct {
	name      string
	category  models.Category
	bodyDepth int
	stateful  bool // extends a stateful framework base
}

// pendingType is a type header whose opening brace has not been seen yet.
type pendingType struct {
	frame
	depth int
}

// scanState is carried from one line of a file to the next.
type scanState struct {
	depth   int
	parens  int
	stack   []frame
	pending *pendingType

	// stmtStart is true when the next line begins a new declaration.
	stmtStart  bool
	annotation bool

	// docBlock is true while inside a /** ... */ documentation comment.
	docBlock bool
}

func newScanState() *scanState {
	return &scanState{stmtStart: true}
}

func (s *scanState) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

// atMemberLevel reports whether a declaration starting now would sit at top
// level or directly inside the innermost type body.
func (s *scanState) atMemberLevel() bool {
	if s.pending != nil || s.parens != 0 || !s.stmtStart {
		return false
	}
	if top := s.top(); top != nil {
		return s.depth == top.bodyDepth
	}
	return s.depth == 0
}

// expect registers a type header that opens its body at the next brace.
func (s *scanState) expect(f frame) {
	s.pending = &pendingType{frame: f, depth: s.depth}
}

// advance updates brace and paren depth and the type stack for one line of code.
func (s *scanState) advance(code string) {
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '{':
			if s.pending != nil && s.depth == s.pending.depth {
				f := s.pending.frame
				f.bodyDepth = s.depth + 1
				s.stack = append(s.stack, f)
				s.pending = nil
			}
			s.depth++
		case '}':
			if s.depth > 0 {
				s.depth--
			}
			for len(s.stack) > 0 && s.depth < s.stack[len(s.stack)-1].bodyDepth {
				s.stack = s.stack[:len(s.stack)-1]
			}
		case '(':
			s.parens++
		case ')':
			if s.parens > 0 {
				s.parens--
			}
		case ';':
			if s.pending != nil && s.depth == s.pending.depth {
				s.pending = nil
			}
		}
	}
}

// endLine updates the statement-start tracking after a line of code.
func (s *scanState) endLine(code string) {
	t := strings.TrimSpace(code)
	if t == "" {
		return
	}
	if s.stmtStart {
		s.annotation = t[0] == '@'
	}
	last := t[len(t)-1]
	switch {
	case s.parens > 0:
		s.stmtStart = false
	case last == ';' || last == '{' || last == '}':
		s.stmtStart = true
		s.annotation = false
	case s.annotation:
		s.stmtStart = true
	default:
		s.stmtStart = false
	}
}
