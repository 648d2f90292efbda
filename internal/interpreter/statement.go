package interpreter

import "strings"

// statementKind classifies a complete statement for IIFE wrapping purposes.
type statementKind int

const (
	stmtOther statementKind = iota
	stmtDeclaration
	stmtFunction
)

// classifyStatement inspects a candidate statement (execute classifies and
// wraps it before the transpilation probe compiles the wrapped form) and
// returns its kind plus, for declarations and named function declarations,
// the names it binds.
func classifyStatement(src string) (statementKind, []string) {
	trimmed := strings.TrimSpace(src)
	if rest, ok := trimPrefixKeyword(trimmed, "const"); ok {
		return stmtDeclaration, declarationNames(trimTrailingSemicolons(rest))
	}
	if rest, ok := trimPrefixKeyword(trimmed, "let"); ok {
		return stmtDeclaration, declarationNames(trimTrailingSemicolons(rest))
	}
	if rest, ok := trimPrefixKeyword(trimmed, "async"); ok {
		if fn, ok2 := trimPrefixKeyword(strings.TrimSpace(rest), "function"); ok2 {
			if name := functionName(fn); name != "" {
				return stmtFunction, []string{name}
			}
		}
	}
	if rest, ok := trimPrefixKeyword(trimmed, "function"); ok {
		if name := functionName(rest); name != "" {
			return stmtFunction, []string{name}
		}
	}
	return stmtOther, nil
}

func trimPrefixKeyword(s, kw string) (string, bool) {
	if !strings.HasPrefix(s, kw) {
		return "", false
	}
	rest := s[len(kw):]
	if rest == "" {
		return "", true
	}
	c := rest[0]
	if isIdentByte(c) {
		return "", false
	}
	return rest, true
}

func trimTrailingSemicolons(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "; \t\r\n")
}

func functionName(afterFunctionKeyword string) string {
	s := strings.TrimSpace(afterFunctionKeyword)
	if strings.HasPrefix(s, "*") {
		s = strings.TrimSpace(s[1:])
	}
	return firstIdentToken(s)
}

// statementScanner implements the semicolon-driven, comment-aware statement
// boundary detector described in the interpreter's scheduling model: a bare
// ';' outside a line comment is a trigger point; the caller attempts a
// compile probe on the accumulated buffer and, on success, treats the
// statement as complete.
type statementScanner struct {
	buf           []byte
	inLineComment bool
	prevWasSlash  bool
}

// feedByte appends b to the buffer and reports whether b is a trigger point
// (a ';' outside a same-line comment) at which the caller should attempt the
// completeness probe.
func (s *statementScanner) feedByte(b byte) (trigger bool) {
	s.buf = append(s.buf, b)
	if s.inLineComment {
		if b == '\n' {
			s.inLineComment = false
		}
		s.prevWasSlash = false
		return false
	}
	if b == '/' {
		if s.prevWasSlash {
			s.inLineComment = true
			s.prevWasSlash = false
		} else {
			s.prevWasSlash = true
		}
		return false
	}
	s.prevWasSlash = false
	return b == ';'
}

func (s *statementScanner) pending() string {
	return string(s.buf)
}

func (s *statementScanner) reset() {
	s.buf = s.buf[:0]
	s.inLineComment = false
	s.prevWasSlash = false
}
