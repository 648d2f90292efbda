package interpreter

import "strings"

// splitTopLevel splits s on every occurrence of sep that is not nested
// inside {}, [], or () and not inside a string literal.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// topLevelAssignSplit finds the first top-level '=' that is an assignment
// (not part of ==, ===, !=, <=, >=, or =>) and splits s around it.
func topLevelAssignSplit(s string) (lhs string, rhs string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			var prev, next byte
			if i > 0 {
				prev = s[i-1]
			}
			if i+1 < len(s) {
				next = s[i+1]
			}
			if next == '=' || next == '>' {
				continue
			}
			if prev == '=' || prev == '!' || prev == '<' || prev == '>' {
				continue
			}
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// stripTypeAnnotation removes a single top-level ": Type" suffix from a
// plain identifier binding, e.g. "a: number" -> "a".
func stripTypeAnnotation(s string) string {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case ':':
			if depth == 0 {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return s
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func firstIdentToken(s string) string {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return s[:i]
}

// bindingNames extracts every bound identifier name from a single binding
// target (an identifier, or an object/array destructuring pattern), per the
// variable-declaration hoisting rules: identifier, nested object/array
// destructuring (including aliasing and defaults), rest elements, and one
// level of TS type-annotation stripping on the plain identifier form.
func bindingNames(pattern string) []string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	switch pattern[0] {
	case '{':
		inner := strings.TrimSpace(trimOuter(pattern, '{', '}'))
		if inner == "" {
			return nil
		}
		var names []string
		for _, entry := range splitTopLevel(inner, ',') {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if strings.HasPrefix(entry, "...") {
				names = append(names, strings.TrimSpace(entry[3:]))
				continue
			}
			// aliasing: "key: target" — target may itself be a pattern.
			if key, target, ok := splitAlias(entry); ok {
				_ = key
				def := target
				if lhs, _, hasInit := topLevelAssignSplit(target); hasInit {
					def = lhs
				}
				names = append(names, bindingNames(def)...)
				continue
			}
			// shorthand, possibly with a default: "x" or "x = 1"
			if lhs, _, hasInit := topLevelAssignSplit(entry); hasInit {
				names = append(names, strings.TrimSpace(lhs))
			} else {
				names = append(names, strings.TrimSpace(entry))
			}
		}
		return names
	case '[':
		inner := strings.TrimSpace(trimOuter(pattern, '[', ']'))
		if inner == "" {
			return nil
		}
		var names []string
		for _, entry := range splitTopLevel(inner, ',') {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue // elision
			}
			if strings.HasPrefix(entry, "...") {
				names = append(names, bindingNames(strings.TrimSpace(entry[3:]))...)
				continue
			}
			target := entry
			if lhs, _, hasInit := topLevelAssignSplit(entry); hasInit {
				target = strings.TrimSpace(lhs)
			}
			names = append(names, bindingNames(target)...)
		}
		return names
	default:
		name := stripTypeAnnotation(pattern)
		name = firstIdentToken(name)
		if name == "" {
			return nil
		}
		return []string{name}
	}
}

// splitAlias splits "key: target" at the top-level colon, if present.
func splitAlias(entry string) (key, target string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(entry); i++ {
		c := entry[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		case ':':
			if depth == 0 {
				return strings.TrimSpace(entry[:i]), strings.TrimSpace(entry[i+1:]), true
			}
		}
	}
	return "", "", false
}

func trimOuter(s string, open, close byte) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == open && s[len(s)-1] == close {
		return s[1 : len(s)-1]
	}
	return s
}

// declarationNames returns every name bound by a `const`/`let` declaration
// statement body (the text following the `const`/`let` keyword, up to but
// excluding the trailing `;`), handling multiple comma-separated declarators.
func declarationNames(declBody string) []string {
	var names []string
	for _, declarator := range splitTopLevel(declBody, ',') {
		declarator = strings.TrimSpace(declarator)
		if declarator == "" {
			continue
		}
		pattern := declarator
		if lhs, _, hasInit := topLevelAssignSplit(declarator); hasInit {
			pattern = strings.TrimSpace(lhs)
		}
		names = append(names, bindingNames(pattern)...)
	}
	return names
}
