package database

import "strconv"

// parameterNames returns the name of every parameter in query, indexed by
// parameter number minus one. Anonymous ("?" and "?NNN") parameters have an
// empty name. A name that appears more than once is a single parameter.
// Returned names carry no prefix.
func parameterNames(query string) []string {
	var names []string
	seen := make(map[string]bool)
	set := func(index int, name string) {
		for len(names) < index {
			names = append(names, "")
		}
		names[index-1] = name
	}

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
		case c == '[':
			i = skipUntil(query, i+1, "]")
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			i = skipUntil(query, i+2, "\n")
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			i = skipUntil(query, i+2, "*/")
		case c == '?':
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			index := len(names) + 1
			if j > i+1 {
				if n, err := strconv.Atoi(query[i+1 : j]); err == nil && n > 0 {
					index = n
				}
			}
			if index > len(names) {
				set(index, "")
			}
			i = j
		case c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(query) && isIdentChar(query[j]) {
				j++
			}
			if j == i+1 {
				i++
				continue
			}
			if key := query[i:j]; !seen[key] {
				seen[key] = true
				set(len(names)+1, query[i+1:j])
			}
			i = j
		default:
			i++
		}
	}
	return names
}

func skipQuoted(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != quote {
			continue
		}
		// doubled quote is an escape
		if j+1 < len(s) && s[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func skipUntil(s string, i int, end string) int {
	for j := i; j+len(end) <= len(s); j++ {
		if s[j:j+len(end)] == end {
			return j + len(end)
		}
	}
	return len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}
