package servlet

// fnmatch reimplements POSIX fnmatch(3) with flags=0 for glob route
// matching: '*' matches any run of characters including '/' (no
// FNM_PATHNAME), '?' matches exactly one character, and '[...]'/
// '[!...]' bracket expressions are supported. The standard library's
// path/filepath.Match is NOT a substitute here because it always
// treats '/' as a match boundary regardless of flags, so this is
// hand-rolled rather than borrowed.
func fnmatch(pattern, name string) bool {
	return fnmatchAt(pattern, name)
}

func fnmatchAt(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive '*' and try every split point.
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if fnmatchAt(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		case '[':
			end := matchBracketEnd(pattern)
			if end == -1 {
				// Malformed bracket: treat '[' as a literal.
				if len(name) == 0 || name[0] != '[' {
					return false
				}
				pattern = pattern[1:]
				name = name[1:]
				continue
			}
			if len(name) == 0 || !matchBracket(pattern[1:end], name[0]) {
				return false
			}
			pattern = pattern[end+1:]
			name = name[1:]
		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}

// matchBracketEnd returns the index of the ']' closing the bracket
// expression starting at pattern[0]=='[', or -1 if there is none.
func matchBracketEnd(pattern string) int {
	i := 1
	if i < len(pattern) && (pattern[i] == '!' || pattern[i] == '^') {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++ // a ']' immediately after the (optional) negation is literal
	}
	for ; i < len(pattern); i++ {
		if pattern[i] == ']' {
			return i
		}
	}
	return -1
}

// matchBracket tests c against the bracket body (without the
// surrounding '[' ']'), handling leading negation and 'a-z' ranges.
func matchBracket(body string, c byte) bool {
	negate := false
	if len(body) > 0 && (body[0] == '!' || body[0] == '^') {
		negate = true
		body = body[1:]
	}
	matched := false
	for i := 0; i < len(body); i++ {
		if i+2 < len(body) && body[i+1] == '-' {
			if body[i] <= c && c <= body[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if body[i] == c {
			matched = true
		}
	}
	return matched != negate
}
