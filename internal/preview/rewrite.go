package preview

import (
	"regexp"
	"strings"
)

// StripModuleSyntax removes ES module syntax so files can be concatenated
// into one classic script:
//
//   - import statements, including multi-line and side-effect imports, are
//     dropped together with their line;
//   - "export default " and "export " qualifiers are removed, keeping the
//     declaration;
//   - export lists ("export { a, b };", "export * from 'x';") and
//     "export default Name;" are dropped.
//
// Keywords are only recognized at the start of a statement and outside
// strings, template literals, regular expressions and comments, so text
// such as "import" inside a string survives. Unterminated quotes end at the
// line break, which keeps a stray apostrophe in JSX text from swallowing
// the rest of the file.
func StripModuleSyntax(src string) string {
	s := &scanner{src: src}
	s.run()
	return s.out.String()
}

type scanner struct {
	src string
	pos int
	out strings.Builder

	// last is the most recent significant byte emitted, 0 at the start.
	last byte
	// lineStart is true while only whitespace has been seen on this line.
	lineStart bool
	// braces tracks template literal substitutions: each entry is the brace
	// depth at which a "${" was opened.
	braces []int
	depth  int
}

func (s *scanner) run() {
	s.lineStart = true
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.emit(s.pos, s.pos+1)
			s.lineStart = true
		case c == ' ' || c == '\t' || c == '\r':
			s.emit(s.pos, s.pos+1)
		case c == '/' && s.peek(1) == '/':
			end := strings.IndexByte(s.src[s.pos:], '\n')
			if end < 0 {
				end = len(s.src) - s.pos
			}
			s.emit(s.pos, s.pos+end)
		case c == '/' && s.peek(1) == '*':
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				s.emit(s.pos, len(s.src))
			} else {
				s.emit(s.pos, s.pos+2+end+2)
			}
		case c == '\'' || c == '"':
			s.significant(s.pos, s.quoted(s.pos), c)
		case c == '`':
			s.significant(s.pos, s.template(s.pos+1), '`')
		case c == '/' && regexAllowed(s.last):
			s.significant(s.pos, s.regex(s.pos), '/')
		case c == '{':
			s.depth++
			s.significant(s.pos, s.pos+1, c)
		case c == '}':
			if n := len(s.braces); n > 0 && s.braces[n-1] == s.depth {
				// Closing a ${...} substitution: resume the template.
				s.braces = s.braces[:n-1]
				s.depth--
				s.significant(s.pos, s.template(s.pos+1), '`')
				continue
			}
			s.depth--
			s.significant(s.pos, s.pos+1, c)
		case isIdentStart(c):
			end := s.ident(s.pos)
			word := s.src[s.pos:end]
			if s.atStatementStart() && len(s.braces) == 0 {
				if skip, ok := s.moduleStatement(word, end); ok {
					s.pos = skip
					continue
				}
			}
			s.significant(s.pos, end, s.src[end-1])
		default:
			s.significant(s.pos, s.pos+1, c)
		}
	}
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

// emit copies src[from:to] without changing the statement state.
func (s *scanner) emit(from, to int) {
	s.out.WriteString(s.src[from:to])
	s.pos = to
}

func (s *scanner) significant(from, to int, last byte) {
	s.emit(from, to)
	s.last = last
	s.lineStart = false
}

func (s *scanner) atStatementStart() bool {
	return s.last == 0 || s.last == ';' || s.last == '}' || s.last == '{' || s.lineStart
}

// quoted returns the index just past a '...' or "..." literal starting at i.
func (s *scanner) quoted(i int) int {
	q := s.src[i]
	for j := i + 1; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(s.src)
}

// template returns the index just past the template literal text that
// starts at i, stopping early at a "${" substitution, which is pushed onto
// the brace stack.
func (s *scanner) template(i int) int {
	for j := i; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case '`':
			return j + 1
		case '$':
			if j+1 < len(s.src) && s.src[j+1] == '{' {
				s.depth++
				s.braces = append(s.braces, s.depth)
				return j + 2
			}
		}
	}
	return len(s.src)
}

func (s *scanner) regex(i int) int {
	inClass := false
	for j := i + 1; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				j++
				for j < len(s.src) && isIdentPart(s.src[j]) {
					j++
				}
				return j
			}
		case '\n':
			return j
		}
	}
	return len(s.src)
}

func (s *scanner) ident(i int) int {
	j := i + 1
	for j < len(s.src) && isIdentPart(s.src[j]) {
		j++
	}
	return j
}

// moduleStatement reports where to resume scanning when word, ending at
// end, opens an import or export statement that should be rewritten.
func (s *scanner) moduleStatement(word string, end int) (int, bool) {
	switch word {
	case "import":
		next := s.skipSpace(end)
		if next >= len(s.src) {
			return 0, false
		}
		// import(...) and import.meta are expressions.
		if c := s.src[next]; c == '(' || c == '.' {
			return 0, false
		}
		stmtEnd, ok := s.importEnd(next)
		if !ok {
			return 0, false
		}
		return s.dropLine(stmtEnd), true

	case "export":
		next := s.skipSpace(end)
		if next >= len(s.src) {
			return 0, false
		}
		switch c := s.src[next]; {
		case c == '{' || c == '*':
			return s.dropLine(s.statementEnd(next)), true
		case isIdentStart(c):
			wEnd := s.ident(next)
			if s.src[next:wEnd] != "default" {
				// export const x = ...; keep the declaration.
				return next, true
			}
			decl := s.skipSpace(wEnd)
			if decl < len(s.src) && isIdentStart(s.src[decl]) {
				nameEnd := s.ident(decl)
				name := s.src[decl:nameEnd]
				if !isDeclarationKeyword(name) && s.endsStatement(nameEnd) {
					return s.dropLine(s.terminator(nameEnd)), true
				}
			}
			return decl, true
		}
	}
	return 0, false
}

// importEnd parses the import clause starting at i and returns the index
// just past the module specifier and an optional ";". Anything that is not
// a declaration of the form "import '<spec>'" or "import <bindings> from
// '<spec>'", such as JSX text that begins with the word, is rejected.
func (s *scanner) importEnd(i int) (int, bool) {
	if i >= len(s.src) {
		return 0, false
	}
	if c := s.src[i]; c == '\'' || c == '"' {
		return s.specifierEnd(i)
	}

	j := i
	if isIdentStart(s.src[j]) {
		// Default binding, optionally followed by named or namespace ones.
		j = s.skipSpace(s.ident(j))
		if j >= len(s.src) || s.src[j] != ',' {
			return s.fromClause(j)
		}
		j = s.skipSpace(j + 1)
	}
	if j >= len(s.src) {
		return 0, false
	}

	switch s.src[j] {
	case '*':
		j = s.skipSpace(j + 1)
		if !s.keywordAt(j, "as") {
			return 0, false
		}
		j = s.skipSpace(j + len("as"))
		if j >= len(s.src) || !isIdentStart(s.src[j]) {
			return 0, false
		}
		j = s.skipSpace(s.ident(j))
	case '{':
		k := j + 1
		for ; k < len(s.src) && s.src[k] != '}'; k++ {
			switch c := s.src[k]; {
			case isIdentPart(c), c == ',', c == ' ', c == '\t', c == '\r', c == '\n':
			default:
				return 0, false
			}
		}
		if k >= len(s.src) {
			return 0, false
		}
		j = s.skipSpace(k + 1)
	default:
		return 0, false
	}
	return s.fromClause(j)
}

func (s *scanner) fromClause(i int) (int, bool) {
	if !s.keywordAt(i, "from") {
		return 0, false
	}
	j := s.skipSpace(i + len("from"))
	if j >= len(s.src) || s.src[j] != '\'' && s.src[j] != '"' {
		return 0, false
	}
	return s.specifierEnd(j)
}

// specifierEnd accepts a terminated string literal at i.
func (s *scanner) specifierEnd(i int) (int, bool) {
	end := s.quoted(i)
	if end <= i+1 || s.src[end-1] != s.src[i] {
		return 0, false
	}
	return s.terminator(end), true
}

// keywordAt reports whether the identifier at i is exactly kw.
func (s *scanner) keywordAt(i int, kw string) bool {
	if !strings.HasPrefix(s.src[i:], kw) {
		return false
	}
	return i+len(kw) == len(s.src) || !isIdentPart(s.src[i+len(kw)])
}

// statementEnd finds the end of an export list or export-from statement:
// the module specifier, or for a bare list the closing brace, plus an
// optional semicolon.
func (s *scanner) statementEnd(i int) int {
	depth := 0
	for j := i; j < len(s.src); j++ {
		switch c := s.src[j]; c {
		case '\'', '"':
			return s.terminator(s.quoted(j))
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				k := s.skipSpace(j + 1)
				if strings.HasPrefix(s.src[k:], "from") {
					continue
				}
				return s.terminator(j + 1)
			}
		case ';':
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(s.src)
}

// terminator consumes an optional ";" after i on the same line.
func (s *scanner) terminator(i int) int {
	j := i
	for j < len(s.src) && (s.src[j] == ' ' || s.src[j] == '\t') {
		j++
	}
	if j < len(s.src) && s.src[j] == ';' {
		return j + 1
	}
	return i
}

// endsStatement reports whether only a ";", a line break or the end of
// input follows i.
func (s *scanner) endsStatement(i int) bool {
	j := i
	for j < len(s.src) && (s.src[j] == ' ' || s.src[j] == '\t' || s.src[j] == '\r') {
		j++
	}
	return j >= len(s.src) || s.src[j] == ';' || s.src[j] == '\n'
}

// dropLine extends a removed statement through trailing blanks and the
// line break when nothing else follows it on the line.
func (s *scanner) dropLine(i int) int {
	j := i
	for j < len(s.src) && (s.src[j] == ' ' || s.src[j] == '\t' || s.src[j] == '\r') {
		j++
	}
	if j >= len(s.src) {
		return j
	}
	if s.src[j] == '\n' && s.lineStart {
		return j + 1
	}
	return i
}

func (s *scanner) skipSpace(i int) int {
	for i < len(s.src) {
		switch s.src[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}

// regexAllowed reports whether a "/" after last starts a regular
// expression rather than a division.
func regexAllowed(last byte) bool {
	switch last {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';', '+', '-', '*', '%', '<', '>', '~', '^':
		return true
	}
	return false
}

func isDeclarationKeyword(w string) bool {
	switch w {
	case "function", "class", "async", "const", "let", "var":
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

var (
	importFromLine  = regexp.MustCompile(`(?m)^[ \t]*import\s+[^;'"]*?\s+from\s+['"][^'"]+['"];?[ \t]*\n?`)
	importBareLine  = regexp.MustCompile(`(?m)^[ \t]*import\s+['"][^'"]+['"];?[ \t]*\n?`)
	exportDefaultID = regexp.MustCompile(`(?m)^[ \t]*export\s+default\s+[A-Za-z_$][\w$]*;?[ \t]*$\n?`)
	exportDefault   = regexp.MustCompile(`(?m)^([ \t]*)export\s+default\s+`)
	exportQualifier = regexp.MustCompile(`(?m)^([ \t]*)export\s+`)
)

// StripModuleSyntaxRegex is the line-oriented rewrite: it matches whole
// lines and knows nothing about strings or comments. It is kept as a
// best-effort fallback.
func StripModuleSyntaxRegex(src string) string {
	src = importFromLine.ReplaceAllString(src, "")
	src = importBareLine.ReplaceAllString(src, "")
	src = exportDefaultID.ReplaceAllString(src, "")
	src = exportDefault.ReplaceAllString(src, "$1")
	return exportQualifier.ReplaceAllString(src, "$1")
}
