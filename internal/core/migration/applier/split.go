package applier

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

// SplitStatements splits a migration script into statements. A statement
// ends at the delimiter outside of string literals, quoted identifiers,
// comments and Postgres dollar-quoted bodies. On MySQL the DELIMITER
// directive changes the delimiter. Statements holding only comments are
// dropped.
func SplitStatements(script string, provider flavour.Provider) []string {
	s := &splitter{src: script, provider: provider, delimiter: ";"}
	return s.split()
}

type splitter struct {
	src       string
	provider  flavour.Provider
	delimiter string
	pos       int
	start     int
	out       []string
	// code is set once the current statement holds something other than
	// comments and whitespace.
	code bool
}

func (s *splitter) split() []string {
	for s.pos < len(s.src) {
		if s.atLineStart() && s.provider == flavour.MySQL && s.delimiterDirective() {
			continue
		}
		if strings.HasPrefix(s.src[s.pos:], s.delimiter) {
			s.emit(s.pos)
			s.pos += len(s.delimiter)
			s.start = s.pos
			continue
		}

		c := s.src[s.pos]
		switch {
		case c == '-' && s.peek(1) == '-':
			s.skipLineComment()
		case c == '#' && s.provider == flavour.MySQL:
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case c == '\'':
			s.code = true
			s.skipQuoted('\'', s.provider == flavour.MySQL)
		case c == '"':
			s.code = true
			s.skipQuoted('"', s.provider == flavour.MySQL)
		case c == '`' && s.provider == flavour.MySQL:
			s.code = true
			s.skipQuoted('`', false)
		case c == '[' && s.provider == flavour.SQLServer:
			s.code = true
			s.skipQuoted(']', false)
		case c == '$' && s.provider == flavour.Postgres:
			s.code = true
			s.skipDollarQuoted()
		default:
			if !isSpace(c) {
				s.code = true
			}
			s.pos++
		}
	}
	s.emit(len(s.src))
	return s.out
}

func (s *splitter) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *splitter) atLineStart() bool {
	i := s.pos - 1
	for i >= 0 && (s.src[i] == ' ' || s.src[i] == '\t') {
		i--
	}
	return i < 0 || s.src[i] == '\n'
}

// delimiterDirective consumes a MySQL "DELIMITER x" line.
func (s *splitter) delimiterDirective() bool {
	const keyword = "DELIMITER"
	rest := s.src[s.pos:]
	if len(rest) <= len(keyword) || !strings.EqualFold(rest[:len(keyword)], keyword) || !isSpace(rest[len(keyword)]) {
		return false
	}
	line := rest
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		line = rest[:i]
	}
	if d := strings.TrimSpace(line[len(keyword):]); d != "" {
		s.emit(s.pos)
		s.delimiter = d
	}
	s.pos += len(line)
	s.start = s.pos
	return true
}

func (s *splitter) emit(end int) {
	stmt := strings.TrimSpace(s.src[s.start:end])
	if s.code && stmt != "" {
		s.out = append(s.out, stmt)
	}
	s.code = false
}

func (s *splitter) skipLineComment() {
	if i := strings.IndexByte(s.src[s.pos:], '\n'); i >= 0 {
		s.pos += i + 1
		return
	}
	s.pos = len(s.src)
}

func (s *splitter) skipBlockComment() {
	if i := strings.Index(s.src[s.pos+2:], "*/"); i >= 0 {
		s.pos += i + 4
		return
	}
	s.pos = len(s.src)
}

// skipQuoted skips to the closing quote. A doubled quote is an escaped
// quote; backslash escapes apply when backslash is set.
func (s *splitter) skipQuoted(closing byte, backslash bool) {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case backslash && c == '\\':
			s.pos += 2
		case c == closing && s.peek(1) == closing:
			s.pos += 2
		case c == closing:
			s.pos++
			return
		default:
			s.pos++
		}
	}
}

func (s *splitter) skipDollarQuoted() {
	end := strings.IndexByte(s.src[s.pos+1:], '$')
	if end < 0 {
		s.pos++
		return
	}
	tag := s.src[s.pos : s.pos+end+2]
	if !validDollarTag(tag[1 : len(tag)-1]) {
		s.pos++
		return
	}
	body := s.pos + len(tag)
	if i := strings.Index(s.src[body:], tag); i >= 0 {
		s.pos = body + i + len(tag)
		return
	}
	s.pos = len(s.src)
}

func validDollarTag(tag string) bool {
	for i, r := range tag {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
