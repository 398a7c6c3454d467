package settingsexpr

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string // raw text; decoded value for tokString
	pos  int    // byte offset into the source
}

const punctChars = "[]{}(),:+-"

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '"':
			tok, next, err := lexDoubleQuoted(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '\'':
			tok, next, err := lexSingleQuoted(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case strings.IndexByte(punctChars, c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		default:
			return nil, errorf(i, "unexpected character %q", rune(c))
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	kind := tokInt
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		kind = tokFloat
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		kind = tokFloat
		i++
		if i < len(src) && (src[i] == '+' || src[i] == '-') {
			i++
		}
		digits := i
		for i < len(src) && isDigit(src[i]) {
			i++
		}
		if i == digits {
			return token{}, 0, errorf(start, "malformed number %q", src[start:i])
		}
	}
	if i < len(src) && isIdentStart(src[i]) {
		return token{}, 0, errorf(start, "malformed number %q", src[start:i+1])
	}
	return token{kind: kind, text: src[start:i], pos: start}, i, nil
}

func lexDoubleQuoted(src string, start int) (token, int, error) {
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case '"':
			s, err := strconv.Unquote(src[start : i+1])
			if err != nil {
				return token{}, 0, errorf(start, "invalid string literal %s", src[start:i+1])
			}
			return token{kind: tokString, text: s, pos: start}, i + 1, nil
		}
		i++
	}
	return token{}, 0, errorf(start, "unterminated string")
}

// Single-quoted strings are raw; '' stands for one quote.
func lexSingleQuoted(src string, start int) (token, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		if src[i] == '\'' {
			if i+1 < len(src) && src[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			return token{kind: tokString, text: b.String(), pos: start}, i + 1, nil
		}
		b.WriteByte(src[i])
		i++
	}
	return token{}, 0, errorf(start, "unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
