// Package lexer turns unlab source text into a token stream, reading input
// line by line so that every token's line/column is exact (spec §4.1). Doc
// comments (`%%`) are captured on a side channel read by the parser between
// statements when doc mode is enabled; `#` comments are discarded.
package lexer

import (
	"bufio"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/luckboy/unlab-gpu/internal/token"
	"github.com/luckboy/unlab-gpu/internal/uerr"
)

// Lexer produces tokens for a single source file.
type Lexer struct {
	path    string
	r       *bufio.Reader
	docMode bool

	line       string
	lineNo     int
	col        int // byte offset within line, 0-based
	eof        bool

	pending   []token.Token
	doc       strings.Builder
	hasDoc    bool
}

// New creates a Lexer reading from r, attributing positions to path.
func New(path string, r io.Reader, docMode bool) *Lexer {
	return &Lexer{path: path, r: bufio.NewReader(r), docMode: docMode}
}

func (l *Lexer) pos() token.Pos {
	return token.Pos{Path: l.path, Line: l.lineNo, Column: l.col + 1}
}

// readLine pulls the next physical line (without its terminator) into l.line.
func (l *Lexer) readLine() error {
	s, err := l.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return uerr.ParserIo(l.path, err)
	}
	if err == io.EOF && s == "" {
		l.eof = true
		return nil
	}
	s = strings.TrimRight(s, "\n")
	s = strings.TrimRight(s, "\r")
	l.line = s
	l.lineNo++
	l.col = 0
	return nil
}

// TakeDoc returns and clears any doc-comment text accumulated since the
// last call, and whether any was present.
func (l *Lexer) TakeDoc() (string, bool) {
	if !l.hasDoc {
		return "", false
	}
	s := l.doc.String()
	l.doc.Reset()
	l.hasDoc = false
	return s, true
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentCont(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// Next returns the next token, or an EOF token when the input is exhausted.
func (l *Lexer) Next() (token.Token, error) {
	if len(l.pending) > 0 {
		t := l.pending[0]
		l.pending = l.pending[1:]
		return t, nil
	}
	for {
		if l.line == "" || l.col >= len(l.line) {
			if l.eof {
				return token.Token{Kind: token.EOF, Pos: l.pos()}, nil
			}
			wasLine := l.lineNo > 0 && l.line != ""
			prevLen := len(l.line)
			if err := l.readLine(); err != nil {
				return token.Token{}, err
			}
			if l.eof {
				return token.Token{Kind: token.EOF, Pos: l.pos()}, nil
			}
			if wasLine {
				// emit synthesized newline for the line just finished
				p := token.Pos{Path: l.path, Line: l.lineNo - 1, Column: prevLen + 1}
				return token.Token{Kind: token.Newline, Pos: p}, nil
			}
			continue
		}
		return l.lexLine()
	}
}

func (l *Lexer) lexLine() (token.Token, error) {
	for l.col < len(l.line) {
		r, size := utf8.DecodeRuneInString(l.line[l.col:])
		start := l.pos()

		switch {
		case r == ' ' || r == '\t':
			l.col += size
			continue
		case r == '#':
			// rest of line is a plain comment
			l.col = len(l.line)
			continue
		case r == '%' && l.col+1 < len(l.line) && l.line[l.col+1] == '%':
			text := l.line[l.col+2:]
			if l.docMode {
				if l.hasDoc {
					l.doc.WriteByte('\n')
				}
				l.doc.WriteString(strings.TrimSpace(text))
				l.hasDoc = true
			}
			l.col = len(l.line)
			continue
		case isIdentStart(r):
			return l.lexIdent(start)
		case unicode.IsDigit(r):
			return l.lexNumber(start)
		case r == '"':
			return l.lexString(start)
		default:
			return l.lexOp(start, r, size)
		}
	}
	// end of content on this line, but not yet end-of-line token: fall
	// through to caller which will issue Newline on next call
	l.col = len(l.line)
	return l.Next()
}

func (l *Lexer) lexIdent(start token.Pos) (token.Token, error) {
	begin := l.col
	for l.col < len(l.line) {
		r, size := utf8.DecodeRuneInString(l.line[l.col:])
		if !isIdentCont(r) {
			break
		}
		l.col += size
	}
	text := l.line[begin:l.col]
	return token.Token{Kind: token.LookupIdent(text), Pos: start, Text: text}, nil
}

func (l *Lexer) lexNumber(start token.Pos) (token.Token, error) {
	begin := l.col
	if strings.HasPrefix(l.line[l.col:], "0x") || strings.HasPrefix(l.line[l.col:], "0X") {
		l.col += 2
		digBegin := l.col
		for l.col < len(l.line) && isHexDigit(l.line[l.col]) {
			l.col++
		}
		if l.col == digBegin {
			return token.Token{}, uerr.Parser(start.Uerr(), "no hexadecimal digits")
		}
		return token.Token{Kind: token.Int, Pos: start, Text: l.line[begin:l.col]}, nil
	}

	for l.col < len(l.line) && isDigit(l.line[l.col]) {
		l.col++
	}
	isFloat := false
	if l.col < len(l.line) && l.line[l.col] == '.' {
		// avoid consuming `.` of a postfix like `1.field` vs `1.5`; a digit
		// must follow for this to be a float's fractional part.
		if l.col+1 < len(l.line) && isDigit(l.line[l.col+1]) {
			isFloat = true
			l.col++
			digBegin := l.col
			for l.col < len(l.line) && isDigit(l.line[l.col]) {
				l.col++
			}
			if l.col == digBegin {
				return token.Token{}, uerr.Parser(start.Uerr(), "no decimal digits")
			}
		}
	}
	if l.col < len(l.line) && (l.line[l.col] == 'e' || l.line[l.col] == 'E') {
		save := l.col
		c := l.col + 1
		if c < len(l.line) && (l.line[c] == '+' || l.line[c] == '-') {
			c++
		}
		digBegin := c
		for c < len(l.line) && isDigit(l.line[c]) {
			c++
		}
		if c > digBegin {
			isFloat = true
			l.col = c
		} else {
			l.col = save
		}
	}
	if l.col == begin {
		return token.Token{}, uerr.Parser(start.Uerr(), "no decimal digits")
	}
	text := l.line[begin:l.col]
	if isFloat {
		return token.Token{Kind: token.Float, Pos: start, Text: text}, nil
	}
	return token.Token{Kind: token.Int, Pos: start, Text: text}, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (l *Lexer) lexString(start token.Pos) (token.Token, error) {
	l.col++ // opening quote
	var sb strings.Builder
	for {
		if l.col >= len(l.line) {
			return token.Token{}, uerr.ParserEof(l.path, uerr.NoRepetition)
		}
		c := l.line[l.col]
		if c == '"' {
			l.col++
			return token.Token{Kind: token.String, Pos: start, Text: sb.String()}, nil
		}
		if c == '\\' {
			l.col++
			if l.col >= len(l.line) {
				return token.Token{}, uerr.ParserEof(l.path, uerr.NoRepetition)
			}
			e := l.line[l.col]
			switch e {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				return token.Token{}, uerr.Parser(l.pos().Uerr(), "unexpected character")
			}
			l.col++
			continue
		}
		sb.WriteByte(c)
		l.col++
	}
}

// twoCharOps maps a first byte + expected second byte to a two-char token kind.
var twoCharOps = map[[2]byte]token.Kind{
	{':', ':'}: token.ColonColon,
	{'<', '='}: token.Le,
	{'>', '='}: token.Ge,
	{'=', '='}: token.Eq,
	{'!', '='}: token.Ne,
	{'.', '['}: token.DotLBracket,
	{'.', ']'}: token.DotRBracket,
	{'.', '*'}: token.DotStar,
	{'.', '/'}: token.DotSlash,
}

var oneCharOps = map[byte]token.Kind{
	'(': token.LParen,
	')': token.RParen,
	'[': token.LBracket,
	']': token.RBracket,
	'{': token.LBrace,
	'}': token.RBrace,
	'*': token.Star,
	'/': token.Slash,
	'+': token.Plus,
	'-': token.Minus,
	'<': token.Lt,
	'>': token.Gt,
	'=': token.Assign,
	'\'': token.Quote,
	'.': token.Dot,
	':': token.Colon,
	',': token.Comma,
	'?': token.Question,
}

func (l *Lexer) lexOp(start token.Pos, r rune, size int) (token.Token, error) {
	if l.col+1 < len(l.line) {
		if k, ok := twoCharOps[[2]byte{l.line[l.col], l.line[l.col+1]}]; ok {
			l.col += 2
			return token.Token{Kind: k, Pos: start}, nil
		}
	}
	if size == 1 {
		if k, ok := oneCharOps[l.line[l.col]]; ok {
			l.col++
			return token.Token{Kind: k, Pos: start}, nil
		}
	}
	return token.Token{}, uerr.Parser(start.Uerr(), "unexpected character")
}
