// Package lang parses the command language driving a machine.
//
// A program is a sequence of statements, each terminated by a semicolon:
//
//	alloc <expr> [<addr>] [as <label>];
//	struct <expr>... [, <addr>] [as <label>];
//	dealloc <addr>;
//	write <addr> <expr>;
//	read <addr>;
//	push <expr>;
//	pop;
//	dbg;
//	exit;
//
// An address is a decimal or 0x-prefixed number, optionally prefixed with v
// to mark it virtual, or a label. Expressions are 8-bit signed integers
// combined with + - * / and parentheses; arithmetic wraps around.
package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/addressing"
)

// A Command is a parsed statement.
type Command struct {
	machine.Request

	Line int
}

var virtualAddr = regexp.MustCompile(`^v(0[xX][0-9a-fA-F]+|[0-9]+)$`)

var keywords = map[string]bool{
	"alloc": true, "struct": true, "dealloc": true, "write": true,
	"read": true, "push": true, "pop": true, "dbg": true, "exit": true,
	"as": true,
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
	pos  scanner.Position
	err  *SyntaxError
}

// Parse parses a whole program.
func Parse(src string) ([]Command, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts |
		scanner.ScanComments | scanner.SkipComments
	p.s.Error = func(s *scanner.Scanner, msg string) {
		pos := s.Position
		if !pos.IsValid() {
			pos = s.Pos()
		}

		p.fail(pos, "%s", msg)
	}
	p.next()

	var cmds []Command

	for p.tok != scanner.EOF && p.err == nil {
		cmd := p.statement()
		if p.err != nil {
			break
		}

		cmds = append(cmds, cmd)
	}

	if p.err != nil {
		return nil, p.err
	}

	return cmds, nil
}

// ParseStatement parses exactly one statement.
func ParseStatement(src string) (Command, error) {
	cmds, err := Parse(src)
	if err != nil {
		return Command{}, err
	}

	if len(cmds) != 1 {
		return Command{}, &SyntaxError{
			Line: 1, Column: 1,
			Msg: fmt.Sprintf("expected one statement, found %d", len(cmds)),
		}
	}

	return cmds[0], nil
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
	p.pos = p.s.Position
}

func (p *parser) fail(pos scanner.Position, format string, args ...any) {
	if p.err != nil {
		return
	}

	p.err = &SyntaxError{
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (p *parser) unexpected(want string) {
	found := p.text
	if p.tok == scanner.EOF {
		found = "end of input"
	}

	p.fail(p.pos, "expected %s, found %q", want, found)
}

func (p *parser) expect(tok rune, want string) {
	if p.tok != tok {
		p.unexpected(want)
		return
	}

	p.next()
}

func (p *parser) keyword(name string) bool {
	return p.tok == scanner.Ident && p.text == name
}

func (p *parser) statement() Command {
	cmd := Command{Line: p.pos.Line}

	if p.tok != scanner.Ident || !keywords[p.text] || p.text == "as" {
		p.unexpected("a command")
		return cmd
	}

	word := p.text
	p.next()

	switch word {
	case "alloc":
		cmd.Request = p.alloc()
	case "struct":
		cmd.Request = p.structure()
	case "dealloc":
		cmd.Request = machine.Dealloc{At: p.addr()}
	case "write":
		at := p.addr()
		cmd.Request = machine.Write{At: at, Value: p.expression()}
	case "read":
		cmd.Request = machine.Read{At: p.addr()}
	case "push":
		cmd.Request = machine.Push{Value: p.expression()}
	case "pop":
		cmd.Request = machine.Pop{}
	case "dbg":
		cmd.Request = machine.Debug{}
	case "exit":
		cmd.Request = machine.Exit{}
	}

	p.expect(';', `";"`)

	return cmd
}

func (p *parser) alloc() machine.Request {
	req := machine.Alloc{Bytes: []int8{p.expression()}}

	if p.tok != ';' && !p.keyword("as") {
		at := p.addr()
		req.At = &at
	}

	req.Label = p.label()

	return req
}

func (p *parser) structure() machine.Request {
	req := machine.Alloc{}

	for p.tok != ',' && p.tok != ';' && !p.keyword("as") && p.err == nil {
		req.Bytes = append(req.Bytes, p.expression())
	}

	if len(req.Bytes) == 0 {
		p.unexpected("a field value")
		return req
	}

	if p.tok == ',' {
		p.next()

		at := p.addr()
		req.At = &at
	}

	req.Label = p.label()

	return req
}

func (p *parser) label() string {
	if !p.keyword("as") {
		return ""
	}

	p.next()

	if p.tok != scanner.Ident || keywords[p.text] || virtualAddr.MatchString(p.text) {
		p.unexpected("a label")
		return ""
	}

	name := p.text
	p.next()

	return name
}

func (p *parser) addr() machine.Ref {
	defer p.next()

	switch {
	case p.tok == scanner.Int:
		return machine.At(addressing.Phys(p.number(p.text)))
	case p.tok == scanner.Ident && virtualAddr.MatchString(p.text):
		return machine.At(addressing.Virt(p.number(p.text[1:])))
	case p.tok == scanner.Ident && !keywords[p.text]:
		return machine.Labeled(p.text)
	default:
		p.unexpected("an address")
		return machine.Ref{}
	}
}

func (p *parser) number(text string) uint64 {
	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		p.fail(p.pos, "invalid address %q", text)
	}

	return v
}

// expression parses a sum of terms.
func (p *parser) expression() int8 {
	v := p.term()

	for p.err == nil && (p.tok == '+' || p.tok == '-') {
		op := p.tok
		p.next()

		rhs := p.term()
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}

	return v
}

func (p *parser) term() int8 {
	v := p.unary()

	for p.err == nil && (p.tok == '*' || p.tok == '/') {
		op := p.tok
		pos := p.pos
		p.next()

		rhs := p.unary()

		switch {
		case op == '*':
			v *= rhs
		case rhs == 0:
			p.fail(pos, "division by zero")
		default:
			v /= rhs
		}
	}

	return v
}

func (p *parser) unary() int8 {
	if p.tok != '-' {
		return p.primary()
	}

	p.next()

	// A literal is negated before the range check so that -128 fits.
	if p.tok == scanner.Int {
		return p.literal("-")
	}

	return -p.unary()
}

func (p *parser) primary() int8 {
	switch p.tok {
	case '(':
		p.next()
		v := p.expression()
		p.expect(')', `")"`)

		return v
	case scanner.Int:
		return p.literal("")
	default:
		p.unexpected("a value")
		return 0
	}
}

func (p *parser) literal(sign string) int8 {
	text := sign + p.text

	v, err := strconv.ParseInt(text, 0, 8)
	if err != nil {
		p.fail(p.pos, "value %s does not fit in 8 bits", text)
	}

	p.next()

	return int8(v)
}
