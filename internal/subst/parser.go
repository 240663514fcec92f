package subst

import (
	"strconv"
	"strings"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// ParseFormula parses the body of a formula (the text after a leading
// "=", which the caller has already stripped; a leading "==" means "a
// literal string starting with =" and must be handled by the caller
// before reaching here).
func ParseFormula(body string) (Expr, error) {
	toks, err := lex(body)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &ParseError{Input: body, Msg: "unexpected trailing input near " + p.cur().text}
	}
	return expr, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance()    { p.pos++ }

func (p *parser) expect(kind tokenKind, text string) error {
	if p.cur().kind != kind || (text != "" && p.cur().text != text) {
		return &ParseError{Msg: "expected " + text}
	}
	p.advance()
	return nil
}

// Precedence, low to high: or, and, not, comparison/in, bitwise-or,
// bitwise-xor, bitwise-and, shift, additive, multiplicative, unary.

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isIdentKeyword("or") || p.isOp("||") {
		op := p.cur().text
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: normalizeLogical(op), l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isIdentKeyword("and") || p.isOp("&&") {
		op := p.cur().text
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: normalizeLogical(op), l: left, r: right}
	}
	return left, nil
}

func normalizeLogical(op string) string {
	switch op {
	case "&&":
		return "and"
	case "||":
		return "or"
	}
	return op
}

func (p *parser) parseNot() (Expr, error) {
	if p.isIdentKeyword("not") || p.isOp("!") {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "not", x: x}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur().kind == tokOp && comparisonOps[p.cur().text] {
			op := p.cur().text
			p.advance()
			right, err := p.parseBitOr()
			if err != nil {
				return nil, err
			}
			left = binaryExpr{op: op, l: left, r: right}
			continue
		}
		if p.isIdentKeyword("in") {
			p.advance()
			right, err := p.parseBitOr()
			if err != nil {
				return nil, err
			}
			left = binaryExpr{op: "in", l: left, r: right}
			continue
		}
		break
	}
	return left, nil
}

func (p *parser) parseBitOr() (Expr, error) {
	left, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") {
		p.advance()
		right, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "|", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseBitXor() (Expr, error) {
	left, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.isOp("^") {
		p.advance()
		right, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "^", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseBitAnd() (Expr, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.isOp("&") {
		p.advance()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "&", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseShift() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isOp("<<") || p.isOp(">>") {
		op := p.cur().text
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.cur().text
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.cur().text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isOp("-") || p.isOp("~") {
		op := p.cur().text
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, &ParseError{Msg: "bad float literal " + t.text}
			}
			return litExpr{v: floatVal(f)}, nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &ParseError{Msg: "bad int literal " + t.text}
		}
		return litExpr{v: intVal(i)}, nil
	case tokString:
		p.advance()
		return litExpr{v: strVal(t.text)}, nil
	case tokLBracket:
		return p.parseListLiteral()
	case tokLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	case tokIdent:
		p.advance()
		if p.cur().kind == tokLParen {
			return p.parseCall(t.text)
		}
		return identExpr{path: t.text}, nil
	default:
		return nil, &ParseError{Msg: "unexpected token " + t.text}
	}
}

func (p *parser) parseListLiteral() (Expr, error) {
	p.advance() // [
	var items []Expr
	if p.cur().kind != tokRBracket {
		for {
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(tokRBracket, "]"); err != nil {
		return nil, err
	}
	return listExpr{items: items}, nil
}

func (p *parser) parseCall(name string) (Expr, error) {
	p.advance() // (
	var args []Expr
	if p.cur().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return callExpr{name: name, args: args}, nil
}

func (p *parser) isOp(text string) bool {
	return p.cur().kind == tokOp && p.cur().text == text
}

func (p *parser) isIdentKeyword(text string) bool {
	return p.cur().kind == tokIdent && p.cur().text == text
}

// Eval evaluates a parsed formula against a namespace stack and the
// standard function table.
func Eval(e Expr, ns *Namespaces) (*tree.Node, bool, error) {
	ctx := &EvalContext{NS: ns, Functions: StandardFunctions()}
	v, err := e.Eval(ctx)
	if err != nil {
		return nil, false, err
	}
	return v.Node, v.Unset, nil
}
