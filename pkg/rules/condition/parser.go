package condition

import (
	"fmt"
	"strconv"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

type parser struct {
	src    string
	tokens []token
	pos    int
	depth  int
}

// parse builds the expression tree for src.
//
//	or      := and ("||" and)*
//	and     := unary ("&&" unary)*
//	unary   := "!" unary | compare
//	compare := primary (cmpop primary)?
//	primary := literal | ident ("." ident)* | "(" or ")" | "[" list "]"
func parse(src string) (Node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, newSyntaxError(src, 0, "empty condition")
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, newSyntaxError(src, tok.pos, fmt.Sprintf("unexpected %s after expression", describe(tok)))
	}
	return node, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, newSyntaxError(p.src, tok.pos, fmt.Sprintf("expected %s, found %s", kind, describe(tok)))
	}
	return tok, nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return newSyntaxError(p.src, p.peek().pos, "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parseCompare()
}

var comparisonOps = map[tokenKind]Operator{
	tokEq: OpEq,
	tokNe: OpNe,
	tokLt: OpLt,
	tokLe: OpLe,
	tokGt: OpGt,
	tokGe: OpGe,
	tokIn: OpIn,
}

func (p *parser) parseCompare() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	op, ok := comparisonOps[p.peek().kind]
	if !ok {
		return left, nil
	}
	p.next()

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	// a < b < c is almost always a mistake
	if tok := p.peek(); comparisonOps[tok.kind] != "" {
		return nil, newSyntaxError(p.src, tok.pos, "comparisons cannot be chained, use && to combine them")
	}

	return &Binary{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()

	switch tok.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, newSyntaxError(p.src, tok.pos, fmt.Sprintf("invalid number %q", tok.text))
		}
		return &Literal{Value: f}, nil

	case tokString:
		return &Literal{Value: tok.text}, nil
	case tokTrue:
		return &Literal{Value: true}, nil
	case tokFalse:
		return &Literal{Value: false}, nil
	case tokNull:
		return &Literal{Value: nil}, nil

	case tokIdent:
		path := []string{tok.text}
		for p.peek().kind == tokDot {
			p.next()
			part, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			path = append(path, part.text)
		}
		return &FieldRef{Path: path}, nil

	case tokLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil

	case tokLBracket:
		list := &ListLiteral{}
		if p.peek().kind == tokRBracket {
			p.next()
			return list, nil
		}
		for {
			item, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)

			sep := p.next()
			if sep.kind == tokRBracket {
				return list, nil
			}
			if sep.kind != tokComma {
				return nil, newSyntaxError(p.src, sep.pos, fmt.Sprintf("expected , or ] in list, found %s", describe(sep)))
			}
		}

	default:
		return nil, newSyntaxError(p.src, tok.pos, fmt.Sprintf("unexpected %s", describe(tok)))
	}
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return tok.kind.String()
	}
	return fmt.Sprintf("%q", tok.text)
}
