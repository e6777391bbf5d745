package script

import (
	"fmt"
	"strings"
)

// Expression evaluation: arithmetic, comparison, logical, and string
// operators plus builtin function calls. Used by #if/#while conditions,
// #let, and $[...] inline substitutions. Evaluation is effect-free:
// builtins with external effect enqueue and return a placeholder.
//
// Precedence, loosest first: |  &  (== != =~ !~ < <= > >=)  (+ -)
// (* / %)  unary(- !).

type exprTokenType int

const (
	tokEOF exprTokenType = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type exprToken struct {
	typ exprTokenType
	lit string
	val Value
}

type exprLexer struct {
	input string
	pos   int
}

func (l *exprLexer) skipSpace() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
}

func (l *exprLexer) next() (exprToken, error) {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return exprToken{typ: tokEOF}, nil
	}
	ch := l.input[l.pos]

	switch {
	case ch >= '0' && ch <= '9' || ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		start := l.pos
		seenDot := false
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || (l.input[l.pos] == '.' && !seenDot)) {
			if l.input[l.pos] == '.' {
				seenDot = true
			}
			l.pos++
		}
		lit := l.input[start:l.pos]
		return exprToken{typ: tokNumber, lit: lit, val: ParseValue(lit)}, nil

	case ch == '"' || ch == '\'':
		quote := ch
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.input) && l.input[l.pos] != quote {
			if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
				l.pos++
			}
			sb.WriteByte(l.input[l.pos])
			l.pos++
		}
		if l.pos >= len(l.input) {
			return exprToken{}, fmt.Errorf("unterminated string literal")
		}
		l.pos++
		return exprToken{typ: tokString, val: StringValue(sb.String())}, nil

	case isNameStart(ch):
		start := l.pos
		for l.pos < len(l.input) && isNameByte(l.input[l.pos]) {
			l.pos++
		}
		return exprToken{typ: tokIdent, lit: l.input[start:l.pos]}, nil

	case ch == '(':
		l.pos++
		return exprToken{typ: tokLParen}, nil
	case ch == ')':
		l.pos++
		return exprToken{typ: tokRParen}, nil
	case ch == ',':
		l.pos++
		return exprToken{typ: tokComma}, nil
	}

	// Operators, longest first.
	for _, op := range []string{"==", "!=", "=~", "!~", "<=", ">=", "<", ">", "+", "-", "*", "/", "%", "|", "&", "!", "="} {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			return exprToken{typ: tokOp, lit: op}, nil
		}
	}
	return exprToken{}, fmt.Errorf("unexpected character %q in expression", string(ch))
}

type exprParser struct {
	eng  *Engine
	lex  *exprLexer
	cur  exprToken
	peek *exprToken
}

func (p *exprParser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *exprParser) peekTok() (exprToken, error) {
	if p.peek == nil {
		tok, err := p.lex.next()
		if err != nil {
			return exprToken{}, err
		}
		p.peek = &tok
	}
	return *p.peek, nil
}

// Eval evaluates an expression string to a Value.
func (e *Engine) Eval(expr string) (Value, error) {
	p := &exprParser{eng: e, lex: &exprLexer{input: expr}}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	v, err := p.parseOr()
	if err != nil {
		return Value{}, err
	}
	if p.cur.typ != tokEOF {
		return Value{}, fmt.Errorf("trailing input in expression %q", expr)
	}
	return v, nil
}

// EvalCondition evaluates an expression for a boolean context.
func (e *Engine) EvalCondition(expr string) (bool, error) {
	v, err := e.Eval(strings.TrimSpace(expr))
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

func (p *exprParser) parseOr() (Value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return Value{}, err
	}
	for p.cur.typ == tokOp && p.cur.lit == "|" {
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return Value{}, err
		}
		left = BoolValue(left.Truthy() || right.Truthy())
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Value, error) {
	left, err := p.parseComparison()
	if err != nil {
		return Value{}, err
	}
	for p.cur.typ == tokOp && p.cur.lit == "&" {
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return Value{}, err
		}
		left = BoolValue(left.Truthy() && right.Truthy())
	}
	return left, nil
}

func (p *exprParser) parseComparison() (Value, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return Value{}, err
	}
	for p.cur.typ == tokOp {
		op := p.cur.lit
		switch op {
		case "==", "!=", "=", "<", "<=", ">", ">=", "=~", "!~":
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return Value{}, err
		}
		left = compareValues(op, left, right)
	}
	return left, nil
}

func compareValues(op string, left, right Value) Value {
	switch op {
	case "=~":
		return BoolValue(left.Text() == right.Text())
	case "!~":
		return BoolValue(left.Text() != right.Text())
	}
	var cmp int
	if left.IsNumber() && right.IsNumber() {
		lf, rf := left.Float(), right.Float()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(left.Text(), right.Text())
	}
	switch op {
	case "==", "=":
		return BoolValue(cmp == 0)
	case "!=":
		return BoolValue(cmp != 0)
	case "<":
		return BoolValue(cmp < 0)
	case "<=":
		return BoolValue(cmp <= 0)
	case ">":
		return BoolValue(cmp > 0)
	default: // ">="
		return BoolValue(cmp >= 0)
	}
}

func (p *exprParser) parseAdditive() (Value, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return Value{}, err
	}
	for p.cur.typ == tokOp && (p.cur.lit == "+" || p.cur.lit == "-") {
		op := p.cur.lit
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return Value{}, err
		}
		if op == "+" {
			// + concatenates when either side is a plain string.
			if !left.IsNumber() || !right.IsNumber() {
				left = StringValue(left.Text() + right.Text())
				continue
			}
			left = addValues(left, right)
		} else {
			if !left.IsNumber() || !right.IsNumber() {
				return Value{}, fmt.Errorf("bad operand for '-': not a number")
			}
			left = addValues(left, negate(right))
		}
	}
	return left, nil
}

func addValues(a, b Value) Value {
	if a.Kind() == KindFloat || b.Kind() == KindFloat {
		return FloatValue(a.Float() + b.Float())
	}
	return IntValue(a.Int() + b.Int())
}

func negate(v Value) Value {
	if v.Kind() == KindFloat {
		return FloatValue(-v.Float())
	}
	return IntValue(-v.Int())
}

func (p *exprParser) parseMultiplicative() (Value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Value{}, err
	}
	for p.cur.typ == tokOp && (p.cur.lit == "*" || p.cur.lit == "/" || p.cur.lit == "%") {
		op := p.cur.lit
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return Value{}, err
		}
		if !left.IsNumber() || !right.IsNumber() {
			return Value{}, fmt.Errorf("bad operand for %q: not a number", op)
		}
		switch op {
		case "*":
			if left.Kind() == KindFloat || right.Kind() == KindFloat {
				left = FloatValue(left.Float() * right.Float())
			} else {
				left = IntValue(left.Int() * right.Int())
			}
		case "/":
			if left.Kind() == KindFloat || right.Kind() == KindFloat {
				if right.Float() == 0 {
					return Value{}, fmt.Errorf("division by zero")
				}
				left = FloatValue(left.Float() / right.Float())
			} else {
				if right.Int() == 0 {
					return Value{}, fmt.Errorf("division by zero")
				}
				left = IntValue(left.Int() / right.Int())
			}
		case "%":
			if right.Int() == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			left = IntValue(left.Int() % right.Int())
		}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Value, error) {
	if p.cur.typ == tokOp {
		switch p.cur.lit {
		case "-":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			v, err := p.parseUnary()
			if err != nil {
				return Value{}, err
			}
			if !v.IsNumber() {
				return Value{}, fmt.Errorf("bad operand for unary '-': not a number")
			}
			return negate(v), nil
		case "!":
			if err := p.advance(); err != nil {
				return Value{}, err
			}
			v, err := p.parseUnary()
			if err != nil {
				return Value{}, err
			}
			return BoolValue(!v.Truthy()), nil
		}
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (Value, error) {
	switch p.cur.typ {
	case tokNumber, tokString:
		v := p.cur.val
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return v, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		v, err := p.parseOr()
		if err != nil {
			return Value{}, err
		}
		if p.cur.typ != tokRParen {
			return Value{}, fmt.Errorf("missing ')' in expression")
		}
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		return v, nil

	case tokIdent:
		name := p.cur.lit
		nxt, err := p.peekTok()
		if err != nil {
			return Value{}, err
		}
		if nxt.typ == tokLParen {
			return p.parseCall(name)
		}
		if err := p.advance(); err != nil {
			return Value{}, err
		}
		// Unresolved variables read as empty text, matching substitution.
		if v, ok := p.eng.Vars.Get(name); ok {
			return v, nil
		}
		return StringValue(""), nil
	}
	return Value{}, fmt.Errorf("unexpected token in expression")
}

func (p *exprParser) parseCall(name string) (Value, error) {
	if err := p.advance(); err != nil { // onto '('
		return Value{}, err
	}
	if err := p.advance(); err != nil { // past '('
		return Value{}, err
	}
	var args []Value
	if p.cur.typ != tokRParen {
		for {
			v, err := p.parseOr()
			if err != nil {
				return Value{}, err
			}
			args = append(args, v)
			if p.cur.typ != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return Value{}, err
			}
		}
	}
	if p.cur.typ != tokRParen {
		return Value{}, fmt.Errorf("missing ')' after arguments to %s()", name)
	}
	if err := p.advance(); err != nil {
		return Value{}, err
	}
	return p.eng.callFunction(name, args)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isNameStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
