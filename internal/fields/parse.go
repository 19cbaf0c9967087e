package fields

import "strings"

// AllToken selects every field of an object. It can never be excluded.
const AllToken = "*"

const (
	msgUnbalanced   = "unbalanced parens/brackets"
	msgBlockNoField = "block must have a field name"
)

// pendingKind tracks a transformation whose name is being read.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingEmpty
	pendingNamed
)

// tokenParser turns a token stream into an accumulator tree.
type tokenParser struct {
	input        string
	unexcludable nameSet

	stack []*accumulator

	field           string
	exclude         bool
	transformations []Transformation

	pending     pendingKind
	pendingName string
	params      []string
	inParams    bool
}

// parseTokens builds the raw accumulator tree for tokens. Any syntax error
// aborts the whole parse.
func parseTokens(input string, tokens []Token, unexcludable nameSet) (*accumulator, error) {
	root := newAccumulator()
	p := &tokenParser{
		input:        input,
		unexcludable: unexcludable,
		stack:        []*accumulator{root},
	}

	for _, tok := range tokens {
		if err := p.consume(tok); err != nil {
			return nil, err
		}
	}

	if p.inParams {
		return nil, newSyntaxError(input, len(input), msgUnbalanced)
	}
	p.flush()
	if len(p.stack) > 1 {
		return nil, newSyntaxError(input, len(input), msgUnbalanced)
	}

	return root, nil
}

func (p *tokenParser) top() *accumulator {
	return p.stack[len(p.stack)-1]
}

func (p *tokenParser) consume(tok Token) error {
	// inside a parameter list only names and the closing paren are significant
	if p.inParams {
		switch tok.Kind {
		case TokenName:
			if arg := strings.TrimSpace(tok.Text); arg != "" {
				p.params = append(p.params, arg)
			}
		case TokenParenClose:
			p.transformations = append(p.transformations, Transformation{Name: p.pendingName, Arguments: p.params})
			p.pending, p.pendingName, p.params, p.inParams = pendingNone, "", nil, false
		}
		return nil
	}

	switch tok.Kind {
	case TokenBang:
		p.exclude = true

	case TokenName:
		p.name(tok)

	case TokenColonColon, TokenTilde, TokenPipe:
		p.closePending()
		p.pending = pendingEmpty

	case TokenParenOpen:
		if p.pending != pendingNone {
			p.inParams = true
			p.params = nil
			return nil
		}
		return p.openBlock(tok)

	case TokenBracketOpen:
		return p.openBlock(tok)

	case TokenParenClose, TokenBracketClose:
		return p.closeBlock(tok)

	case TokenComma:
		p.flush()

	case TokenSemicolon:
		// argument separator only
	}

	return nil
}

func (p *tokenParser) name(tok Token) {
	text := strings.TrimSpace(tok.Text)
	if text == "" {
		return
	}

	if p.pending != pendingNone {
		p.closePending()
		p.pending = pendingNamed
		p.pendingName = text
		return
	}

	if p.field != "" {
		p.flush()
	}
	p.field = text
}

// closePending finalizes a named transformation without arguments.
func (p *tokenParser) closePending() {
	if p.pending == pendingNamed {
		p.transformations = append(p.transformations, Transformation{Name: p.pendingName})
	}
	p.pending = pendingNone
	p.pendingName = ""
}

func (p *tokenParser) openBlock(tok Token) error {
	p.closePending()
	if p.field == "" {
		return newSyntaxError(p.input, tok.Start, msgBlockNoField)
	}
	name := p.field
	parent := p.top()
	p.flush()
	p.stack = append(p.stack, parent.child(name))
	return nil
}

func (p *tokenParser) closeBlock(tok Token) error {
	if len(p.stack) <= 1 {
		return newSyntaxError(p.input, tok.Start, msgUnbalanced)
	}
	p.flush()
	p.stack = p.stack[:len(p.stack)-1]
	return nil
}

// flush attaches the pending field to the current accumulator. An empty
// field (e.g. after a trailing comma) is a no-op.
func (p *tokenParser) flush() {
	p.closePending()

	field, exclude, transformations := p.field, p.exclude, p.transformations
	p.field, p.exclude, p.transformations = "", false, nil

	if field == "" {
		return
	}

	acc := p.top()
	if exclude && !p.unexcludable.has(field) {
		acc.excludes.add(field)
	} else {
		acc.includes.add(field)
	}

	if len(transformations) > 0 {
		acc.transformations[field] = transformations
	}
}
