package cosim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCondition marks a start or end condition that does not parse.
var ErrCondition = errors.New("bad condition")

// condition is a parsed StartCondition or EndCondition. A leaf holds once an
// event of the given type referencing the given instruction has been seen and
// at least offset seconds of simulation time have passed since its latest
// occurrence. Inner nodes combine their children with && or ||.
//
//	walk-1:end
//	walk-1:start + 0.5 && (reach-1:end || reach-1:InitError)
type condition struct {
	op   string // "&&", "||", or empty for a leaf
	args []*condition

	reference string
	event     string
	offset    float64
}

// offsetSlack absorbs the rounding of a clock advanced by repeated dt sums.
const offsetSlack = 1e-9

type eventKey struct {
	reference string
	event     string
}

// eventLog keeps the simulation time of the latest occurrence of every
// (reference, type) pair.
type eventLog map[eventKey]float64

func (l eventLog) note(reference, event string, at float64) {
	l[eventKey{reference: reference, event: event}] = at
}

func (n *condition) holds(seen eventLog, now float64) bool {
	switch n.op {
	case "&&":
		for _, a := range n.args {
			if !a.holds(seen, now) {
				return false
			}
		}
		return true
	case "||":
		for _, a := range n.args {
			if a.holds(seen, now) {
				return true
			}
		}
		return false
	}
	at, ok := seen[eventKey{reference: n.reference, event: n.event}]
	return ok && now-at >= n.offset-offsetSlack
}

// parseCondition returns nil for an empty expression.
func parseCondition(s string) (*condition, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, nil
	}
	p := &condParser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrCondition, p.toks[p.pos], s)
	}
	return n, nil
}

func tokenize(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		switch ch := s[i]; {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(' || ch == ')' || ch == ':' || ch == '+':
			toks = append(toks, s[i:i+1])
			i++
		case ch == '&' || ch == '|':
			if i+1 >= len(s) || s[i+1] != ch {
				return nil, fmt.Errorf("%w: lone %q in %q", ErrCondition, ch, s)
			}
			toks = append(toks, s[i:i+2])
			i += 2
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\n\r():+&|", rune(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

type condParser struct {
	toks []string
	pos  int
}

func (p *condParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) or() (*condition, error) {
	return p.chain("||", p.and)
}

func (p *condParser) and() (*condition, error) {
	return p.chain("&&", p.term)
}

func (p *condParser) chain(op string, operand func() (*condition, error)) (*condition, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	args := []*condition{first}
	for p.peek() == op {
		p.pos++
		n, err := operand()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	if len(args) == 1 {
		return first, nil
	}
	return &condition{op: op, args: args}, nil
}

func (p *condParser) term() (*condition, error) {
	if p.peek() == "(" {
		p.pos++
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("%w: missing )", ErrCondition)
		}
		return n, nil
	}
	ref := p.next()
	if !isWord(ref) {
		return nil, fmt.Errorf("%w: expected instruction id, got %q", ErrCondition, ref)
	}
	if p.next() != ":" {
		return nil, fmt.Errorf("%w: expected %s:<event>", ErrCondition, ref)
	}
	event := p.next()
	if !isWord(event) {
		return nil, fmt.Errorf("%w: expected event type after %s:", ErrCondition, ref)
	}
	n := &condition{reference: ref, event: event}
	if p.peek() == "+" {
		p.pos++
		raw := p.next()
		off, err := strconv.ParseFloat(raw, 64)
		if err != nil || off < 0 {
			return nil, fmt.Errorf("%w: bad offset %q", ErrCondition, raw)
		}
		n.offset = off
	}
	return n, nil
}

func isWord(t string) bool {
	switch t {
	case "", "(", ")", ":", "+", "&&", "||":
		return false
	}
	return true
}
