// Package condition evaluates workflow policy rules of the form "<fieldPath> <operator> <literal>".
package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of compiled rules an Evaluator keeps.
const DefaultCacheSize = 1024

var (
	// ErrInvalidRule is returned for rule strings that do not match the rule grammar.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrEvaluation is returned when a well-formed rule cannot be evaluated against a payload.
	ErrEvaluation = errors.New("rule evaluation failed")
)

var operators = map[string]bool{
	">":  true,
	"<":  true,
	">=": true,
	"<=": true,
	"==": true,
}

// Rule is a parsed comparison between a payload field and a literal.
type Rule struct {
	Source   string
	Field    string
	Operator string
	Literal  any
}

// Parse checks that rule is a single comparison between a dotted field path and a literal.
func Parse(rule string) (*Rule, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, fmt.Errorf("%w: rule is empty", ErrInvalidRule)
	}

	tree, err := parser.Parse(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRule, rule, err)
	}

	binary, ok := tree.Node.(*ast.BinaryNode)
	if !ok || !operators[binary.Operator] {
		return nil, fmt.Errorf("%w: %q: expected <field> <op> <literal> with op one of > < >= <= ==", ErrInvalidRule, rule)
	}

	field, ok := fieldPath(binary.Left)
	if !ok {
		return nil, fmt.Errorf("%w: %q: left side must be a field path", ErrInvalidRule, rule)
	}

	literal, ok := literalValue(binary.Right)
	if !ok {
		return nil, fmt.Errorf("%w: %q: right side must be a number, string or boolean literal", ErrInvalidRule, rule)
	}

	return &Rule{
		Source:   rule,
		Field:    field,
		Operator: binary.Operator,
		Literal:  literal,
	}, nil
}

func fieldPath(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, true
	case *ast.MemberNode:
		if n.Optional || n.Method {
			return "", false
		}

		prop, ok := n.Property.(*ast.StringNode)
		if !ok {
			return "", false
		}

		parent, ok := fieldPath(n.Node)
		if !ok {
			return "", false
		}

		return parent + "." + prop.Value, true
	default:
		return "", false
	}
}

func literalValue(node ast.Node) (any, bool) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return n.Value, true
	case *ast.FloatNode:
		return n.Value, true
	case *ast.StringNode:
		return n.Value, true
	case *ast.BoolNode:
		return n.Value, true
	case *ast.UnaryNode:
		if n.Operator != "-" {
			return nil, false
		}

		switch v := n.Node.(type) {
		case *ast.IntegerNode:
			return -v.Value, true
		case *ast.FloatNode:
			return -v.Value, true
		}

		return nil, false
	default:
		return nil, false
	}
}

type compiled struct {
	rule    *Rule
	program *vm.Program
}

// Evaluator evaluates rules against trigger payloads. Compiled programs are kept in a bounded
// LRU cache keyed by rule string. It is safe for concurrent use.
type Evaluator struct {
	cache *lru.Cache
}

// NewEvaluator creates an Evaluator caching up to DefaultCacheSize compiled rules.
func NewEvaluator() *Evaluator {
	return NewEvaluatorSize(DefaultCacheSize)
}

// NewEvaluatorSize creates an Evaluator caching up to size compiled rules.
// A size below one falls back to DefaultCacheSize.
func NewEvaluatorSize(size int) *Evaluator {
	if size < 1 {
		size = DefaultCacheSize
	}

	// lru.New only fails for a non-positive size.
	cache, _ := lru.New(size)

	return &Evaluator{cache: cache}
}

// Validate reports whether rule parses to the rule grammar.
func (e *Evaluator) Validate(rule string) error {
	_, err := e.compile(rule)

	return err
}

// Evaluate resolves the rule's field in payload and compares it with the literal.
// A missing (or null) field makes the rule false without error.
func (e *Evaluator) Evaluate(rule string, payload map[string]any) (bool, error) {
	c, err := e.compile(rule)
	if err != nil {
		return false, err
	}

	if _, found := Lookup(payload, c.rule.Field); !found {
		return false, nil
	}

	out, err := expr.Run(c.program, payload)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrEvaluation, rule, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q evaluated to %T", ErrEvaluation, rule, out)
	}

	return result, nil
}

func (e *Evaluator) compile(rule string) (*compiled, error) {
	if cached, ok := e.cache.Get(rule); ok {
		return cached.(*compiled), nil
	}

	parsed, err := Parse(rule)
	if err != nil {
		return nil, err
	}

	program, err := expr.Compile(rule, expr.AsBool(), expr.DisableAllBuiltins())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRule, rule, err)
	}

	c := &compiled{rule: parsed, program: program}
	e.cache.Add(rule, c)

	return c, nil
}

// Lookup resolves a dotted key path against a structured document.
func Lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc

	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	if current == nil {
		return nil, false
	}

	return current, true
}
