package operator

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"unicode"
)

// Reserved tokens for the two free variables. Every registry starts with
// both; they take part in random draws like any other entry.
const (
	TokenTime     = "TIME"
	TokenPosition = "POS"
)

var (
	ErrInvalidToken     = errors.New("invalid operator token")
	ErrTokenExists      = errors.New("token already registered")
	ErrTokenNotFound    = errors.New("token not found")
	ErrOperatorNotFound = errors.New("operator not registered")
)

// Registry is the bidirectional catalog of named operators. It is built once
// at startup and read-only afterwards; the lock exists so read paths stay
// safe if fitness evaluation is ever parallelized.
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]Operator
	tokens  []string
}

func NewRegistry() *Registry {
	r := &Registry{byToken: make(map[string]Operator)}
	r.byToken[TokenTime] = Time()
	r.byToken[TokenPosition] = Position()
	r.tokens = []string{TokenPosition, TokenTime}
	sort.Strings(r.tokens)
	return r
}

func (r *Registry) RegisterUnary(token string, fn UnaryFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %s: nil unary function", ErrInvalidToken, token)
	}
	return r.register(Operator{Kind: KindUnary, Token: token, Unary: fn})
}

func (r *Registry) RegisterBinary(token string, fn BinaryFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: %s: nil binary function", ErrInvalidToken, token)
	}
	return r.register(Operator{Kind: KindBinary, Token: token, Binary: fn})
}

// RegisterConstant records a named constant. Named constants print as their
// token; only anonymous constants produced during generation print as values.
func (r *Registry) RegisterConstant(token string, value float64) error {
	return r.register(Operator{Kind: KindConstant, Token: token, Value: value})
}

func (r *Registry) MustRegisterUnary(token string, fn UnaryFunc) {
	if err := r.RegisterUnary(token, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) MustRegisterBinary(token string, fn BinaryFunc) {
	if err := r.RegisterBinary(token, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) MustRegisterConstant(token string, value float64) {
	if err := r.RegisterConstant(token, value); err != nil {
		panic(err)
	}
}

func (r *Registry) register(op Operator) error {
	if err := validateToken(op.Token); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[op.Token]; exists {
		return fmt.Errorf("%w: %s", ErrTokenExists, op.Token)
	}
	r.byToken[op.Token] = op
	r.tokens = append(r.tokens, op.Token)
	sort.Strings(r.tokens)
	return nil
}

// Lookup resolves a display token to its operator.
func (r *Registry) Lookup(token string) (Operator, error) {
	r.mu.RLock()
	op, ok := r.byToken[token]
	r.mu.RUnlock()
	if !ok {
		return Operator{}, fmt.Errorf("%w: %s", ErrTokenNotFound, token)
	}
	return op, nil
}

// TokenOf returns the display token of a registered operator. Anonymous
// constants and operators from other registries report ErrOperatorNotFound;
// callers render those by value instead.
func (r *Registry) TokenOf(op Operator) (string, error) {
	if op.Token == "" {
		return "", fmt.Errorf("%w: anonymous %s", ErrOperatorNotFound, op.Kind)
	}
	r.mu.RLock()
	registered, ok := r.byToken[op.Token]
	r.mu.RUnlock()
	if !ok || registered.Kind != op.Kind {
		return "", fmt.Errorf("%w: %s", ErrOperatorNotFound, op.Token)
	}
	return op.Token, nil
}

// Random returns a uniformly chosen registered operator, reserved variables
// included. The draw goes through the sorted token index so a seeded rng
// yields a reproducible sequence.
func (r *Registry) Random(rng *rand.Rand) Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byToken[r.tokens[rng.Intn(len(r.tokens))]]
}

// Tokens returns all registered tokens in sorted order.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// Tokens must be non-empty, alphanumeric, and must not start with a digit.
// Reserved-token collisions surface as ErrTokenExists because the reserved
// variables are ordinary registry entries.
func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	for i, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: %q: token must be alphanumeric", ErrInvalidToken, token)
		}
		if i == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("%w: %q: token must not start with a digit", ErrInvalidToken, token)
		}
	}
	return nil
}
