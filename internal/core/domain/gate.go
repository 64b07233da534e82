package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotSelect     = errors.New("only SELECT queries are allowed")
	ErrUnsafeKeyword = errors.New("query contains a disallowed keyword")
	ErrNotFound      = errors.New("not found")
)

// QueryGate decides whether a submitted SQL string may be executed.
// It is stateless and safe for concurrent use.
type QueryGate struct{}

func NewQueryGate() *QueryGate {
	return &QueryGate{}
}

// Check returns nil when sql is allowed to run. Two independent conditions
// must both hold: the trimmed statement begins with SELECT (case-folded for
// the prefix test only; the original string is what gets executed), and the
// lexical scan finds no denylisted keyword anywhere in the input. Empty and
// whitespace-only input fails the prefix check.
func (g *QueryGate) Check(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return ErrNotSelect
	}
	if ContainsUnsafeKeyword(sql) {
		return ErrUnsafeKeyword
	}
	return nil
}
