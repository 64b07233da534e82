package domain

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// unsafeKeywords are the operation keywords that mark a statement as
// mutating. Membership is tested only against keyword-category tokens, so
// "delete" inside a string literal or "update_time" as a column name never
// match.
var unsafeKeywords = map[string]struct{}{
	"DELETE": {},
	"DROP":   {},
	"UPDATE": {},
}

// ContainsUnsafeKeyword lexes sql with the PostgreSQL scanner and reports
// whether any token the lexer classifies as a keyword matches the denylist.
// The scan covers the whole input, so a disallowed keyword in any statement
// of a semicolon-separated compound is detected.
//
// Input that cannot be scanned yields no keyword tokens and classifies as
// safe; the gate's prefix check and the database's own parser still stand
// between such input and execution.
func ContainsUnsafeKeyword(sql string) bool {
	result, err := pg_query.Scan(sql)
	if err != nil {
		return false
	}

	for _, tok := range result.GetTokens() {
		if tok.KeywordKind == pg_query.KeywordKind_NO_KEYWORD {
			continue
		}
		word := strings.ToUpper(sql[tok.Start:tok.End])
		if _, unsafe := unsafeKeywords[word]; unsafe {
			return true
		}
	}
	return false
}
