// Package sanitize normalizes generated SQL into the exact single-line
// form the dashboard service accepts, and gates it against a read-only
// structural contract before anything is executed or provisioned.
//
// The transforms are textual on purpose: the queries carry Grafana
// macro tokens ($__timeFilter) that no SQL parser accepts, so a parse/
// deparse round trip is not an option here.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTimeColumn is the time column used when the caller does not
// specify one. Both ERCOT datasets are keyed on it.
const DefaultTimeColumn = "timestamp"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	timeFilterRe = regexp.MustCompile(`\$__timeFilter\([^)]*\)`)
	mutationRe   = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE)\b`)
	selectRe     = regexp.MustCompile(`(?i)^SELECT\b`)
)

// Clean normalizes a candidate query. The full transform is idempotent:
// running Clean on its own output is a no-op.
//
//  1. Collapse all whitespace runs to single spaces and trim.
//  2. Alias the first bare occurrence of the time column as
//     "<col> AS time" when no alias is present.
//  3. Rewrite literal relative-time filters (NOW() - INTERVAL '...')
//     and malformed $__timeFilter(...) calls to $__timeFilter(<col>).
//  4. Strip surrounding code-fence markers and trailing statement
//     terminators.
func Clean(sql, timeColumn string) string {
	if timeColumn == "" {
		timeColumn = DefaultTimeColumn
	}
	if sql == "" {
		return ""
	}

	cleaned := whitespaceRe.ReplaceAllString(strings.TrimSpace(sql), " ")

	// Only the first occurrence gets the alias. When the time column
	// appears solely inside a $__timeFilter call, the macro rewrite below
	// reverts this insertion and the query then fails the time_alias rule
	// in Validate; such a query selects no time column at all.
	alias := timeColumn + " AS time"
	if !strings.Contains(cleaned, alias) && strings.Contains(cleaned, timeColumn) {
		cleaned = strings.Replace(cleaned, timeColumn, alias, 1)
	}

	macro := "$__timeFilter(" + timeColumn + ")"
	intervalRe := regexp.MustCompile(regexp.QuoteMeta(timeColumn) + `\s*>=\s*NOW\(\)\s*-\s*INTERVAL\s*'[^']*'`)
	cleaned = intervalRe.ReplaceAllLiteralString(cleaned, macro)
	if !strings.Contains(cleaned, macro) && strings.Contains(cleaned, "timeFilter") {
		cleaned = timeFilterRe.ReplaceAllLiteralString(cleaned, macro)
	}

	cleaned = strings.TrimPrefix(cleaned, "```sql")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, "; ")

	return cleaned
}

// Validation rule identifiers reported by Validate.
const (
	RuleSelectOnly      = "select_only"
	RuleSingleStatement = "single_statement"
	RuleReadOnly        = "read_only"
	RuleTimeAlias       = "time_alias"
	RuleTimeMacro       = "time_macro"
)

// ValidationError reports which structural rules a query violated.
type ValidationError struct {
	Rules []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sql validation failed: %s", strings.Join(e.Rules, ", "))
}

// Validate checks a cleaned query against the structural contract:
// a single read-only SELECT carrying both the mandated time-column
// alias and the time-range macro. It returns a *ValidationError listing
// every violated rule, or nil when the query passes.
func Validate(sql, timeColumn string) error {
	if timeColumn == "" {
		timeColumn = DefaultTimeColumn
	}

	var rules []string
	if !selectRe.MatchString(sql) {
		rules = append(rules, RuleSelectOnly)
	}
	if strings.Contains(sql, ";") {
		rules = append(rules, RuleSingleStatement)
	}
	if mutationRe.MatchString(sql) {
		rules = append(rules, RuleReadOnly)
	}
	if !strings.Contains(sql, timeColumn+" AS time") {
		rules = append(rules, RuleTimeAlias)
	}
	if !strings.Contains(sql, "$__timeFilter("+timeColumn+")") {
		rules = append(rules, RuleTimeMacro)
	}

	if len(rules) > 0 {
		return &ValidationError{Rules: rules}
	}
	return nil
}
