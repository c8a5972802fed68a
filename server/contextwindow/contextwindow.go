// Package contextwindow assembles selected memory snippets into a single
// token-budgeted context string.
package contextwindow

import (
	"unicode/utf8"
)

// runesPerToken is the coarse length heuristic: roughly four characters per
// token for English-like text. It is deliberately approximate; what matters
// is that budgeting and size reporting use the same number.
const runesPerToken = 4

// separator joins snippets in the assembled context.
const separator = "\n\n"

// ApproxTokens estimates the token count of a string. This is the single
// counting function used both for budget checks during assembly and for
// reporting context size afterwards.
func ApproxTokens(s string) int {
	if s == "" {
		return 0
	}
	n := utf8.RuneCountInString(s)
	tokens := n / runesPerToken
	if n%runesPerToken != 0 {
		tokens++
	}
	return tokens
}

// Assemble joins the selection in order until the next snippet would push the
// approximate token count to the budget or beyond. Assembly stops at the
// first snippet that does not fit: later snippets are dropped even if they
// would fit individually, because selection order is a relevance signal that
// must be preserved. Snippets are only ever dropped whole, never split.
//
// Returns the joined context (empty if the budget cannot accommodate the
// first snippet) and the number of snippets included.
func Assemble(selection []string, tokenBudget int) (string, int) {
	joined := ""
	used := 0

	for _, snippet := range selection {
		next := snippet
		if used > 0 {
			next = joined + separator + snippet
		}
		if ApproxTokens(next) >= tokenBudget {
			break
		}
		joined = next
		used++
	}
	return joined, used
}
