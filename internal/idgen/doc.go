// Package idgen centralises identifier generation for ledger entries so the
// rest of the codebase never calls uuid directly.
package idgen
