// Package search parses the free-text issue search syntax into a structured
// query that the storage layer can execute. The grammar is a conjunction of
// space-separated tokens: "is:<status>" filters, numeric comparisons such as
// "times_seen:>100", and bare terms matched against the issue message.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
)

// DefaultQuery is applied when a caller provides neither explicit issue IDs
// nor a query string.
const DefaultQuery = "is:unresolved"

type Sort string

const (
	SortDate Sort = "date" // most recently seen first
	SortNew  Sort = "new"  // most recently created first
	SortFreq Sort = "freq" // most events first
)

// ParseSort validates a sort parameter, defaulting to SortDate.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortDate, nil
	case SortDate, SortNew, SortFreq:
		return Sort(s), nil
	default:
		return "", &apperrors.InvalidQueryError{Query: s, Reason: "unsupported sort"}
	}
}

type CompareOp string

const (
	OpEq CompareOp = "="
	OpGt CompareOp = ">"
	OpLt CompareOp = "<"
)

// NumericFilter is a comparison against a counter column.
type NumericFilter struct {
	Op    CompareOp
	Value int
}

// Query is the parsed form of a search string. Zero-value fields mean
// "no constraint".
type Query struct {
	Status    *domain.GroupStatus
	TimesSeen *NumericFilter
	UsersSeen *NumericFilter
	Terms     []string
}

var statusAliases = map[string]domain.GroupStatus{
	"unresolved": domain.StatusUnresolved,
	"resolved":   domain.StatusResolved,
	"ignored":    domain.StatusIgnored,
	"muted":      domain.StatusIgnored,
}

// Parse compiles a raw query string. Malformed input is reported as an
// InvalidQueryError wrapping apperrors.ErrValidation.
func Parse(raw string) (*Query, error) {
	q := &Query{}

	for _, tok := range strings.Fields(raw) {
		switch strings.ToUpper(tok) {
		case "AND", "OR", "NOT":
			return nil, &apperrors.InvalidQueryError{
				Query:  raw,
				Reason: fmt.Sprintf("boolean operator '%s' is not supported", tok),
			}
		}

		key, value, found := strings.Cut(tok, ":")
		if !found {
			q.Terms = append(q.Terms, tok)
			continue
		}

		switch key {
		case "is":
			status, ok := statusAliases[value]
			if !ok {
				return nil, &apperrors.InvalidQueryError{
					Query:  raw,
					Reason: fmt.Sprintf("unknown status '%s'", value),
				}
			}

			q.Status = &status
		case "times_seen":
			f, err := parseNumeric(raw, value)
			if err != nil {
				return nil, err
			}

			q.TimesSeen = f
		case "users_seen":
			f, err := parseNumeric(raw, value)
			if err != nil {
				return nil, err
			}

			q.UsersSeen = f
		default:
			return nil, &apperrors.InvalidQueryError{
				Query:  raw,
				Reason: fmt.Sprintf("unknown search key '%s'", key),
			}
		}
	}

	return q, nil
}

func parseNumeric(raw, value string) (*NumericFilter, error) {
	op := OpEq

	switch {
	case strings.HasPrefix(value, ">"):
		op = OpGt
		value = value[1:]
	case strings.HasPrefix(value, "<"):
		op = OpLt
		value = value[1:]
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil, &apperrors.InvalidQueryError{
			Query:  raw,
			Reason: fmt.Sprintf("malformed numeric comparison '%s'", value),
		}
	}

	return &NumericFilter{Op: op, Value: n}, nil
}
