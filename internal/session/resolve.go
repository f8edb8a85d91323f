package session

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Resolve maps a user-supplied reference to a single session. Exact id and
// unique id-prefix matches win; otherwise the query is fuzzy-matched against
// the deduplicated display labels. An ambiguous reference is a user-facing
// error naming the candidates.
func Resolve(sessions []*Session, query string) (*Session, error) {
	if query == "" {
		return nil, fmt.Errorf("empty session reference")
	}

	var prefixMatches []*Session
	for _, s := range sessions {
		if s.ID == query {
			return s, nil
		}
		if strings.HasPrefix(s.ID, query) {
			prefixMatches = append(prefixMatches, s)
		}
	}
	if len(prefixMatches) == 1 {
		return prefixMatches[0], nil
	}
	if len(prefixMatches) > 1 {
		return nil, ambiguous(query, prefixMatches)
	}

	labels := make([]string, len(sessions))
	for i, s := range sessions {
		labels[i] = Label(s, 0)
	}
	labels = DeduplicateLabels(labels)

	matches := fuzzy.Find(query, labels)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no session matches %q", query)
	case 1:
		return sessions[matches[0].Index], nil
	}

	// Accept a clearly best fuzzy match; otherwise report the tie.
	if matches[0].Score > matches[1].Score {
		return sessions[matches[0].Index], nil
	}
	var tied []*Session
	for _, m := range matches {
		if m.Score == matches[0].Score {
			tied = append(tied, sessions[m.Index])
		}
	}
	return nil, ambiguous(query, tied)
}

func ambiguous(query string, candidates []*Session) error {
	names := make([]string, len(candidates))
	for i, s := range candidates {
		names[i] = fmt.Sprintf("%s (%s)", s.ID, Label(s, 40))
	}
	return fmt.Errorf("ambiguous session reference %q: matches %s",
		query, strings.Join(names, ", "))
}
