package engine

import (
	"context"
	"strings"
	"time"

	"github.com/ovenlight/mealboard/internal/plugins/auth"
)

// SearchDebounce is how long the host waits after a keystroke before
// running the pending user search.
const SearchDebounce = 300 * time.Millisecond

// searchLimit is the page size for share-candidate lookups.
const searchLimit = 10

// UserSearch debounces share-candidate lookups by sequence token: every
// keystroke supersedes the previous pending search, and only the newest
// token is allowed to run. The host schedules the timer (SearchDebounce)
// and calls Pending with the token when it fires.
type UserSearch struct {
	seq   uint64
	query string
}

// Keystroke records a new query and returns its token. Any earlier token
// is now stale.
func (s *UserSearch) Keystroke(query string) uint64 {
	s.seq++
	s.query = strings.TrimSpace(query)
	return s.seq
}

// Pending returns the query for a token, or false when a later keystroke
// has superseded it.
func (s *UserSearch) Pending(token uint64) (string, bool) {
	if token != s.seq {
		return "", false
	}
	return s.query, true
}

// Reset clears the pending query, invalidating all outstanding tokens.
func (s *UserSearch) Reset() {
	s.seq++
	s.query = ""
}

// SearchShareCandidates looks up users matching the query, excluding
// users who already hold a grant on the calendar. The exclusion list is
// the grants the caller last fetched via ListShares.
func (e *Engine) SearchShareCandidates(ctx context.Context, query string, existingGranteeIDs []string) ([]auth.UserSummary, error) {
	users, err := e.repo.SearchUsers(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(existingGranteeIDs))
	for _, id := range existingGranteeIDs {
		excluded[id] = true
	}
	out := users[:0]
	for _, u := range users {
		if !excluded[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}
