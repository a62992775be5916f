// Package sanitize provides sanitization for user-generated content.
// Uses bluemonday to strip all HTML from custom item titles and
// descriptions before they are stored. Mealboard stores plain text only,
// so the strict policy is used rather than a UGC policy.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for stripping markup.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared sanitization policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML tags, event handlers, and javascript: URLs from
// user-provided text, then trims surrounding whitespace.
//
// This MUST be called on all user-provided strings before storing them in
// the database: custom item titles and descriptions, calendar names, and
// display names.
func Text(input string) string {
	return strings.TrimSpace(getPolicy().Sanitize(input))
}
