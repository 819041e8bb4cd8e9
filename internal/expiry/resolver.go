// Package expiry derives a usable validity date from the noisy date map an
// analysis returns. Notarized or translated documents often carry no explicit
// expiry field but still have a meaningful validity reference, so the resolver
// walks an ordered rule table instead of looking for a single key.
package expiry

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// placeholders the model emits when it has no real value.
var placeholders = map[string]struct{}{
	"YYYY-MM-DD":     {},
	"None":           {},
	"Not applicable": {},
	"Not provided":   {},
}

// rule matches date-map keys by substring. Rules are evaluated in order;
// notarialOnly rules fire only for notarial/translated document types, and
// skipPlaceholders rules pass control to the next rule on a placeholder value
// instead of giving up.
type rule struct {
	keywords         []string
	notarialOnly     bool
	skipPlaceholders bool
}

var rules = []rule{
	{keywords: []string{"expiry"}, skipPlaceholders: true},
	{keywords: []string{"translation", "authentication", "notary", "notarial"}},
	{keywords: []string{"issue_date", "issue"}, notarialOnly: true},
}

// notarialTypeMarkers identify document types that get the issue-date fallback.
var notarialTypeMarkers = []string{"notary", "notarial", "translation", "authenticated"}

// Resolver resolves expiry dates from analysis date maps.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the derived expiry date, or nil when no parsable candidate
// exists. A candidate that fails to parse is logged and dropped, never fatal.
func (r *Resolver) Resolve(dates map[string]string, documentType string) *time.Time {
	if len(dates) == 0 {
		return nil
	}

	notarial := isNotarialType(documentType)
	for i, rl := range rules {
		if rl.notarialOnly && !notarial {
			continue
		}
		candidate := findDate(dates, rl.keywords)
		if candidate == "" {
			continue
		}
		if isPlaceholder(candidate) {
			if rl.skipPlaceholders {
				continue
			}
			// A placeholder reference date means the model saw the field
			// and had nothing; later rules cannot do better.
			return nil
		}
		if i > 0 {
			r.logger.Info("expiry.reference_date", "value", candidate, "document_type", documentType)
		}
		parsed, err := dateparse.ParseAny(candidate)
		if err != nil {
			r.logger.Warn("expiry.parse_failed", "value", candidate, "error", err)
			return nil
		}
		return &parsed
	}

	r.logger.Info("expiry.no_candidate", "document_type", documentType, "keys", len(dates))
	return nil
}

// findDate returns the first non-empty value whose normalized key contains any
// of the keywords. Keys are lowercased with spaces collapsed to underscores and
// visited in sorted order so resolution is deterministic.
func findDate(dates map[string]string, keywords []string) string {
	keys := make([]string, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := dates[k]
		if v == "" {
			continue
		}
		norm := strings.ReplaceAll(strings.ToLower(k), " ", "_")
		for _, kw := range keywords {
			if strings.Contains(norm, kw) {
				return v
			}
		}
	}
	return ""
}

func isPlaceholder(v string) bool {
	_, ok := placeholders[v]
	return ok
}

func isNotarialType(documentType string) bool {
	lower := strings.ToLower(documentType)
	for _, marker := range notarialTypeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
