package vectorstore

import (
	"sort"
	"strings"
)

// Filter is a conjunction of metadata clauses. Each clause matches when the
// passage's field equals any of the clause values. The zero value matches
// every passage.
//
// Canonical form sorts fields and values so that logically equivalent filters
// render identically; the cache fingerprints the canonical string.
type Filter struct {
	clauses map[string][]string
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{clauses: make(map[string][]string)}
}

// DefaultFilter returns the standard predicate: only active documents.
func DefaultFilter() *Filter {
	return NewFilter().Where("status", string(StatusActive))
}

// Where adds an equality clause. Repeated calls on the same field widen the
// value set.
func (f *Filter) Where(field, value string) *Filter {
	return f.WhereIn(field, value)
}

// WhereIn adds a set-membership clause.
func (f *Filter) WhereIn(field string, values ...string) *Filter {
	if f.clauses == nil {
		f.clauses = make(map[string][]string)
	}
	f.clauses[field] = append(f.clauses[field], values...)
	return f
}

// Without removes all clauses on a field. Used to widen the default
// status predicate.
func (f *Filter) Without(field string) *Filter {
	if f.clauses != nil {
		delete(f.clauses, field)
	}
	return f
}

// IsEmpty reports whether the filter has no clauses.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.clauses) == 0
}

// Canonical renders the filter as "field1:v1,v2;field2:v3" with fields and
// values sorted and values deduplicated.
func (f *Filter) Canonical() string {
	if f.IsEmpty() {
		return ""
	}
	fields := make([]string, 0, len(f.clauses))
	for field := range f.clauses {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(';')
		}
		values := uniqueSorted(f.clauses[field])
		b.WriteString(field)
		b.WriteByte(':')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

// Clauses returns the filter's clauses with sorted, deduplicated values.
// The returned map is a copy.
func (f *Filter) Clauses() map[string][]string {
	if f.IsEmpty() {
		return nil
	}
	out := make(map[string][]string, len(f.clauses))
	for field, values := range f.clauses {
		out[field] = uniqueSorted(values)
	}
	return out
}

// Matches evaluates the filter against a passage's indexed fields. Used to
// re-apply the predicate on cache re-hydration, where a passage's status may
// have changed since the entry was written.
func (f *Filter) Matches(p *Passage) bool {
	if f.IsEmpty() {
		return true
	}
	for field, values := range f.clauses {
		actual, ok := passageField(p, field)
		if !ok {
			return false
		}
		if !containsString(values, actual) {
			return false
		}
	}
	return true
}

// passageField resolves a filter field against the passage's typed columns
// first, then free-form metadata.
func passageField(p *Passage, field string) (string, bool) {
	switch field {
	case "status":
		return string(p.Status), true
	case "doc_type":
		return string(p.DocType), true
	case "document_id":
		return p.DocumentID, true
	}
	if p.Metadata != nil {
		if v, ok := p.Metadata[field]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func uniqueSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
