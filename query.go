package mocktrace

import (
	"strings"

	"github.com/pkg/errors"
)

// FindByTag returns the one span whose tag key equals value under Go
// equality, so uint(3), int(3) and "3" are all different values.
// It returns nil when nothing matches and ErrAmbiguousLookup when more than
// one span does. The returned pointer refers to an element of spans.
func FindByTag(spans []Span, key Tag, value any) (*Span, error) {
	return findOne(spans, func(s *Span) bool {
		got, ok := s.Tags[key]
		return ok && tagEqual(got, value)
	}, "tag %s=%v", key, value)
}

// FindByOperationName returns the one span with the given operation name,
// with the same contract as FindByTag.
func FindByOperationName(spans []Span, name Key) (*Span, error) {
	return findOne(spans, func(s *Span) bool {
		return s.OperationName == name
	}, "operation %q", name)
}

func findOne(spans []Span, match func(*Span) bool, format string, args ...any) (*Span, error) {
	var found *Span
	count := 0
	for i := range spans {
		if !match(&spans[i]) {
			continue
		}
		count++
		if found == nil {
			found = &spans[i]
		}
	}
	if count > 1 {
		return nil, errors.Wrapf(ErrAmbiguousLookup, format+": %d spans match", append(args, count)...)
	}
	return found, nil
}

// CountTagsWithPrefix counts the distinct tag keys of span that start with
// prefix.
func CountTagsWithPrefix(span Span, prefix string) int {
	n := 0
	for key := range span.Tags {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

// FilterByTrace returns the spans that belong to traceID, in their original
// order.
func FilterByTrace(spans []Span, traceID TraceID) []Span {
	var out []Span
	for i := range spans {
		if spans[i].Context.TraceID == traceID {
			out = append(out, spans[i])
		}
	}
	return out
}

// ChildrenOf returns the direct children of parent, in their original order.
// A nil parent has no children.
func ChildrenOf(spans []Span, parent Parent) []Span {
	if parent == nil {
		return nil
	}
	psc := parent.SpanContext()
	if !psc.IsValid() {
		return nil
	}
	var out []Span
	for i := range spans {
		s := &spans[i]
		if s.Context.TraceID == psc.TraceID && s.ParentID == psc.SpanID {
			out = append(out, *s)
		}
	}
	return out
}
