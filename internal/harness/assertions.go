package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the final state and
// returns one message per failure.
func EvaluateAssertions(final FinalState, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(final, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(final FinalState, a Assertion) error {
	switch a.Type {
	case AssertLive:
		return assertIDSet(a.Type, final.Live, a.Events)
	case AssertStored:
		return assertIDSet(a.Type, final.Stored, a.Events)
	case AssertArchived:
		return assertArchived(final.Archived, a)
	case AssertAnnouncements:
		return assertAnnouncements(final.Announcements, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertIDSet compares id sets; order is ignored.
func assertIDSet(kind string, actual, expected []string) error {
	got := slices.Sorted(slices.Values(actual))
	want := slices.Sorted(slices.Values(expected))
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertArchived(archived []ArchiveSummary, a Assertion) error {
	idx := slices.IndexFunc(archived, func(s ArchiveSummary) bool { return s.Event == a.Event })
	if idx < 0 {
		return &AssertionError{
			Type:     AssertArchived,
			Expected: fmt.Sprintf("archive record for %s", a.Event),
			Actual:   "no record",
		}
	}
	rec := archived[idx]

	if a.Entrants != nil && len(rec.Entrants) != *a.Entrants {
		return &AssertionError{
			Type:     AssertArchived,
			Expected: fmt.Sprintf("%s has %d entrants", a.Event, *a.Entrants),
			Actual:   fmt.Sprintf("%d entrants %v", len(rec.Entrants), rec.Entrants),
		}
	}
	if a.Winners != nil && len(rec.Winners) != *a.Winners {
		return &AssertionError{
			Type:     AssertArchived,
			Expected: fmt.Sprintf("%s has %d winners", a.Event, *a.Winners),
			Actual:   fmt.Sprintf("%d winners %v", len(rec.Winners), rec.Winners),
		}
	}
	for _, w := range rec.Winners {
		if !slices.Contains(rec.Entrants, w) {
			return &AssertionError{
				Type:     AssertArchived,
				Expected: fmt.Sprintf("winners of %s drawn from entrants", a.Event),
				Actual:   fmt.Sprintf("winner %q not entered", w),
			}
		}
	}
	return nil
}

func assertAnnouncements(texts []string, a Assertion) error {
	if a.Count != nil && len(texts) != *a.Count {
		return &AssertionError{
			Type:     AssertAnnouncements,
			Expected: fmt.Sprintf("%d announcements", *a.Count),
			Actual:   fmt.Sprintf("%d announcements %q", len(texts), texts),
		}
	}
	if a.Contains != "" && !slices.ContainsFunc(texts, func(s string) bool {
		return strings.Contains(s, a.Contains)
	}) {
		return &AssertionError{
			Type:     AssertAnnouncements,
			Expected: fmt.Sprintf("an announcement containing %q", a.Contains),
			Actual:   fmt.Sprintf("%q", texts),
		}
	}
	return nil
}
