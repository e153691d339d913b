package corpus

import (
	"fmt"
	"sort"
	"strings"
)

const maxTitleLength = 1024

// ValidationError holds per-document validation failure messages keyed by
// document id.
type ValidationError struct {
	Documents map[int]string
}

func (e *ValidationError) Error() string {
	ids := make([]int, 0, len(e.Documents))
	for id := range e.Documents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d:%s", id, e.Documents[id]))
	}
	return "invalid corpus: " + strings.Join(parts, "; ")
}

// ValidateIDs checks that document ids are unique. It is the only rule a
// corpus must satisfy to be indexed.
func ValidateIDs(docs []Document) error {
	return validate(docs, false)
}

// Validate applies ValidateIDs and additionally requires every title to be
// present and of sane length. Descriptions may be empty.
func Validate(docs []Document) error {
	return validate(docs, true)
}

func validate(docs []Document, checkTitles bool) error {
	errs := make(map[int]string)
	seen := make(map[int]struct{}, len(docs))
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			errs[doc.ID] = "duplicate document id"
			continue
		}
		seen[doc.ID] = struct{}{}
		if !checkTitles {
			continue
		}

		title := strings.TrimSpace(doc.Title)
		if title == "" {
			errs[doc.ID] = "title is required"
		} else if len(title) > maxTitleLength {
			errs[doc.ID] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Documents: errs}
	}
	return nil
}
