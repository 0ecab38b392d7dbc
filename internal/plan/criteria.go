package plan

import (
	"regexp"
	"strings"
)

// CriteriaHeading is the heading of the checklist section, matched
// case-insensitively.
const CriteriaHeading = "Acceptance Criteria"

// Criterion is one checklist item from the Acceptance Criteria section.
type Criterion struct {
	Done  bool
	Label string
}

// Completion is the derived completion status of a document. It is always
// recomputed on demand: the implement phase may have just flipped marks.
type Completion struct {
	Total      int
	Completed  int
	Incomplete []string
}

// Complete reports whether every criterion is done. A document with zero
// criteria is never complete.
func (c Completion) Complete() bool {
	return c.Total > 0 && c.Completed == c.Total
}

var checkboxRe = regexp.MustCompile(`^\s*- \[( |[xX])\]\s*(.*)$`)

// Criteria returns the checklist items of the Acceptance Criteria section in
// document order. A missing section yields an empty list, not an error.
// Duplicate labels are independent items ordered by position.
func (d *Document) Criteria() []Criterion {
	sec := d.Section(CriteriaHeading)
	if sec == nil {
		return nil
	}
	var items []Criterion
	for _, line := range strings.Split(sec.Body, "\n") {
		m := checkboxRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, Criterion{
			Done:  m[1] != " ",
			Label: strings.TrimSpace(m[2]),
		})
	}
	return items
}

// ComputeCompletion derives completion status from the checklist.
func (d *Document) ComputeCompletion() Completion {
	var c Completion
	for _, item := range d.Criteria() {
		c.Total++
		if item.Done {
			c.Completed++
		} else {
			c.Incomplete = append(c.Incomplete, item.Label)
		}
	}
	return c
}
