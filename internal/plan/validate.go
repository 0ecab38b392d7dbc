package plan

import (
	"fmt"
	"strings"
)

// Required section headings for a usable plan.
var requiredSections = []string{"Overview", "Implementation Plan", CriteriaHeading}

// StructureError reports what a plan document is missing. A plan failing
// structure validation is never usable by the orchestrator.
type StructureError struct {
	Missing []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("plan structure invalid: missing %s", strings.Join(e.Missing, ", "))
}

// ValidateStructure checks that the document has a top-level title, all
// required sections, and at least one checkbox line. It returns nil when the
// plan is usable, or a *StructureError naming every missing part.
func (d *Document) ValidateStructure() error {
	var missing []string
	if d.Title() == "" {
		missing = append(missing, "title")
	}
	for _, name := range requiredSections {
		if d.Section(name) == nil {
			missing = append(missing, fmt.Sprintf("%q section", name))
		}
	}
	if len(d.Criteria()) == 0 {
		missing = append(missing, "at least one checklist item")
	}
	if len(missing) > 0 {
		return &StructureError{Missing: missing}
	}
	return nil
}
