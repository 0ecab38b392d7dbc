package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// VerifyPreserved checks that an edit to a plan document stayed within the
// contract granted to the implement phase: frontmatter untouched, every
// original section still present, and every originally non-empty body
// byte-identical except for checkbox mark flips. It returns the list of
// violations, empty when the edit is acceptable.
//
// This is the enforcement mechanism that lets an external agent edit a plan
// file without corrupting authored content.
func VerifyPreserved(original, updated *Document) []string {
	var violations []string

	if strings.TrimSpace(original.Frontmatter) != strings.TrimSpace(updated.Frontmatter) {
		violations = append(violations, "frontmatter was modified")
	}

	for i := range original.Sections {
		orig := &original.Sections[i]
		upd := updated.Section(orig.Heading)
		if upd == nil {
			violations = append(violations, fmt.Sprintf("section %q was removed", orig.Heading))
			continue
		}
		if orig.IsEmpty() {
			// Empty sections may be filled in.
			continue
		}
		if neutralizeMarks(orig.Body) != neutralizeMarks(upd.Body) {
			violations = append(violations, fmt.Sprintf("section %q body was modified beyond checklist marks", orig.Heading))
		}
	}

	return violations
}

var markRe = regexp.MustCompile(`(?m)^(\s*- )\[[ xX]\]`)

// neutralizeMarks canonicalizes checkbox marks so that a comparison ignores
// complete/incomplete flips but nothing else.
func neutralizeMarks(body string) string {
	return markRe.ReplaceAllString(body, "${1}[ ]")
}
