package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructure_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Parse(samplePlan).ValidateStructure())
}

func TestValidateStructure_MissingParts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		mention string
	}{
		{
			name:    "missing title",
			raw:     "## Overview\n\nx\n\n## Implementation Plan\n\ny\n\n## Acceptance Criteria\n\n- [ ] a\n",
			mention: "title",
		},
		{
			name:    "missing acceptance criteria section",
			raw:     "# T\n\n## Overview\n\nx\n\n## Implementation Plan\n\ny\n",
			mention: `"Acceptance Criteria" section`,
		},
		{
			name:    "missing overview",
			raw:     "# T\n\n## Implementation Plan\n\ny\n\n## Acceptance Criteria\n\n- [ ] a\n",
			mention: `"Overview" section`,
		},
		{
			name:    "no checklist items",
			raw:     "# T\n\n## Overview\n\nx\n\n## Implementation Plan\n\ny\n\n## Acceptance Criteria\n\nprose only\n",
			mention: "checklist item",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Parse(tc.raw).ValidateStructure()
			require.Error(t, err)
			var serr *StructureError
			require.True(t, errors.As(err, &serr))
			assert.Contains(t, err.Error(), tc.mention)
		})
	}
}

func TestVerifyPreserved_MarkFlipsAllowed(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse(strings.Replace(samplePlan, "- [ ] Failing test added", "- [x] Failing test added", 1))
	assert.Empty(t, VerifyPreserved(orig, edited))
}

func TestVerifyPreserved_FrontmatterViolation(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse(strings.Replace(samplePlan, "# Fix login flow", "# Renamed", 1))
	violations := VerifyPreserved(orig, edited)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "frontmatter")
}

func TestVerifyPreserved_RemovedSection(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse("---\nitem: \"42\"\n---\n# Fix login flow\n\nSome preamble text.\n")
	violations := VerifyPreserved(orig, edited)
	require.NotEmpty(t, violations)
	found := false
	for _, v := range violations {
		if strings.Contains(v, `section "Overview" was removed`) {
			found = true
		}
	}
	assert.True(t, found, "violations = %v", violations)
}

func TestVerifyPreserved_BodyEditRejected(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse(strings.Replace(samplePlan, "Fix the cookie scope.", "Rewrite everything.", 1))
	violations := VerifyPreserved(orig, edited)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], `"Implementation Plan"`)
}

func TestVerifyPreserved_EmptySectionMayBeFilled(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse(strings.Replace(samplePlan, "<!-- filled in later -->", "Notes written by the agent.", 1))
	assert.Empty(t, VerifyPreserved(orig, edited))
}

func TestVerifyPreserved_ChecklistLabelEditRejected(t *testing.T) {
	t.Parallel()

	orig := Parse(samplePlan)
	edited := Parse(strings.Replace(samplePlan, "- [ ] Docs updated", "- [ ] Docs rewritten", 1))
	violations := VerifyPreserved(orig, edited)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], CriteriaHeading)
}
