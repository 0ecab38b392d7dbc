package run

import (
	"fmt"
	"strings"

	"github.com/chesapeakedev/stagehand/internal/workitem"
)

// planPrompt assembles the plan-phase prompt. When continuation is non-empty
// it holds the content of an existing plan file the agent should revise
// rather than replace.
func planPrompt(item *workitem.WorkItem, planPath, continuation string) string {
	var b strings.Builder

	b.WriteString("You are planning a software change. Do not modify any source code in this session.\n\n")

	fmt.Fprintf(&b, "## Work item\n\n")
	if item.Number > 0 {
		fmt.Fprintf(&b, "Issue #%d: %s\n\n", item.Number, item.Title)
	} else {
		fmt.Fprintf(&b, "%s\n\n", item.Title)
	}
	if item.Body != "" {
		b.WriteString(item.Body)
		b.WriteString("\n\n")
	}
	if len(item.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n\n", strings.Join(item.Labels, ", "))
	}

	b.WriteString("## Task\n\n")
	fmt.Fprintf(&b, "Write an implementation plan to the file %s and nothing else.\n", planPath)
	b.WriteString(`The file must contain, in order:

- a top-level title line: # <Title>
- a "## Overview" section describing the change
- a "## Implementation Plan" section with concrete steps
- a "## Acceptance Criteria" section with one checkbox line per criterion,
  each formatted exactly as "- [ ] <criterion>"

Every acceptance criterion must be objectively verifiable. Leave all
checkboxes unchecked.
`)

	if continuation != "" {
		b.WriteString("\n## Existing plan\n\n")
		b.WriteString("A plan for this work already exists. Revise it rather than starting over: keep completed criteria checked and keep section prose you are not changing byte-identical.\n\n")
		b.WriteString("```markdown\n")
		b.WriteString(continuation)
		if !strings.HasSuffix(continuation, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}

	return b.String()
}

// implementPrompt assembles the implement-phase prompt around an existing,
// validated plan file.
func implementPrompt(planPath, planContent string) string {
	var b strings.Builder

	b.WriteString("You are implementing a planned software change.\n\n")
	fmt.Fprintf(&b, "The plan file is %s. Its current content:\n\n", planPath)
	b.WriteString("```markdown\n")
	b.WriteString(planContent)
	if !strings.HasSuffix(planContent, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
	b.WriteString(`## Task

Work through the Implementation Plan. For every acceptance criterion you
complete and verify, flip its checkbox from "- [ ]" to "- [x]" in the plan
file. Do not modify anything else in the plan file: the title, the section
headings, and all prose must remain exactly as they are. If a criterion
cannot be completed, leave its checkbox unchecked and explain why in your
final message.
`)

	return b.String()
}
