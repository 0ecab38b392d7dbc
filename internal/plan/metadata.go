package plan

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata is the optional YAML block at the very top of a plan file,
// delimited by "---" lines. The orchestrator writes it when creating a plan
// from a tracked work item so that a later invocation can resume without the
// original reference. Reading it never alters the raw frontmatter.
type Metadata struct {
	Item   string `yaml:"item,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// ReadMetadata parses the YAML frontmatter block if present. A missing or
// malformed block yields zero metadata, not an error: the block is advisory.
func (d *Document) ReadMetadata() Metadata {
	var meta Metadata
	raw, ok := yamlBlock(d.Frontmatter)
	if !ok {
		return meta
	}
	_ = yaml.Unmarshal([]byte(raw), &meta)
	return meta
}

// RenderMetadata renders a metadata block suitable for the top of a new
// plan file.
func RenderMetadata(meta Metadata) string {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return ""
	}
	return "---\n" + string(data) + "---\n"
}

func yamlBlock(frontmatter string) (string, bool) {
	lines := splitAfterNewlines(frontmatter)
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != "---" {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == "---" {
			return strings.Join(lines[1:i], ""), true
		}
	}
	return "", false
}
