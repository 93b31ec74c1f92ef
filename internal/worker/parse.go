package worker

import (
	"regexp"
	"strings"
)

var fencedBlockRE = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n(.*?)```")

// firstFencedBlock extracts the content of the first fenced code block in
// text, used for the write_test phase's single-file response.
func firstFencedBlock(text string) (string, bool) {
	m := fencedBlockRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var fileHeaderRE = regexp.MustCompile(`(?m)^###\s*File:\s*(.+?)\s*$`)

// parseFileBlocks parses one or more "### File: <path>" headers each
// followed by a fenced code block, per the write_code phase's response
// format. If no headers are found, the whole response is treated as a
// single fenced block written to defaultPath.
func parseFileBlocks(text, defaultPath string) []Artifact {
	headers := fileHeaderRE.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		if block, ok := firstFencedBlock(text); ok {
			return []Artifact{{Path: defaultPath, Content: block}}
		}
		return nil
	}

	var artifacts []Artifact
	for i, h := range headers {
		path := text[h[2]:h[3]]
		segStart := h[1]
		segEnd := len(text)
		if i+1 < len(headers) {
			segEnd = headers[i+1][0]
		}
		segment := text[segStart:segEnd]
		block, ok := firstFencedBlock(segment)
		if !ok {
			continue
		}
		artifacts = append(artifacts, Artifact{Path: strings.TrimSpace(path), Content: block})
	}
	return artifacts
}
