package bot

import (
	"fmt"
	"strings"
)

// paginate splits a numbered list into messages of at most perPage entries.
// A single page carries no page counter.
func paginate(title string, lines []string, perPage int) []string {
	if perPage <= 0 {
		perPage = len(lines)
	}
	if len(lines) == 0 {
		return []string{title}
	}

	total := (len(lines) + perPage - 1) / perPage
	pages := make([]string, 0, total)
	for page := 0; page < total; page++ {
		startIdx := page * perPage
		endIdx := startIdx + perPage
		if endIdx > len(lines) {
			endIdx = len(lines)
		}

		var message strings.Builder
		message.WriteString(title)
		if total > 1 {
			message.WriteString(fmt.Sprintf(" (page %d of %d)", page+1, total))
		}
		message.WriteString("\n\n")
		for i, line := range lines[startIdx:endIdx] {
			message.WriteString(fmt.Sprintf("%d. %s\n", startIdx+i+1, line))
		}
		pages = append(pages, message.String())
	}
	return pages
}
