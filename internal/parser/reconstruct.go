package parser

import (
	"regexp"
	"strings"
)

// DateAnchor matches the DD/MM/YYYY date that opens every transaction row.
var DateAnchor = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)

// fold is the state threaded through Reconstruct: the anchor, the block being
// built and the blocks already completed.
type fold struct {
	anchor *regexp.Regexp
	acc    string
	blocks []string
}

func (f fold) flush() fold {
	if f.acc != "" && f.anchor.MatchString(f.acc) {
		f.blocks = append(f.blocks, f.acc)
	}
	f.acc = ""
	return f
}

func (f fold) step(line string) fold {
	if f.anchor.MatchString(line) {
		f = f.flush()
		f.acc = strings.TrimSpace(line)
		return f
	}
	// Text before the first anchor is statement header; it is never emitted.
	if line = strings.TrimSpace(line); line != "" {
		f.acc += " " + line
	}
	return f
}

// Reconstruct merges wrapped statement lines into transaction blocks. A block
// starts at a line matching anchor and absorbs every following line up to the
// next anchor line. Lines before the first anchor are dropped. A nil anchor selects DateAnchor.
func Reconstruct(lines []string, anchor *regexp.Regexp) []string {
	if anchor == nil {
		anchor = DateAnchor
	}
	f := fold{anchor: anchor}
	for _, line := range lines {
		f = f.step(line)
	}
	return f.flush().blocks
}

// SplitLines splits extracted page text into lines.
func SplitLines(page string) []string {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	return strings.Split(page, "\n")
}
