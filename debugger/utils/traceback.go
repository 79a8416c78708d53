package utils

import (
	"regexp"
	"strings"
)

var tracebackFile = regexp.MustCompile(`^  File "(.*)", line [0-9]+`)

// FilterTraceback 删除traceback中属于调试器自身的栈帧及其源码行
func FilterTraceback(lines []string, internal func(file string) bool) []string {
	kept := make([]string, 0, len(lines))
	skipping := false
	for _, line := range lines {
		if m := tracebackFile.FindStringSubmatch(line); m != nil {
			skipping = internal(m[1])
			if skipping {
				continue
			}
		} else if skipping && strings.HasPrefix(line, "    ") {
			continue
		} else {
			skipping = false
		}
		kept = append(kept, line)
	}
	return kept
}
