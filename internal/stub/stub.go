// Package stub turns unresolved names into neutral placeholder
// bindings. The generated block runs before the snippet that failed,
// so a name the snippet never defines stops the run only if the
// placeholder's behavior is genuinely insufficient.
package stub

import (
	"fmt"
	"sort"
	"strings"
)

// Generate returns a script block binding every given name to the
// shared placeholder value. Names are emitted in sorted order so the
// block is stable across attempts; duplicates collapse. An empty name
// list yields an empty block.
//
// Empty comes from the sandbox package, which the execution scaffold
// dot-imports.
func Generate(names []string) string {
	uniq := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "" {
			uniq[name] = true
		}
	}
	if len(uniq) == 0 {
		return ""
	}

	ordered := make([]string, 0, len(uniq))
	for name := range uniq {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	var sb strings.Builder
	sb.WriteString("empty := Empty()\n_ = empty\n")
	for _, name := range ordered {
		fmt.Fprintf(&sb, "%s := empty\n_ = %s\n", name, name)
	}
	return sb.String()
}
