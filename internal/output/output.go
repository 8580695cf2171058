// Package output renders the engine's marker-delimited statement
// stream into the supported output formats: plain SQL, or appendable
// Go migration functions.
package output

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Supported output formats.
const (
	FormatSQL       = "sql"
	FormatMigration = "migration"
)

// SupportedFormats lists the accepted --format values.
func SupportedFormats() []string {
	return []string{FormatSQL, FormatMigration}
}

var (
	startRe = regexp.MustCompile(`(?m)^-- start\s+\w+\s+--\n?`)
	stmtRe  = regexp.MustCompile(`(?i)(CREATE|ALTER|DROP)\s+TABLE\s+['"]?(\w+)['"]?`)
)

// endMarker must match the engine's block terminator.
const endMarker = "-- END OF MIGRATION --"

// RenderSQL strips the block markers, leaving bare statements.
func RenderSQL(contents string) string {
	contents = strings.ReplaceAll(contents, endMarker+"\n", "")
	contents = strings.ReplaceAll(contents, endMarker, "")
	contents = startRe.ReplaceAllString(contents, "")
	return strings.TrimSpace(contents) + "\n"
}

// Note reports a skipped or renamed migration during rendering.
type Note struct {
	Name    string
	Message string
}

// Header is written once to a fresh migration file.
func Header() string {
	return "package migrations\n\nimport \"database/sql\"\n"
}

// RenderMigrations turns each statement block into an appendable Go
// migration function named <verb>_<table>_<yyyymmdd>_<nnn>. Blocks
// already present in existing content are skipped; an alter block
// colliding with a different one of the same day gets the next suffix.
func RenderMigrations(contents, existing string, now time.Time) (string, []Note) {
	date := now.Format("20060102")

	var sb strings.Builder
	var notes []Note
	for _, block := range strings.Split(contents, endMarker) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		fn, note := renderMigration(block, existing, date)
		if note != nil {
			notes = append(notes, *note)
		}
		sb.WriteString(fn)
	}
	return sb.String(), notes
}

func renderMigration(block, existing, date string) (string, *Note) {
	sql := strings.TrimSpace(startRe.ReplaceAllString(block, ""))
	if sql == "" {
		return "", nil
	}

	base := functionBase(sql)
	name := ""
	for n := 1; n < 1000; n++ {
		name = fmt.Sprintf("%s_%s_%03d", base, date, n)
		if existing == "" || !strings.Contains(existing, "func "+name+"(") {
			break
		}
		if containsNormalized(existing, sql) {
			return "", &Note{Name: name, Message: "already exists, skipping"}
		}
		if strings.HasPrefix(base, "alter") {
			// A different alter for the same table on the same day gets
			// the next number.
			continue
		}
		return "", &Note{Name: name, Message: "already exists with different contents, skipping"}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nfunc %s(db *sql.DB) error {\n", name)
	sb.WriteString("\t_, err := db.Exec(`\n")
	sb.WriteString(sql)
	sb.WriteString("\n`)\n")
	sb.WriteString("\treturn err\n}\n")
	return sb.String(), nil
}

// functionBase derives verb_table from the first statement of a block.
func functionBase(sql string) string {
	m := stmtRe.FindStringSubmatch(sql)
	if m == nil {
		return "unknown_migration"
	}
	return strings.ToLower(m[1]) + "_" + strings.ToLower(m[2])
}

func containsNormalized(haystack, needle string) bool {
	norm := func(s string) string {
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, "\n", "")
		return strings.ReplaceAll(s, "\t", "")
	}
	return strings.Contains(norm(haystack), norm(needle))
}
