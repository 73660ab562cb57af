package esr

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser renders a field's upper-snake register name in Title Case
// for human-readable dumps (e.g. "MCACHE_CONTROL" -> "Mcache Control"),
// the same helper zeonica/core/emu.go keeps for direction-name display.
var titleCaser = cases.Title(language.English)

func toTitleCase(s string) string {
	return titleCaser.String(strings.ToLower(strings.ReplaceAll(s, "_", " ")))
}

// FieldName returns the dump-facing, Title Case name of the field at
// sub/id, or "" if nothing is registered there (spec §4.2 "Behavior":
// "Each known field has (read-effect, write-effect, writable-bit-mask)").
func (p *Plane) FieldName(sub SubRegion, id uint64) string {
	f, ok := p.fields[fieldKey{sub, id}]
	if !ok || f.name == "" {
		return ""
	}
	return toTitleCase(f.name)
}
