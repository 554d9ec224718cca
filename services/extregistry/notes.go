package extregistry

import (
	"fmt"
	"registry-backend/lib/registry"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Company notes carry their structured fields in a "## Детальные сведения об
// организации" section: one inline line with the numeric registration codes,
// then one "- **key**:: value" list entry per field, then optional
// sub-sections for supplemental codes and activity classifications. The
// parser below is the inverse of CompanyNoteBody, tolerant of hand-edited
// notes: anything that does not match a field pattern is skipped.

var (
	detailsHeading  = regexp.MustCompile(`(?m)^## Детальные сведения об организации\s*$`)
	inlineCodesLine = regexp.MustCompile(`(?m)^(\*\*ИНН\*\*:: .*)\n`)
	inlineCodePair  = regexp.MustCompile(`\*\*(\S+)\*\*:: (\d+)\s?`)
	listEntry       = regexp.MustCompile(`\s*-\s+\*\*([^:*]+)\*\*:: (.*)\n`)
)

var noteRecordTypes = []string{"company_HQ", "companyOffice"}

// ParseCompanyNote extracts the company field mapping from note content.
// Earlier occurrences of a key win over later ones, so the tax id from the
// front matter takes precedence over any in the body.
func ParseCompanyNote(content string) *registry.Record {
	record := registry.NewRecord()

	fields, body := splitFrontMatter(content)

	recordType, _ := fields["record_type"].(string)
	ok := false
	for _, t := range noteRecordTypes {
		if recordType == t {
			ok = true
		}
	}
	if !ok {
		return record
	}

	if taxID, present := fields["taxID"]; present && taxID != nil {
		record.SetText(registry.KeyTaxID, fmt.Sprint(taxID))
	}

	heading := detailsHeading.FindStringIndex(body)
	if heading == nil {
		return record
	}
	section := body[heading[0]:]

	if m := inlineCodesLine.FindStringSubmatchIndex(section); m != nil {
		line := section[m[2]:m[3]]
		for _, pair := range inlineCodePair.FindAllStringSubmatch(line, -1) {
			record.SetIfAbsent(pair[1], registry.TextValue(pair[2]))
		}
		section = section[m[3]:]
	}

	for _, entry := range listEntry.FindAllStringSubmatch(section, -1) {
		record.SetIfAbsent(strings.TrimSpace(entry[1]), registry.TextValue(entry[2]))
	}
	return record
}

// splitFrontMatter separates the yaml front matter block from the note body.
// Notes without front matter, or with unparseable front matter, yield no
// fields.
func splitFrontMatter(content string) (map[string]any, string) {
	rest, found := strings.CutPrefix(content, "---\n")
	if !found {
		return nil, content
	}
	block, body, found := strings.Cut(rest, "\n---\n")
	if !found {
		return nil, content
	}

	var fields map[string]any
	err := yaml.Unmarshal([]byte(block), &fields)
	if err != nil {
		return nil, body
	}
	return fields, body
}

var noteInlineCodeKeys = []string{registry.KeyTaxID, registry.KeyOGRN, registry.KeyOKPO}

// supplemental statistics codes rendered as an indented sub-list
var noteSupplementalCodeKeys = []string{"ОКАТО", "ОКТМО", "ОКФС", "ОКОГУ", registry.KeyLegalForm}

// keys never rendered as plain list entries: the inline codes, the codes
// sub-list, structured values with their own sections, and internal fields
var noteExcludedKeys = map[string]bool{
	registry.KeyTaxID:         true,
	registry.KeyOGRN:          true,
	registry.KeyOKPO:          true,
	registry.KeyOKVED:         true,
	registry.KeyStatusActive:  true,
	registry.KeyParentCompany: true,
	"Благонадежность":         true,
	"Кредитоспособность":      true,
	"ОКАТО":                   true,
	"ОКТМО":                   true,
	"ОКФС":                    true,
	"ОКОГУ":                   true,
	registry.KeyLegalForm:     true,
}

// CompanyNoteBody renders the record's details section in the exact shape
// ParseCompanyNote consumes.
func CompanyNoteBody(record *registry.Record) string {
	var b strings.Builder
	b.WriteString("\n\n## Детальные сведения об организации\n\n")

	var inline []string
	for _, key := range noteInlineCodeKeys {
		if v := record.Text(key); v != "" {
			inline = append(inline, fmt.Sprintf("**%s**:: %s ", key, v))
		}
	}
	b.WriteString(strings.Join(inline, " ") + "\n\n")

	var entries []string
	for _, key := range record.Keys() {
		if noteExcludedKeys[key] {
			continue
		}
		v, _ := record.Get(key)
		if v.Kind != registry.KindText {
			continue
		}
		entries = append(entries, fmt.Sprintf("- **%s**:: %s", key, v.Text))
	}
	b.WriteString(strings.Join(entries, "\n"))

	var codes strings.Builder
	for _, key := range noteSupplementalCodeKeys {
		if v := record.Text(key); v != "" {
			fmt.Fprintf(&codes, "    - **%s**:: %s\n", key, v)
		}
	}
	if codes.Len() > 0 {
		b.WriteString("\n - **Дополнительные коды**:\n")
		b.WriteString(codes.String())
	}

	if okved := activitySection(record); okved != "" {
		b.WriteString("\n\n### ОКВЭД\n")
		b.WriteString(okved)
		b.WriteString("\n")
	}
	return b.String()
}

func activitySection(record *registry.Record) string {
	v, found := record.Get(registry.KeyOKVED)
	if !found || v.Kind != registry.KindNested {
		return ""
	}

	var b strings.Builder
	if primary, found := v.Nested.Get(registry.KeyOKVEDPrimary); found && len(primary.Pairs) > 0 {
		b.WriteString("\n> [!info] Основной\n")
		b.WriteString(activityLines(primary.Pairs))
		b.WriteString("\n")
	}
	if additional, found := v.Nested.Get(registry.KeyOKVEDAdditional); found && len(additional.Pairs) > 0 {
		b.WriteString("\n> [!info]- Дополнительный\n")
		b.WriteString(activityLines(additional.Pairs))
		b.WriteString("\n")
	}
	return b.String()
}

func activityLines(pairs []registry.Pair) string {
	lines := make([]string, len(pairs))
	for i, pair := range pairs {
		lines[i] = "> - " + pair.Code + " - " + pair.Description
	}
	return strings.Join(lines, "\n")
}
