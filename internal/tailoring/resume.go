package tailoring

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadBaseResume reads the structured base resume. The content stays opaque:
// the oracle consumes it as-is and rewrites it into a TailoredResume.
func LoadBaseResume(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume file %q: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("resume file %q is not valid JSON", path)
	}

	return json.RawMessage(data), nil
}

// contactOrder fixes the contact line layout; unknown keys follow sorted.
var contactOrder = []string{"email", "phone", "location", "linkedin", "website"}

// RenderText flattens a tailored resume into plain text for download. Plain
// text stays ATS-parseable and needs no rendering dependencies.
func RenderText(r TailoredResume) string {
	var b strings.Builder

	if name := r.Contact["name"]; name != "" {
		b.WriteString(name)
		b.WriteString("\n")
	}
	if line := contactLine(r.Contact); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if r.Summary != "" {
		b.WriteString("\nSUMMARY\n")
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}

	if len(r.Experience) > 0 {
		b.WriteString("\nEXPERIENCE\n")
		for _, exp := range r.Experience {
			heading := exp.Title
			if exp.Company != "" {
				heading += ", " + exp.Company
			}
			if exp.Dates != "" {
				heading += " (" + exp.Dates + ")"
			}
			b.WriteString(heading)
			b.WriteString("\n")
			if exp.Location != "" {
				b.WriteString(exp.Location)
				b.WriteString("\n")
			}
			for _, bullet := range exp.Bullets {
				b.WriteString("- ")
				b.WriteString(bullet)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if len(r.Skills) > 0 {
		b.WriteString("SKILLS\n")
		b.WriteString(strings.Join(r.Skills, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

func contactLine(contact map[string]string) string {
	var parts []string
	used := map[string]bool{"name": true}

	for _, key := range contactOrder {
		if value := contact[key]; value != "" {
			parts = append(parts, value)
		}
		used[key] = true
	}

	var rest []string
	for key, value := range contact {
		if !used[key] && value != "" {
			rest = append(rest, value)
		}
	}
	sort.Strings(rest)
	parts = append(parts, rest...)

	return strings.Join(parts, " | ")
}
