package docstore

import "strings"

// ParseSortSpec translates a comma-delimited sort parameter into an
// ordered sort specification. A leading '-' on a field requests
// descending order; later fields break ties among earlier ones; if a
// field is repeated, its first occurrence wins.
//
//	"name,-last_updated" -> [{name asc}, {last_updated desc}]
func ParseSortSpec(spec string) []SortField {
	if spec == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var fields []SortField

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		descending := false
		if strings.HasPrefix(part, "-") {
			descending = true
			part = part[1:]
		}
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		fields = append(fields, SortField{Field: part, Descending: descending})
	}
	return fields
}
