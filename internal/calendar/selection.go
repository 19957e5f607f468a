package calendar

import (
	"net/url"
	"strings"
)

// NormalizeRef cleans a configured calendar reference: surrounding space,
// quotes, a url(...) wrapper and trailing slashes are removed.
func NormalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for {
		before := ref
		if strings.HasPrefix(ref, "url(") && strings.HasSuffix(ref, ")") {
			ref = strings.TrimSpace(ref[len("url(") : len(ref)-1])
		}
		if len(ref) >= 2 && (ref[0] == '"' || ref[0] == '\'') && ref[len(ref)-1] == ref[0] {
			ref = strings.TrimSpace(ref[1 : len(ref)-1])
		}
		if ref == before {
			break
		}
	}
	return strings.TrimRight(ref, "/")
}

// NormalizeSelection normalizes and dedupes refs, dropping empty entries.
func NormalizeSelection(refs []string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ref = NormalizeRef(ref)
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// Select returns the calendars matched by selection, in listing order.
// A calendar matches on its normalized ID, the path of an absolute ID, or,
// case-insensitively, its name.
func Select(calendars []Calendar, selection []string) []Calendar {
	refs := NormalizeSelection(selection)
	var out []Calendar
	for _, cal := range calendars {
		id := NormalizeRef(cal.ID)
		path := pathOf(id)
		for _, ref := range refs {
			if ref == id || (path != "" && ref == path) || (cal.Name != "" && strings.EqualFold(ref, strings.TrimSpace(cal.Name))) {
				out = append(out, cal)
				break
			}
		}
	}
	return out
}

// pathOf returns the URL path of an absolute calendar ID, or "" when id is
// not an absolute URL.
func pathOf(id string) string {
	u, err := url.Parse(id)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}
