package parser

import (
	"regexp"
	"strings"
)

// ParsedDescription is a session description split into its parts
type ParsedDescription struct {
	Comment string
	Project string
	Tags    []string
}

var (
	tagRegex     = regexp.MustCompile(`#([\p{L}0-9_,-]+)`)
	projectRegex = regexp.MustCompile(`@([\p{L}0-9_./-]+)`)
)

// ParseDescription extracts metadata from a session description.
// Syntax: "Review PR #review,backend @acme"
// The first @project wins; tags keep their order and are deduplicated.
func ParseDescription(input string) ParsedDescription {
	result := ParsedDescription{Tags: []string{}}

	// Extract tags (#tag1,tag2 or #tag1 #tag2)
	seen := map[string]bool{}
	for _, match := range tagRegex.FindAllStringSubmatch(input, -1) {
		for _, tag := range strings.Split(match[1], ",") {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			result.Tags = append(result.Tags, tag)
		}
	}
	input = tagRegex.ReplaceAllString(input, "")

	// Extract project (@project-name)
	if m := projectRegex.FindStringSubmatch(input); len(m) > 1 {
		result.Project = m[1]
	}
	input = projectRegex.ReplaceAllString(input, "")

	// Clean up the comment (remove extra spaces)
	result.Comment = strings.Join(strings.Fields(input), " ")

	return result
}

// MergeTags appends extra tags to base, dropping duplicates and empties.
func MergeTags(base []string, extra ...string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, group := range [][]string{base, extra} {
		for _, tag := range group {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
