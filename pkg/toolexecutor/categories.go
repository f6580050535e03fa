package toolexecutor

import (
	"strings"
	"unicode"
)

// ToolCategory represents a category of tools
type ToolCategory string

const (
	CategoryRead    ToolCategory = "read"
	CategoryWrite   ToolCategory = "write"
	CategoryGeneral ToolCategory = "general"
)

// AllCategories returns all valid tool categories
func AllCategories() []ToolCategory {
	return []ToolCategory{
		CategoryRead,
		CategoryWrite,
		CategoryGeneral,
	}
}

// IsValidCategory checks if a category is valid
func IsValidCategory(category string) bool {
	cat := ToolCategory(strings.ToLower(category))
	for _, valid := range AllCategories() {
		if cat == valid {
			return true
		}
	}
	return false
}

var (
	readVerbs = map[string]bool{
		"get": true, "search": true, "list": true, "lookup": true,
		"fetch": true, "read": true, "find": true,
	}
	readTools = map[string]bool{
		"atlassianuserinfo": true,
	}
	writeVerbs = map[string]bool{
		"create": true, "update": true, "edit": true, "add": true,
		"delete": true, "transition": true, "move": true, "remove": true,
	}
)

// CategorizeTool infers a category from the leading verb of a tool name,
// e.g. searchConfluenceUsingCql is read, createJiraIssue is write.
func CategorizeTool(name string) ToolCategory {
	verb := leadingWord(name)
	switch {
	case readVerbs[verb], readTools[strings.ToLower(name)]:
		return CategoryRead
	case writeVerbs[verb]:
		return CategoryWrite
	default:
		return CategoryGeneral
	}
}

// leadingWord returns the lower-cased first word of a camelCase or
// snake_case identifier.
func leadingWord(name string) string {
	name = strings.TrimLeft(name, "_-")
	if name == "" {
		return ""
	}

	end := len(name)
	for i, r := range name {
		if i == 0 {
			continue
		}
		if r == '_' || r == '-' || unicode.IsUpper(r) {
			end = i
			break
		}
	}

	return strings.ToLower(name[:end])
}
