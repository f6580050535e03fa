package toolexecutor

// ToolPolicy defines which tools an agent can use
type ToolPolicy struct {
	Allow          []string       `json:"allow"`                     // List of allowed tools (* for all)
	Deny           []string       `json:"deny"`                      // List of denied tools (overrides allow)
	DenyCategories []ToolCategory `json:"deny_categories,omitempty"` // Categories denied regardless of Allow
}

// ReadOnlyPolicy allows every tool that does not modify remote content.
func ReadOnlyPolicy() *ToolPolicy {
	return &ToolPolicy{
		Allow:          []string{"*"},
		DenyCategories: []ToolCategory{CategoryWrite},
	}
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		// No policy means allow all
		return true
	}

	// Check deny list first (overrides allow list)
	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	// If no explicit allow, deny by default
	return false
}

// IsCategoryAllowed reports whether tools of the category may run
func (tp *ToolPolicy) IsCategoryAllowed(category ToolCategory) bool {
	if tp == nil {
		return true
	}
	for _, denied := range tp.DenyCategories {
		if denied == category {
			return false
		}
	}
	return true
}

// Allows combines the name and category checks for a definition
func (tp *ToolPolicy) Allows(def ToolDefinition) bool {
	return tp.IsToolAllowed(def.Name) && tp.IsCategoryAllowed(def.Category)
}

// FilterDefinitions returns the definitions the policy allows, in order
func FilterDefinitions(defs []ToolDefinition, policy *ToolPolicy) []ToolDefinition {
	if policy == nil {
		return defs
	}

	filtered := make([]ToolDefinition, 0, len(defs))
	for _, def := range defs {
		if policy.Allows(def) {
			filtered = append(filtered, def)
		}
	}
	return filtered
}
