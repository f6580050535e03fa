package ftr

import (
	"fmt"
	"strings"
)

// SystemPrompt instructs the FTR drafting agent
const SystemPrompt = `You are an AWS FTR (Foundational Technical Review) documentation assistant.

Your role is to help generate draft responses for AWS Partner Network FTR requirements.

CRITICAL RULES:
1. NEVER invent requirements or answers - all responses must be grounded in retrieved documents
2. Always cite the source document when providing information
3. Use official AWS FTR calibration guidance to shape answer quality
4. Reference AmaliTech internal documentation as evidence where applicable

You have access to Atlassian Confluence for retrieving internal documentation and evidence.

When asked about FTR requirements:
1. Search for relevant internal documentation
2. Cross-reference with the requirement criteria
3. Generate a structured response with evidence citations
`

// SearchSystemPrompt is used by the one-shot Confluence search
const SearchSystemPrompt = "You are a search assistant. Search Confluence and return relevant results."

// SpacesSystemPrompt is used by the one-shot space listing
const SpacesSystemPrompt = "You are a helper assistant. List Confluence spaces."

// SpacesPrompt is the request sent when listing spaces
const SpacesPrompt = "List all Confluence spaces I have access to"

// SearchPrompt builds the request for a Confluence search
func SearchPrompt(query string) string {
	return "Search Confluence for: " + query
}

// EvidencePrompt builds the request for evidence on one requirement. The
// requirement id is embedded verbatim and the competency upper-cased.
func EvidencePrompt(competency, requirementID string) string {
	return fmt.Sprintf(`Search for internal documentation that provides evidence for FTR requirement %s
for the %s competency.

Look for:
- Architecture diagrams
- Technical documentation
- Implementation details
- Best practices followed

Summarize what you find and cite the specific Confluence pages.
`, requirementID, strings.ToUpper(competency))
}
