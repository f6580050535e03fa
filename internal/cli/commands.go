package cli

import (
	"fmt"
	"strings"

	"github.com/harun/ftrdraft/pkg/ftr"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the Atlassian MCP server",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search Confluence with a natural language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "List the Confluence spaces you have access to",
	Args:  cobra.NoArgs,
	RunE:  runSpaces,
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence <competency> <requirement-id>",
	Short: "Find documentation evidence for an FTR requirement",
	Long: fmt.Sprintf(`Search Confluence for evidence backing one FTR requirement.

Competencies: %s
Requirement ids look like PREFIX-NNN, using the competency prefix or one of
the common prefixes (%s).`,
		strings.Join(ftr.CompetencyNames(), ", "), strings.Join(ftr.CommonPrefixes, ", ")),
	Example: "  ftrdraft evidence eks DOC-001",
	Args:    cobra.ExactArgs(2),
	RunE:    runEvidence,
}

func init() {
	rootCmd.AddCommand(toolsCmd, searchCmd, spacesCmd, evidenceCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return a.assistant.Run(a.ctx)
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tools, err := a.assistant.ListTools(a.ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Available Atlassian tools: %d\n", len(tools))
	for _, t := range tools {
		desc := t.Description
		if desc == "" {
			desc = "No description"
		}
		cmd.Printf("- %s: %s\n", t.Name, firstLine(desc))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.assistant.SearchConfluence(a.ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	cmd.Println(resp)
	return nil
}

func runSpaces(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.assistant.ListConfluenceSpaces(a.ctx)
	if err != nil {
		return err
	}
	cmd.Println(resp)
	return nil
}

func runEvidence(cmd *cobra.Command, args []string) error {
	competency, requirementID := args[0], args[1]
	if err := ftr.ValidateRequirement(competency, requirementID); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.assistant.GetFTREvidence(a.ctx, competency, requirementID)
	if err != nil {
		return err
	}
	cmd.Println(resp)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
