package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/spf13/cobra"
)

// LintOptions holds options for the lint command.
type LintOptions struct {
	Format string // Output format: text, json
}

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	opts := &LintOptions{}
	cmd := &cobra.Command{
		Use:   "lint [file]",
		Short: "Validate a pipeline descriptor",
		Long: `Parse and validate a pipeline descriptor without running anything.

Reports schema problems, unknown stages, malformed env entries and
missing patch files. Errors make the descriptor unrunnable; warnings
do not.`,
		Example: `  # Validate the project descriptor
  leapci lint

  # Validate a specific file
  leapci lint ci/nightly.yml

  # Output as JSON
  leapci lint --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json")

	return cmd
}

func runLint(cmd *cobra.Command, args []string, opts *LintOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	file := cfg.PipelineFile
	if len(args) > 0 {
		file = args[0]
	}

	d, err := pipeline.Load(file)
	if err != nil {
		return fmt.Errorf("loading descriptor: %w", err)
	}

	issues := d.Validate(cfg.ProjectRoot)
	hasIssues := renderLintResults(r, file, issues)

	// Exit with code 1 if errors found
	if hasIssues && pipeline.HasErrors(issues) {
		return fmt.Errorf("descriptor has errors")
	}
	return nil
}

// lintIssue is the JSON shape of one validation finding.
type lintIssue struct {
	Severity string `json:"severity"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// lintOutput is the JSON shape of a lint run.
type lintOutput struct {
	File     string      `json:"file"`
	Errors   int         `json:"errors"`
	Warnings int         `json:"warnings"`
	Issues   []lintIssue `json:"issues"`
}

func renderLintResults(r *output.Renderer, file string, issues []pipeline.Issue) bool {
	if len(issues) == 0 {
		if r.EffectiveMode() == output.ModeJSON {
			_ = r.JSON(lintOutput{File: file, Issues: []lintIssue{}})
		} else {
			r.Success(fmt.Sprintf("%s is valid", file))
		}
		return false
	}

	errors, warnings := 0, 0
	for _, issue := range issues {
		if issue.Severity == pipeline.SeverityError {
			errors++
		} else {
			warnings++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := lintOutput{File: file, Errors: errors, Warnings: warnings}
		for _, issue := range issues {
			out.Issues = append(out.Issues, lintIssue{
				Severity: string(issue.Severity),
				Field:    issue.Field,
				Message:  issue.Message,
			})
		}
		_ = r.JSON(out)
		return true
	}

	r.Println(r.Styles().Bold.Render(file))
	for _, issue := range issues {
		r.Printf("  %s  %s  %s\n",
			issueSeverityStyle(r, issue.Severity),
			r.Styles().Bold.Render(issue.Field),
			issue.Message,
		)
	}
	r.Println("")

	summary := fmt.Sprintf("%d issues", len(issues))
	if errors > 0 {
		summary += fmt.Sprintf(", %d errors", errors)
	}
	if warnings > 0 {
		summary += fmt.Sprintf(", %d warnings", warnings)
	}
	r.Printf("Summary: %s\n", summary)

	return true
}

func issueSeverityStyle(r *output.Renderer, sev pipeline.Severity) string {
	switch sev {
	case pipeline.SeverityError:
		return r.Styles().Error.Render("error  ")
	case pipeline.SeverityWarning:
		return r.Styles().Warning.Render("warning")
	default:
		return r.Styles().Muted.Render("unknown")
	}
}
