package commands

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapci/internal/cli/config"
	"github.com/leapstack-labs/leapci/internal/cli/output"
	"github.com/leapstack-labs/leapci/internal/pipeline"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a comprehensive environment health check",
		Long: `Check that this machine can run the project's pipeline.

The doctor command inspects the descriptor, the tools builds depend on
and the local state database, and provides a report including:
- Pipeline summary (jobs, versions, steps)
- Health checks grouped by category (Descriptor, Environment, State)
- Health score (0-100)
- Actionable recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leapci doctor

  # Output as JSON
  leapci doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         PipelineSummary `json:"summary"`
	HealthChecks    []HealthCheck   `json:"health_checks"`
	Score           int             `json:"score"`
	Recommendations []string        `json:"recommendations"`
	IssueCount      int             `json:"issue_count"`
}

// PipelineSummary contains descriptor-level statistics.
type PipelineSummary struct {
	Descriptor string `json:"descriptor"`
	Language   string `json:"language,omitempty"`
	Jobs       int    `json:"jobs"`
	Versions   int    `json:"versions"`
	Steps      int    `json:"steps"`
	HasSource  bool   `json:"has_source"`
	Email      bool   `json:"email"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	doctorOutput := buildDoctorOutput(cmdCtx, cfg)

	// Render based on mode
	effectiveMode := r.EffectiveMode()
	switch effectiveMode {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

func buildDoctorOutput(cmdCtx *CommandContext, cfg *config.Config) *DoctorOutput {
	var checks []HealthCheck

	d, descriptorChecks := checkDescriptor(cfg)
	checks = append(checks, descriptorChecks...)
	checks = append(checks, checkEnvironment(d)...)
	checks = append(checks, checkState(cmdCtx, cfg))
	checks = append(checks, checkNotifications(cfg, d))

	// Sort health checks by group then by rule ID
	sort.Slice(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	issueCount := 0
	for _, check := range checks {
		issueCount += check.IssueCount
	}

	return &DoctorOutput{
		Summary:         buildPipelineSummary(cfg, d),
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issueCount,
	}
}

func buildPipelineSummary(cfg *config.Config, d *pipeline.Descriptor) PipelineSummary {
	summary := PipelineSummary{Descriptor: cfg.PipelineFile}
	if d == nil {
		return summary
	}

	summary.Language = d.Language
	summary.Jobs = len(d.Jobs())
	summary.Versions = len(d.Versions)
	summary.HasSource = d.HasSource()
	summary.Email = d.Notifications != nil && d.Notifications.Email != nil

	for _, stage := range [][]string{
		d.BeforeInstall, d.Install, d.BeforeScript, d.Script,
		d.AfterSuccess, d.AfterFailure, d.AfterScript,
	} {
		summary.Steps += len(stage)
	}

	return summary
}

// checkDescriptor verifies the descriptor exists, parses and validates.
// It returns the parsed descriptor so later checks can inspect it; nil
// when loading failed.
func checkDescriptor(cfg *config.Config) (*pipeline.Descriptor, []HealthCheck) {
	if _, err := os.Stat(cfg.PipelineFile); err != nil {
		return nil, []HealthCheck{{
			RuleID:     "CI01",
			Name:       "Descriptor present",
			Group:      "descriptor",
			Status:     "error",
			IssueCount: 1,
			Details:    []string{fmt.Sprintf("%s does not exist", cfg.PipelineFile)},
		}}
	}
	present := HealthCheck{RuleID: "CI01", Name: "Descriptor present", Group: "descriptor", Status: "pass"}

	d, err := pipeline.Load(cfg.PipelineFile)
	if err != nil {
		return nil, []HealthCheck{present, {
			RuleID:     "CI02",
			Name:       "Descriptor parses",
			Group:      "descriptor",
			Status:     "error",
			IssueCount: 1,
			Details:    []string{err.Error()},
		}}
	}
	parses := HealthCheck{RuleID: "CI02", Name: "Descriptor parses", Group: "descriptor", Status: "pass"}

	valid := HealthCheck{RuleID: "CI03", Name: "Descriptor valid", Group: "descriptor", Status: "pass"}
	issues := d.Validate(cfg.ProjectRoot)
	if len(issues) > 0 {
		valid.Status = "warn"
		if pipeline.HasErrors(issues) {
			valid.Status = "error"
		}
		valid.IssueCount = len(issues)
		for _, issue := range issues {
			valid.Details = append(valid.Details, issue.String())
		}
	}

	return d, []HealthCheck{present, parses, valid}
}

// checkEnvironment verifies the tools the pipeline's stages shell out to.
func checkEnvironment(d *pipeline.Descriptor) []HealthCheck {
	var checks []HealthCheck

	shell := HealthCheck{RuleID: "EN01", Name: "Shell available", Group: "environment", Status: "pass"}
	if _, err := exec.LookPath("sh"); err != nil {
		shell.Status = "error"
		shell.IssueCount = 1
		shell.Details = []string{"sh not found in PATH"}
	}
	checks = append(checks, shell)

	git := HealthCheck{RuleID: "EN02", Name: "Git available", Group: "environment", Status: "pass"}
	if _, err := exec.LookPath("git"); err != nil {
		git.Status = "warn"
		if d != nil && d.HasSource() {
			git.Status = "error"
		}
		git.IssueCount = 1
		git.Details = []string{"git not found in PATH"}
	}
	checks = append(checks, git)

	if d != nil && d.Addons != nil && d.Addons.Apt != nil {
		apt := HealthCheck{RuleID: "EN03", Name: "Apt available", Group: "environment", Status: "pass"}
		if _, err := exec.LookPath("apt-get"); err != nil {
			apt.Status = "warn"
			apt.IssueCount = 1
			apt.Details = []string{"apt-get not found in PATH, addon packages will not install"}
		}
		checks = append(checks, apt)
	}

	if d != nil && len(d.Versions) > 0 {
		interp := HealthCheck{RuleID: "EN04", Name: "Interpreters available", Group: "environment", Status: "pass"}
		for _, version := range d.Versions {
			name := interpreterName(d.Language, version)
			if name == "" {
				continue
			}
			if _, err := exec.LookPath(name); err != nil {
				interp.Status = "warn"
				interp.IssueCount++
				interp.Details = append(interp.Details, fmt.Sprintf("%s not found in PATH", name))
			}
		}
		checks = append(checks, interp)
	}

	return checks
}

// interpreterName maps a language and matrix version to the executable a
// job would invoke, like python 3.12 to python3.12.
func interpreterName(language, version string) string {
	if language == "" {
		return ""
	}
	if version == "" {
		return language
	}
	return language + version
}

// checkState verifies the state database can be opened and migrated.
func checkState(cmdCtx *CommandContext, cfg *config.Config) HealthCheck {
	check := HealthCheck{RuleID: "ST01", Name: "State database", Group: "state", Status: "pass"}

	store, err := openStore(cfg, cmdCtx.Logger)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{err.Error()}
		return check
	}
	_ = store.Close()
	return check
}

// checkNotifications verifies SMTP credentials exist when the descriptor
// asks for email.
func checkNotifications(cfg *config.Config, d *pipeline.Descriptor) HealthCheck {
	check := HealthCheck{RuleID: "NT01", Name: "Email delivery configured", Group: "notifications", Status: "pass"}

	wantsEmail := d != nil && d.Notifications != nil && d.Notifications.Email != nil
	if wantsEmail && !smtpConfig(cfg).Configured() {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{"descriptor requests email notifications but smtp.host is not set"}
	}
	return check
}

// calculateHealthScore computes a health score from 0-100.
// Each issue reduces points and errors count double.
func calculateHealthScore(checks []HealthCheck) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0
	basePenalty := 10.0

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	// Clamp to 0-100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific rule.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CI01":
		return "Run 'leapci init' to scaffold a pipeline descriptor"
	case "CI02":
		return "Fix the YAML syntax errors reported above"
	case "CI03":
		return "Run 'leapci lint' and fix the reported descriptor issues"
	case "EN01":
		return "Install a POSIX shell so pipeline steps can run"
	case "EN02":
		return "Install git to enable source checkouts"
	case "EN03":
		return "Install apt-get or drop the apt addon from the descriptor"
	case "EN04":
		return "Install the missing interpreters or trim the version matrix"
	case "ST01":
		return "Check state_path permissions or remove the database so it can be recreated"
	case "NT01":
		return "Set smtp.host in leapci.yaml or LEAPCI_SMTP__HOST to enable email"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("LeapCI Environment Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Pipeline Summary
	r.Println(styles.Header2.Render("Pipeline Summary"))
	r.Printf("   Descriptor: %s\n", out.Summary.Descriptor)
	r.Printf("   Jobs: %d | Versions: %d | Steps: %d\n", out.Summary.Jobs, out.Summary.Versions, out.Summary.Steps)
	r.Printf("   Source checkout: %v | Email: %v\n", out.Summary.HasSource, out.Summary.Email)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusPassed.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# LeapCI Environment Health Report")
	r.Println("")

	// Pipeline Summary
	r.Println("## Pipeline Summary")
	r.Println("")
	r.Printf("- **Descriptor**: %s\n", out.Summary.Descriptor)
	r.Printf("- **Jobs**: %d\n", out.Summary.Jobs)
	r.Printf("- **Versions**: %d\n", out.Summary.Versions)
	r.Printf("- **Steps**: %d\n", out.Summary.Steps)
	r.Printf("- **Source checkout**: %v\n", out.Summary.HasSource)
	r.Printf("- **Email**: %v\n", out.Summary.Email)
	r.Println("")

	// Health Checks
	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s: %s", status, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
