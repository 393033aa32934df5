package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/dshills/prcritic/internal/output"
	"github.com/dshills/prcritic/internal/review"
)

const (
	hookMarkerStart = "# >>> prcritic pre-commit hook >>>"
	hookMarkerEnd   = "# <<< prcritic pre-commit hook <<<"
)

// hookSettings are the review flags baked into the installed hook.
type hookSettings struct {
	FailOn      string
	Format      string
	MaxFindings int
}

func (s hookSettings) validate() error {
	if s.FailOn != "none" && review.SeverityRank(review.Severity(s.FailOn)) == 0 {
		return fmt.Errorf("invalid --fail-on %q", s.FailOn)
	}
	if _, err := output.GetWriter(s.Format); err != nil {
		return err
	}
	if s.MaxFindings < 0 {
		return fmt.Errorf("--max-findings must not be negative")
	}
	return nil
}

// Exit 1 (findings at the threshold) blocks the commit. Any other failure
// lets it through. PRCRITIC_SKIP_HOOK=1 bypasses the review.
var hookTemplate = template.Must(template.New("hook").Parse(hookMarkerStart + `
if [ "${PRCRITIC_SKIP_HOOK:-}" = "1" ]; then
  echo "prcritic: PRCRITIC_SKIP_HOOK=1, skipping review"
else
  prcritic review staged --fail-on {{.FailOn}} --format {{.Format}} --max-findings {{.MaxFindings}}
  prcritic_status=$?
  case $prcritic_status in
    0) ;;
    1) echo "prcritic: findings at or above {{.FailOn}}, commit blocked"; exit 1 ;;
    *) echo "prcritic: review failed (exit $prcritic_status), allowing commit" ;;
  esac
fi
` + hookMarkerEnd + "\n"))

func generateHookScript(s hookSettings) (string, error) {
	var b strings.Builder
	if err := hookTemplate.Execute(&b, s); err != nil {
		return "", err
	}
	return b.String(), nil
}

// sectionBounds locates the prcritic section, end being the index just past
// the end marker line.
func sectionBounds(content string) (start, end int, ok bool) {
	start = strings.Index(content, hookMarkerStart)
	if start < 0 {
		return 0, 0, false
	}
	rel := strings.Index(content[start:], hookMarkerEnd)
	if rel < 0 {
		return 0, 0, false
	}
	end = start + rel + len(hookMarkerEnd)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	return start, end, true
}

// replaceHookSection swaps the prcritic section of an existing hook for
// section, or appends section when there is none.
func replaceHookSection(existing, section string) string {
	start, end, ok := sectionBounds(existing)
	if !ok {
		if existing != "" && !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return existing[:start] + section + existing[end:]
}

func removeHookSection(existing string) string {
	start, end, ok := sectionBounds(existing)
	if !ok {
		return existing
	}
	return existing[:start] + existing[end:]
}

// onlyShebang reports whether content has nothing left but an interpreter
// line.
func onlyShebang(content string) bool {
	trimmed := strings.TrimSpace(content)
	return trimmed == "" || (strings.HasPrefix(trimmed, "#!") && !strings.Contains(trimmed, "\n"))
}

func installHook(path string, s hookSettings) error {
	section, err := generateHookScript(s)
	if err != nil {
		return fmt.Errorf("rendering hook: %w", err)
	}
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading hook file: %w", err)
	}
	content := replaceHookSection(string(existing), section)
	if len(existing) == 0 {
		content = "#!/bin/sh\n" + section
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing hook file: %w", err)
	}
	return nil
}

type uninstallOutcome int

const (
	hookAbsent uninstallOutcome = iota
	hookDeleted
	hookSectionRemoved
)

// uninstallHook deletes the hook file when prcritic was its only content
// and otherwise strips the prcritic section from it.
func uninstallHook(path string) (uninstallOutcome, error) {
	existing, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return hookAbsent, nil
	}
	if err != nil {
		return hookAbsent, fmt.Errorf("reading hook file: %w", err)
	}
	if _, _, ok := sectionBounds(string(existing)); !ok {
		return hookAbsent, nil
	}

	content := removeHookSection(string(existing))
	if onlyShebang(content) {
		if err := os.Remove(path); err != nil {
			return hookAbsent, fmt.Errorf("removing hook file: %w", err)
		}
		return hookDeleted, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return hookAbsent, fmt.Errorf("writing hook file: %w", err)
	}
	return hookSectionRemoved, nil
}

// hookPath resolves the pre-commit hook, honoring core.hooksPath and
// worktrees through git itself.
func hookPath() (string, error) {
	if flagHookPath != "" {
		return flagHookPath, nil
	}
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository (git rev-parse failed)")
	}
	return filepath.Join(strings.TrimSpace(string(out)), "pre-commit"), nil
}

var (
	hookOpts     hookSettings
	flagHookPath string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Review staged changes before every commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hookOpts.validate(); err != nil {
			failf(ExitUsageError, err)
			return nil
		}
		path, err := hookPath()
		if err == nil {
			err = installHook(path, hookOpts)
		}
		if err != nil {
			failf(ExitRuntimeError, err)
			return nil
		}
		success("Installed prcritic pre-commit hook at %s", path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the prcritic pre-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath()
		if err != nil {
			failf(ExitRuntimeError, err)
			return nil
		}
		outcome, err := uninstallHook(path)
		if err != nil {
			failf(ExitRuntimeError, err)
			return nil
		}
		switch outcome {
		case hookDeleted:
			success("Removed prcritic pre-commit hook at %s", path)
		case hookSectionRemoved:
			success("Removed prcritic section from %s", path)
		default:
			info("No prcritic pre-commit hook found.")
		}
		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookInstallCmd, hookUninstallCmd)
	hookCmd.PersistentFlags().StringVar(&flagHookPath, "path", "", "Hook file to manage (default: the repository's pre-commit hook)")

	f := hookInstallCmd.Flags()
	f.StringVar(&hookOpts.FailOn, "fail-on", "high", "Block the commit at this severity (none, low, medium, high, critical)")
	f.StringVar(&hookOpts.Format, "format", "text", "Output format ("+strings.Join(output.Formats, ", ")+")")
	f.IntVar(&hookOpts.MaxFindings, "max-findings", 10, "Maximum number of findings")
}
