package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/langgate/gitinfo"
)

// GitCmd shows repository state for a project root.
var GitCmd = &cobra.Command{
	Use:   "git",
	Short: "Show repository state for a project root",
	Long: `Inspect the git repository behind a served project.

Examples:
  langgate git status .                 # Branch, changes, ahead/behind
  langgate git branches .               # Local and remote-tracking branches
  langgate git log . --limit 10         # Recent commits`,
}

var gitStatusCmd = &cobra.Command{
	Use:   "status <path>",
	Short: "Show branch, pending changes, and remote divergence",
	Args:  cobra.ExactArgs(1),
	RunE:  runGitStatus,
}

var gitBranchesCmd = &cobra.Command{
	Use:   "branches <path>",
	Short: "List local and remote-tracking branches",
	Args:  cobra.ExactArgs(1),
	RunE:  runGitBranches,
}

var gitLogCmd = &cobra.Command{
	Use:   "log <path>",
	Short: "Show recent commits",
	Args:  cobra.ExactArgs(1),
	RunE:  runGitLog,
}

var gitLogLimit int

func init() {
	gitLogCmd.Flags().IntVar(&gitLogLimit, "limit", 20, "Maximum number of commits to show")

	GitCmd.AddCommand(gitStatusCmd)
	GitCmd.AddCommand(gitBranchesCmd)
	GitCmd.AddCommand(gitLogCmd)
}

func runGitStatus(cmd *cobra.Command, args []string) error {
	path := args[0]

	status, err := gitinfo.GetStatus(path)
	if err != nil {
		return err
	}
	if !status.IsRepo {
		pterm.Info.Printf("%s is not a git repository\n", path)
		return nil
	}

	branch := status.CurrentBranch
	if branch == "" {
		branch = "(detached)"
	}
	rows := pterm.TableData{
		{"Branch", branch},
		{"Changes", fmt.Sprintf("%t", status.HasChanges)},
		{"Ahead", fmt.Sprintf("%d", status.Ahead)},
		{"Behind", fmt.Sprintf("%d", status.Behind)},
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		return err
	}

	if !status.HasChanges {
		return nil
	}
	changes, err := gitinfo.GetChanges(path)
	if err != nil {
		return err
	}
	for _, fs := range changes.Staged {
		pterm.Printf("  staged:   %-9s %s\n", fs.Status, fs.Path)
	}
	for _, fs := range changes.Unstaged {
		pterm.Printf("  unstaged: %-9s %s\n", fs.Status, fs.Path)
	}
	return nil
}

func runGitBranches(cmd *cobra.Command, args []string) error {
	branches, err := gitinfo.GetBranches(args[0])
	if err != nil {
		return err
	}

	rows := pterm.TableData{{"Branch", "Current", "Remote", "Commit"}}
	for _, branch := range branches {
		current := ""
		if branch.IsCurrent {
			current = "*"
		}
		remote := ""
		if branch.IsRemote {
			remote = "yes"
		}
		rows = append(rows, []string{branch.Name, current, remote, shortHash(branch.CommitID)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runGitLog(cmd *cobra.Command, args []string) error {
	commits, err := gitinfo.GetCommits(args[0], gitLogLimit)
	if err != nil {
		return err
	}

	rows := pterm.TableData{{"Commit", "Author", "Date", "Message"}}
	for _, commit := range commits {
		rows = append(rows, []string{
			commit.ShortID,
			commit.AuthorName,
			commit.Date.Format("2006-01-02 15:04"),
			firstLine(commit.Message),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func shortHash(hash string) string {
	if len(hash) >= 7 {
		return hash[:7]
	}
	return hash
}

func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}
	return message
}
