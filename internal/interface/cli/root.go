// Package cli implements campusctl, the operator command line for Campus
// Connect: schema migrations, badge seeding, leaderboard rebuilds and
// read-only lookups against the configured storage.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/campus-connect/campus-core/internal/app"
)

// Opener connects a runtime for one command invocation.
type Opener func(ctx context.Context, opts app.OpenOptions) (*app.Runtime, error)

// NewRootCommand builds campusctl with every subcommand.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Campus Connect operator CLI",
		Long:          "Run migrations, seed badges, rebuild leaderboards and inspect ranks and mentor slots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print JSON instead of tables")

	root.AddCommand(
		newMigrateCmd(open),
		newSeedBadgesCmd(open),
		newRebuildCmd(open),
		newLeaderboardCmd(open),
		newRankCmd(open),
		newSlotsCmd(open),
	)
	return root
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, open Opener, opts app.OpenOptions, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// printer writes either a table or the raw value as JSON.
type printer struct {
	out  io.Writer
	json bool
}

func newPrinter(cmd *cobra.Command) printer {
	asJSON, _ := cmd.Flags().GetBool("json")
	return printer{out: cmd.OutOrStdout(), json: asJSON}
}

func (p printer) print(value any, headers []string, rows [][]string) error {
	if p.json {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.out, "(none)")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(p.out, t.Render())
	return err
}

func (p printer) line(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}
