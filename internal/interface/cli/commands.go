package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
)

// ─────────────────────────────────────────────────────────────────────────────
// migrate
// ─────────────────────────────────────────────────────────────────────────────

func newMigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, app.OpenOptions{Migrate: true}, func(ctx context.Context, rt *app.Runtime) error {
				m := rt.Migrator()
				if m == nil {
					return app.ErrNoDatabase
				}
				migrations, err := m.Status(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(migrations))
				for _, mg := range migrations {
					applied := "pending"
					if mg.IsApplied {
						applied = mg.AppliedAt.Format(time.RFC3339)
					}
					rows = append(rows, []string{strconv.Itoa(mg.Version), mg.Name, applied})
				}
				return newPrinter(cmd).print(migrations, []string{"VERSION", "NAME", "APPLIED"}, rows)
			})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// seed-badges
// ─────────────────────────────────────────────────────────────────────────────

func newSeedBadgesCmd(open Opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-badges",
		Short: "Insert badge definitions that do not exist yet",
		Long:  "Upserts badges by name from the embedded catalog or a YAML file. Existing badges are left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			badges := badge.DefaultBadges()
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				if badges, err = badge.ParseCatalogYAML(data); err != nil {
					return err
				}
			}
			return withRuntime(cmd, open, app.OpenOptions{}, func(ctx context.Context, rt *app.Runtime) error {
				catalog, inserted, err := app.SeedCatalog(ctx, rt.Core.Repos.Badges, badges)
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				p.line("inserted %d of %d badges; catalog holds %d", inserted, len(badges), catalog.Len())
				rows := make([][]string, 0, catalog.Len())
				for _, b := range catalog.All() {
					rows = append(rows, []string{b.Name, string(b.Category), string(b.Rarity), strconv.Itoa(b.Points)})
				}
				return p.print(catalog.All(), []string{"NAME", "CATEGORY", "RARITY", "POINTS"}, rows)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to seed instead of the embedded one")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// rebuild
// ─────────────────────────────────────────────────────────────────────────────

func newRebuildCmd(open Opener) *cobra.Command {
	var boardType, period string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute leaderboard snapshots",
		Long:  "Without flags every board is rebuilt. --type alone rebuilds all periods of that type.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if period != "" && boardType == "" {
				return fmt.Errorf("--period requires --type")
			}
			return withRuntime(cmd, open, app.OpenOptions{}, func(ctx context.Context, rt *app.Runtime) error {
				var (
					snaps []*leaderboard.Snapshot
					err   error
				)
				switch {
				case boardType == "":
					snaps, err = rt.Core.Rebuild.RebuildAll(ctx)
				case period == "":
					var t leaderboard.Type
					if t, err = leaderboard.ParseType(boardType); err == nil {
						snaps, err = rt.Core.Rebuild.RebuildTypes(ctx, []leaderboard.Type{t})
					}
				default:
					var snap *leaderboard.Snapshot
					snap, err = rt.Core.Rebuild.Handle(ctx, command.RebuildLeaderboardCommand{Type: boardType, Period: period})
					snaps = []*leaderboard.Snapshot{snap}
				}
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(snaps))
				for _, s := range snaps {
					rows = append(rows, []string{string(s.Type), string(s.Period), strconv.Itoa(len(s.Rankings))})
				}
				return newPrinter(cmd).print(snaps, []string{"TYPE", "PERIOD", "ENTRIES"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&boardType, "type", "", "Board type: projects, contributions, mentorship, overall")
	cmd.Flags().StringVar(&period, "period", "", "Period: all-time, monthly, weekly")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// leaderboard / rank
// ─────────────────────────────────────────────────────────────────────────────

func newLeaderboardCmd(open Opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard <type> <period>",
		Short: "Show the top of a leaderboard snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, app.OpenOptions{}, func(ctx context.Context, rt *app.Runtime) error {
				view, err := rt.Core.Leaderboard.Handle(ctx, query.GetLeaderboardQuery{Type: args[0], Period: args[1], Limit: limit})
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if view.LastUpdated.IsZero() {
					p.line("%s:%s has not been built yet", view.Type, view.Period)
				}
				rows := make([][]string, 0, len(view.Rankings))
				for _, e := range view.Rankings {
					rows = append(rows, []string{strconv.Itoa(e.Rank), e.UserID, formatScore(e.Score)})
				}
				return p.print(view, []string{"RANK", "USER", "SCORE"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of entries (default from LEADERBOARD_DEFAULT_LIMIT)")
	return cmd
}

func newRankCmd(open Opener) *cobra.Command {
	var boardType, period string
	cmd := &cobra.Command{
		Use:   "rank <user-id>",
		Short: "Show a user's rank on one board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, app.OpenOptions{}, func(ctx context.Context, rt *app.Runtime) error {
				rank, err := rt.Core.UserRank.Handle(ctx, query.GetUserRankQuery{UserID: args[0], Type: boardType, Period: period})
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if rank == nil {
					if p.json {
						return p.print(nil, nil, nil)
					}
					p.line("%s is not ranked on %s:%s", args[0], boardType, period)
					return nil
				}
				return p.print(rank, []string{"USER", "RANK", "SCORE"},
					[][]string{{args[0], strconv.Itoa(rank.Rank), formatScore(rank.Score)}})
			})
		},
	}
	cmd.Flags().StringVar(&boardType, "type", string(leaderboard.TypeOverall), "Board type")
	cmd.Flags().StringVar(&period, "period", string(leaderboard.PeriodAllTime), "Period")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// slots
// ─────────────────────────────────────────────────────────────────────────────

func newSlotsCmd(open Opener) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "slots <mentor-id>",
		Short: "List a mentor's open slots on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, app.OpenOptions{}, func(ctx context.Context, rt *app.Runtime) error {
				slots, err := rt.Core.AvailableSlots.Handle(ctx, query.GetAvailableSlotsQuery{MentorID: args[0], Date: date})
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(slots))
				for _, s := range slots {
					rows = append(rows, []string{s.StartTime, s.EndTime})
				}
				return newPrinter(cmd).print(slots, []string{"START", "END"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().UTC().Format(time.DateOnly), "Date as YYYY-MM-DD")
	return cmd
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
