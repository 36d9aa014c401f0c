package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"workobs/internal/config"
	"workobs/internal/db"
	"workobs/internal/domain"
	"workobs/internal/events"
	"workobs/internal/export"
	"workobs/internal/migrate"
	"workobs/internal/rollup"
	"workobs/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "workobs",
	Short: "Work Observability CLI",
	Long: `Work Observability tracks a single user's workday as an append-only
event log and derives daily and weekly summaries by replaying it.
- Intents: up to five declared goals per day.
- Work blocks: timed focus units that can be interrupted and ended.
- Recovery blocks: coffee/lunch breaks with the same start/end lifecycle.
- Rollups: read-only day and week views computed fresh from the log.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WORKOBS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "workobs.yml", "config file path")
	rootCmd.PersistentFlags().String("db-path", "", "sqlite database path (overrides config)")
	rootCmd.PersistentFlags().String("export-dir", "", "markdown export directory (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("db-path", rootCmd.PersistentFlags().Lookup("db-path"))
	_ = viper.BindPFlag("export-dir", rootCmd.PersistentFlags().Lookup("export-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(intentsCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(recoveryCmd())
	rootCmd.AddCommand(dayCmd())
	rootCmd.AddCommand(weekCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("db-path"); p != "" {
		cfg.Storage.DBPath = p
	}
	if d := viper.GetString("export-dir"); d != "" {
		cfg.Export.Dir = d
	}
	return cfg, nil
}

func withEngine(ctx context.Context, fn func(ctx context.Context, e rollup.Engine, store events.Store, cfg *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Path: cfg.Storage.DBPath})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	store := events.NewSQLStore(conn)
	return fn(ctx, rollup.New(store), store, cfg)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, store events.Store, cfg *config.Config) error {
				if addr != "" {
					cfg.Server.Addr = addr
				}
				handler, err := server.New(server.Config{
					Engine:      e,
					Store:       store,
					ExportDir:   cfg.Export.Dir,
					BasePath:    cfg.Server.BasePath,
					CORSOrigins: cfg.Server.CORSOrigins,
				})
				if err != nil {
					return err
				}
				log.Printf("workobs API listening on %s", cfg.Server.Addr)
				srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func intentsCmd() *cobra.Command {
	intents := &cobra.Command{Use: "intents", Short: "Manage daily intents"}
	var date string
	set := &cobra.Command{
		Use:   "set <intent>...",
		Short: "Replace the declared intents for a date (max 5)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				if err := e.SetDailyIntents(ctx, dateOrToday(date), args); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	set.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")
	intents.AddCommand(set)
	return intents
}

func blockCmd() *cobra.Command {
	block := &cobra.Command{Use: "block", Short: "Manage work blocks"}

	var startDate, intent, notes string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a work block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				var notesPtr *string
				if cmd.Flags().Changed("notes") {
					notesPtr = &notes
				}
				blockID, err := e.StartBlock(ctx, dateOrToday(startDate), intent, notesPtr)
				if err != nil {
					return err
				}
				fmt.Println(blockID)
				return nil
			})
		},
	}
	start.Flags().StringVar(&startDate, "date", "", "date (YYYY-MM-DD, default today)")
	start.Flags().StringVar(&intent, "intent", "", "intent being worked on")
	start.Flags().StringVar(&notes, "notes", "", "optional notes")
	_ = start.MarkFlagRequired("intent")

	var interruptID, reason string
	interrupt := &cobra.Command{
		Use:   "interrupt",
		Short: "Record an interruption",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				if err := e.InterruptBlock(ctx, interruptID, reason); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	interrupt.Flags().StringVar(&interruptID, "block", "", "block id")
	interrupt.Flags().StringVar(&reason, "reason", "", "reason code, e.g. MEETING")
	_ = interrupt.MarkFlagRequired("block")
	_ = interrupt.MarkFlagRequired("reason")

	var endID, outcome string
	var minutes int
	end := &cobra.Command{
		Use:   "end",
		Short: "End a work block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				var outcomePtr *string
				if cmd.Flags().Changed("outcome") {
					outcomePtr = &outcome
				}
				var minutesPtr *int
				if cmd.Flags().Changed("minutes") {
					minutesPtr = &minutes
				}
				if err := e.EndBlock(ctx, endID, outcomePtr, minutesPtr); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	end.Flags().StringVar(&endID, "block", "", "block id")
	end.Flags().StringVar(&outcome, "outcome", "", "actual outcome")
	end.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes")
	_ = end.MarkFlagRequired("block")

	block.AddCommand(start, interrupt, end)
	return block
}

func recoveryCmd() *cobra.Command {
	recovery := &cobra.Command{Use: "recovery", Short: "Manage recovery blocks"}

	var startDate, kind string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a recovery block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				blockID, err := e.StartRecovery(ctx, dateOrToday(startDate), kind)
				if err != nil {
					return err
				}
				fmt.Println(blockID)
				return nil
			})
		},
	}
	start.Flags().StringVar(&startDate, "date", "", "date (YYYY-MM-DD, default today)")
	start.Flags().StringVar(&kind, "kind", "", "COFFEE or LUNCH")
	_ = start.MarkFlagRequired("kind")

	var endID string
	var minutes int
	end := &cobra.Command{
		Use:   "end",
		Short: "End a recovery block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				if err := e.EndRecovery(ctx, endID, minutes); err != nil {
					return err
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
	end.Flags().StringVar(&endID, "block", "", "block id")
	end.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes")
	_ = end.MarkFlagRequired("block")
	_ = end.MarkFlagRequired("minutes")

	recovery.AddCommand(start, end)
	return recovery
}

func dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day [date]",
		Short: "Show the day rollup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) > 0 {
				date = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				day, err := e.Day(ctx, dateOrToday(date))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(day)
				}
				renderDay(day)
				return nil
			})
		},
	}
}

func weekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week <yearWeek>",
		Short: "Show the week rollup (e.g. 2026-W36)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, _ *config.Config) error {
				week, err := e.Week(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(week)
				}
				renderWeek(week)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	exp := &cobra.Command{Use: "export", Short: "Export rollups to Markdown"}
	day := &cobra.Command{
		Use:   "day [date]",
		Short: "Export a day rollup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) > 0 {
				date = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e rollup.Engine, _ events.Store, cfg *config.Config) error {
				rolled, err := e.Day(ctx, dateOrToday(date))
				if err != nil {
					return err
				}
				path, err := export.Day(rolled, cfg.Export.Dir)
				if err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			})
		},
	}
	exp.AddCommand(day)
	return exp
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ rollup.Engine, store events.Store, _ *config.Config) error {
				filter := events.Filter{}
				if evtType != "" {
					filter.Types = []string{evtType}
				}
				evts, err := store.Query(ctx, filter)
				if err != nil {
					return err
				}
				if n > 0 && len(evts) > n {
					evts = evts[len(evts)-n:]
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				renderEvents(evts)
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 20, "number of events to show")
	tail.Flags().StringVar(&evtType, "type", "", "filter by event type")
	logRoot.AddCommand(tail)
	return logRoot
}

func dateOrToday(date string) string {
	if date != "" {
		return date
	}
	return time.Now().UTC().Format("2006-01-02")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func renderDay(day domain.DayRollup) {
	fmt.Printf("Date: %s\n\n", day.Date)
	if len(day.Intents) > 0 {
		fmt.Println("Intents:")
		for _, intent := range day.Intents {
			fmt.Printf("  - %s\n", intent)
		}
		fmt.Println()
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Intent", "Outcome", "Duration", "Interrupted", "Reason"})
	for _, b := range day.Blocks {
		outcome := ""
		if b.ActualOutcome != nil {
			outcome = *b.ActualOutcome
		}
		interrupted := "No"
		if b.Interrupted {
			interrupted = "Yes"
		}
		reason := "—"
		if b.ReasonCode != nil {
			reason = *b.ReasonCode
		}
		t.AppendRow(table.Row{b.Intent, outcome, b.DurationLabel, interrupted, reason})
	}
	t.Render()
	m := day.Metrics
	fmt.Printf("\nActive: %s  Blocks: %d  Focus: %d  Fragmentation: %d%%  Recovery: %s\n",
		m.TotalActiveLabel, m.TotalBlocks, m.FocusBlocks, int(m.FragmentationRate*100), m.TotalRecoveryLabel)
}

func renderWeek(week domain.WeekRollup) {
	fmt.Printf("Week: %s\n\n", week.YearWeek)
	m := week.Metrics
	fmt.Printf("Active: %s  Blocks: %d  Focus: %d  Fragmentation: %d%%  Recovery: %s\n",
		m.TotalActiveLabel, m.TotalBlocks, m.FocusBlocks, int(m.FragmentationRate*100), m.TotalRecoveryLabel)
	if len(m.TopFragmenters) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Fragmenter", "Count"})
		for _, f := range m.TopFragmenters {
			t.AppendRow(table.Row{f.Code, strconv.Itoa(f.Count)})
		}
		t.Render()
	}
	if week.Reflection.OneChangeNextWeek != "" {
		fmt.Printf("\nOne change next week: %s\n", week.Reflection.OneChangeNextWeek)
	}
}

func renderEvents(evts []domain.Event) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"TS", "Type", "Payload"})
	for _, e := range evts {
		t.AppendRow(table.Row{e.TS.UTC().Format(time.RFC3339), e.Type, string(e.Payload)})
	}
	t.Render()
}
