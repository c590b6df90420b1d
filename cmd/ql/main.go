package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"qualityline/internal/app"
	"qualityline/internal/catalog"
	"qualityline/internal/config"
	"qualityline/internal/domain"
	"qualityline/internal/engine"
	"qualityline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ql",
	Short: "QualityLine CLI",
	Long: `QualityLine maps ISO 9001 standard functions onto an organization's processes.
- Processes: management, operational or support activities with inputs and outputs.
- Standard functions: catalog entries such as "Context of the organization"; unique ones live on a single process, per-process ones on every eligible process.
- Applicability: which functions a process can host, which are attached and which are blocked by another host.
- Compliance: share of mandatory requirements that are allocated.
Sessions live in memory; a qualityline.yml seed describes the starting records.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("QUALITYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory holding qualityline.yml")
	rootCmd.PersistentFlags().String("config", "", "config file (overrides the workspace file)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

func catalogCmd() *cobra.Command {
	cat := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the standard function catalog",
	}
	cat.AddCommand(catalogListCmd())
	cat.AddCommand(catalogShowCmd())
	cat.AddCommand(catalogClausesCmd())
	return cat
}

func catalogListCmd() *cobra.Command {
	var category, rule, processType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List standard functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := filterFunctions(catalog.Default().Functions(), category, rule, processType)
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Category", "Rule", "Eligible", "Mandatory"})
			for _, fn := range items {
				tw.AppendRow(table.Row{fn.ID, fn.Name, fn.Category, fn.DuplicationRule, strings.Join(fn.EligibleProcessTypes, ","), yesNo(fn.Mandatory)})
			}
			tw.AppendFooter(table.Row{"", fmt.Sprintf("%d functions", len(items))})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&rule, "rule", "", "duplication rule filter (unique, per_process)")
	cmd.Flags().StringVar(&processType, "process-type", "", "only functions eligible for this process type")
	return cmd
}

func filterFunctions(fns []domain.StandardFunction, category, rule, processType string) []domain.StandardFunction {
	res := []domain.StandardFunction{}
	for _, fn := range fns {
		if category != "" && fn.Category != category {
			continue
		}
		if rule != "" && fn.DuplicationRule != rule {
			continue
		}
		if processType != "" && !catalog.Eligible(fn, processType) {
			continue
		}
		res = append(res, fn)
	}
	return res
}

func catalogShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <function-id>",
		Short: "Show a standard function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, ok := catalog.Default().FunctionByID(args[0])
			if !ok {
				return fmt.Errorf("function %s not found", args[0])
			}
			if viper.GetBool("json") {
				return printJSON(fn)
			}
			fmt.Printf("%s  %s\n", color.New(color.Bold).Sprint(fn.ID), fn.Name)
			fmt.Printf("  category:   %s\n", fn.Category)
			fmt.Printf("  rule:       %s\n", fn.DuplicationRule)
			fmt.Printf("  eligible:   %s\n", strings.Join(fn.EligibleProcessTypes, ", "))
			fmt.Printf("  mandatory:  %s\n", yesNo(fn.Mandatory))
			fmt.Printf("  clauses:    %s\n", strings.Join(fn.ClauseReferences, ", "))
			fmt.Printf("  status:     %s\n", fn.Status)
			if fn.Description != "" {
				fmt.Printf("\n%s\n", fn.Description)
			}
			return nil
		},
	}
}

func catalogClausesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clauses",
		Short: "List ISO clauses documents can reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			clauses := catalog.Default().Clauses()
			if viper.GetBool("json") {
				return printJSON(clauses)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Clause", "Title"})
			for _, c := range clauses {
				tw.AppendRow(table.Row{c.ClauseNumber, c.ClauseTitle})
			}
			tw.Render()
			return nil
		},
	}
}

type processReport struct {
	Process       domain.Process       `json:"process"`
	Applicability domain.Applicability `json:"applicability"`
}

type sessionReport struct {
	Organization string           `json:"organization"`
	Processes    []processReport  `json:"processes"`
	Dashboard    domain.Dashboard `json:"dashboard"`
	Overdue      []domain.Action  `json:"overdue_actions"`
}

func reportCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Load a seed and print applicability and compliance",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := seed
			if path == "" {
				path = viper.GetString("config")
			}
			return withSession(path, func(e engine.Engine, cfg *config.Config) error {
				rep, err := buildReport(e, cfg)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				printReport(os.Stdout, rep)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "config file holding the seed (defaults to --config or the workspace file)")
	return cmd
}

func buildReport(e engine.Engine, cfg *config.Config) (sessionReport, error) {
	rep := sessionReport{
		Organization: cfg.Organization.Name,
		Processes:    []processReport{},
		Dashboard:    e.Dashboard(),
		Overdue:      e.OverdueActions(),
	}
	for _, p := range e.ListProcesses(engine.ProcessFilters{}) {
		if p.Status == domain.StatusArchived {
			continue
		}
		appl, err := e.Applicability(p.ID)
		if err != nil {
			return sessionReport{}, err
		}
		rep.Processes = append(rep.Processes, processReport{Process: p, Applicability: appl})
	}
	return rep, nil
}

func printReport(w io.Writer, rep sessionReport) {
	title := cases.Title(language.English)
	fmt.Fprintf(w, "%s\n\n", color.New(color.Bold).Sprintf("QMS report: %s", rep.Organization))
	for _, pr := range rep.Processes {
		fmt.Fprintf(w, "%s %s (%s) attached=%d mandatory missing=%d\n",
			color.New(color.FgCyan).Sprint(pr.Process.Code), pr.Process.Name, pr.Process.Type,
			pr.Applicability.AttachedCount, pr.Applicability.MandatoryMissing)
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"Category", "Function", "Rule", "State"})
		for _, g := range pr.Applicability.Groups {
			for _, item := range g.Items {
				tw.AppendRow(table.Row{title.String(g.Category), item.Function.Name, item.Function.DuplicationRule, stateLabel(item)})
			}
		}
		tw.Render()
		fmt.Fprintln(w)
	}
	c := rep.Dashboard.Compliance
	fmt.Fprintf(w, "Compliance: %s (%d/%d requirements, %d unique functions unallocated)\n",
		complianceLabel(c.Percentage), c.AllocatedCount, c.TotalRequirements, c.UnallocatedUniqueCount)
	fmt.Fprintf(w, "Processes: %d active  Issues: %d (%d risks)  Actions: %d open, %d overdue\n",
		rep.Dashboard.ActiveProcesses, rep.Dashboard.TotalIssues, rep.Dashboard.Risks,
		rep.Dashboard.OpenActions, rep.Dashboard.OverdueActions)
	for _, a := range rep.Overdue {
		due := ""
		if a.DueDate != nil {
			due = *a.DueDate
		}
		fmt.Fprintf(w, "  %s %s (due %s)\n", color.New(color.FgRed).Sprint("overdue"), a.Description, due)
	}
}

func stateLabel(item domain.ApplicableFunction) string {
	switch {
	case item.IsAttached:
		status := ""
		if item.Instance != nil {
			status = " " + item.Instance.Status
		}
		return color.New(color.FgGreen).Sprint("attached" + status)
	case item.IsBlocked:
		return color.New(color.FgYellow).Sprintf("blocked by %s", item.BlockedByProcessID)
	case item.IsMandatory:
		return color.New(color.FgRed).Sprint("missing")
	default:
		return "optional"
	}
}

func complianceLabel(pct int) string {
	label := fmt.Sprintf("%d%%", pct)
	switch {
	case pct >= 80:
		return color.New(color.FgGreen).Sprint(label)
	case pct >= 50:
		return color.New(color.FgYellow).Sprint(label)
	default:
		return color.New(color.FgRed).Sprint(label)
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(viper.GetString("config"), func(e engine.Engine, cfg *config.Config) error {
				if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
					addr = cfg.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
					basePath = cfg.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-cmd.Context().Done()
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
				e.Logger.Info("serving api", "addr", addr, "base_path", basePath)
				fmt.Printf("Serving QualityLine API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect qualityline.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var org string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default qualityline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if path == "" {
				path = config.Path(viper.GetString("workspace"))
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(org)), 0o644); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"path": path})
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "default-org", "organization name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func withSession(path string, fn func(engine.Engine, *config.Config) error) error {
	cfg, err := app.ResolveConfig(viper.GetString("workspace"), path)
	if err != nil {
		return err
	}
	eng, err := app.NewSession(cfg, viper.GetString("actor-id"), engine.WithLogger(newLogger()))
	if err != nil {
		return err
	}
	return fn(eng, cfg)
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
