package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dutyline/internal/attach"
	"dutyline/internal/bot"
	"dutyline/internal/config"
	"dutyline/internal/db"
	"dutyline/internal/domain"
	"dutyline/internal/engine"
	"dutyline/internal/migrate"
	"dutyline/internal/repo"
	"dutyline/internal/scheduler"
	"dutyline/internal/server"
	"dutyline/internal/telegram"
)

var rootCmd = &cobra.Command{
	Use:   "dutyline",
	Short: "Dutyline personnel task bot",
	Long: `Dutyline runs a role-gated task and report tracker behind a Telegram bot.
An admin creates and assigns tasks, personnel view their assignments, submit
completion reports (optionally with a photo), and get a daily reminder about
outstanding work. The serve command runs the bot; the other commands inspect
or adjust the workspace database directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("DUTYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(logCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default dutyline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o600); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate dutyline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			return migrate.Migrate(conn)
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the reminder scheduler and the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if cfg.Telegram.Token == "" {
				return errors.New("telegram.token is required to serve")
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			client := telegram.NewClient(cfg.Telegram.Token)
			e := engine.New(conn, cfg)
			e.Notifier = client

			store, err := attach.New(cfg.AttachmentsDir(workspace))
			if err != nil {
				return err
			}
			dispatcher := &bot.Dispatcher{Engine: e, Sender: client, Files: client, Attach: store}
			poller := &bot.Poller{Client: client, Dispatcher: dispatcher, Interval: cfg.PollInterval()}
			sched := &scheduler.Scheduler{
				Engine:   e,
				Notifier: client,
				Loc:      cfg.Location(),
				Hour:     cfg.Reminder.Hour,
				Minute:   cfg.Reminder.Minute,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 3)
			go func() { errCh <- poller.Run(ctx) }()
			go func() { errCh <- sched.Run(ctx) }()

			var httpSrv *http.Server
			if cfg.Server.Addr != "" {
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: cfg.Server.BasePath,
					Auth:     server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
				})
				if err != nil {
					return err
				}
				httpSrv = &http.Server{Addr: cfg.Server.Addr, Handler: handler}
				go func() {
					log.Printf("ops API listening on %s", cfg.Server.Addr)
					if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()
			}

			log.Printf("dutyline started, reminder at %02d:%02d %s", cfg.Reminder.Hour, cfg.Reminder.Minute, cfg.Timezone)
			err = <-errCh
			stop()
			if httpSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Println("dutyline exited")
			return nil
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Inspect tasks"}
	var assignee int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var (
					tasks []domain.Task
					err   error
				)
				if assignee != 0 {
					tasks, err = r.ListTasksByAssignee(ctx, assignee)
				} else {
					tasks, err = r.ListTasks(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Description", "Status", "Assignee", "Due"})
				for _, t := range tasks {
					who := ""
					if t.AssigneeID != nil {
						who = strconv.FormatInt(*t.AssigneeID, 10)
					}
					tw.AppendRow(table.Row{t.ID, t.Description, t.Status, who, t.DueDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&assignee, "assignee", 0, "filter by assignee identity")
	task.AddCommand(list)
	return task
}

func reportCmd() *cobra.Command {
	report := &cobra.Command{Use: "report", Short: "Inspect reports"}
	report.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				reports, err := r.ListReports(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Submitted By", "Text", "TS", "Photo"})
				for _, rep := range reports {
					photo := ""
					if rep.PhotoPath != nil {
						photo = *rep.PhotoPath
					}
					tw.AppendRow(table.Row{rep.ID, rep.SubmittedBy, rep.Text, rep.TS, photo})
				}
				tw.Render()
				return nil
			})
		},
	})
	return report
}

func feedbackCmd() *cobra.Command {
	fb := &cobra.Command{Use: "feedback", Short: "Inspect feedback"}
	fb.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListFeedback(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Submitted By", "Text", "TS"})
				for _, f := range items {
					tw.AppendRow(table.Row{f.ID, f.SubmittedBy, f.Text, f.TS})
				}
				tw.Render()
				return nil
			})
		},
	})
	return fb
}

func roleCmd() *cobra.Command {
	role := &cobra.Command{Use: "role", Short: "Manage roles"}
	role.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				roles, err := r.ListRoles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roles)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Role"})
				for id, role := range roles {
					tw.AppendRow(table.Row{id, role})
				}
				tw.Render()
				return nil
			})
		},
	})
	role.AddCommand(&cobra.Command{
		Use:   "set <user_id> <admin|personnel>",
		Short: "Set a role directly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			role := domain.Role(args[1])
			if role != domain.RoleAdmin && role != domain.RolePersonnel {
				return fmt.Errorf("role must be admin or personnel")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetRole(ctx, userID, role)
			})
		},
	})
	return role
}

func logCmd() *cobra.Command {
	var limit int
	var evtType, entityKind string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				evts, err := r.LatestEvents(ctx, limit, evtType, entityKind)
				if err != nil {
					return err
				}
				return printJSON(evts)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	return cmd
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
