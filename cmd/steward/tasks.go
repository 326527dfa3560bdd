package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/steward/internal/config"
	"github.com/haasonsaas/steward/internal/tasks"
)

// buildTasksCmd creates the "tasks" command group for inspecting the
// schedule without going through the assistant.
func buildTasksCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage scheduled tasks",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to configuration file")

	cmd.AddCommand(
		buildTasksListCmd(&configPath),
		buildTasksCancelCmd(&configPath),
	)
	return cmd
}

func openTaskStore(configPath string) (tasks.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Tasks.PostgresDSN != "" {
		return tasks.OpenPostgres(cfg.Tasks.PostgresDSN)
	}
	return tasks.OpenSQLite(cfg.Tasks.Database)
}

func buildTasksListCmd(configPath *string) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var list []*tasks.Task
			if query != "" {
				list, err = store.SearchActive(cmd.Context(), query)
			} else {
				list, err = store.ListActive(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active tasks.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSCHEDULE\tNEXT RUN")
			for _, task := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					task.ID[:8], task.Name, task.Type,
					describeSchedule(task), formatTime(task.NextRunAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter by name or description substring")
	return cmd
}

func buildTasksCancelCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Deactivate a scheduled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTaskStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := resolveTaskID(cmd, store, args[0])
			if err != nil {
				return err
			}
			ok, err := store.Deactivate(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("cancel task: %w", err)
			}
			if !ok {
				return fmt.Errorf("task %s is not active", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s.\n", id)
			return nil
		},
	}
}

// resolveTaskID accepts a full id or an unambiguous prefix.
func resolveTaskID(cmd *cobra.Command, store tasks.Store, arg string) (string, error) {
	if _, err := store.Get(cmd.Context(), arg); err == nil {
		return arg, nil
	}

	list, err := store.ListActive(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	var matches []string
	for _, task := range list {
		if len(arg) > 0 && len(task.ID) >= len(arg) && task.ID[:len(arg)] == arg {
			matches = append(matches, task.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no task matches %q", arg)
	default:
		return "", fmt.Errorf("%q matches %d tasks, use more characters", arg, len(matches))
	}
}

func describeSchedule(task *tasks.Task) string {
	if task.Type == tasks.TypeOneOff {
		return "at " + task.Schedule.RunAt
	}
	return task.Schedule.CronExpression()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
