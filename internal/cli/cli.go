package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aka1453/promin-sched/internal/log"
	internal_storage "github.com/aka1453/promin-sched/internal/storage"
	"github.com/aka1453/promin-sched/pkg/schedule"
	"github.com/aka1453/promin-sched/pkg/service"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	depCmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies (CLI)",
	}

	depAddCmd := &cobra.Command{
		Use:   "add [task-id] [depends-on-task-id]",
		Short: "Make a task depend on another task (CLI)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			taskID := parseID(args[0])
			dependsOnID := parseID(args[1])
			err := svc.CreateDependency(context.Background(), taskID, dependsOnID)
			var circular *schedule.CircularDependencyError
			if errors.As(err, &circular) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err != nil {
				log.GetLogger().Errorf("Failed to create dependency: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to create dependency: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Task %d now depends on task %d\n", taskID, dependsOnID)
		},
	}

	depRemoveCmd := &cobra.Command{
		Use:   "rm [task-id] [depends-on-task-id]",
		Short: "Remove a dependency between two tasks (CLI)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			taskID := parseID(args[0])
			dependsOnID := parseID(args[1])
			if err := svc.DeleteDependency(context.Background(), taskID, dependsOnID); err != nil {
				log.GetLogger().Errorf("Failed to delete dependency: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to delete dependency: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Task %d no longer depends on task %d\n", taskID, dependsOnID)
		},
	}

	recalcCmd := &cobra.Command{
		Use:   "recalc [task-id]",
		Short: "Recompute a task's duration and planned dates from its deliverables (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			taskID := parseID(args[0])
			sched, err := svc.RecalculateTaskDuration(context.Background(), taskID)
			if err != nil {
				log.GetLogger().Errorf("Failed to recalculate task %d: %v", taskID, err)
				fmt.Fprintf(os.Stderr, "Error: failed to recalculate task %d: %v\n", taskID, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Task %d: duration %d days, %s -> %s\n",
				taskID, sched.DurationDays,
				sched.PlannedStart.Format("2006-01-02"), sched.PlannedEnd.Format("2006-01-02"))
		},
	}

	cascadeCmd := &cobra.Command{
		Use:   "cascade [task-id]",
		Short: "Propagate a task's date changes to its successors (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			taskID := parseID(args[0])
			result, err := svc.CascadeFrom(context.Background(), taskID)
			if err != nil {
				log.GetLogger().Errorf("Failed to cascade from task %d: %v", taskID, err)
				fmt.Fprintf(os.Stderr, "Error: failed to cascade from task %d: %v\n", taskID, err)
				os.Exit(1)
			}
			if len(result.UpdatedTaskIDs) == 0 {
				fmt.Fprintf(os.Stdout, "No dates changed.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "Rescheduled tasks: %v\n", result.UpdatedTaskIDs)
		},
	}

	stateCmd := &cobra.Command{
		Use:   "state [task-id]",
		Short: "Show a task's schedule state (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			taskID := parseID(args[0])
			state, err := svc.TaskScheduleState(context.Background(), taskID, time.Now().UTC())
			if err != nil {
				log.GetLogger().Errorf("Failed to classify task %d: %v", taskID, err)
				fmt.Fprintf(os.Stderr, "Error: failed to classify task %d: %v\n", taskID, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Task %d is %s\n", taskID, state)
		},
	}

	progressCmd := &cobra.Command{
		Use:   "progress [milestone-id]",
		Short: "Show a milestone's weighted progress (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, closeStore := serviceFromFlags(cmd)
			defer closeStore()
			milestoneID := parseID(args[0])
			progress, err := svc.MilestoneProgress(context.Background(), milestoneID)
			if err != nil {
				log.GetLogger().Errorf("Failed to compute progress of milestone %d: %v", milestoneID, err)
				fmt.Fprintf(os.Stderr, "Error: failed to compute progress of milestone %d: %v\n", milestoneID, err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Milestone %d is %.1f%% complete\n", milestoneID, progress*100)
		},
	}

	depCmd.AddCommand(depAddCmd, depRemoveCmd)
	rootCmd.AddCommand(depCmd, recalcCmd, cascadeCmd, stateCmd, progressCmd)
}

func serviceFromFlags(cmd *cobra.Command) (*service.SchedulingService, func()) {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	store := initStore(dbConnStr)
	svc := service.NewSchedulingService(store, log.GetLogger())
	return svc, func() { store.Close() }
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing id as number: %v\n", err)
		os.Exit(1)
	}
	return id
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
