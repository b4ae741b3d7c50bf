package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/aka1453/promin-sched/internal/config"
)

var rootCmd = &cobra.Command{Use: "promin-sched-migrate"}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending schedule schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		m := migrator(cmd)
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent schema migration",
	Run: func(cmd *cobra.Command, args []string) {
		m := migrator(cmd)
		if err := m.Steps(-1); err != nil {
			fmt.Printf("Failed to roll back migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rolled back one migration")
	},
}

// migrator resolves the connection string from --db or the DB_* config and
// points golang-migrate at the local migrations directory.
func migrator(cmd *cobra.Command) *migrate.Migrate {
	connStr, _ := cmd.Flags().GetString("db")
	if connStr == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Error: --db flag not set and config incomplete: %v\n", err)
			os.Exit(1)
		}
		connStr = cfg.DB.ConnStr()
	}
	m, err := migrate.New("file://migrations", connStr)
	if err != nil {
		fmt.Printf("Failed to initialize migrations: %v\n", err)
		os.Exit(1)
	}
	return m
}

func main() {
	rootCmd.AddCommand(upCmd, downCmd)
	rootCmd.PersistentFlags().String("db", "", "Database connection string (optional if DB_* env vars are set)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
