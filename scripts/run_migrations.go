package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safar/retail-ledger/internal/config"
	"github.com/safar/retail-ledger/internal/database"
	"github.com/safar/retail-ledger/internal/logger"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		fmt.Fprintln(os.Stderr, "Direction must be 'up' or 'down'")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger, cfg.Server.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()

	files, err := migrationFiles("migrations", direction)
	if err != nil {
		log.Fatal("Read migration directory", zap.Error(err))
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatal("Read migration file", zap.String("file", path), zap.Error(err))
		}

		log.Info("Running migration", zap.String("file", filepath.Base(path)))
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatal("Execute migration", zap.String("file", path), zap.Error(err))
		}
	}

	log.Info("Migrations complete", zap.Int("count", len(files)), zap.String("direction", direction))
}

// migrationFiles lists dir's files for direction, newest first when going down.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "."+direction+".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}
