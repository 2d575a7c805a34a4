package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up             apply all pending migrations
  down           roll back the latest migration
  status         list migrations and whether they are applied
  to <version>   migrate up or down to an exact version
  create <name>  write a new empty migration into -dir
  validate       check migration files without touching the database
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := run(context.Background(), logg, *dir, flag.Args()); err != nil {
		logg.Error(context.Background(), "migrate.failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, dir string, args []string) error {
	command, rest := args[0], args[1:]
	ctx = logg.WithFields(ctx, map[string]any{"cmd": command, "dir": dir})

	source := migrate.Embedded()
	if dir != "" {
		source = os.DirFS(dir)
	}

	switch command {
	case "create":
		if len(rest) == 0 {
			return errors.New("create needs a migration name")
		}
		target := dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.NewFile(target, rest[0], time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migrate.created")
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		logg.Info(ctx, "migrate.valid")
		return nil
	}

	return withMigrator(ctx, logg, source, func(m *migrate.Migrator) error {
		switch command {
		case "up":
			return m.Up(ctx)
		case "down":
			return m.Down(ctx)
		case "status":
			return m.Status(ctx)
		case "to":
			if len(rest) == 0 {
				return errors.New("to needs a target version")
			}
			version, err := strconv.ParseInt(rest[0], 10, 64)
			if err != nil {
				return fmt.Errorf("version %q: %w", rest[0], err)
			}
			return m.To(ctx, version)
		default:
			return fmt.Errorf("unknown command %q", command)
		}
	})
}

func withMigrator(ctx context.Context, logg *logger.Logger, source fs.FS, fn func(*migrate.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB, source, logg)
	if err != nil {
		return err
	}
	return fn(migrator)
}
