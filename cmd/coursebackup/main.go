package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"coursebackup/internal/backup"
	"coursebackup/internal/config"
	"coursebackup/internal/course"
	"coursebackup/internal/media"
	"coursebackup/internal/notify"
	"coursebackup/internal/postgres"
	"coursebackup/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	switch os.Args[1] {
	case "backup":
		runBackupCLI(os.Args[2:])
	case "list":
		runListCLI(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: coursebackup [command]

Commands:
  backup                  Export courses into the backup directory and ship an archive
  list                    List archives stored on a storage backend
  help                    Show this help message

Backup flags:
  --strategy <name>       full or incremental (default from config)
  --dir <path>            Backup directory (default from config)
  --media                 Also copy referenced media files

List flags:
  --backend <name>        Storage backend name (defaults to type, e.g. local, s3) [required]
  --set <name>            Archive set to list: full or incremental (default full)

Environment:
  COURSEBACKUP_CONFIG     Path to config file (default: /config/config.yml)

Examples:
  coursebackup backup
  coursebackup backup --strategy incremental --media
  coursebackup list --backend offsite --set incremental
`)
}

func runBackupCLI(args []string) {
	cfg, err := config.Parse(config.Path())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	strategyName := fs.String("strategy", cfg.Backup.Strategy, "Backup strategy: full or incremental")
	dir := fs.String("dir", cfg.Backup.Dir, "Backup directory")
	includeMedia := fs.Bool("media", cfg.Backup.IncludeMedia, "Also copy referenced media files")
	fs.Parse(args)

	kind, err := backup.ParseKind(*strategyName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database.ConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	strategy, err := newStrategy(kind, cfg.Backup, postgres.NewCourseStore(db))
	if err != nil {
		log.Fatalf("Failed to set up %s backup: %v", kind, err)
	}

	backends, err := createBackends(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage backends: %v", err)
	}

	notifier, err := createNotifier(cfg.Notify)
	if err != nil {
		log.Printf("[notify] Notifications disabled: %v", err)
		notifier = notify.Nop{}
	}
	defer notifier.Close()

	opts := runOptions{
		Dir:          *dir,
		IncludeMedia: *includeMedia,
		Excludes:     cfg.Backup.Excludes,
		Retention:    toStorageRetention(cfg.Retention),
	}
	if _, err := runBackup(ctx, strategy, opts, backends, notifier); err != nil {
		log.Fatalf("[backup] %s backup failed: %v", kind, err)
	}
}

// courseStore is what the CLI needs from the database layer.
type courseStore interface {
	course.Provider
	course.ChangeFinder
}

// newStrategy wires a strategy against the course store. Incremental runs
// select every course unless changedOnly is configured.
func newStrategy(kind backup.Kind, cfg config.BackupConfig, store courseStore) (backup.Strategy, error) {
	deps := backup.Deps{
		Provider: store,
		Media:    backup.NewMediaService(media.NewCopier(cfg.MediaRoot)),
		Window:   cfg.IncrementalWindow,
	}
	if cfg.ChangedOnly {
		deps.Selector = course.ChangedSince{Finder: store}
	}
	return backup.NewStrategy(kind, deps)
}

func createNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	if cfg.RabbitMQ == nil {
		return notify.Nop{}, nil
	}
	return notify.NewRabbitMQ(notify.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	})
}

func runListCLI(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	backendName := fs.String("backend", "", "Storage backend name (e.g. local, s3, nas)")
	set := fs.String("set", string(backup.KindFull), "Archive set: full or incremental")
	fs.Parse(args)

	if *backendName == "" {
		fmt.Fprintln(os.Stderr, "Error: --backend is required")
		fs.Usage()
		os.Exit(1)
	}
	kind, err := backup.ParseKind(*set)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()

	cfg, err := config.Parse(config.Path())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	backend, err := findBackend(ctx, cfg.Storage, *backendName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	backups, err := backend.List(ctx, string(kind))
	if err != nil {
		log.Fatalf("Failed to list archives: %v", err)
	}
	if len(backups) == 0 {
		fmt.Printf("No %s archives found on %s\n", kind, backend.Name())
		return
	}

	printArchives(os.Stdout, backups, toStorageRetention(cfg.Retention))
}

// printArchives writes a table of archives with the retention buckets that
// keep each one.
func printArchives(out io.Writer, backups []storage.BackupMetadata, policy storage.RetentionPolicy) {
	var labels map[string][]string
	if !policy.IsZero() {
		labels = storage.ClassifyRetentionBuckets(backups, policy)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "KEY\tFILENAME\tSIZE\tCREATED\tKEPT BY\n")
	for _, b := range backups {
		kept := "-"
		if labels == nil {
			kept = "all"
		} else if l := labels[b.Key]; len(l) > 0 {
			kept = strings.Join(l, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Key, b.FileName, formatSize(b.Size), b.CreatedAt.Format(time.RFC3339), kept)
	}
	w.Flush()
}

// formatSize returns a human-readable size string.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
