// Command dsis-export writes selected log header attributes of a DSIS/Recall
// project to a CSV file.
//
// Configuration comes from DSIS_* environment variables, an optional YAML
// file and the secrets directory (see internal/config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/dsis-recall-client/internal/config"
	"github.com/Sternrassler/dsis-recall-client/pkg/auth"
	"github.com/Sternrassler/dsis-recall-client/pkg/cache"
	"github.com/Sternrassler/dsis-recall-client/pkg/client"
	"github.com/Sternrassler/dsis-recall-client/pkg/export"
	"github.com/Sternrassler/dsis-recall-client/pkg/logging"
	"github.com/Sternrassler/dsis-recall-client/pkg/metrics"
	"github.com/Sternrassler/dsis-recall-client/pkg/pagination"
	"github.com/Sternrassler/dsis-recall-client/pkg/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// options are the command line flags.
type options struct {
	configFile   string
	project      string
	out          string
	attributes   []string
	filterName   string
	atomic       bool
	listProjects bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("dsis-export failed")
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("dsis-export", flag.ContinueOnError)

	opts := &options{}
	var attributes string
	fs.StringVar(&opts.configFile, "config", "", "optional YAML config file")
	fs.StringVar(&opts.project, "project", "NORWAY_WELLDB", "DSIS project")
	fs.StringVar(&opts.out, "out", "", "output CSV path, .gz compresses (default <project>_log_headers.csv)")
	fs.StringVar(&attributes, "attributes", strings.Join(export.DefaultAttributes, ","), "comma-separated header attributes")
	fs.StringVar(&opts.filterName, "filter-name", "", "only export logs whose NAME contains this text")
	fs.BoolVar(&opts.atomic, "atomic", false, "write to a temporary file and rename on success")
	fs.BoolVar(&opts.listProjects, "list-projects", false, "print available projects and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, a := range strings.Split(attributes, ",") {
		if a = strings.TrimSpace(a); a != "" {
			opts.attributes = append(opts.attributes, a)
		}
	}
	if len(opts.attributes) == 0 {
		return nil, fmt.Errorf("-attributes must name at least one attribute")
	}
	if opts.out == "" {
		opts.out = opts.project + "_log_headers.csv"
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	var loadOpts []config.Option
	if opts.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(opts.configFile))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger("dsis-export")

	var rdb *redis.Client
	var cacheManager *cache.Manager
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		cacheManager = cache.NewManager(rdb, cfg.CacheTTL)
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("Response cache enabled")
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMux(rdb),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	provider, err := auth.NewPasswordGrant(cfg.Auth())
	if err != nil {
		return err
	}

	clientCfg := client.DefaultConfig(cfg.Model(), provider)
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.InsecureSkipVerify = cfg.InsecureSkipVerify
	clientCfg.Cache = cacheManager

	dsis, err := client.New(ctx, clientCfg)
	if err != nil {
		return fmt.Errorf("create DSIS client: %w", err)
	}
	defer dsis.Close()

	if opts.listProjects {
		projects, err := dsis.Projects(ctx)
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Fprintln(stdout, p)
		}
		return nil
	}

	exportCfg := export.Config{Atomic: opts.atomic}
	if opts.filterName != "" {
		exportCfg.Filter = export.NameContains("NAME", opts.filterName)
	}

	repo := repository.NewDSISLogs(dsis, pagination.DefaultConfig())
	stats, err := export.NewExporter(repo, exportCfg).Export(ctx, opts.attributes, opts.project, opts.out)
	if err != nil {
		return fmt.Errorf("export %s: %w", opts.project, err)
	}

	fmt.Fprintf(stdout, "Wrote %d log headers from %s to %s (%d pages, %d filtered, %s)\n",
		stats.Written, opts.project, stats.Path, stats.Pages, stats.Filtered, stats.Duration.Round(time.Millisecond))

	if cfg.S3Bucket != "" {
		uploader, err := export.NewS3Uploader(ctx, export.S3Config{
			Bucket: cfg.S3Bucket,
			Region: cfg.S3Region,
			Prefix: cfg.S3Prefix,
		})
		if err != nil {
			return err
		}
		key := filepath.Base(opts.out)
		if err := uploader.Upload(ctx, key, opts.out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Uploaded to s3://%s/%s\n", cfg.S3Bucket, uploader.ObjectKey(key))
	}

	return nil
}

func newMux(rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(rdb))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while the configured Redis cache is unreachable.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
