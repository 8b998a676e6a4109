package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/internal/cacheinfra"
)

func main() {
	app := cli.App{
		Name:  "recordcache",
		Usage: "operator tool for inspecting record cache entries in Redis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL",
				Value:   "redis://localhost:6379/0",
				EnvVars: []string{"RECORDCACHE_REDIS_URL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "bound for each Redis call",
				Value:   cache.DefaultTimeout,
				EnvVars: []string{"RECORDCACHE_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log at debug level",
			},
		},
		Before: func(cctx *cli.Context) error {
			level := slog.LevelInfo
			if cctx.Bool("verbose") {
				level = slog.LevelDebug
			}
			h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(h).With("system", "recordcache"))
			return nil
		},
	}
	app.Commands = []*cli.Command{
		&cli.Command{
			Name:      "inspect",
			Usage:     "print every field of a cache entry, decoded",
			ArgsUsage: "<key>",
			Action:    runInspect,
		},
		&cli.Command{
			Name:      "get",
			Usage:     "print one decoded field of a cache entry",
			ArgsUsage: "<key> <field>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "raw",
					Usage: "print the stored string without decoding",
				},
			},
			Action: runGet,
		},
		&cli.Command{
			Name:      "fields",
			Usage:     "list the field names of a cache entry",
			ArgsUsage: "<key>",
			Action:    runFields,
		},
		&cli.Command{
			Name:      "purge",
			Usage:     "delete cache entries",
			ArgsUsage: "<key> [<key>...]",
			Action:    runPurge,
		},
	}
	app.RunAndExitOnError()
}

// withBackend connects to Redis and runs fn with a context bounded by --timeout.
func withBackend(cctx *cli.Context, fn func(ctx context.Context, backend *cacheinfra.RedisBackend) error) error {
	ctx, cancel := context.WithTimeout(cctx.Context, cctx.Duration("timeout"))
	defer cancel()

	backend, err := cacheinfra.NewRedisBackendFromURL(ctx, cctx.String("redis-url"))
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = backend.Close() }()

	return fn(ctx, backend)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runInspect(cctx *cli.Context) error {
	key := cctx.Args().First()
	if key == "" {
		return fmt.Errorf("need to provide a cache key as an argument")
	}

	return withBackend(cctx, func(ctx context.Context, backend *cacheinfra.RedisBackend) error {
		hash, err := backend.HGetAll(ctx, key)
		if err != nil {
			return err
		}
		if len(hash) == 0 {
			return fmt.Errorf("no cache entry at %s", key)
		}

		var codec cache.Codec
		decoded := make(map[string]any, len(hash))
		for field, raw := range hash {
			decoded[field] = codec.Decode(raw)
		}
		slog.Debug("inspected cache entry", "key", key, "fields", len(hash))
		return printJSON(decoded)
	})
}

func runGet(cctx *cli.Context) error {
	key, field := cctx.Args().Get(0), cctx.Args().Get(1)
	if key == "" || field == "" {
		return fmt.Errorf("need to provide a cache key and a field name as arguments")
	}

	return withBackend(cctx, func(ctx context.Context, backend *cacheinfra.RedisBackend) error {
		raw, found, err := backend.HGet(ctx, key, field)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("field %s not cached at %s", field, key)
		}
		if cctx.Bool("raw") {
			fmt.Printf("%q\n", raw)
			return nil
		}
		return printJSON(cache.Codec{}.Decode(raw))
	})
}

func runFields(cctx *cli.Context) error {
	key := cctx.Args().First()
	if key == "" {
		return fmt.Errorf("need to provide a cache key as an argument")
	}

	return withBackend(cctx, func(ctx context.Context, backend *cacheinfra.RedisBackend) error {
		fields, err := backend.HKeys(ctx, key)
		if err != nil {
			return err
		}
		for _, field := range fields {
			fmt.Println(field)
		}
		return nil
	})
}

func runPurge(cctx *cli.Context) error {
	keys := cctx.Args().Slice()
	if len(keys) == 0 {
		return fmt.Errorf("need to provide at least one cache key as an argument")
	}

	return withBackend(cctx, func(ctx context.Context, backend *cacheinfra.RedisBackend) error {
		for _, key := range keys {
			if err := backend.Del(ctx, key); err != nil {
				return fmt.Errorf("purging %s: %w", key, err)
			}
			slog.Info("purged cache entry", "key", key)
		}
		fmt.Printf("purged %d entries\n", len(keys))
		return nil
	})
}
