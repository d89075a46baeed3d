package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	roomdb "github.com/vilterp/roomdb/pkg"
	"github.com/vilterp/roomdb/pkg/config"
	clog "github.com/vilterp/roomdb/pkg/log"
	"github.com/vilterp/roomdb/pkg/programs"
	"github.com/vilterp/roomdb/pkg/vision"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		scriptsDir string
		replayFile string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "roomdb-server",
		Short: "Fact store server for a programmable room",
		Long: `Serves the fact store over a websocket, runs the Starlark programs
whose markers are on the table, and feeds detections from the vision
pipeline through the driver loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("scripts") {
				cfg.Programs.Dir = scriptsDir
			}
			if flags.Changed("replay") {
				cfg.Vision.ReplayFile = replayFile
			}
			if flags.Changed("render") {
				cfg.Render.Output = output
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	cmd.Flags().StringVar(&host, "host", "localhost", "host to listen on")
	cmd.Flags().IntVar(&port, "port", 9000, "port to listen on")
	cmd.Flags().StringVar(&scriptsDir, "scripts", "scripts", "directory of program scripts")
	cmd.Flags().StringVar(&replayFile, "replay", "", "JSON-lines file of recorded detection batches")
	cmd.Flags().StringVar(&output, "render", "", `where to write rendered frames ("-" for stdout)`)
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := clog.Init(cfg.Log.Development, cfg.Log.Level); err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	defer clog.Sync()

	db := roomdb.NewDatabase()
	driverCfg := roomdb.DriverConfig{VisionID: cfg.Vision.ReservedID}

	if cfg.Programs.Dir != "" {
		manager := programs.NewManager(db, programs.Config{
			Dir:      cfg.Programs.Dir,
			BootID:   cfg.Programs.BootID,
			SourceID: cfg.Programs.SourceID,
		})
		if err := manager.Load(); err != nil {
			return err
		}
		defer manager.StopAll()
		// Nothing is seen yet; this starts the boot program.
		manager.Sync(ctx, nil)
		if cfg.Programs.Watch {
			go func() {
				if err := manager.Watch(ctx, nil); err != nil && ctx.Err() == nil {
					clog.Errorf(db, "watching scripts: %v", err)
				}
			}()
		}
		driverCfg.Programs = manager
	}

	renderer, closeRenderer, err := openRenderer(cfg.Render.Output)
	if err != nil {
		return err
	}
	defer closeRenderer()
	if renderer != nil {
		driverCfg.Renderer = renderer
	}

	queue := vision.NewQueue()
	if cfg.Vision.ReplayFile != "" {
		source, err := vision.NewReplaySource(cfg.Vision.ReplayFile, cfg.Vision.Interval, cfg.Vision.Loop)
		if err != nil {
			return err
		}
		go func() {
			defer queue.Close()
			if err := source.Run(ctx, queue); err != nil && ctx.Err() == nil {
				clog.Errorf(db, "vision source: %v", err)
			}
		}()
	} else {
		defer queue.Close()
	}

	driver := roomdb.NewDriver(db, queue, driverCfg)
	go func() {
		if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
			clog.Errorf(driver, "driver: %v", err)
		}
	}()

	server := roomdb.NewServer(db, cfg.Server.Host, cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serving")
		}
	}
	return server.Close()
}

// openRenderer returns a nil renderer when output is empty.
func openRenderer(output string) (*roomdb.JSONRenderer, func(), error) {
	switch output {
	case "":
		return nil, func() {}, nil
	case "-":
		return roomdb.NewJSONRenderer(os.Stdout), func() {}, nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening render output")
	}
	return roomdb.NewJSONRenderer(f), func() { _ = f.Close() }, nil
}
