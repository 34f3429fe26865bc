package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/project-89/Quantum-Veil/internal/platform"
	"github.com/project-89/Quantum-Veil/internal/server"
	pkgconfig "github.com/project-89/Quantum-Veil/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	logger := log.New(os.Stdout, "[veild] ", log.LstdFlags)

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Printf("could not disable core dumps: %v", err)
	}

	var cfg fileConfig
	if err := pkgconfig.Load(cmd.String("config"), &cfg); err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg.serverConfig())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Close(closeCtx); err != nil {
			logger.Printf("close backends: %v", err)
		}
	}()

	sc := cfg.serverConfig()
	httpSrv := &http.Server{
		Addr:              sc.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if httpSrv.Addr == "" {
		httpSrv.Addr = ":8089"
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
		logger.Printf("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "veild",
		Usage:  "Privacy daemon: key vault, telemetry masking, and fragment storage for digital collectibles",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/veild.yaml",
				Sources: cli.EnvVars("VEILD_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("veild: %v", err)
	}
}
