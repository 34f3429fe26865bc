package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func client(cmd *cli.Command) *apiClient {
	return newAPIClient(cmd.String("server"), cmd.String("token"))
}

func main() {
	cmd := &cli.Command{
		Name:  "veilctl",
		Usage: "Operator client for the veil daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Daemon base URL",
				Value:   "http://localhost:8089",
				Sources: cli.EnvVars("VEIL_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Bearer token from veilctl login",
				Sources: cli.EnvVars("VEIL_TOKEN"),
			},
		},
		Commands: []*cli.Command{
			loginCmd(),
			configCmd(),
			maskCmd(),
			fractureCmd(),
			reassembleCmd(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("veilctl: %v", err)
	}
}

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Obtain a viewer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "viewer", Required: true},
			&cli.StringFlag{Name: "secret", Required: true, Sources: cli.EnvVars("VEIL_SECRET")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var out struct {
				Token     string `json:"token"`
				ExpiresAt string `json:"expires_at"`
			}
			err := client(cmd).do(ctx, "POST", "/api/login", map[string]string{
				"viewer": cmd.String("viewer"),
				"secret": cmd.String("secret"),
			}, &out)
			if err != nil {
				return err
			}
			fmt.Println(out.Token)
			return nil
		},
	}
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage per-asset privacy configs",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a privacy config for an asset",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "asset", Required: true},
					&cli.StringSliceFlag{Name: "source", Usage: "entropy source (repeatable)"},
					&cli.IntFlag{Name: "rotate-every", Usage: "rotation interval in seconds", Value: 86400},
					&cli.StringFlag{Name: "level", Value: "medium"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					var out map[string]any
					err := client(cmd).do(ctx, "POST", "/api/configs", map[string]any{
						"asset":               cmd.String("asset"),
						"entropy_sources":     cmd.StringSlice("source"),
						"rotation_interval_s": cmd.Int("rotate-every"),
						"level":               cmd.String("level"),
					}, &out)
					if err != nil {
						return err
					}
					return printJSON(out)
				},
			},
			{
				Name:      "get",
				Usage:     "Show an asset's config",
				ArgsUsage: "<asset>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					var out map[string]any
					if err := client(cmd).do(ctx, "GET", "/api/configs/"+cmd.Args().First(), nil, &out); err != nil {
						return err
					}
					return printJSON(out)
				},
			},
			{
				Name:      "rotate",
				Usage:     "Rotate an asset's key",
				ArgsUsage: "<asset>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "rotate even if the interval has not elapsed"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := "/api/configs/" + cmd.Args().First() + "/rotate"
					if cmd.Bool("force") {
						path += "?force=1"
					}
					var out map[string]any
					if err := client(cmd).do(ctx, "POST", path, nil, &out); err != nil {
						return err
					}
					return printJSON(out)
				},
			},
			{
				Name:      "hash",
				Usage:     "Print the anchor hash of an asset's config",
				ArgsUsage: "<asset>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					var out struct {
						Hash string `json:"hash"`
					}
					if err := client(cmd).do(ctx, "GET", "/api/configs/"+cmd.Args().First()+"/hash", nil, &out); err != nil {
						return err
					}
					fmt.Println(out.Hash)
					return nil
				},
			},
		},
	}
}

func maskCmd() *cli.Command {
	return &cli.Command{
		Name:      "mask",
		Usage:     "Apply an asset's mask to a snapshot read from stdin",
		ArgsUsage: "<asset>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var snap json.RawMessage
			if err := json.NewDecoder(os.Stdin).Decode(&snap); err != nil {
				return fmt.Errorf("read snapshot from stdin: %w", err)
			}
			var out map[string]any
			if err := client(cmd).do(ctx, "POST", "/api/mask/"+cmd.Args().First(), snap, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func fractureCmd() *cli.Command {
	return &cli.Command{
		Name:      "fracture",
		Usage:     "Fracture a file across timelines",
		ArgsUsage: "<asset> <file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "weights", Usage: "timeline=weight pairs, comma separated"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			asset, file := cmd.Args().Get(0), cmd.Args().Get(1)
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			body := map[string]any{"data": base64.StdEncoding.EncodeToString(data)}
			if ws := cmd.String("weights"); ws != "" {
				weights := map[string]float64{}
				for _, pair := range strings.Split(ws, ",") {
					name, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
					if !ok {
						return fmt.Errorf("bad weight %q, want timeline=0.4", pair)
					}
					var f float64
					if _, err := fmt.Sscanf(val, "%g", &f); err != nil {
						return fmt.Errorf("bad weight %q: %w", pair, err)
					}
					weights[name] = f
				}
				body["weights"] = weights
			}
			var out map[string]any
			if err := client(cmd).do(ctx, "POST", "/api/fracture/"+asset, body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func reassembleCmd() *cli.Command {
	return &cli.Command{
		Name:      "reassemble",
		Usage:     "Reassemble fragments and write the payload to stdout",
		ArgsUsage: "<asset> <fragment-id>...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 {
				return fmt.Errorf("need an asset and at least one fragment id")
			}
			var out struct {
				Data string `json:"data"`
			}
			err := client(cmd).do(ctx, "POST", "/api/reassemble", map[string]any{
				"asset":        args[0],
				"fragment_ids": args[1:],
			}, &out)
			if err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(out.Data)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
