package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "newsfront",
		Usage:   "Reader and back-office front for the news content service",
		Version: version,
		// 不带子命令时直接启动服务
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serveAction,
			},
			{
				Name:      "render",
				Usage:     "render a markdown article the way readers see it",
				ArgsUsage: "<file.md>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "ansi",
						Usage: "render for the terminal instead of HTML",
					},
					&cli.StringFlag{
						Name:    "asset-base",
						Usage:   "base URL used to qualify relative image paths",
						Sources: cli.EnvVars("ASSET_BASE_URL"),
					},
					&cli.IntFlag{
						Name:  "width",
						Usage: "word wrap width for --ansi",
						Value: 80,
					},
				},
				Action: renderAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
