package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/parley/internal/api"
	"github.com/samcharles93/parley/internal/model"
	"github.com/samcharles93/parley/internal/toylm"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		nPredict    int64
		ctxSize     int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve generation over HTTP",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "n_predict",
				Aliases:     []string{"n"},
				Usage:       "default number of tokens to generate per request",
				Value:       128,
				Destination: &nPredict,
			},
			&cli.Int64Flag{
				Name:        "ctx_size",
				Aliases:     []string{"c"},
				Usage:       "default context window size in tokens",
				Value:       4096,
				Destination: &ctxSize,
			},
		}, loggingFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(c, cfg, &addr)
			log := newLogger()

			defaults := api.Defaults{
				Params:   model.DefaultSamplingParams(),
				NPredict: int(nPredict),
			}
			defaults.Params.ContextSize = int(ctxSize)

			factory := func(seed int64, ctxSize int) model.Model {
				return toylm.New(seed, ctxSize)
			}

			server := api.NewServer(factory, defaults, log.With("component", "api"))
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
