package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/parley/internal/interact"
	"github.com/samcharles93/parley/internal/model"
	"github.com/samcharles93/parley/internal/session"
	"github.com/samcharles93/parley/internal/toylm"
)

func runCmd() *cli.Command {
	var (
		prompt        string
		promptFile    string
		interactive   bool
		instruct      bool
		reversePrompt string
		nPredict      int64
		topK          int64
		topP          float64
		temp          float64
		repeatLastN   int64
		repeatPenalty float64
		ctxSize       int64
		batchSize     int64
		threads       int64
		seed          int64
		echoPrompt    bool
		streamMode    string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate text from a prompt, optionally conversing",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "initial prompt text",
				Destination: &prompt,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "read the initial prompt from a file",
				Destination: &promptFile,
			},
			&cli.BoolFlag{
				Name:        "interactive",
				Aliases:     []string{"i"},
				Usage:       "run in interactive mode",
				Destination: &interactive,
			},
			&cli.BoolFlag{
				Name:        "instruct",
				Aliases:     []string{"ins"},
				Usage:       "instruction mode (implies --interactive)",
				Destination: &instruct,
			},
			&cli.StringFlag{
				Name:        "reverse-prompt",
				Aliases:     []string{"r"},
				Usage:       "halt generation and return control when this text appears (implies --interactive)",
				Destination: &reversePrompt,
			},
			&cli.Int64Flag{
				Name:        "n_predict",
				Aliases:     []string{"n"},
				Usage:       "number of tokens to generate per turn (-1 = unlimited)",
				Value:       128,
				Destination: &nPredict,
			},
			&cli.Int64Flag{
				Name:        "top_k",
				Usage:       "top-k sampling parameter",
				Value:       40,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "top_p",
				Usage:       "top-p sampling parameter",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Usage:       "sampling temperature",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Int64Flag{
				Name:        "repeat_last_n",
				Usage:       "last n tokens to penalize",
				Value:       64,
				Destination: &repeatLastN,
			},
			&cli.Float64Flag{
				Name:        "repeat_penalty",
				Usage:       "repetition penalty (1.0 = disabled)",
				Value:       1.30,
				Destination: &repeatPenalty,
			},
			&cli.Int64Flag{
				Name:        "ctx_size",
				Aliases:     []string{"c"},
				Usage:       "context window size in tokens",
				Value:       4096,
				Destination: &ctxSize,
			},
			&cli.Int64Flag{
				Name:        "batch_size",
				Aliases:     []string{"b"},
				Usage:       "batch size for prompt evaluation",
				Value:       8,
				Destination: &batchSize,
			},
			&cli.Int64Flag{
				Name:        "threads",
				Aliases:     []string{"t"},
				Usage:       "number of evaluation threads",
				Value:       4,
				Destination: &threads,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Aliases:     []string{"s"},
				Usage:       "sampling RNG seed (-1 = random)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.BoolFlag{
				Name:        "echo-prompt",
				Usage:       "print prompt text as it is consumed",
				Value:       true,
				Destination: &echoPrompt,
			},
			&cli.StringFlag{
				Name:        "stream-mode",
				Usage:       "output mode (instant, smooth, typewriter, quiet)",
				Value:       string(StreamInstant),
				Destination: &streamMode,
			},
		}, loggingFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyRunConfig(c, cfg,
				&temp, &topK, &topP, &repeatLastN,
				&repeatPenalty, &nPredict, &ctxSize,
				&batchSize, &threads, &seed,
				&reversePrompt, &streamMode)
			log := newLogger()

			mode := interact.ModeBatch
			switch {
			case instruct:
				mode = interact.ModeInstruct
			case interactive || reversePrompt != "":
				mode = interact.ModeInteractive
			}

			if promptFile != "" {
				data, err := os.ReadFile(promptFile)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read prompt file: %v", err), 1)
				}
				prompt = strings.TrimSuffix(string(data), "\n")
			}
			if prompt == "" && !mode.Interactive() {
				return cli.Exit("error: a prompt is required outside interactive mode (use --prompt or --file)", 1)
			}

			params := model.SamplingParams{
				TopK:          int(topK),
				TopP:          topP,
				Temperature:   temp,
				RepeatLastN:   int(repeatLastN),
				RepeatPenalty: repeatPenalty,
				Threads:       int(threads),
				BatchSize:     int(batchSize),
				ContextSize:   int(ctxSize),
				Seed:          seed,
			}

			m := toylm.New(seed, int(ctxSize))

			// Generation quality benefits from a leading space before
			// the first prompt word.
			ids, err := m.Tokenize(" "+prompt, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: tokenize prompt: %v", err), 1)
			}
			if len(ids) > int(ctxSize)-4 {
				return cli.Exit(fmt.Sprintf("error: prompt is too long (%d tokens, max %d)", len(ids), ctxSize-4), 1)
			}

			sess, err := session.New(m, params, int(nPredict))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			sess.Enqueue(ids)

			if mode.Interactive() {
				fmt.Fprintln(os.Stderr, "== Running in interactive mode. ==")
				fmt.Fprintln(os.Stderr, " - Press Ctrl+C to exit.")
				fmt.Fprintln(os.Stderr, " - If you want to submit another line, end your input with '\\'.")
			}

			writer := NewStreamWriter(StreamMode(streamMode))

			ctrl, err := interact.New(interact.Config{
				Session:    sess,
				Model:      m,
				Mode:       mode,
				Stream:     writer.Write,
				Input:      newInputReader(),
				Budget:     int(nPredict),
				Antiprompt: reversePrompt,
				EchoPrompt: echoPrompt,
				Log:        log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			stats, err := ctrl.Run(runCtx)
			writer.Flush()
			fmt.Println()
			if err != nil && runCtx.Err() == nil {
				return cli.Exit(fmt.Sprintf("error: generation: %v", err), 1)
			}
			fmt.Fprintf(os.Stderr, "Stats: %.2f TPS (%d tokens in %s)\n",
				stats.TPS, stats.TokensGenerated, stats.Duration)
			return nil
		},
	}
}
