// Command chunitool is the operator CLI: calculators, offline payload
// encoding and load testing against a running service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/okian/chunisync/internal/adapters/repository"
	app "github.com/okian/chunisync/internal/app"
	"github.com/okian/chunisync/internal/domain/border"
	"github.com/okian/chunisync/internal/domain/model"
	"github.com/okian/chunisync/internal/domain/overpower"
	"github.com/okian/chunisync/internal/domain/rating"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/internal/domain/types"
	"github.com/okian/chunisync/internal/loadgen"
	"github.com/okian/chunisync/pkg/logger"
)

// ErrUnreachable is returned when no score reaches the requested rating.
var ErrUnreachable = errors.New("rating unreachable on this chart")

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop called above
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "chunitool",
		Usage: "rating calculators, payload encoding and load testing",
		Commands: []*cli.Command{
			ratingCommand(out),
			requiredCommand(out),
			overpowerCommand(out),
			bordersCommand(out),
			encodeCommand(out),
			reportCommand(out),
			loadtestCommand(),
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decimalFlag(c *cli.Context, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.String(name))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func scoreFlag(c *cli.Context) (uint32, error) {
	s := c.Uint64("score")
	if s > uint64(types.MaxScore) {
		return 0, fmt.Errorf("--score %d above %d: %w", s, types.MaxScore, types.ErrInvalidInput)
	}
	return uint32(s), nil
}

var levelFlag = &cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "chart constant, e.g. 14.5"}

func ratingCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "rating",
		Usage: "play rating for a score, or the rating table of a chart without --score",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "score", Aliases: []string{"s"}},
			levelFlag,
		},
		Action: func(c *cli.Context) error {
			var lv *decimal.Decimal
			if c.IsSet("level") {
				d, err := decimalFlag(c, "level")
				if err != nil {
					return err
				}
				lv = &d
			}
			if !c.IsSet("score") {
				if lv == nil {
					return errors.New("--level is required for a rating table")
				}
				return writeJSON(out, rating.Table(*lv))
			}
			score, err := scoreFlag(c)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{
				"score":  score,
				"rank":   types.RankFromScore(score),
				"rating": rating.Rating(score, lv),
			})
		},
	}
}

func requiredCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "required",
		Usage: "minimum score for a target rating",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rating", Aliases: []string{"r"}, Required: true},
			levelFlag,
			&cli.StringFlag{Name: "max-level", Value: rating.MaxInternalLevel.String(), Usage: "highest chart constant listed without --level"},
		},
		Action: func(c *cli.Context) error {
			target, err := decimalFlag(c, "rating")
			if err != nil {
				return err
			}
			if !target.IsPositive() {
				return fmt.Errorf("--rating must be positive: %w", types.ErrInvalidInput)
			}
			if !c.IsSet("level") {
				maxLevel, err := decimalFlag(c, "max-level")
				if err != nil {
					return err
				}
				return writeJSON(out, rating.Requirements(target, maxLevel))
			}
			lv, err := decimalFlag(c, "level")
			if err != nil {
				return err
			}
			score, ok := rating.ScoreForRating(target, lv)
			if !ok {
				return fmt.Errorf("%s on %s: %w", target, lv, ErrUnreachable)
			}
			return writeJSON(out, map[string]any{"score": score, "rank": types.RankFromScore(score)})
		},
	}
}

func overpowerCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "overpower",
		Usage: "overpower breakdown for a score, or the all-justice table without --score",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "score", Aliases: []string{"s"}},
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			lv, err := decimalFlag(c, "level")
			if err != nil {
				return err
			}
			if !c.IsSet("score") {
				return writeJSON(out, overpower.AllJusticeTable(lv))
			}
			score, err := scoreFlag(c)
			if err != nil {
				return err
			}
			return writeJSON(out, overpower.Breakdown(score, lv))
		},
	}
}

func bordersCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "borders",
		Usage: "judgement tolerance per rank for a note count",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "max-combo", Aliases: []string{"n"}, Required: true},
			&cli.StringFlag{Name: "rank", Usage: "single rank, e.g. SSS"},
		},
		Action: func(c *cli.Context) error {
			mc := uint32(c.Uint("max-combo"))
			if c.IsSet("rank") {
				rank, err := types.ParseRank(c.String("rank"))
				if err != nil {
					return err
				}
				b, err := border.Compute(&mc, rank)
				if err != nil {
					return err
				}
				return writeJSON(out, b)
			}
			all, err := border.All(&mc)
			if err != nil {
				return err
			}
			ded, err := border.Deduction(&mc)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{"borders": all, "deductions": ded})
		},
	}
}

func loadCharts(c *cli.Context) ([]model.Chart, error) {
	if !c.IsSet("charts") {
		return nil, nil
	}
	return repository.LoadChartsFile(c.String("charts"))
}

var chartsFlag = &cli.StringFlag{Name: "charts", Usage: "YAML chart catalog"}

func encodeCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "assemble the payload for a JSON sync job without submitting it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "sync job JSON, - for stdin"},
			chartsFlag,
			&cli.StringFlag{Name: "region", Value: "jp", Usage: "jp, intl or paralost"},
		},
		Action: func(c *cli.Context) error {
			job, err := readJob(c.String("file"))
			if err != nil {
				return err
			}
			region, err := app.ParseRegion(c.String("region"))
			if err != nil {
				return err
			}
			charts, err := loadCharts(c)
			if err != nil {
				return err
			}
			svc := app.New(app.WithCharts(charts...), app.WithPayloadRegion(region))
			payload, err := svc.BuildPayload(c.Context, job)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, payload)
			return err
		},
	}
}

func reportCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "rank the best and recent frames of a JSON sync job and print the player rating",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "sync job JSON, - for stdin"},
			chartsFlag,
			&cli.StringFlag{Name: "missing", Value: "estimate", Usage: "unknown chart constants: fail, skip or estimate"},
		},
		Action: func(c *cli.Context) error {
			job, err := readJob(c.String("file"))
			if err != nil {
				return err
			}
			charts, err := loadCharts(c)
			if err != nil {
				return err
			}
			svc := app.New(app.WithCharts(charts...), app.WithMissingLevelPolicy(scoring.ParsePolicy(c.String("missing"))))
			rep, err := svc.Report(c.Context, job)
			if err != nil {
				return err
			}
			return writeJSON(out, rep)
		},
	}
}

func readJob(path string) (model.SyncJob, error) {
	var job model.SyncJob
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return job, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return job, fmt.Errorf("decode %s: %w", path, err)
	}
	return job, nil
}

func loadtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "post generated sync jobs to a running service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.IntFlag{Name: "jobs", Value: 1000},
			&cli.IntFlag{Name: "players", Value: 50},
			&cli.IntFlag{Name: "records", Value: 40, Usage: "best records per job"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * 2},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "HTTP request timeout"},
			&cli.Uint64Flag{Name: "seed", Value: uint64(time.Now().UnixNano())},
			&cli.DurationFlag{Name: "wait", Value: time.Minute, Usage: "how long to wait for jobs to settle, 0 to skip"},
			&cli.IntFlag{Name: "top", Value: 30, Usage: "best entries verified per player, 0 to skip"},
			chartsFlag,
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
		},
		Action: func(c *cli.Context) error {
			charts, err := loadCharts(c)
			if err != nil {
				return err
			}
			_, err = loadgen.Run(c.Context, &loadgen.Config{
				BaseURL: c.String("url"),
				Jobs:    c.Int("jobs"),
				Players: c.Int("players"),
				Records: c.Int("records"),
				Workers: c.Int("workers"),
				Timeout: c.Duration("timeout"),
				Seed:    c.Uint64("seed"),
				Wait:    c.Duration("wait"),
				TopN:    c.Int("top"),
				Charts:  charts,
				Verbose: c.Bool("verbose"),
			})
			return err
		},
	}
}
