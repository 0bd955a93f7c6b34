// Package evaluator runs the external field simulator as a cho.Evaluator.
package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long a killed simulator may keep its output pipes
// open through child processes.
const waitDelay = time.Second

// ErrNoOutput is returned when the simulator prints no score.
var ErrNoOutput = errors.New("simulator printed no score")

// Command evaluates a parameter vector by running one simulator process.
//
// The process is started as
//
//	<argv[0]> <argv[1:]...> <param_1> ... <param_d>
//
// with every parameter formatted with %.17g so that it round-trips exactly.
// The last non-empty line of stdout is the score; everything before it and
// all of stderr is diagnostic output.
type Command struct {
	argv    []string
	timeout time.Duration
	logger  *zap.Logger

	runs atomic.Int64
}

// NewCommand returns a Command running argv. timeout bounds a single run; 0
// means no limit besides the context. A nil logger disables logging.
func NewCommand(argv []string, timeout time.Duration, logger *zap.Logger) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("simulator command cannot be empty")
	}

	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", timeout)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		logger:  logger.Named("simulator"),
	}, nil
}

// Evaluate implements cho.Evaluator.
func (c *Command) Evaluate(ctx context.Context, params []float64) (float64, error) {
	run := c.runs.Add(1)

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, 0, len(c.argv)-1+len(params))
	args = append(args, c.argv[1:]...)

	for _, p := range params {
		args = append(args, strconv.FormatFloat(p, 'g', 17, 64))
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	c.logger.Debug("Running simulator",
		zap.Int64("run", run),
		zap.Float64s("params", params),
	)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if stderr.Len() > 0 {
		c.logger.Debug("Simulator stderr",
			zap.Int64("run", run),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
		)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("simulator run %d: %w", run, ctxErr)
		}

		return 0, fmt.Errorf("simulator run %d: %w", run, err)
	}

	score, err := parseScore(stdout.String())
	if err != nil {
		return 0, fmt.Errorf("simulator run %d: %w", run, err)
	}

	c.logger.Debug("Simulator finished",
		zap.Int64("run", run),
		zap.Float64("score", score),
		zap.Duration("elapsed", elapsed),
	)

	return score, nil
}

// Runs returns the number of processes started so far.
func (c *Command) Runs() int64 {
	return c.runs.Load()
}

// parseScore parses the last non-empty line of out.
func parseScore(out string) (float64, error) {
	lines := strings.Split(out, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		score, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score %q: %w", line, err)
		}

		return score, nil
	}

	return 0, ErrNoOutput
}
