// Package console runs the operator prompt on standard input.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okian/ageguess/pkg/logger"
)

// Prompt is printed before every command is read.
const Prompt = "Type 'stop' to shutdown the server: "

const stopCommand = "stop"

// ErrRead reports a failure reading commands.
var ErrRead = errors.New("console read failed")

// Option applies a configuration option to Run.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Run prompts on out and reads line commands from in. "stop", in any case
// and surrounded by any whitespace, prints the shutdown notice, calls stop
// and returns. Other input is echoed back as an invalid command.
//
// Run also returns when ctx is done or in reaches EOF; neither calls stop.
// A blocked read on in is abandoned when ctx is done.
func Run(ctx context.Context, in io.Reader, out io.Writer, stop func(), opts ...Option) error {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	fmt.Fprint(out, Prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("%w: %w", ErrRead, err)
			}
			o.logger.Debug(ctx, "console input closed")
			return nil
		case line := <-lines:
			command := strings.ToLower(strings.TrimSpace(line))
			if command == stopCommand {
				fmt.Fprintln(out, "Shutting down the server")
				o.logger.Info(ctx, "stop requested from console")
				stop()
				return nil
			}
			fmt.Fprintf(out, "Invalid command: %s\n", command)
			fmt.Fprint(out, Prompt)
		}
	}
}
