// Command behl is a thin embedding demonstration for the behl scripting
// runtime: it assembles a small hand-built prototype (standing in for the
// out-of-scope compiler front end), runs it on a fresh vm.State, and prints
// whatever it returns. It is not a language shell — parsing source text is
// explicitly out of scope (spec.md §1).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/vm"
)

func main() {
	cmd := &cli.Command{
		Name:  "behl",
		Usage: "run a hand-assembled behl demo script and print its results",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "demo", Value: "hello", Usage: "built-in demo to run: hello, counter, fib"},
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
			&cli.Int64Flag{Name: "gc-ceiling", Value: 64 << 20, Usage: "GC memory ceiling in bytes"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "behl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := zerolog.InfoLevel
	if cmd.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	s := vm.NewState(vm.WithLogger(logger), vm.WithMemoryCeiling(uint64(cmd.Int64("gc-ceiling"))))

	proto, err := buildDemo(cmd.String("demo"))
	if err != nil {
		return errors.Wrap(err, "build demo")
	}
	cl, err := s.NewClosure(proto)
	if err != nil {
		return errors.Wrap(err, "instantiate demo closure")
	}

	results, err := s.Call(rvalue.GCVal(rvalue.TClosure, cl))
	if err != nil {
		return errors.Wrap(err, "run demo")
	}

	for i, r := range results {
		str, err := s.ToStringMeta(r)
		if err != nil {
			return errors.Wrapf(err, "stringify result %d", i)
		}
		fmt.Println(str)
	}
	return nil
}

// buildDemo returns one of a few hand-assembled prototypes exercising a
// distinct corner of the runtime, since the real entry point — compiling
// source text — is out of scope.
func buildDemo(name string) (*proto.Prototype, error) {
	switch name {
	case "hello":
		b := asm.New("<demo:hello>", "main", 0, false)
		k := b.KStr("hello from behl")
		b.Reserve(1)
		b.LoadK(1, k)
		b.Return(1, 1)
		return b.Build(), nil
	case "counter":
		return buildCounterDemo(), nil
	case "fib":
		return buildFibDemo(), nil
	default:
		return nil, errors.Errorf("unknown demo %q", name)
	}
}
