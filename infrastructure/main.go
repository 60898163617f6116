package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/logging"
	"github.com/thoughtful-python/infra/internal/stacks"
)

func main() {
	logger := logging.New(os.Stderr, logging.Component("infrastructure"))
	program := stacks.Program(logger)

	pulumi.Run(func(ctx *pulumi.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic occurred: %v", r)
			}
		}()

		logger.Info("starting pulumi program",
			slog.String("project", ctx.Project()),
			slog.String("stack", ctx.Stack()),
		)
		return program(ctx)
	})
}
