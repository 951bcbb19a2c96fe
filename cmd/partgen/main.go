// partgen builds parts and part scripts into GLB files from the command
// line, using the same parser and kernel as the voxcad server.
//
// Usage:
//
//	partgen list
//	partgen build flange plate --out ./out
//	partgen run examples/gearbox.lisp --out ./out
//	partgen parse "生成一个20齿模数1.5的齿轮"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "partgen: %v\n", err)
		os.Exit(1)
	}
}
