package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).ExecuteContext(context.Background())
	if cerr := a.close(); cerr != nil {
		slog.Error("SHUTDOWN: Failed to release resources", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
