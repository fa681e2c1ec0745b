package hubgen

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

// Dump writes v to w prefixed with the caller's file and line.
func Dump(w io.Writer, v ...any) {
	_, file, line, _ := runtime.Caller(1)
	args := append([]any{fmt.Sprintf("%s:%d:", file, line)}, v...)
	spew.Fdump(w, args...)
}
