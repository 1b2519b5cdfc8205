package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	exitWriter io.Writer = os.Stderr
	exitFunc             = os.Exit
)

// Exitf writes a formatted error message to stderr and exits with code 1.
// A trailing newline in format is not duplicated.
func Exitf(format string, args ...any) {
	fmt.Fprintf(exitWriter, strings.TrimRight(format, "\n")+"\n", args...)
	exitFunc(1)
}
