package cli

import (
	"io"
	"os"

	"github.com/fatih/color"
)

// Status lines go to stderr so stdout stays clean for the rendered review.
var (
	statusOut io.Writer = os.Stderr

	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed, color.Bold)
)

func info(format string, a ...any) {
	infoColor.Fprintf(statusOut, format+"\n", a...)
}

func success(format string, a ...any) {
	successColor.Fprintf(statusOut, format+"\n", a...)
}

func warn(format string, a ...any) {
	warnColor.Fprintf(statusOut, "Warning: "+format+"\n", a...)
}

func fail(format string, a ...any) {
	failColor.Fprintf(statusOut, "Error: "+format+"\n", a...)
}

// failf reports err and sets the process exit code.
func failf(code int, err error) {
	fail("%v", err)
	exitCode = code
}

