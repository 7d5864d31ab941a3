package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/joshL1215/claude-helper/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}

// PrintSummary renders the outcome of an accept or revert.
func PrintSummary(s model.Summary) {
	Header("\n--- Summary ---")
	if s.Message != "" {
		Info("%s", s.Message)
	}
	printGroup(SuccessColor, "Created %d file(s):", s.Created)
	printGroup(SuccessColor, "Modified %d file(s):", s.Modified)
	printGroup(WarningColor, "Deleted %d file(s):", s.Deleted)
	printGroup(ErrorColor, "Failed %d file(s):", s.Failed)
	if len(s.Created) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Failed) == 0 && s.Message == "" {
		Info("Nothing to do.")
	}
}

func printGroup(c *color.Color, format string, paths []string) {
	if len(paths) == 0 {
		return
	}
	c.Fprintf(os.Stderr, format+"\n", len(paths))
	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "  - %s\n", p)
	}
}
