// mailpdf converts Outlook .msg and RFC 5322 .eml messages to PDF.
//
// Usage:
//
//	mailpdf serve [options]
//	mailpdf convert [options] <file.eml|file.msg>
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// maxprocs.Set only fails on an invalid GOMAXPROCS value, in which
	// case the runtime default stays in effect.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `mailpdf - render email messages to PDF

Usage:
  mailpdf serve [options]
  mailpdf convert [options] <file.eml|file.msg>

Commands:
  serve     Run the HTTP upload server (POST /upload)
  convert   Convert a single local message file

Run "mailpdf <command> --help" for the options of a command.

Examples:
  mailpdf serve --port 3000 --no-sandbox
  mailpdf convert invoice.eml
  mailpdf convert -o - meeting.msg > meeting.pdf
`)
}
