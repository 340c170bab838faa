package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	mailpdf "github.com/porticus-lab/go-mail-pdf"
	"github.com/porticus-lab/go-mail-pdf/message"
)

// runConvert implements the "convert" command. The PDF goes next to the
// input file unless -o names another path; "-o -" writes to stdout.
func runConvert(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	outputFile := fs.StringP("output", "o", "", `output PDF path, "-" for stdout`)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file, got %d", fs.NArg())
	}
	inputFile := fs.Arg(0)

	format, err := message.DetectFormat(inputFile)
	if err != nil {
		return fmt.Errorf("%s: %w", inputFile, err)
	}

	in, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	conv, err := mailpdf.NewConverter(converterOptions(cfg)...)
	if err != nil {
		return err
	}
	defer conv.Close()

	ctx, stop := notifyContext()
	defer stop()

	res, msg, err := newPipeline(cfg, conv).Render(ctx, format, in)
	if err != nil {
		return fmt.Errorf("converting %s: %w", inputFile, err)
	}
	if !msg.HasBody {
		fmt.Fprintf(os.Stderr, "warning: %s has no HTML body, rendered placeholder\n", inputFile)
	}

	switch out := *outputFile; out {
	case "-":
		_, err = res.WriteTo(stdout)
		return err
	case "":
		out = strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + ".pdf"
		fallthrough
	default:
		if err := res.WriteNewFile(out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Fprintf(os.Stderr, "%s (%s)\n", out, humanize.Bytes(uint64(res.Len())))
		return nil
	}
}
