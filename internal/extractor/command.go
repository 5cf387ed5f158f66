package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/screenlens/screenlens/pkg/runerr"
)

// Command is the binary extractor: it runs a user-supplied export tool
// against a binary source library, then scans the tool's output directory
// the same way the text extractor does.
type Command struct {
	scan *Scan
}

func NewCommand() *Command {
	return &Command{scan: NewScan()}
}

func (c *Command) Name() string { return "binary" }

func (c *Command) Extract(ctx context.Context, inputPath, outDir string, opts Options) (*Manifest, error) {
	if opts.Command == "" {
		return nil, runerr.New(runerr.CodeInput, "binary extractor requires a command template")
	}

	exportDir := filepath.Join(outDir, "export")
	argv := buildArgv(opts.Command, inputPath, exportDir)
	if len(argv) == 0 {
		return nil, runerr.New(runerr.CodeInput, "empty extractor command template")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, runerr.Wrap(runerr.CodeCanceled, "extraction canceled", ctx.Err())
		}
		return nil, runerr.Wrap(runerr.CodeInput,
			fmt.Sprintf("extractor command failed: %s", strings.TrimSpace(string(output))), err)
	}

	m, err := c.scan.Extract(ctx, exportDir, outDir, Options{})
	if err != nil {
		return nil, err
	}
	m.SourceRoot = inputPath
	m.Extractor = c.Name()
	return m, nil
}

// buildArgv substitutes the {input} and {output} placeholders and splits
// the template on whitespace. Paths with spaces must be quoted out of the
// template by the caller; templates are trusted operator input.
func buildArgv(template, input, output string) []string {
	expanded := strings.ReplaceAll(template, "{input}", input)
	expanded = strings.ReplaceAll(expanded, "{output}", output)
	return strings.Fields(expanded)
}
