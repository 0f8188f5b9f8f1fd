// Command scribe reads lightweight-markup documents into the Scribe IR.
// It parses, detects, validates and queries single files, batch-parses
// bundles, maintains a document catalog and serves the HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/core/plugins"
	"github.com/FocuswithJustin/Scribe/internal/config"
	"github.com/FocuswithJustin/Scribe/internal/logging"

	// Register every dialect reader.
	_ "github.com/FocuswithJustin/Scribe/internal/embedded"
)

var version = "0.1.0"

// maxInput bounds a single decompressed input file.
const maxInput = 256 << 20

// CLI defines the command-line interface for scribe.
type CLI struct {
	Config    string `name:"config" short:"c" help:"Configuration file (default: SCRIBE_CONFIG env var, then ./scribe.yaml)" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text, json"`

	Parse   ParseCmd     `cmd:"" help:"Parse a document and print its IR as JSON"`
	Detect  DetectCmd    `cmd:"" help:"Detect the dialect of a file"`
	Formats FormatsCmd   `cmd:"" help:"List registered readers"`
	Check   CheckCmd     `cmd:"" help:"Validate a document and print its loss report"`
	Query   QueryCmd     `cmd:"" help:"Evaluate an XPath expression over the XML view of a document"`
	Bundle  BundleCmd    `cmd:"" help:"Parse every document in a .tar.xz or .tar.gz bundle"`
	Catalog CatalogGroup `cmd:"" help:"Document catalog operations"`
	Serve   ServeCmd     `cmd:"" help:"Start the REST and websocket API server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// env is bound into every command's Run method.
type env struct {
	cli        *CLI
	cfg        *config.Config
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newParser(cli *CLI, stdout, stderr io.Writer, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("scribe"),
		kong.Description("Scribe - lightweight markup readers over a shared document IR"),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, options...)
	return kong.New(cli, options...)
}

// run parses args and executes the selected command.
func run(args []string, stdout, stderr io.Writer, options ...kong.Option) error {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr, options...)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	e := &env{cli: &cli, stdout: stdout, stderr: stderr}
	if err := e.setup(); err != nil {
		return err
	}
	return ctx.Run(e)
}

// setup loads the configuration, applies flag overrides, initialises
// logging and installs extra extension mappings.
func (e *env) setup() error {
	cfg, path, err := config.Resolve(e.cli.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if e.cli.LogLevel != "" {
		cfg.Log.Level = e.cli.LogLevel
	}
	if e.cli.LogFormat != "" {
		cfg.Log.Format = e.cli.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.InitLoggerTo(e.stderr, level, format)

	for ext, f := range cfg.Extensions {
		if err := plugins.MapExtension(ext, f); err != nil {
			return fmt.Errorf("extensions: %w", err)
		}
	}
	for _, p := range plugins.List() {
		logging.ReaderRegistered(p.Manifest.Format, p.Manifest.Version, "extensions", p.Manifest.Extensions)
	}
	e.cfg, e.configPath = cfg, path
	if path != "" {
		logging.Debug("config_loaded", "path", path)
	}
	return nil
}

// parseOptions returns the configured parse options with flag overrides.
func (e *env) parseOptions(spans, embed bool) ir.ParseOptions {
	opts := e.cfg.Parse.Options()
	opts.PreserveSourceInfo = opts.PreserveSourceInfo || spans
	opts.EmbedResources = opts.EmbedResources || embed
	return opts
}

// terminal reports whether w is an interactive terminal. Commands print
// tables to terminals and JSON otherwise.
func terminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// emit writes v as indented JSON unless asJSON is false and stdout is a
// terminal, in which case table renders it.
func (e *env) emit(v any, asJSON bool, table func(io.Writer) error) error {
	if table != nil && !asJSON && terminal(e.stdout) {
		return table(e.stdout)
	}
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.stdout, "scribe %s\n", version)
	fmt.Fprintf(e.stdout, "reader api %s\n", plugins.HostVersion)
	fmt.Fprintf(e.stdout, "sqlite %s\n", sqliteDriver())
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: error: %v\n", err)
		os.Exit(1)
	}
}
