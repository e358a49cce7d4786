// Package main provides the CLI entry point for ellipsisctl.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/ellipsis-render/internal/apiclient"
	"github.com/JoobyPM/ellipsis-render/internal/config"
	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
	"github.com/JoobyPM/ellipsis-render/internal/httpapi"
	"github.com/JoobyPM/ellipsis-render/internal/logging"
	"github.com/JoobyPM/ellipsis-render/internal/stringutil"
	"github.com/JoobyPM/ellipsis-render/internal/tui"
)

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputText = "text"
)

// Exit codes:
//   - exitValidation: invalid flags, config or input
//   - exitServer: the remote render server failed or was unreachable
//   - exitWrite: a file could not be written
const (
	exitValidation = 1
	exitServer     = 2
	exitWrite      = 3
)

// ExitError is an error that carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitErr(code int, msg string) error {
	return &ExitError{Code: code, Message: msg}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitError *ExitError
		if errors.As(err, &exitError) {
			os.Exit(exitError.Code)
		}
		os.Exit(1)
	}
}

// app holds flag values and the lazily loaded config for one command tree.
type app struct {
	configPath string
	logLevel   string

	cutoff     int
	wordBreak  bool
	escapeHTML bool
	column     string
	mode       string
	output     string
	server     string
	timeout    time.Duration

	configOutput string
	initPath     string
	initForce    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ellipsisctl",
		Short: "Shorten table cell values for display",
		Long: `ellipsisctl renders values the way a table column shows them: text longer
than the cutoff is shortened, an ellipsis is appended and the result is wrapped
in a span whose title carries the full text.

Values are rendered locally unless --server points at an ellipsisd instance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Custom config file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	renderCmd := &cobra.Command{
		Use:   "render [values...]",
		Short: "Render values (reads stdin lines when no values are given)",
		Example: `  ellipsisctl render --cutoff 17 --word-break "The quick brown fox jumps"
  ellipsisctl render --cutoff 10 "<b>Supercalifragilistic</b>"
  cat notes.txt | ellipsisctl render --column notes -o json`,
		RunE: a.runRender,
	}
	renderCmd.Flags().IntVarP(&a.cutoff, "cutoff", "c", 0, "Maximum characters before truncation")
	renderCmd.Flags().BoolVarP(&a.wordBreak, "word-break", "w", false, "Do not cut inside a word")
	renderCmd.Flags().BoolVarP(&a.escapeHTML, "escape-html", "e", false, "Escape &, <, > and \" in shortened text")
	renderCmd.Flags().StringVar(&a.column, "column", "", "Use the renderer settings of a configured column")
	renderCmd.Flags().StringVarP(&a.mode, "mode", "m", string(ellipsis.ModeDisplay), "Render mode: display, sort, type, filter")
	renderCmd.Flags().StringVarP(&a.output, "output", "o", outputText, "Output format (text, json, yaml)")
	renderCmd.Flags().StringVar(&a.server, "server", "", "Render through an ellipsisd server at this URL")
	renderCmd.Flags().DurationVar(&a.timeout, "timeout", apiclient.DefaultTimeout, "Server request timeout")

	previewCmd := &cobra.Command{
		Use:   "preview [value]",
		Short: "Interactively preview rendering",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runPreview,
	}
	previewCmd.Flags().IntVarP(&a.cutoff, "cutoff", "c", 0, "Initial cutoff")
	previewCmd.Flags().StringVar(&a.column, "column", "", "Start from a configured column's settings")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect ellipsis configuration",
		Long: `Configuration is loaded from multiple sources with the following precedence (highest to lowest):
1. CLI flags (--cutoff, --word-break, --escape-html, --log-level)
2. Environment variables (ELLIPSIS_CUTOFF, ELLIPSIS_WORD_BREAK, ELLIPSIS_ESCAPE_HTML,
   ELLIPSIS_LISTEN, ELLIPSIS_LOG_LEVEL, ELLIPSIS_LOG_FORMAT)
3. Project config (.ellipsis.yaml, searched up to the git root)
4. Global config (~/.config/ellipsis/config.yaml)
5. Built-in defaults`,
	}
	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show resolved configuration",
		RunE:  a.runConfigShow,
	}
	configShowCmd.Flags().StringVarP(&a.configOutput, "output", "o", outputYAML, "Output format (yaml, json)")
	configPathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Show which config files were found",
		RunE:  a.runConfigPaths,
	}

	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project config in the current directory",
		Long: `Write a .ellipsis.yaml with the built-in defaults to the current directory.
The file is picked up by every command run inside the project.`,
		Args: cobra.NoArgs,
		RunE: a.runConfigInit,
	}
	configInitCmd.Flags().StringVar(&a.initPath, "path", config.ProjectConfigFile, "File to write")
	configInitCmd.Flags().BoolVar(&a.initForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configPathsCmd, configInitCmd)
	root.AddCommand(renderCmd, previewCmd, configCmd)
	return root
}

// initConfig loads the configuration once and installs the logger.
func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(config.LoadOptions{ExplicitPath: a.configPath})
	if err != nil {
		return exitErr(exitValidation, fmt.Sprintf("load config: %v", err))
	}
	cfg.ApplyCLIOverrides(config.CLIOverrides{LogLevel: a.logLevel})
	if err := cfg.Validate(); err != nil {
		return exitErr(exitValidation, fmt.Sprintf("invalid config: %v", err))
	}

	logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	global, project := config.DiscoveredPaths()
	slog.Debug("config loaded", "global", global, "project", project, "explicit", a.configPath)

	a.cfg = cfg
	return nil
}

// rendererFlagsChanged reports whether any renderer option was set on the command line.
func rendererFlagsChanged(cmd *cobra.Command) bool {
	flags := cmd.Flags()
	return flags.Changed("cutoff") || flags.Changed("word-break") || flags.Changed("escape-html")
}

// rendererOptions resolves column settings and then applies changed flags.
func (a *app) rendererOptions(cmd *cobra.Command) (ellipsis.Options, error) {
	opts, err := a.cfg.RendererFor(a.column)
	if err != nil {
		return opts, exitErr(exitValidation, err.Error())
	}
	flags := cmd.Flags()
	if flags.Changed("cutoff") {
		opts.Cutoff = a.cutoff
	}
	if flags.Changed("word-break") {
		opts.WordBreak = a.wordBreak
	}
	if flags.Changed("escape-html") {
		opts.EscapeHTML = a.escapeHTML
	}
	if err := opts.Validate(); err != nil {
		return opts, exitErr(exitValidation, err.Error())
	}
	return opts, nil
}

// renderedRow pairs an input value with its rendered form.
type renderedRow struct {
	Value  string `json:"value" yaml:"value"`
	Result any    `json:"result" yaml:"result"`
}

func (a *app) runRender(cmd *cobra.Command, args []string) error {
	if err := a.initConfig(cmd); err != nil {
		return err
	}
	// Without renderer flags a remote render leaves the column to the server.
	var opts *ellipsis.Options
	if a.server == "" || rendererFlagsChanged(cmd) {
		resolved, err := a.rendererOptions(cmd)
		if err != nil {
			return err
		}
		opts = &resolved
	}
	mode, err := ellipsis.ParseMode(a.mode)
	if err != nil {
		return exitErr(exitValidation, err.Error())
	}
	switch a.output {
	case outputText, outputJSON, outputYAML:
	default:
		return exitErr(exitValidation, fmt.Sprintf("unknown output format %q", a.output))
	}

	values := args
	if len(values) == 0 {
		values, err = readLines(cmd.InOrStdin())
		if err != nil {
			return exitErr(exitValidation, fmt.Sprintf("read stdin: %v", err))
		}
	}

	var results []any
	if a.server != "" {
		results, err = a.renderRemote(cmd, opts, mode, values)
		if err != nil {
			return err
		}
	} else {
		renderer := ellipsis.MustNew(*opts)
		results = make([]any, len(values))
		for i, v := range values {
			results[i] = renderer.Render(v, mode, nil)
		}
	}

	if slog.Default().Enabled(cmd.Context(), slog.LevelDebug) {
		for _, v := range values {
			attrs := []any{
				"value", shortValue(v),
				"kind", ellipsis.Classify(v).Kind.String(),
				"column", a.column,
				"remote", a.server != "",
			}
			if opts != nil {
				attrs = append(attrs, "cutoff", opts.Cutoff)
			}
			slog.Debug("rendered value", attrs...)
		}
	}

	rows := make([]renderedRow, len(values))
	for i, v := range values {
		rows[i] = renderedRow{Value: v, Result: results[i]}
	}
	return writeRows(cmd.OutOrStdout(), a.output, rows)
}

// renderRemote sends values to the server. Explicit opts win over the column,
// which is otherwise resolved by the server's own config.
func (a *app) renderRemote(cmd *cobra.Command, opts *ellipsis.Options, mode ellipsis.Mode, values []string) ([]any, error) {
	req := httpapi.RenderRequest{Column: a.column, Cells: make([]httpapi.Cell, len(values))}
	if opts != nil {
		req.Column = ""
		req.Options = opts
	}
	for i, v := range values {
		req.Cells[i] = httpapi.Cell{Value: v, Mode: string(mode)}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	results, err := apiclient.New(a.server, a.timeout).Render(ctx, req)
	if err != nil {
		slog.Warn("remote render failed", "server", a.server, "error", err)
		return nil, exitErr(exitServer, fmt.Sprintf("render via %s: %v", a.server, err))
	}
	if len(results) != len(values) {
		return nil, exitErr(exitServer, fmt.Sprintf("server returned %d results for %d values", len(results), len(values)))
	}
	return results, nil
}

func (a *app) runPreview(cmd *cobra.Command, args []string) error {
	if err := a.initConfig(cmd); err != nil {
		return err
	}
	opts, err := a.rendererOptions(cmd)
	if err != nil {
		return err
	}
	initial := ""
	if len(args) == 1 {
		initial = args[0]
	}

	final, err := tui.Run(opts, initial)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cutoff: %d\nword_break: %t\nescape_html: %t\n",
		final.Cutoff, final.WordBreak, final.EscapeHTML)
	return nil
}

func (a *app) runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := a.initConfig(cmd); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch a.configOutput {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a.cfg)
	case outputYAML:
		fmt.Fprint(out, a.cfg.String())
		return nil
	default:
		return exitErr(exitValidation, fmt.Sprintf("unknown output format %q", a.configOutput))
	}
}

func (a *app) runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(a.initPath); err == nil && !a.initForce {
		return exitErr(exitValidation, fmt.Sprintf("config already exists: %s (use --force to overwrite)", a.initPath))
	}

	if err := config.New().SaveTo(a.initPath); err != nil {
		return exitErr(exitWrite, fmt.Sprintf("write config: %v", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", a.initPath)
	return nil
}

func (a *app) runConfigPaths(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	global, project := config.DiscoveredPaths()
	for _, p := range []struct{ label, path string }{
		{"Global", global},
		{"Project", project},
		{"Explicit", a.configPath},
	} {
		if p.path == "" {
			fmt.Fprintf(out, "%-9s (not found)\n", p.label+":")
			continue
		}
		fmt.Fprintf(out, "%-9s %s\n", p.label+":", p.path)
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func writeRows(w io.Writer, format string, rows []renderedRow) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case outputYAML:
		data, err := yaml.Marshal(rows)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		for _, r := range rows {
			fmt.Fprintln(w, textResult(r.Result))
		}
		return nil
	}
}

// textResult flattens a result to one output line.
func textResult(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, "\r\n") {
		s = strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(s)
	}
	return s
}

// shortValue keeps log lines readable for long inputs.
func shortValue(v string) string {
	return stringutil.Truncate(v, 40)
}
