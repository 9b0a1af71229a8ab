// Command ocr-tool recognizes the text in a PNG and translates it with the
// configured engine, without the tray resident.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/pipeline"
	"screen-translate/src/runtimeinit"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath     string
	jsonOutput   bool
	verbose      bool
	ocrOnly      bool
	envPath      string
	settingsPath string
	deeplKeyPath string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"ocr-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocr-tool",
		Short:         "Recognize and translate the text in a PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().BoolVar(&opts.ocrOnly, "ocr-only", false, "Print recognized text without translating")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")
	cmd.Flags().StringVar(&opts.settingsPath, "settings", "", "Path to settings.json")
	cmd.Flags().StringVar(&opts.deeplKeyPath, "deepl-key-file", "", "Path to the DeepL API key file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type textRecognizer interface {
	Ensure() error
	RecognizeErr(img image.Image) (string, error)
}

type tool struct {
	recognizer textRecognizer
	translator pipeline.Translator
	engine     string
	stdout     io.Writer
	stderr     io.Writer
	verbose    bool
}

func (t *tool) logf(format string, args ...any) {
	if t.verbose {
		fmt.Fprintf(t.stderr, "[verbose] "+format+"\n", args...)
	}
}

func runWithOptions(ctx context.Context, opts cliOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var console io.Writer = io.Discard
	if opts.verbose {
		console = stderr
		fmt.Fprintf(stderr, "[verbose] Starting OCR tool\n")
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			EnvPathOverride:      opts.envPath,
			SettingsPathOverride: opts.settingsPath,
			DeepLKeyPathOverride: opts.deeplKeyPath,
		},
		Console: console,
		Verbose: opts.verbose,
	})
	if err != nil {
		return err
	}
	defer rt.Recognizer.Close()

	s := rt.Store.Snapshot()
	t := &tool{
		recognizer: rt.Recognizer,
		translator: rt.Translator,
		engine:     s.Engine,
		stdout:     stdout,
		stderr:     stderr,
		verbose:    opts.verbose,
	}
	if opts.ocrOnly {
		t.translator = nil
	}
	t.logf("Settings: source=%s target=%s engine=%s auto_detect=%v", s.SourceLang, s.TargetLang, s.Engine, s.AutoDetectLang)

	data, err := readInput(opts.filePath, stdin)
	if err != nil {
		return err
	}
	t.logf("Read %d bytes", len(data))
	return t.process(ctx, data, opts.filePath, opts.jsonOutput)
}

func readInput(filePath string, stdin io.Reader) ([]byte, error) {
	if filePath == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return errors.New("input file is empty")
	}
	if len(data) > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return errors.New("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func (t *tool) process(ctx context.Context, data []byte, source string, jsonOutput bool) error {
	if err := validatePNG(data); err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode PNG: %w", err)
	}
	t.logf("PNG decoded: %v", img.Bounds())

	start := time.Now()
	if err := t.recognizer.Ensure(); err != nil {
		return fmt.Errorf("failed to initialize OCR: %w", err)
	}
	text, err := t.recognizer.RecognizeErr(img)
	if err != nil {
		return fmt.Errorf("OCR failed: %w", err)
	}
	t.logf("OCR extracted %d characters in %v", utf8.RuneCountInString(text), time.Since(start))

	var translated string
	if t.translator != nil && text != "" {
		translated, err = t.translator.Translate(ctx, text)
		if err != nil {
			return fmt.Errorf("translation failed: %w", err)
		}
		t.logf("Translation finished (%s)", t.engine)
	}
	return t.outputResult(text, translated, source, time.Since(start), jsonOutput)
}

type Result struct {
	Text        string  `json:"text"`
	Translation string  `json:"translation,omitempty"`
	Engine      string  `json:"engine,omitempty"`
	Source      string  `json:"source"`
	Timestamp   string  `json:"timestamp"`
	Duration    float64 `json:"duration_seconds"`
	CharCount   int     `json:"character_count"`
}

func (t *tool) outputResult(text, translated, source string, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		result := Result{
			Text:        text,
			Translation: translated,
			Source:      source,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Duration:    elapsed.Seconds(),
			CharCount:   utf8.RuneCountInString(text),
		}
		if translated != "" {
			result.Engine = t.engine
		}
		encoder := json.NewEncoder(t.stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	if t.translator == nil {
		fmt.Fprint(t.stdout, text)
		return nil
	}
	fmt.Fprint(t.stdout, translated)
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "ocr-only", "env", "settings", "deepl-key-file"} {
			single := "-" + name
			if arg == single || strings.HasPrefix(arg, single+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}
