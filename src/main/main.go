package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/control"
	"screen-translate/src/pipeline"
	"screen-translate/src/runtimeinit"
	"screen-translate/src/screenshot"
	"screen-translate/src/settings"
)

const appName = "screen-translate"

type mainOptions struct {
	runOnce      bool
	verbose      bool
	envPath      string
	settingsPath string
	deeplKeyPath string
}

func (o *mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		EnvPathOverride:      o.envPath,
		SettingsPathOverride: o.settingsPath,
		DeepLKeyPathOverride: o.deeplKeyPath,
	}
}

func main() {
	// DPI awareness must be set before any window or display query.
	enableDPIAwareness()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := normalizeLegacyArgs(os.Args)
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Continuously OCR a screen region and show its translation",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return runOnceCmd(cmd.Context(), opts, cmd.OutOrStdout())
			}
			return runResident(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Capture, recognize and translate once, print the result and exit")
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr at debug level")
	pf.StringVar(&opts.envPath, "env", "", "Path to .env file (highest precedence)")
	pf.StringVar(&opts.settingsPath, "settings", "", "Path to settings.json")
	pf.StringVar(&opts.deeplKeyPath, "deepl-key-file", "", "Path to the DeepL API key file")

	for _, a := range []struct {
		action control.Action
		short  string
	}{
		{control.ActionStart, "Start translating in the running instance"},
		{control.ActionStop, "Stop translating in the running instance"},
		{control.ActionToggle, "Toggle translating in the running instance"},
		{control.ActionReload, "Make the running instance re-read settings.json"},
	} {
		action := a.action
		cmd.AddCommand(&cobra.Command{
			Use:   string(action),
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return delegate(cmd.Context(), newResidentClient(opts), action, cmd.OutOrStdout())
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the running instance's loop status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newResidentClient(opts).Status(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	})
	cmd.AddCommand(newTranslateCmd(opts), newSettingsCmd(opts), newAPIKeyCmd(opts))
	return cmd
}

// residentClient is the part of control.Client the delegating commands use.
type residentClient interface {
	Do(ctx context.Context, action control.Action) (pipeline.Status, error)
	Status(ctx context.Context) (pipeline.Status, error)
}

func newResidentClient(opts *mainOptions) *control.Client {
	cfg, err := config.LoadWithOptions(opts.loadOptions())
	if err != nil || cfg == nil {
		return control.NewClient(config.DefaultControlPortStart, config.DefaultControlPortEnd)
	}
	return control.NewClient(cfg.ControlPortStart, cfg.ControlPortEnd)
}

func delegate(ctx context.Context, client residentClient, action control.Action, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := client.Do(ctx, action)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return printStatus(out, st)
}

func printStatus(out io.Writer, st pipeline.Status) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func newTranslateCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Translate text with the configured engine and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrapQuiet(opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			out := rt.Translator.Display(contextOrBackground(cmd.Context()), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newSettingsCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings.json",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			s, err := settings.Load(cfg.SettingsPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting, save it and notify the running instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			if err := setSetting(cfg.SettingsPath, args[0], args[1]); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(contextOrBackground(cmd.Context()), 3*time.Second)
			defer cancel()
			client := control.NewClient(cfg.ControlPortStart, cfg.ControlPortEnd)
			if _, err := client.Do(ctx, control.ActionReload); err != nil && !errors.Is(err, control.ErrNoResident) {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved, but the running instance did not reload: %v\n", err)
			}
			return nil
		},
	})
	return cmd
}

// setSetting loads path, applies key=raw and writes the file back. A corrupt
// file is not overwritten.
func setSetting(path, key, raw string) error {
	s, err := settings.Load(path)
	if err != nil {
		return err
	}
	store := settings.NewStore(s)
	if err := store.SetString(strings.ToUpper(strings.TrimSpace(key)), raw); err != nil {
		return err
	}
	return settings.Save(path, store.Snapshot())
}

func bootstrapQuiet(opts *mainOptions) (*runtimeinit.Runtime, error) {
	var console io.Writer = io.Discard
	if opts.verbose {
		console = os.Stderr
	}
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		Console:     console,
		Verbose:     opts.verbose,
	})
}

func runOnceCmd(ctx context.Context, opts *mainOptions, out io.Writer) error {
	rt, err := bootstrapQuiet(opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	return translateOnce(contextOrBackground(ctx), onceDeps{
		store:      rt.Store,
		capturer:   screenshot.Screen{},
		recognizer: rt.Recognizer,
		translator: rt.Translator,
	}, out)
}

type onceRecognizer interface {
	Ensure() error
	RecognizeErr(img image.Image) (string, error)
}

type onceDeps struct {
	store      *settings.Store
	capturer   pipeline.Capturer
	recognizer onceRecognizer
	translator pipeline.Translator
}

// translateOnce runs a single capture-recognize-translate pass and prints the
// translation.
func translateOnce(ctx context.Context, d onceDeps, out io.Writer) error {
	s := d.store.Snapshot()
	if s.Region == nil || !s.Region.Valid() {
		return errors.New("no capture region configured; set OCR_REGION first")
	}
	img, err := d.capturer.Capture(s.Region.Rect())
	if err != nil {
		return fmt.Errorf("capture %s: %w", s.Region, err)
	}
	if err := d.recognizer.Ensure(); err != nil {
		return fmt.Errorf("initialize OCR: %w", err)
	}
	text, err := d.recognizer.RecognizeErr(img)
	if err != nil {
		return fmt.Errorf("OCR failed: %w", err)
	}
	if text == "" {
		return errors.New("no text recognized in region")
	}
	translated, err := d.translator.Translate(ctx, text)
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}
	_, err = fmt.Fprintln(out, translated)
	return err
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normalizeLegacyArgs maps single-dash long flags (-run-once) to the
// double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return []string{appName}
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "verbose", "env", "settings", "deepl-key-file"} {
			single := "-" + name
			switch {
			case arg == single:
				normalized[i] = "-" + single
			case strings.HasPrefix(arg, single+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}
