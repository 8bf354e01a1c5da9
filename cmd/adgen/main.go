// Command adgen generates a single ad from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"adgenius/internal/compositor"
	"adgenius/internal/domain"
	"adgenius/internal/infra"
	"adgenius/internal/pipeline"
	"adgenius/internal/providers/genai"
)

// version is injected via ldflags at build time.
var version = "dev"

type generateFlags struct {
	image       string
	style       string
	ratio       string
	prompt      string
	tier        string
	out         string
	locale      string
	complex     bool
	printRecord bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "adgen",
		Short:         "Turn a product photo into a finished ad",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.AddCommand(newGenerateCmd(), newStylesCmd())
	return root
}

func newStylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the visual styles and aspect ratios",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STYLE\tNAME\tDESCRIPTION")
			for _, s := range domain.Styles() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Description)
			}
			fmt.Fprintln(tw, "\nRATIO\tLABEL\tCANVAS")
			for _, a := range domain.AspectRatios() {
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\n", a.ID, a.Label, a.Width, a.Height)
			}
			return tw.Flush()
		},
	}
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full pipeline and write the composited PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.image, "image", "i", "", "Path to the product photo (required)")
	flags.StringVarP(&f.style, "style", "s", string(domain.StyleStudio), "Visual style id or name")
	flags.StringVarP(&f.ratio, "ratio", "r", string(domain.AspectSquare), "Aspect ratio: 1:1, 9:16 or 16:9")
	flags.StringVarP(&f.prompt, "prompt", "p", "", "Custom instruction that replaces the generated scene prompt")
	flags.StringVar(&f.tier, "tier", string(domain.TierStandard), "Image tier: standard or high-fidelity")
	flags.StringVarP(&f.out, "out", "o", "", "Output path (default adgenius-<timestamp>.png)")
	flags.StringVar(&f.locale, "locale", "", "Language for the ad copy, e.g. de or pt-BR")
	flags.BoolVar(&f.complex, "complex", true, "Try the high-fidelity model for the strategy first")
	flags.BoolVar(&f.printRecord, "json", false, "Print the ad record as JSON")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runGenerate(cmd *cobra.Command, f *generateFlags) error {
	style, err := domain.ParseStyle(f.style)
	if err != nil {
		return err
	}
	aspect, err := domain.ParseAspectRatio(f.ratio)
	if err != nil {
		return err
	}
	tier, err := domain.ParseTier(f.tier)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(f.image)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	source := domain.NewImage(data, "")

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger("cli", cfg.LogLevel).With().Str("cmd", "adgen").Logger()

	provider, err := genai.NewClient(genai.Options{
		APIKey:            cfg.GeminiAPIKey,
		BaseURL:           cfg.GeminiBaseURL,
		TextModel:         cfg.GeminiTextModel,
		TextProModel:      cfg.GeminiTextProModel,
		ImageModel:        cfg.GeminiImageModel,
		ImageProModel:     cfg.GeminiImageProModel,
		RequestsPerSecond: cfg.GeminiRPS,
		Logger:            &logger,
	})
	if err != nil {
		return err
	}
	comp, err := compositor.New()
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	if provider.Synthetic() {
		fmt.Fprintln(errOut, "GEMINI_API_KEY not set; using synthetic content")
	}
	progress := func(ev pipeline.Event) {
		switch {
		case ev.Outcome == "":
			fmt.Fprintf(errOut, "%s...\n", ev.Stage)
		case ev.Degraded():
			fmt.Fprintf(errOut, "%s: using defaults (%s)\n", ev.Stage, ev.Error)
		}
	}

	pipe := pipeline.New(provider, pipeline.Options{Logger: &logger})
	record, err := pipe.Run(cmd.Context(), source, domain.GenerationRequest{
		Style:             style,
		AspectRatio:       aspect,
		CustomInstruction: f.prompt,
		Tier:              tier,
		ComplexStrategy:   f.complex,
		Locale:            f.locale,
	}, progress)
	if err != nil {
		return err
	}

	art, err := comp.ComposeAd(*record, time.Now())
	if err != nil {
		return err
	}
	outPath := f.out
	if outPath == "" {
		outPath = art.Filename
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(outPath, art.Data, 0o644); err != nil {
		return fmt.Errorf("write ad: %w", err)
	}

	out := cmd.OutOrStdout()
	if f.printRecord {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	fmt.Fprintf(out, "%s\n  %s\n  %s\n  [%s]\nwrote %s\n", record.Headline, record.Subheadline, record.CTA, record.Tier, outPath)
	return nil
}
