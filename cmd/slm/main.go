// Command slm runs sound level meter analysis over a WAV file and
// prints equivalent-level statistics.
//
// Usage:
//
//	slm [flags] file.wav
//
// Examples:
//
//	slm recording.wav
//	slm -weighting C -speed slow recording.wav
//	slm -bands third -order 24 recording.wav
//	slm -standard osha -cal 1.8 recording.wav
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-slm/dsp/filter/bank"
	"github.com/cwbudde/algo-slm/dsp/filter/weighting"
	"github.com/cwbudde/algo-slm/measure/slm"
	"github.com/cwbudde/algo-slm/stats/leq"
)

func main() {
	weightFlag := flag.String("weighting", "A", "frequency weighting: A, C or Z")
	speedFlag := flag.String("speed", "fast", "detector response: fast, slow or impulse")
	blockMS := flag.Float64("block", 125, "analysis block size in milliseconds")
	bandsFlag := flag.String("bands", "none", "band analysis: none, octave or third")
	order := flag.Int("order", 24, "band filter order")
	cal := flag.Float64("cal", 1, "calibration factor applied before filtering")
	standardFlag := flag.String("standard", "niosh", "dose standard: niosh or osha")
	integration := flag.Float64("integration", 1, "history bin duration in seconds")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: slm [flags] file.wav\n\n")
		fmt.Fprintf(os.Stderr, "Runs sound level meter analysis over a WAV file.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := parseFlags(*weightFlag, *speedFlag, *bandsFlag, *standardFlag)
	if err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), cfg, *blockMS, *order, *cal, *integration); err != nil {
		slog.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

type cliConfig struct {
	weighting weighting.Type
	speed     slm.ResponseSpeed
	bands     bool
	bandRes   bank.Resolution
	standard  leq.DoseStandard
}

func parseFlags(weight, speed, bands, standard string) (cliConfig, error) {
	var cfg cliConfig

	switch strings.ToUpper(weight) {
	case "A":
		cfg.weighting = weighting.TypeA
	case "C":
		cfg.weighting = weighting.TypeC
	case "Z":
		cfg.weighting = weighting.TypeZ
	default:
		return cfg, fmt.Errorf("unknown weighting %q", weight)
	}

	switch strings.ToLower(speed) {
	case "fast":
		cfg.speed = slm.SpeedFast
	case "slow":
		cfg.speed = slm.SpeedSlow
	case "impulse":
		cfg.speed = slm.SpeedImpulse
	default:
		return cfg, fmt.Errorf("unknown response speed %q", speed)
	}

	switch strings.ToLower(bands) {
	case "none":
	case "octave":
		cfg.bands = true
		cfg.bandRes = bank.ResolutionOctave
	case "third":
		cfg.bands = true
		cfg.bandRes = bank.ResolutionThird
	default:
		return cfg, fmt.Errorf("unknown band resolution %q", bands)
	}

	switch strings.ToLower(standard) {
	case "niosh":
		cfg.standard = leq.NIOSH
	case "osha":
		cfg.standard = leq.OSHA
	default:
		return cfg, fmt.Errorf("unknown dose standard %q", standard)
	}

	return cfg, nil
}

func run(ctx context.Context, path string, cfg cliConfig, blockMS float64, order int, cal, integration float64) error {
	src, err := slm.OpenWAV(path)
	if err != nil {
		return err
	}

	opts := []slm.Option{
		slm.WithWeighting(cfg.weighting),
		slm.WithSpeed(cfg.speed),
		slm.WithBlockSize(blockMS),
		slm.WithCalibration(cal),
	}
	if cfg.bands {
		opts = append(opts, slm.WithBandAnalysis(cfg.bandRes, order))
	}

	analyzer, err := slm.NewAnalyzer(src, opts...)
	if err != nil {
		src.Close()
		return err
	}

	slog.Info("analyzing", "file", path,
		"sample_rate", src.SampleRate(),
		"weighting", cfg.weighting,
		"blocks", analyzer.TotalBlocks())

	stream, err := analyzer.Run(ctx)
	if err != nil {
		src.Close()
		return err
	}
	defer stream.Close()

	var (
		blocks []leq.Block
		last   slm.BlockResult
	)
	for {
		r, ok := stream.Next()
		if !ok {
			break
		}
		blocks = append(blocks, leq.Block{Time: r.Time, Leq: r.Leq})
		last = r
	}
	if err := stream.Err(); err != nil {
		return err
	}

	stats, err := leq.Calculate(blocks,
		leq.WithBlockDuration(blockMS/1000),
		leq.WithIntegrationTime(integration),
		leq.WithDoseStandard(cfg.standard),
	)
	if err != nil {
		return err
	}

	printStats(os.Stdout, stats)

	if cfg.bands && len(last.Bands) > 0 {
		printBands(os.Stdout, last)
	}

	return nil
}

func printStats(out *os.File, stats leq.Stats) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Leq\t%.1f dB\n", stats.Overall)
	fmt.Fprintf(w, "Lmax\t%.1f dB\n", stats.Max)
	fmt.Fprintf(w, "Lmin\t%.1f dB\n", stats.Min)
	for n := 10; n <= 90; n += 10 {
		fmt.Fprintf(w, "L%d\t%.1f dB\n", n, stats.Ln[n])
	}
	fmt.Fprintf(w, "Dose\t%.2f %%\n", stats.Dose.Percent)
	fmt.Fprintf(w, "TWA\t%.1f dB\n", stats.Dose.TWA)
	w.Flush()
}

func printBands(out *os.File, last slm.BlockResult) {
	fmt.Fprintln(out, "\nFinal block band levels:")
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for i, f := range last.BandFreqs {
		fmt.Fprintf(w, "%.0f Hz\t%.1f dB\n", f, last.Bands[i])
	}
	w.Flush()
}
