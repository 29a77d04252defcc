/*
Copyright © 2026 DesiroReboot <desiroreboot@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/chunker"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/consensus"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/detector"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/dispatch"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/history"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/logx"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/placeholder"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/quality"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/repair"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/selection"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/store"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/threshold"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/transducer"
)

var (
	inputFile   string
	outputFile  string
	sourceLang  string
	targetLang  string
	credentials string
	projectID   string

	serviceName   string
	ollamaURL     string
	ollamaModel   string
	mymemoryEmail string

	nodeCount     int
	nodeTimeout   time.Duration
	globalTimeout time.Duration
	maxRetries    int
	retryDelay    time.Duration

	relativeCutoff float64
	absoluteMargin float64

	thresholdStrategy string
	thresholdWindow   int
	thresholdMargin   float64
	thresholdPct      float64
	minSamples        int
	repairBand        float64
	staticAccept      float64
	staticRepair      float64

	useRepair   bool
	repairModel string
	repairURL   string
	maxRepairs  int

	historyPath string
	sourceTag   string

	dbPath         string
	noCache        bool
	fuzzyThreshold float64

	chunkSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transduce a text with consensus quality control",
	Long: `Transduce the input text by fanning the request out across several
identical nodes of one backend, discarding candidates the others disagree
with, scoring the winner against cutoffs derived from past runs, and
repairing borderline outputs before accepting them.

Available backends:
  - google    Google Translate (requires credentials)
  - ollama    Ollama LLM (self-hosted)
  - mymemory  MyMemory (free, 5000 chars/day)

Long inputs are split at paragraph and sentence boundaries and each
segment goes through the full pipeline on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		// Bound to the flags in init; config-file values win when the
		// flag was left at its default.
		historyPath = viper.GetString("history.path")
		dbPath = viper.GetString("store.path")

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(raw)

		ctx := context.Background()

		if sourceLang == "auto" {
			det := detector.New()
			if detected, ok := det.DetectISO(text); ok {
				sourceLang = detected
				log.Info().Str("lang", sourceLang).Msg("detected source language")
			}
		}

		var db *store.Store
		if !noCache && dbPath != "" {
			db, err = store.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			cached, found, cacheErr := db.GetCachedResult(ctx, text, sourceLang, targetLang)
			if cacheErr == nil && !found {
				cached, found, cacheErr = db.FuzzyGetCachedResult(ctx, text, sourceLang, targetLang, fuzzyThreshold)
			}
			if cacheErr == nil && found {
				log.Info().Msg("using cached result")
				return writeOutput(outputFile, cached)
			}
		}

		service, err := buildService(serviceName, ollamaModel, ollamaURL, mymemoryEmail)
		if err != nil {
			return err
		}
		svcCfg := transducer.ServiceConfig{
			Credentials: credentials,
			ProjectID:   projectID,
			BaseURL:     ollamaURL,
			Timeout:     nodeTimeout,
		}

		dispatcher := dispatch.New(service, svcCfg, dispatch.Config{
			NodeCount:     nodeCount,
			NodeTimeout:   nodeTimeout,
			GlobalTimeout: globalTimeout,
			MaxAttempts:   maxRetries,
			RetryDelay:    retryDelay,
		}, logx.For(log, "dispatch"))

		filter := consensus.New(consensus.Config{
			RelativeCutoff: relativeCutoff,
			AbsoluteMargin: absoluteMargin,
		})

		weights := quality.DefaultWeights()
		if viper.IsSet("quality.weights") {
			if err := viper.UnmarshalKey("quality.weights", &weights); err != nil {
				return fmt.Errorf("invalid quality.weights in config: %w", err)
			}
		}
		scorer, err := quality.New(quality.Config{
			Weights:      weights,
			ExpectedLang: targetLang,
		})
		if err != nil {
			return fmt.Errorf("failed to build quality scorer: %w", err)
		}

		engine, err := threshold.New(threshold.Config{
			Strategy:     threshold.Strategy(thresholdStrategy),
			Window:       thresholdWindow,
			Margin:       thresholdMargin,
			Percentile:   thresholdPct,
			MinSamples:   minSamples,
			RepairBand:   repairBand,
			StaticAccept: staticAccept,
			StaticRepair: staticRepair,
		})
		if err != nil {
			return err
		}

		hist, err := history.Open(historyPath, logx.For(log, "history"))
		if err != nil {
			return fmt.Errorf("failed to open score history: %w", err)
		}

		var repairer repair.Repairer
		if useRepair {
			repairer = repair.NewOllamaRepairer(repairModel, repairURL)
		}

		controller := selection.New(dispatcher, filter, scorer, engine, hist, repairer,
			selection.Config{MaxRepairs: maxRepairs, SourceTag: sourceTag}, logx.For(log, "selection"))

		reqID := uuid.New().String()
		if db != nil {
			_ = db.SaveRequest(ctx, internal.TransductionRequest{
				ID:         reqID,
				Payload:    text,
				SourceLang: sourceLang,
				TargetLang: targetLang,
				SourceTag:  sourceTag,
				Timestamp:  time.Now(),
			})
		}

		protected, markers := placeholder.Protect(text)
		if len(markers) > 0 {
			log.Debug().Int("markers", len(markers)).Msg("protected non-transducible content")
		}

		segments := chunker.Split(protected, chunkSize)
		if len(segments) > 1 {
			log.Info().Int("segments", len(segments)).Msg("input split into segments")
		}

		outputs := make([]string, 0, len(segments))
		scores := make([]float64, 0, len(segments))
		repairedAny := false

		for i, seg := range segments {
			payload := transducer.Payload{
				Text:       seg,
				SourceLang: sourceLang,
				TargetLang: targetLang,
			}
			if i > 0 {
				payload.Hints = map[string]string{
					"context": chunker.ExtractContext(outputs[i-1], 0),
				}
			}

			res, err := controller.Run(ctx, payload)
			if err != nil {
				var qerr *selection.QualityInsufficientError
				if errors.As(err, &qerr) {
					return fmt.Errorf("segment %d/%d rejected: output scored %.1f against accept cutoff %.1f",
						i+1, len(segments), qerr.Score.Composite, qerr.Audit.Threshold.AcceptCutoff)
				}
				return err
			}

			outputs = append(outputs, res.Text)
			scores = append(scores, res.Score.Composite)
			repairedAny = repairedAny || res.Repaired

			if db != nil {
				segID := reqID
				if len(segments) > 1 {
					segID = fmt.Sprintf("%s_s%d", reqID, i)
				}
				for _, m := range res.Audit.Members {
					_ = db.SaveNodeResult(ctx, segID, m.Candidate, m.Coefficient, m.Excluded)
				}
				_ = db.SaveSelection(ctx, store.Selection{
					RequestID:      segID,
					FinalText:      res.Text,
					CompositeScore: res.Score.Composite,
					AcceptCutoff:   res.Audit.Threshold.AcceptCutoff,
					RepairCutoff:   res.Audit.Threshold.RepairCutoff,
					Repaired:       res.Repaired,
					RepairAttempts: res.Audit.RepairAttempts,
					Unverified:     res.Audit.Unverified,
				})
			}
		}

		finalText := placeholder.Restore(strings.Join(outputs, "\n\n"), markers)
		composite := chunker.WeightedComposite(segments, scores)

		if db != nil {
			_ = db.SaveToMemory(ctx, text, sourceLang, targetLang, finalText, composite)
		}

		if err := writeOutput(outputFile, finalText); err != nil {
			return err
		}

		fmt.Printf("Transduction complete: %s -> %s\n", sourceLang, targetLang)
		fmt.Printf("Composite score: %.1f\n", composite)
		if repairedAny {
			fmt.Printf("Repair pass applied\n")
		}
		return nil
	},
}

func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to transduce (required)")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (required)")
	runCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	runCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	runCmd.Flags().StringVarP(&credentials, "credentials", "c", "", "Path to Google Cloud credentials")
	runCmd.Flags().StringVarP(&projectID, "project", "p", "", "Google Cloud Project ID")

	runCmd.Flags().StringVar(&serviceName, "backend", "google", "Transduction backend (google|ollama|mymemory)")
	runCmd.Flags().StringVar(&ollamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	runCmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "Ollama model name")
	runCmd.Flags().StringVar(&mymemoryEmail, "mymemory-email", "", "MyMemory email (for higher limits)")

	runCmd.Flags().IntVar(&nodeCount, "nodes", 3, "Number of parallel nodes to fan out across")
	runCmd.Flags().DurationVar(&nodeTimeout, "node-timeout", 30*time.Second, "Per-node timeout")
	runCmd.Flags().DurationVar(&globalTimeout, "global-timeout", 0, "Whole-request timeout (0 = none)")
	runCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Total attempts per node including the first (1 = no retries)")
	runCmd.Flags().DurationVar(&retryDelay, "retry-delay", 500*time.Millisecond, "Delay between retries")

	runCmd.Flags().Float64Var(&relativeCutoff, "relative-cutoff", 0.5, "Exclude candidates below this fraction of the mean agreement")
	runCmd.Flags().Float64Var(&absoluteMargin, "absolute-margin", 0.35, "Exclude candidates this far below the top agreement")

	runCmd.Flags().StringVar(&thresholdStrategy, "threshold-strategy", "moving_avg", "Cutoff strategy (moving_avg|percentile)")
	runCmd.Flags().IntVar(&thresholdWindow, "threshold-window", 20, "History records considered per cutoff")
	runCmd.Flags().Float64Var(&thresholdMargin, "threshold-margin", 5, "Margin below the moving average")
	runCmd.Flags().Float64Var(&thresholdPct, "threshold-percentile", 25, "Percentile used by the percentile strategy")
	runCmd.Flags().IntVar(&minSamples, "min-samples", 5, "History records required before cutoffs adapt")
	runCmd.Flags().Float64Var(&repairBand, "repair-band", 20, "Width of the repairable band below the accept cutoff")
	runCmd.Flags().Float64Var(&staticAccept, "static-accept", 70, "Accept cutoff before enough history exists")
	runCmd.Flags().Float64Var(&staticRepair, "static-repair", 50, "Repair cutoff before enough history exists")

	runCmd.Flags().BoolVar(&useRepair, "repair", false, "Repair borderline outputs with a local LLM")
	runCmd.Flags().StringVar(&repairModel, "repair-model", "llama3.2", "Repair model name")
	runCmd.Flags().StringVar(&repairURL, "repair-url", "http://localhost:11434", "Repair Ollama URL")
	runCmd.Flags().IntVar(&maxRepairs, "max-repairs", 2, "Repair rounds allowed per segment")

	runCmd.Flags().StringVar(&historyPath, "history", "./data/scores.jsonl", "Score history file")
	runCmd.Flags().StringVar(&sourceTag, "source-tag", "cli", "Label written to history records")

	runCmd.Flags().StringVar(&dbPath, "db", "./data/vtrework.db", "Database path for audit trail and result memory")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable result memory cache")
	runCmd.Flags().Float64Var(&fuzzyThreshold, "fuzzy-threshold", 0, "Fuzzy cache match similarity (0 disables)")

	runCmd.Flags().IntVar(&chunkSize, "chunk-size", 4000, "Maximum runes per segment (0 = no splitting)")

	runCmd.MarkFlagRequired("input")
	runCmd.MarkFlagRequired("output")
	runCmd.MarkFlagRequired("target")

	viper.BindPFlag("history.path", runCmd.Flags().Lookup("history"))
	viper.BindPFlag("store.path", runCmd.Flags().Lookup("db"))
}
