package main

import (
	"fmt"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/llm"
	"github.com/andrifs/subpipe/internal/media"
	"github.com/andrifs/subpipe/internal/pipeline"
	"github.com/andrifs/subpipe/internal/shield"
	"github.com/andrifs/subpipe/internal/termmap"
	"github.com/andrifs/subpipe/internal/timing"
	"github.com/andrifs/subpipe/internal/transcribe"
	"github.com/andrifs/subpipe/internal/translator"
)

// app bundles the wired components every subcommand needs.
type app struct {
	cfg   *config.Config
	store *checkpoint.Store
	pipe  *pipeline.Pipeline
}

// newApp loads config and wires the pipeline. The LLM-backed
// collaborators require LLM_API_KEY; videoTitle seeds the review prompt
// and may be empty in watch mode.
func newApp(videoTitle string) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	store, err := checkpoint.NewStore(cfg.Pipeline.CheckpointDir)
	if err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required (set it in the environment or a .env file)")
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}

	collab := pipeline.Collaborators{
		Transcriber: transcribe.NewWhisperCLI(cfg.Pipeline.WhisperCmd, cfg.Pipeline.WhisperModel),
		NewMedia:    media.NewOperator,
		Translator: translator.NewContextTranslator(client, translator.Options{
			BatchSize:  cfg.Translate.BatchSize,
			BatchDelay: cfg.Translate.BatchDelay,
			Premium:    cfg.Pipeline.FidelityPremium,
		}),
		Reviewer: shield.NewShield(client, shield.Options{
			BatchSize:  cfg.Translate.ReviewBatch,
			Confidence: cfg.Translate.Confidence,
			BatchDelay: cfg.Translate.BatchDelay,
			VideoTitle: videoTitle,
		}),
		Structure: timing.NewAnalyzer(client, 0, cfg.Translate.BatchDelay),
		Context:   termmap.NewGenerator(client),
	}

	pipe, err := pipeline.New(pipeline.Config{
		Timing:      cfg.Timing,
		OutputDir:   cfg.Pipeline.OutputDir,
		EmbedMethod: cfg.Pipeline.EmbedMethod,
		TargetLang:  langCode(cfg),
	}, store, collab)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, pipe: pipe}, nil
}

func langCode(cfg *config.Config) string {
	base, _ := cfg.Translate.TargetLanguage.Base()
	return base.String()
}
