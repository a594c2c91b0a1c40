package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"pdf_autofill/pkg/core/cdm"
	"pdf_autofill/pkg/core/field"
	"pdf_autofill/pkg/core/llm"
	"pdf_autofill/pkg/core/mapping"
	"pdf_autofill/pkg/core/pdfio"
	"pdf_autofill/pkg/core/pipeline"
	"pdf_autofill/pkg/core/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	var (
		inPath       = flag.String("in", "", "input PDF with AcroForm fields (required)")
		outPath      = flag.String("out", "", "output PDF path (default: <in>_filled.pdf)")
		recordPath   = flag.String("record", "", "client record JSON file")
		clientID     = flag.String("client", "", "client id to load from the database")
		providerName = flag.String("provider", "gemini", "LLM provider: gemini, gemini-legacy, deepseek, qwen")
		modelName    = flag.String("model", "", "override the provider's default model")
		formType     = flag.String("form-type", "", "short description of the form, e.g. 'brokerage account transfer'")
		chunkSize    = flag.Int("chunk-size", field.DefaultChunkSize, "fields per LLM call")
		concurrency  = flag.Int("concurrency", 4, "max chunk analyses in flight")
		rulesPath    = flag.String("rules", "", "normalizer rule table YAML (default: built-in)")
		vocabPath    = flag.String("vocab", "", "classification vocab YAML (default: built-in)")
		cacheDir     = flag.String("cache-dir", "", "mapping cache directory (default: .cache/mappings)")
		noCache      = flag.Bool("no-cache", false, "disable the mapping cache")
		offline      = flag.Bool("offline", false, "use the deterministic rule analyzer instead of an LLM")
		flatten      = flag.Bool("flatten", false, "mark filled fields read-only")
		demo         = flag.Bool("demo", false, "use the built-in sample client record")
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal("Error: -in is required.")
	}
	if *outPath == "" {
		*outPath = strings.TrimSuffix(*inPath, ".pdf") + "_filled.pdf"
	}

	ctx := context.Background()

	values, err := loadStore(ctx, *recordPath, *clientID, *demo)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("CDM store loaded: %d keys, %d with values\n", len(values.Keys()), len(values.AvailableKeys()))

	fields, err := pdfio.ListFormFields(*inPath)
	if err != nil {
		log.Fatalf("Error: failed to list form fields: %v", err)
	}
	field.SortByPosition(fields)

	pageText, err := pdfio.ExtractPageText(*inPath)
	if err != nil {
		fmt.Printf("Warning: page text extraction failed: %v. Classifying without page context.\n", err)
	}

	normalizer, err := loadNormalizer(*rulesPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	analyzer, err := buildAnalyzer(*offline, *providerName, *modelName, *vocabPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	cfg := pipeline.DefaultConfig()
	cfg.FormType = *formType
	cfg.ChunkSize = *chunkSize
	cfg.MaxInFlight = *concurrency

	orch := pipeline.NewOrchestrator(analyzer, normalizer, cfg)
	formID := ""
	if !*noCache {
		formID = strings.TrimSuffix(filepath.Base(*inPath), ".pdf")
		orch.SetCache(store.NewMappingCache(store.GetPool(), *cacheDir, *providerName))
	}

	result, err := orch.Run(ctx, formID, fields, values, pageText)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	filled, failures, err := pdfio.FillAcroForm(*inPath, *outPath, result.Instructions)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	result.Summary.Filled = filled
	result.Summary.WriteFailed = len(failures)

	if *flatten {
		if err := pdfio.Flatten(*outPath); err != nil {
			fmt.Printf("Warning: flatten failed: %v\n", err)
		}
	}

	result.Summary.Print()
	fmt.Printf("\nWrote %s\n", *outPath)
}

func loadStore(ctx context.Context, recordPath, clientID string, demo bool) (*cdm.Store, error) {
	switch {
	case demo:
		return cdm.SampleStore(), nil
	case recordPath != "":
		record, err := store.LoadClientRecordFile(recordPath)
		if err != nil {
			return nil, err
		}
		return buildStore(record)
	case clientID != "":
		if err := store.InitDB(ctx); err != nil {
			return nil, err
		}
		record, err := store.LoadClientRecord(ctx, store.GetPool(), clientID)
		if err != nil {
			return nil, err
		}
		return buildStore(record)
	}
	return nil, fmt.Errorf("one of -record, -client or -demo is required")
}

func buildStore(record map[string]string) (*cdm.Store, error) {
	builder, err := cdm.NewBuilder(nil)
	if err != nil {
		return nil, err
	}
	return builder.BuildFromRecord(record, nil), nil
}

func loadNormalizer(rulesPath string) (*field.Normalizer, error) {
	rules := field.DefaultRules()
	if rulesPath != "" {
		var err error
		rules, err = field.LoadRules(rulesPath)
		if err != nil {
			return nil, err
		}
	}
	return field.NewNormalizer(rules), nil
}

func buildAnalyzer(offline bool, providerName, modelName, vocabPath string) (mapping.FieldAnalyzer, error) {
	vocab := mapping.DefaultVocab()
	if vocabPath != "" {
		var err error
		vocab, err = mapping.LoadVocab(vocabPath)
		if err != nil {
			return nil, err
		}
	}
	if offline {
		return &mapping.RuleAnalyzer{Vocab: vocab}, nil
	}
	provider, err := llm.NewProvider(providerName, modelName)
	if err != nil {
		return nil, err
	}
	return mapping.NewEngine(provider, vocab), nil
}
