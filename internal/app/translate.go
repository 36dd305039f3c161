package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ziedsayadi/Cvmodel/internal/cli"
	"github.com/ziedsayadi/Cvmodel/internal/docschema"
	"github.com/ziedsayadi/Cvmodel/internal/translate"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	lang := fs.String("lang", "", "Target language (ISO 639-1 code or name, for example: es, French)")
	mode := fs.String("mode", docschema.ModeDocument, "Translation mode: document or fields")
	stream := fs.Bool("stream", false, "Print progress while translating")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	output := fs.String("o", "", "Write the translated document to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		printTranslateUsage()
		return 2
	}

	targetLang := strings.TrimSpace(*lang)
	if targetLang == "" {
		fmt.Fprintln(os.Stderr, "--lang is required")
		return 2
	}

	switch *mode {
	case docschema.ModeDocument, docschema.ModeFields:
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s (want document or fields)\n", *mode)
		return 2
	}
	if *stream && *mode == docschema.ModeFields {
		fmt.Fprintln(os.Stderr, "--stream only supports document mode")
		return 2
	}

	inputPath := strings.TrimSpace(fs.Arg(0))
	document, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", inputPath, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	comps, err := buildComponents(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer comps.close()

	var translated json.RawMessage
	switch {
	case *stream:
		translated, err = streamToStderr(ctx, comps.pipeline, document, targetLang)
	case *mode == docschema.ModeFields:
		var result *translate.Result
		result, err = comps.pipeline.TranslateFields(ctx, document, targetLang)
		if result != nil {
			translated = result.Document
		}
	default:
		var result *translate.Result
		result, err = comps.pipeline.Translate(ctx, document, targetLang)
		if result != nil {
			translated = result.Document
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
		return 1
	}

	// Persist the fresh result before the process exits.
	if comps.store != nil {
		if err := comps.cache.Flush(ctx); err != nil {
			comps.logger.Warn().Err(err).Msg("cache flush failed")
		}
	}

	pretty, err := indentJSON(translated)
	if err != nil {
		pretty = translated
	}

	if *output != "" {
		if err := os.WriteFile(*output, append(pretty, '\n'), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *output, err)
			return 1
		}
		return 0
	}

	fmt.Println(string(pretty))
	return 0
}

// streamToStderr runs the streamed pipeline, printing progress to stderr and
// returning the reassembled document gathered from the chunk events.
func streamToStderr(ctx context.Context, pipeline *translate.Pipeline, document json.RawMessage, targetLang string) (json.RawMessage, error) {
	var chunks []string
	err := pipeline.Stream(ctx, document, targetLang, func(ev translate.ProgressEvent) error {
		switch ev.Kind {
		case translate.EventStart:
			fmt.Fprintf(os.Stderr, "Translating %d segments...\n", ev.SegmentCount)
		case translate.EventChunk:
			chunks = append(chunks, ev.Text)
			fmt.Fprintf(os.Stderr, "  segment %d done (%d%%)\n", ev.Index+1, ev.Percentage)
		case translate.EventError:
			fmt.Fprintf(os.Stderr, "Error: %s\n", ev.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	joined := translate.Heal(strings.Join(chunks, ""))
	parsed, err := translate.Parse(joined)
	if err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}

func indentJSON(raw json.RawMessage) (json.RawMessage, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return json.MarshalIndent(value, "", "  ")
}

func printTranslateUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  cvmodel translate <resume.json> --lang <lang> [--mode document|fields] [--stream] [-o out.json] [--env .env] [--timeout 10m]")
}
