package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/frankwiersma/PowerPointKaraoke/internal/build"
	"github.com/frankwiersma/PowerPointKaraoke/internal/config"
	"github.com/frankwiersma/PowerPointKaraoke/internal/extract"
	"github.com/frankwiersma/PowerPointKaraoke/internal/model"
	"github.com/frankwiersma/PowerPointKaraoke/internal/pipeline"
	"github.com/frankwiersma/PowerPointKaraoke/internal/render"
	"github.com/frankwiersma/PowerPointKaraoke/internal/script"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
)

// app bundles the long-lived dependencies every command needs: config,
// logger, the content model, and the voice dispatch.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	model  model.ContentModel
	voices *speech.Dispatch

	closeLog func() error
}

// newApp loads the configuration and wires the external clients.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := build.NewLogger(build.LogConfig{
		Level: cfg.Logging.Level,
		Dir:   cfg.Logging.Dir,
	})
	if err != nil {
		return nil, err
	}

	gemini, err := model.NewGemini(ctx, model.GeminiConfig{
		APIKey: cfg.Model.APIKey,
		Model:  cfg.Model.Name,
	})
	if err != nil {
		closeLog()
		return nil, err
	}

	voices := speech.NewDispatch(speech.DispatchConfig{
		Dutch: speech.NewElevenLabs(speech.ElevenLabsConfig{
			APIKey: cfg.Speech.Dutch.APIKey,
		}),
		DutchVoice: cfg.Speech.Dutch.VoiceID,
		English: speech.NewAzureSpeech(speech.AzureSpeechConfig{
			APIKey: cfg.Speech.English.APIKey,
			Region: cfg.Speech.English.Region,
		}),
		EnglishVoice: cfg.Speech.English.VoiceID,
		Logger:       log.With("subsys", "speech"),
	})

	return &app{
		cfg:      cfg,
		log:      log,
		model:    gemini,
		voices:   voices,
		closeLog: closeLog,
	}, nil
}

// close flushes the log writer.
func (a *app) close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(os.Stderr, "close log: %v\n", err)
	}
}

// deck is one opened document with its session and producer.
type deck struct {
	doc  render.Document
	sess *session.Session
	prod *pipeline.Producer
}

// openDeck loads the PDF at path and builds the per-document pipeline.
func (a *app) openDeck(path string) (*deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck: %w", err)
	}

	doc, err := render.NewFitzLoader().Load(data)
	if err != nil {
		return nil, err
	}

	pages := doc.PageCount()
	if pages == 0 {
		doc.Close()
		return nil, fmt.Errorf("deck %s has no pages", path)
	}

	sess := session.New(pages, a.log.With("subsys", "session"))
	prod := pipeline.NewProducer(pipeline.ProducerConfig{
		Session:  sess,
		Document: doc,
		Extractor: extract.New(extract.Config{
			Model:  a.model,
			Logger: a.log.With("subsys", "extract"),
		}),
		Scripts: script.New(script.Config{
			Model:  a.model,
			Logger: a.log.With("subsys", "script"),
		}),
		Voices: a.voices,
		Logger: a.log.With("subsys", "pipeline"),
	})

	return &deck{doc: doc, sess: sess, prod: prod}, nil
}

// close releases the document and every cached audio asset.
func (d *deck) close() {
	d.sess.Reset(0)
	d.doc.Close()
}
