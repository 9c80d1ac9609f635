// Package bootstrap assembles the runtime dependency graph.
package bootstrap

import (
	"prepcam/internal/audio"
	"prepcam/internal/capture"
	"prepcam/internal/config"
	"prepcam/internal/export"
	"prepcam/internal/mood"
	"prepcam/internal/ports"
	"prepcam/internal/providers/deepgram"
	"prepcam/internal/providers/webspeech"
	"prepcam/internal/session"
	"prepcam/internal/template"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *session.Controller
	Registry   *template.Registry
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime. The bridge
// always serves synthesis and media capture; recognition is served by the
// bridge or by the Deepgram websocket recognizer, per configuration.
func Build(
	eventSink ports.EventSink,
	bridge *webspeech.Bridge,
	confirmer ports.Confirmer,
	prompter ports.TemplatePrompter,
) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	registry := template.NewRegistry()
	if err := registry.LoadDir(cfg.Templates.Dir); err != nil {
		return Services{}, err
	}

	var transcriber ports.Transcriber = bridge
	if cfg.Recognizer.Backend == config.RecognizerDeepgram {
		transcriber = deepgram.NewRecognizer(
			deepgram.Config{
				APIKey:      cfg.Deepgram.APIKey,
				APIBaseURL:  cfg.Deepgram.APIBaseURL,
				Model:       cfg.Deepgram.Model,
				SmartFormat: cfg.Deepgram.SmartFormat,
			},
			audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			cfg.Audio.ChunkSize,
		)
	}

	coordinator := capture.NewCoordinator(transcriber, bridge, eventSink, cfg.Session.FlushWait)

	controller := session.NewController(
		registry,
		bridge,
		coordinator,
		mood.KeywordClassifier{},
		confirmer,
		prompter,
		export.NewComposer(),
		eventSink,
		session.Config{
			AnswerSeconds: cfg.Session.AnswerSeconds,
			TickInterval:  cfg.Session.TickInterval,
			Locales:       session.DefaultLocales(),
		},
	)

	return Services{Controller: controller, Registry: registry, Config: cfg}, nil
}
