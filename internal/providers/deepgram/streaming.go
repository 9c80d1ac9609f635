// Package deepgram implements continuous recognition over the Deepgram
// streaming websocket, fed by a local microphone capture. It is the
// alternative to the browser recognizer for environments without a usable
// Web Speech engine.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"prepcam/internal/domain"
	"prepcam/internal/ports"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

// Recognizer implements ports.Transcriber against Deepgram. Each Start opens
// one websocket and one microphone capture session; final utterances are
// surfaced as transcript events.
type Recognizer struct {
	cfg       Config
	capture   ports.AudioCapture
	audio     ports.AudioConfig
	chunkSize int
	log       *logrus.Entry
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, audio ports.AudioConfig, chunkSize int) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if chunkSize < 256 {
		chunkSize = 4096
	}
	return &Recognizer{
		cfg:       cfg,
		capture:   capture,
		audio:     audio,
		chunkSize: chunkSize,
		log:       logrus.WithField("component", "deepgram"),
	}
}

func (r *Recognizer) Start(ctx context.Context, languageTag string) (ports.RecognitionStream, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg, r.audio, languageTag)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	session, err := r.capture.Start(ctx, r.audio)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start microphone capture: %w", err)
	}

	s := &recognitionStream{
		conn:    conn,
		mic:     session,
		events:  make(chan domain.TranscriptEvent, 64),
		done:    make(chan struct{}),
		log:     r.log,
		chunkSz: r.chunkSize,
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pumpLoop()
	go func() {
		s.wg.Wait()
		_ = conn.Close()
		close(s.events)
		close(s.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type recognitionStream struct {
	conn    *websocket.Conn
	mic     ports.AudioSession
	events  chan domain.TranscriptEvent
	done    chan struct{}
	log     *logrus.Entry
	chunkSz int

	wg      sync.WaitGroup
	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *recognitionStream) Events() <-chan domain.TranscriptEvent { return s.events }

func (s *recognitionStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *recognitionStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.mic.Stop()
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return s.Err()
}

func (s *recognitionStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// pumpLoop streams microphone PCM to the websocket until the mic ends.
func (s *recognitionStream) pumpLoop() {
	defer s.wg.Done()

	buf := make([]byte, s.chunkSz)
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			s.writeMu.Lock()
			writeErr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n])
			s.writeMu.Unlock()
			if writeErr != nil {
				s.setErr(fmt.Errorf("failed to send audio: %w", writeErr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).Debug("microphone read ended")
			}
			s.writeMu.Lock()
			_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			s.writeMu.Unlock()
			return
		}
	}
}

func (s *recognitionStream) readLoop() {
	defer s.wg.Done()
	defer func() { _ = s.mic.Stop() }()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		// Only final results become transcript fragments; interim results
		// would double-accumulate.
		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		select {
		case s.events <- domain.TranscriptEvent{Text: transcript}:
		default:
		}
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, audio ports.AudioConfig, languageTag string) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if audio.SampleRate <= 0 {
		audio.SampleRate = 16000
	}
	if audio.Channels <= 0 {
		audio.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", audio.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", audio.Channels))
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if languageTag != "" {
		query.Set("language", languageTag)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
