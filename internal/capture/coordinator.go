// Package capture bridges the continuous transcription stream and the
// recording stream into one answer capture cycle per question.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"prepcam/internal/domain"
	"prepcam/internal/ports"
)

// FragmentFunc receives each fragment together with the accumulated
// transcript of the owning cycle.
type FragmentFunc func(fragment string, transcript string)

// Coordinator owns the capture device for one session. The device is
// acquired lazily on the first cycle and shared by every later cycle; if
// acquisition fails the session degrades permanently to manual capture and
// the condition is reported exactly once.
type Coordinator struct {
	transcriber ports.Transcriber
	source      ports.MediaSource
	events      ports.EventSink
	flushWait   time.Duration
	log         *logrus.Entry

	mu       sync.Mutex
	device   ports.MediaDevice
	degraded bool
	open     *Cycle
}

func NewCoordinator(transcriber ports.Transcriber, source ports.MediaSource, events ports.EventSink, flushWait time.Duration) *Coordinator {
	if flushWait <= 0 {
		flushWait = 2 * time.Second
	}
	return &Coordinator{
		transcriber: transcriber,
		source:      source,
		events:      events,
		flushWait:   flushWait,
		log:         logrus.WithField("component", "capture"),
	}
}

// Cycle pairs one transcription subscription with one recording segment.
// Fragments and media chunks arriving after Close are discarded.
type Cycle struct {
	coord      *Coordinator
	ctx        context.Context
	cancel     context.CancelFunc
	language   string
	onFragment FragmentFunc

	mu         sync.Mutex
	closed     bool
	transcript string
	segment    ports.RecordingSegment
	stream     ports.RecognitionStream
}

// Open starts a capture cycle seeded with a checkpointed transcript. Opening
// a second cycle while one is open is a programming error and panics.
func (c *Coordinator) Open(ctx context.Context, language string, seed string, onFragment FragmentFunc) *Cycle {
	c.mu.Lock()
	if c.open != nil {
		c.mu.Unlock()
		panic("capture: cycle opened while another is still open")
	}

	if c.device == nil && !c.degraded {
		device, err := c.source.Acquire(ctx)
		if err != nil {
			c.degraded = true
			c.log.WithError(err).Warn("capture device unavailable, continuing without capture")
			c.events.SessionError(domain.ErrorCodeDeviceUnavailable, err.Error())
		} else {
			c.device = device
		}
	}
	device := c.device
	degraded := c.degraded

	cycleCtx, cancel := context.WithCancel(ctx)
	cycle := &Cycle{
		coord:      c,
		ctx:        cycleCtx,
		cancel:     cancel,
		language:   language,
		onFragment: onFragment,
		transcript: seed,
	}
	c.open = cycle
	c.mu.Unlock()

	if degraded || device == nil {
		return cycle
	}

	segment, err := device.Record()
	if err != nil {
		c.events.SessionError(domain.ErrorCodeRecording, "failed to start recording: "+err.Error())
	} else {
		cycle.mu.Lock()
		cycle.segment = segment
		cycle.mu.Unlock()
	}

	stream, err := c.transcriber.Start(cycleCtx, language)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeRecognition, "failed to start recognition: "+err.Error())
		return cycle
	}
	cycle.mu.Lock()
	cycle.stream = stream
	cycle.mu.Unlock()
	go cycle.consume(stream)

	return cycle
}

// Release closes the capture device at session end.
func (c *Coordinator) Release() {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.degraded = false
	c.mu.Unlock()

	if device != nil {
		if err := device.Release(); err != nil {
			c.log.WithError(err).Warn("failed to release capture device")
		}
	}
}

// Degraded reports whether capture has been disabled for this session.
func (c *Coordinator) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Transcript returns the accumulated transcript so far.
func (cy *Cycle) Transcript() string {
	cy.mu.Lock()
	defer cy.mu.Unlock()
	return cy.transcript
}

// Close ends the cycle, stopping recognition and recording. With flush set
// it awaits the assembled media artifact (bounded wait); the artifact is
// retrieved at most once per cycle. Closing twice is harmless.
func (cy *Cycle) Close(flush bool) (string, *domain.MediaArtifact) {
	cy.mu.Lock()
	if cy.closed {
		transcript := cy.transcript
		cy.mu.Unlock()
		return transcript, nil
	}
	cy.closed = true
	transcript := cy.transcript
	stream := cy.stream
	segment := cy.segment
	cy.stream = nil
	cy.segment = nil
	cy.mu.Unlock()

	cy.coord.mu.Lock()
	if cy.coord.open == cy {
		cy.coord.open = nil
	}
	cy.coord.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}

	var artifact *domain.MediaArtifact
	if segment != nil {
		if err := segment.Stop(); err != nil {
			cy.coord.events.SessionError(domain.ErrorCodeRecording, "failed to stop recording: "+err.Error())
		} else if flush {
			waitCtx, cancelWait := context.WithTimeout(context.Background(), cy.coord.flushWait)
			assembled, err := segment.Artifact(waitCtx)
			cancelWait()
			if err != nil {
				cy.coord.events.SessionError(domain.ErrorCodeRecording, "recording did not assemble: "+err.Error())
			} else if len(assembled.Data) > 0 {
				artifact = &assembled
			}
		}
	}

	cy.cancel()
	return transcript, artifact
}

// consume drains recognition streams for the cycle, restarting the stream
// when it ends spontaneously. A stream belonging to a closed cycle is never
// restarted.
func (cy *Cycle) consume(stream ports.RecognitionStream) {
	for {
		for event := range stream.Events() {
			text := strings.TrimSpace(event.Text)
			if text == "" {
				continue
			}

			cy.mu.Lock()
			if cy.closed {
				cy.mu.Unlock()
				return
			}
			cy.transcript = strings.TrimSpace(cy.transcript + " " + text)
			full := cy.transcript
			cy.mu.Unlock()

			if cy.onFragment != nil {
				cy.onFragment(text, full)
			}
		}

		if err := stream.Err(); err != nil {
			cy.coord.log.WithError(err).Debug("recognition stream ended with error")
		}

		cy.mu.Lock()
		if cy.closed {
			cy.mu.Unlock()
			return
		}
		cy.mu.Unlock()

		next, err := cy.coord.transcriber.Start(cy.ctx, cy.language)
		if err != nil {
			if cy.ctx.Err() == nil {
				cy.coord.events.SessionError(domain.ErrorCodeRecognition, "failed to restart recognition: "+err.Error())
			}
			return
		}

		cy.mu.Lock()
		if cy.closed {
			cy.mu.Unlock()
			_ = next.Close()
			return
		}
		cy.stream = next
		cy.mu.Unlock()
		stream = next
	}
}
