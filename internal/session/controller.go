// Package session implements the interview state machine.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"prepcam/internal/capture"
	"prepcam/internal/domain"
	"prepcam/internal/export"
	"prepcam/internal/mood"
	"prepcam/internal/ports"
	"prepcam/internal/template"
	"prepcam/internal/timer"
)

// Config controls per-answer timing and locale mapping.
type Config struct {
	AnswerSeconds int
	TickInterval  time.Duration
	Locales       map[string]string
}

// DefaultLocales maps supported language codes to speech locale tags.
func DefaultLocales() map[string]string {
	return map[string]string{"en": "en-US", "hi": "hi-IN"}
}

func (c Config) localeTag(language string) string {
	if tag, ok := c.Locales[language]; ok {
		return tag
	}
	return "en-US"
}

// Controller owns the session state machine. All mutation is serialized on
// its mutex; asynchronous collaborator events validate that they still
// belong to the current session/question before being applied.
type Controller struct {
	registry   *template.Registry
	synth      ports.Synthesizer
	capture    *capture.Coordinator
	classifier mood.Classifier
	confirmer  ports.Confirmer
	prompter   ports.TemplatePrompter
	composer   *export.Composer
	events     ports.EventSink
	cfg        Config
	log        *logrus.Entry

	mu        sync.Mutex
	ctx       context.Context
	state     domain.SessionState
	phase     domain.Phase
	language  string
	tmpl      template.Template
	sess      *domain.Session
	cycle     *capture.Cycle
	countdown *timer.Countdown
	mood      domain.MoodSignal
}

func NewController(
	registry *template.Registry,
	synth ports.Synthesizer,
	coordinator *capture.Coordinator,
	classifier mood.Classifier,
	confirmer ports.Confirmer,
	prompter ports.TemplatePrompter,
	composer *export.Composer,
	events ports.EventSink,
	cfg Config,
) *Controller {
	if cfg.AnswerSeconds <= 0 {
		cfg.AnswerSeconds = timer.DefaultSeconds
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Locales == nil {
		cfg.Locales = DefaultLocales()
	}
	return &Controller{
		registry:   registry,
		synth:      synth,
		capture:    coordinator,
		classifier: classifier,
		confirmer:  confirmer,
		prompter:   prompter,
		composer:   composer,
		events:     events,
		cfg:        cfg,
		log:        logrus.WithField("component", "session"),
		ctx:        context.Background(),
		state:      domain.SessionStateIdle,
		mood:       domain.MoodSignal{Mood: domain.MoodNeutral},
	}
}

// SelectLanguage moves Idle -> LanguageSelected.
func (c *Controller) SelectLanguage(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.SessionStateIdle {
		return fmt.Errorf("%w: cannot select language from %s", domain.ErrInvalidTransition, c.state)
	}
	if code == "" {
		return fmt.Errorf("%w: language code is empty", domain.ErrValidation)
	}

	c.language = code
	c.state = domain.SessionStateLanguageSelected
	c.events.StateChanged(c.state, c.phase, domain.ReasonLanguageSelected)
	return nil
}

// SelectTemplate moves LanguageSelected -> TemplateSelected. The custom
// template is routed through the prompter collaborator and BuildCustom.
func (c *Controller) SelectTemplate(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state != domain.SessionStateLanguageSelected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot select template from %s", domain.ErrInvalidTransition, state)
	}
	if id == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: template id is empty", domain.ErrValidation)
	}
	language := c.language
	c.mu.Unlock()

	var tmpl template.Template
	var err error
	if id == template.CustomID {
		// Gathering questions blocks on the user, so it happens unlocked.
		questions, promptErr := c.prompter.CustomQuestions(ctx, language)
		if promptErr != nil {
			return promptErr
		}
		tmpl, err = c.registry.BuildCustom(language, questions)
	} else {
		tmpl, err = c.registry.Get(id)
	}
	if err != nil {
		return err
	}
	if _, err := tmpl.QuestionsFor(language); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateLanguageSelected {
		return fmt.Errorf("%w: state changed during template selection", domain.ErrInvalidTransition)
	}
	c.tmpl = tmpl
	c.state = domain.SessionStateTemplateSelected
	c.events.StateChanged(c.state, c.phase, domain.ReasonTemplateSelected)
	return nil
}

// StartInterview creates a fresh session and presents the first question.
func (c *Controller) StartInterview(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.SessionStateTemplateSelected {
		return fmt.Errorf("%w: cannot start interview from %s", domain.ErrInvalidTransition, c.state)
	}
	questions, err := c.tmpl.QuestionsFor(c.language)
	if err != nil {
		return err
	}

	c.ctx = ctx
	c.sess = &domain.Session{
		ID:           newSessionID(),
		TemplateID:   c.tmpl.ID,
		TemplateName: c.tmpl.Name,
		Language:     c.language,
		Questions:    append([]string(nil), questions...),
		Answers:      make([]domain.Answer, len(questions)),
		StartedAt:    time.Now().UTC(),
	}
	c.state = domain.SessionStateActive
	c.log.WithFields(logrus.Fields{
		"session":   c.sess.ID,
		"template":  c.tmpl.ID,
		"language":  c.language,
		"questions": len(questions),
	}).Info("interview started")
	c.events.StateChanged(c.state, c.phase, domain.ReasonInterviewStarted)
	c.presentLocked()
	return nil
}

// Pause freezes the timer and checkpoints the open capture cycle.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.SessionStateActive || c.phase != domain.PhaseListening {
		return fmt.Errorf("%w: pause requires the listening phase", domain.ErrInvalidTransition)
	}

	c.countdown.Pause()
	c.checkpointCycleLocked()
	c.phase = domain.PhasePaused
	c.events.StateChanged(c.state, c.phase, domain.ReasonAnswerPaused)
	return nil
}

// Resume reopens capture, continuing the checkpointed transcript, and
// unfreezes the timer.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.SessionStateActive || c.phase != domain.PhasePaused {
		return fmt.Errorf("%w: resume requires the paused phase", domain.ErrInvalidTransition)
	}

	c.openCycleLocked(c.sess.Answers[c.sess.Index].Transcript)
	c.countdown.Resume()
	c.phase = domain.PhaseListening
	c.events.StateChanged(c.state, c.phase, domain.ReasonAnswerResumed)
	return nil
}

// Restart discards the current question's answer after user confirmation.
// Declining is a no-op.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.SessionStateActive || c.phase != domain.PhasePaused {
		c.mu.Unlock()
		return fmt.Errorf("%w: restart requires the paused phase", domain.ErrInvalidTransition)
	}
	c.mu.Unlock()

	confirmed, err := c.confirmer.Confirm(ctx,
		"Restart answer",
		"Are you sure you want to restart your answer? Current answer will be deleted.")
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateActive || c.phase != domain.PhasePaused {
		return fmt.Errorf("%w: state changed during restart confirmation", domain.ErrInvalidTransition)
	}

	answer := &c.sess.Answers[c.sess.Index]
	answer.Transcript = ""
	answer.Media = nil

	c.countdown.Reset()
	c.openCycleLocked("")
	c.phase = domain.PhaseListening
	c.events.StateChanged(c.state, c.phase, domain.ReasonAnswerRestarted)
	return nil
}

// SubmitAnswer finalizes the current answer, manually or on timer expiry.
func (c *Controller) SubmitAnswer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitLocked(domain.ReasonAnswerSubmitted)
}

// Advance presents the next question or completes the session.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.SessionStateActive || c.phase != domain.PhaseAwaitingNext {
		return fmt.Errorf("%w: advance requires a submitted answer", domain.ErrInvalidTransition)
	}

	if c.sess.Index+1 < len(c.sess.Questions) {
		c.sess.Index++
		c.presentLocked()
		return nil
	}

	c.state = domain.SessionStateCompleted
	c.phase = domain.PhaseNone
	c.capture.Release()
	c.log.WithField("session", c.sess.ID).Info("interview completed")
	c.events.StateChanged(c.state, c.phase, domain.ReasonInterviewComplete)
	return nil
}

// Export builds the archive. Only valid once completed; failures leave the
// session untouched so export can be retried.
func (c *Controller) Export() (export.Archive, error) {
	c.mu.Lock()
	if c.state != domain.SessionStateCompleted && c.state != domain.SessionStateExported {
		state := c.state
		c.mu.Unlock()
		return export.Archive{}, fmt.Errorf("%w: cannot export from %s", domain.ErrInvalidTransition, state)
	}
	snapshot := c.sess.Clone()
	c.mu.Unlock()

	archive, err := c.composer.Compose(snapshot)
	if err != nil {
		return export.Archive{}, err
	}

	c.mu.Lock()
	if c.sess != nil && c.sess.ID == snapshot.ID && c.state == domain.SessionStateCompleted {
		c.state = domain.SessionStateExported
		c.events.StateChanged(c.state, c.phase, domain.ReasonArchiveExported)
	}
	c.mu.Unlock()
	return archive, nil
}

// Reset abandons everything and returns to Idle, releasing capture.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	if c.cycle != nil {
		c.cycle.Close(false)
		c.cycle = nil
	}
	c.capture.Release()
	c.sess = nil
	c.tmpl = template.Template{}
	c.language = ""
	c.state = domain.SessionStateIdle
	c.phase = domain.PhaseNone
	c.mood = domain.MoodSignal{Mood: domain.MoodNeutral}
}

// Status reports the current machine state for the UI.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{
		State:    c.state,
		Phase:    c.phase,
		Language: c.language,
	}
	if c.tmpl.ID != "" {
		status.TemplateID = c.tmpl.ID
	}
	if c.sess != nil {
		status.SessionID = c.sess.ID
		status.QuestionIndex = c.sess.Index
		status.QuestionCount = len(c.sess.Questions)
	}
	if c.countdown != nil {
		status.Remaining = c.countdown.Remaining()
	}
	return status
}

// Mood returns the latest presentation signal. Read-only side channel.
func (c *Controller) Mood() domain.MoodSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mood
}

// Session returns a snapshot of the current session, or nil.
func (c *Controller) Session() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// ShareableLink renders the session link for the given page location.
func (c *Controller) ShareableLink(origin string, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return "", domain.ErrNoActiveSession
	}
	return fmt.Sprintf("%s%s?interview=%s", origin, path, c.sess.ID), nil
}

// presentLocked enters Presenting for the current question and requests
// synthesized playback off the control path.
func (c *Controller) presentLocked() {
	index := c.sess.Index
	question := c.sess.Questions[index]
	c.phase = domain.PhasePresenting
	c.events.QuestionPresented(index, question)
	c.events.StateChanged(c.state, c.phase, domain.ReasonQuestionPresented)

	sess := c.sess
	ctx := c.ctx
	locale := c.cfg.localeTag(c.language)
	go func() {
		if err := c.synth.Speak(ctx, question, locale); err != nil {
			// Playback trouble must not wedge the interview; report it and
			// open the answer window anyway.
			c.events.SessionError(domain.ErrorCodePlayback, err.Error())
		}
		c.playbackFinished(sess, index)
	}()
}

func (c *Controller) playbackFinished(sess *domain.Session, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != sess || sess.Index != index || c.phase != domain.PhasePresenting {
		return // stale playback completion
	}

	c.openCycleLocked("")
	c.armCountdownLocked()
	c.phase = domain.PhaseListening
	c.events.StateChanged(c.state, c.phase, domain.ReasonListeningStarted)
}

// openCycleLocked opens the capture cycle for the current question. The
// coordinator panics if one is already open; the state machine guarantees
// it never is.
func (c *Controller) openCycleLocked(seed string) {
	if c.cycle != nil {
		panic("session: capture cycle already open")
	}
	sess := c.sess
	index := sess.Index
	c.cycle = c.capture.Open(c.ctx, c.cfg.localeTag(c.language), seed, func(fragment, transcript string) {
		c.onFragment(sess, index, fragment, transcript)
	})
}

func (c *Controller) armCountdownLocked() {
	if c.countdown != nil {
		panic("session: countdown already armed")
	}
	sess := c.sess
	index := sess.Index
	c.countdown = timer.Start(c.cfg.AnswerSeconds, c.cfg.TickInterval,
		func(remaining int) { c.onTick(sess, index, remaining) },
		func() { c.onTimerExpired(sess, index) },
	)
}

func (c *Controller) onTick(sess *domain.Session, index int, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || sess.Index != index || c.phase != domain.PhaseListening {
		return
	}
	c.events.TimerTick(remaining)
}

func (c *Controller) onTimerExpired(sess *domain.Session, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || sess.Index != index || c.phase != domain.PhaseListening {
		return
	}
	if err := c.submitLocked(domain.ReasonTimeExpired); err != nil {
		c.log.WithError(err).Warn("auto-submit on expiry failed")
	}
}

// onFragment handles live transcription results: cosmetic transcript echo
// and the mood side channel. The answer itself is checkpointed from the
// cycle on close, so a late fragment can never corrupt a finalized answer.
func (c *Controller) onFragment(sess *domain.Session, index int, fragment, transcript string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || sess.Index != index || c.phase != domain.PhaseListening {
		return
	}

	c.events.TranscriptUpdated(index, transcript)

	signal := c.classifier.Classify(fragment)
	c.mood.Mood = signal.Mood
	if signal.Color != "" {
		c.mood.Color = signal.Color
	}
	c.events.MoodChanged(c.mood)
}

func (c *Controller) submitLocked(reason domain.StateReason) error {
	if c.state != domain.SessionStateActive ||
		(c.phase != domain.PhaseListening && c.phase != domain.PhasePaused) {
		return fmt.Errorf("%w: submit requires listening or paused", domain.ErrInvalidTransition)
	}

	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	c.checkpointCycleLocked()

	c.phase = domain.PhaseAwaitingNext
	c.log.WithFields(logrus.Fields{
		"session":  c.sess.ID,
		"question": c.sess.Index,
		"reason":   reason,
	}).Debug("answer finalized")
	c.events.StateChanged(c.state, c.phase, reason)
	return nil
}

// checkpointCycleLocked closes any open cycle with flush and folds the
// result into the current answer.
func (c *Controller) checkpointCycleLocked() {
	if c.cycle == nil {
		return
	}
	transcript, artifact := c.cycle.Close(true)
	c.cycle = nil

	answer := &c.sess.Answers[c.sess.Index]
	answer.Transcript = transcript
	if artifact != nil {
		answer.Media = artifact
	}
}

func newSessionID() string {
	return "user_" + uuid.NewString()
}
