package voice

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/agent"
	"github.com/deepak6009/khetsaathi-sub000/internal/protocol"
	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

// Collaborator contracts, narrowed to what a session needs so tests can fake them.

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, languageHint string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

type Agent interface {
	GenerateReply(ctx context.Context, history []types.Message, language string, diag *types.Diagnosis, flags agent.PhaseFlags) (string, error)
	ExtractFacts(ctx context.Context, history []types.Message) (agent.Facts, error)
	DetectPlanIntent(ctx context.Context, recent []types.Message) (bool, error)
	GeneratePlan(ctx context.Context, history []types.Message, diag *types.Diagnosis, language string) (string, error)
}

type Diagnoser interface {
	Diagnose(ctx context.Context, imageURLs []string, crop, location, language string) (*types.Diagnosis, error)
}

type PlanRenderer interface {
	Render(ctx context.Context, planText, language string) (string, error)
}

type CaseWriter interface {
	SaveCase(ctx context.Context, rec types.CaseRecord) (string, error)
}

// Deps bundles everything a session talks to.
type Deps struct {
	STT    Transcriber
	TTS    Synthesizer
	Agent  Agent
	Diag   Diagnoser
	PDF    PlanRenderer
	Cases  CaseWriter
	Events *EventLog

	BaseURL string

	STTTimeout   time.Duration
	ReplyTimeout time.Duration
	TTSTimeout   time.Duration
	DiagTimeout  time.Duration
	PlanTimeout  time.Duration

	MaxDiagAttempts int
}

func (d *Deps) fillDefaults() {
	if d.STTTimeout == 0 {
		d.STTTimeout = 20 * time.Second
	}
	if d.ReplyTimeout == 0 {
		d.ReplyTimeout = 30 * time.Second
	}
	if d.TTSTimeout == 0 {
		d.TTSTimeout = 30 * time.Second
	}
	if d.DiagTimeout == 0 {
		d.DiagTimeout = 45 * time.Second
	}
	if d.PlanTimeout == 0 {
		d.PlanTimeout = 90 * time.Second
	}
	if d.MaxDiagAttempts == 0 {
		d.MaxDiagAttempts = 3
	}
}

// Sender delivers messages to the client. Implementations must be safe for
// concurrent use; the websocket handler serializes writes behind a mutex.
type Sender interface {
	SendJSON(ctx context.Context, msg protocol.Message) error
	SendAudio(ctx context.Context, data []byte) error
}

// Session is the per-connection state machine. All mutable fields are guarded
// by mu; background agents re-check their guards under the same lock.
type Session struct {
	ID string

	deps Deps
	send Sender

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          string
	phone          string
	language       string
	imageURLs      []string
	messages       []types.Message
	crop           string
	location       string
	diagnosis      *types.Diagnosis
	diagInProgress bool
	diagAttempts   int
	planGenerated  bool
	planInProgress bool
	caseID         string
	agentWG        sync.WaitGroup
}

func NewSession(parent context.Context, id string, deps Deps, send Sender) *Session {
	deps.fillDefaults()
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:     id,
		deps:   deps,
		send:   send,
		ctx:    ctx,
		cancel: cancel,
		state:  protocol.StatusListening,
	}
}

// State returns the current phase (for tests and the event log).
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the session down. Idempotent; in-flight agent results for this
// session are discarded because every send goes through the cancelled context.
func (s *Session) Close() {
	s.cancel()
}

// Wait blocks until background agents for completed turns have finished.
func (s *Session) Wait() {
	s.agentWG.Wait()
}

func (s *Session) setState(to string) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from != to {
		metricStateTransitions.WithLabelValues(from, to).Inc()
	}
}

func (s *Session) emitStatus(status string) {
	if err := s.send.SendJSON(s.ctx, &protocol.Status{Status: status}); err != nil {
		log.Printf("[voice] status send sid=%s: %v", s.ID, err)
	}
	s.deps.Events.Append(s.ID, "status", map[string]any{"status": status})
}

func (s *Session) emitError(msg string) {
	if err := s.send.SendJSON(s.ctx, &protocol.Error{Message: msg}); err != nil {
		log.Printf("[voice] error send sid=%s: %v", s.ID, err)
	}
	s.deps.Events.Append(s.ID, "error", map[string]any{"message": msg})
}

// HandleStart initializes the session from the client's start message and
// speaks the greeting. Repeated start messages are ignored.
func (s *Session) HandleStart(msg *protocol.Start) {
	s.mu.Lock()
	if s.phone != "" {
		s.mu.Unlock()
		s.deps.Events.Append(s.ID, "start_ignored", nil)
		return
	}
	s.phone = msg.Phone
	s.language = msg.Language
	s.imageURLs = msg.ImageURLs
	lang := s.language
	s.mu.Unlock()

	s.deps.Events.Append(s.ID, "session_started", map[string]any{"language": lang, "images": len(msg.ImageURLs)})
	if err := s.send.SendJSON(s.ctx, &protocol.Started{}); err != nil {
		log.Printf("[voice] started send sid=%s: %v", s.ID, err)
		return
	}

	greeting := GreetingFor(lang)
	s.mu.Lock()
	s.messages = append(s.messages, types.Message{Role: types.RoleAssistant, Text: greeting})
	s.mu.Unlock()
	_ = s.send.SendJSON(s.ctx, &protocol.Transcript{Role: types.RoleAssistant, Text: greeting})

	s.speak(greeting)
	s.setState(protocol.StatusListening)
	s.emitStatus(protocol.StatusListening)
}

// HandleAudio runs one conversational turn for a completed utterance. It is
// called from the connection read loop, so a turn runs to completion before
// the next frame is looked at; frames arriving in any other state are dropped
// by the handler.
func (s *Session) HandleAudio(pcm []byte) {
	s.mu.Lock()
	if s.state != protocol.StatusListening || s.phone == "" {
		st := s.state
		s.mu.Unlock()
		s.deps.Events.Append(s.ID, "audio_dropped", map[string]any{"state": st, "bytes": len(pcm)})
		return
	}
	lang := s.language
	s.mu.Unlock()

	turnStart := time.Now()
	s.setState(protocol.StatusTranscribing)
	s.emitStatus(protocol.StatusTranscribing)

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.STTTimeout)
	text, err := s.deps.STT.Transcribe(ctx, pcm, lang)
	cancel()
	if err != nil {
		log.Printf("[voice] stt sid=%s: %v", s.ID, err)
		s.recoverToListening("Could not understand the audio, please try again.")
		return
	}
	if text == "" {
		// Silence or noise; never advances the conversation.
		s.deps.Events.Append(s.ID, "empty_transcript", nil)
		s.setState(protocol.StatusListening)
		s.emitStatus(protocol.StatusListening)
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, types.Message{Role: types.RoleUser, Text: text})
	history := append([]types.Message(nil), s.messages...)
	diag := s.diagnosis
	flags := agent.PhaseFlags{HasDiagnosis: s.diagnosis != nil, PlanGenerated: s.planGenerated}
	s.mu.Unlock()

	_ = s.send.SendJSON(s.ctx, &protocol.Transcript{Role: types.RoleUser, Text: text})
	s.deps.Events.Append(s.ID, "user_turn", map[string]any{"chars": len(text)})

	s.setState(protocol.StatusThinking)
	s.emitStatus(protocol.StatusThinking)

	ctx, cancel = context.WithTimeout(s.ctx, s.deps.ReplyTimeout)
	reply, err := s.deps.Agent.GenerateReply(ctx, history, lang, diag, flags)
	cancel()
	if err != nil {
		log.Printf("[voice] reply sid=%s: %v", s.ID, err)
		s.recoverToListening("Something went wrong, please say that again.")
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, types.Message{Role: types.RoleAssistant, Text: reply})
	s.mu.Unlock()
	_ = s.send.SendJSON(s.ctx, &protocol.Transcript{Role: types.RoleAssistant, Text: reply})

	s.speak(reply)
	s.setState(protocol.StatusListening)
	s.emitStatus(protocol.StatusListening)
	metricTurnDurationMS.Observe(float64(time.Since(turnStart).Milliseconds()))
	metricTurnsTotal.Inc()

	s.agentWG.Add(1)
	go func() {
		defer s.agentWG.Done()
		s.runAgents()
	}()
}

// speak synthesizes text and ships the audio segment. Synthesis failures are
// reported but leave the conversation usable.
func (s *Session) speak(text string) {
	s.setState(protocol.StatusSpeaking)
	s.emitStatus(protocol.StatusSpeaking)
	ctx, cancel := context.WithTimeout(s.ctx, s.deps.TTSTimeout)
	audio, err := s.deps.TTS.Synthesize(ctx, text, s.Language())
	cancel()
	if err != nil {
		log.Printf("[voice] tts sid=%s: %v", s.ID, err)
		s.emitError("Audio playback is unavailable right now.")
		return
	}
	if err := s.send.SendAudio(s.ctx, audio); err != nil {
		log.Printf("[voice] audio send sid=%s: %v", s.ID, err)
	}
}

func (s *Session) recoverToListening(userMsg string) {
	s.emitError(userMsg)
	s.setState(protocol.StatusListening)
	s.emitStatus(protocol.StatusListening)
}

// Language returns the session language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// HandlePlanLanguage generates the 7-day plan in the requested language,
// renders the PDF, archives the case, and confirms out loud. At most one plan
// per session.
func (s *Session) HandlePlanLanguage(msg *protocol.PlanLanguage) {
	s.mu.Lock()
	if s.diagnosis == nil || s.planGenerated || s.planInProgress {
		s.mu.Unlock()
		s.deps.Events.Append(s.ID, "plan_request_ignored", nil)
		return
	}
	s.planInProgress = true
	history := append([]types.Message(nil), s.messages...)
	diag := s.diagnosis
	sessionLang := s.language
	s.mu.Unlock()

	planLang := msg.Language
	if planLang == "" {
		planLang = sessionLang
	}

	s.setState(protocol.StatusGeneratingPlan)
	s.emitStatus(protocol.StatusGeneratingPlan)
	s.deps.Events.Append(s.ID, "plan_started", map[string]any{"language": planLang})

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.PlanTimeout)
	planText, err := s.deps.Agent.GeneratePlan(ctx, history, diag, planLang)
	cancel()
	if err != nil {
		log.Printf("[voice] plan sid=%s: %v", s.ID, err)
		s.mu.Lock()
		s.planInProgress = false
		s.mu.Unlock()
		s.recoverToListening("Could not prepare the plan, please try again.")
		return
	}

	ctx, cancel = context.WithTimeout(s.ctx, s.deps.PlanTimeout)
	pdfPath, err := s.deps.PDF.Render(ctx, planText, planLang)
	cancel()
	if err != nil {
		log.Printf("[voice] pdf sid=%s: %v", s.ID, err)
		s.mu.Lock()
		s.planInProgress = false
		s.mu.Unlock()
		s.recoverToListening("Could not prepare the plan document, please try again.")
		return
	}
	pdfURL := s.deps.BaseURL + pdfPath

	s.mu.Lock()
	s.planGenerated = true
	s.planInProgress = false
	s.mu.Unlock()
	metricPlansTotal.Inc()

	s.persistCase(planText, pdfURL)

	if err := s.send.SendJSON(s.ctx, &protocol.PlanReady{PdfURL: pdfURL, Language: planLang}); err != nil {
		log.Printf("[voice] plan_ready send sid=%s: %v", s.ID, err)
	}
	s.deps.Events.Append(s.ID, "plan_ready", map[string]any{"pdf_url": pdfURL, "language": planLang})

	confirmation := PlanConfirmationFor(sessionLang)
	s.mu.Lock()
	s.messages = append(s.messages, types.Message{Role: types.RoleAssistant, Text: confirmation})
	s.mu.Unlock()
	_ = s.send.SendJSON(s.ctx, &protocol.Transcript{Role: types.RoleAssistant, Text: confirmation})
	s.speak(confirmation)

	s.setState(protocol.StatusListening)
	s.emitStatus(protocol.StatusListening)
}

// runAgents executes the post-turn helpers sequentially: fact extraction,
// the diagnosis trigger, then plan-intent detection. Errors are logged and
// swallowed; nothing here ever surfaces to the farmer.
func (s *Session) runAgents() {
	if s.ctx.Err() != nil {
		return
	}
	s.extractFacts()
	s.maybeDiagnose()
	s.detectPlanIntent()
}

func (s *Session) extractFacts() {
	s.mu.Lock()
	if s.crop != "" && s.location != "" {
		s.mu.Unlock()
		return
	}
	history := append([]types.Message(nil), s.messages...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.ReplyTimeout)
	facts, err := s.deps.Agent.ExtractFacts(ctx, history)
	cancel()
	if err != nil {
		log.Printf("[voice] extract sid=%s: %v", s.ID, err)
		metricAgentErrors.WithLabelValues("extract").Inc()
		return
	}

	s.mu.Lock()
	// Non-empty values win; an empty extraction never clears a known fact.
	if facts.Crop != "" {
		s.crop = facts.Crop
	}
	if facts.Location != "" {
		s.location = facts.Location
	}
	crop, loc := s.crop, s.location
	s.mu.Unlock()
	s.deps.Events.Append(s.ID, "facts", map[string]any{"crop": crop, "location": loc})
}

func (s *Session) maybeDiagnose() {
	s.mu.Lock()
	ready := s.crop != "" && s.location != "" && s.diagnosis == nil &&
		!s.diagInProgress && s.diagAttempts < s.deps.MaxDiagAttempts
	if !ready {
		s.mu.Unlock()
		return
	}
	s.diagInProgress = true
	s.diagAttempts++
	attempt := s.diagAttempts
	crop, loc, lang := s.crop, s.location, s.language
	images := append([]string(nil), s.imageURLs...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.diagInProgress = false
		s.mu.Unlock()
	}()

	_ = s.send.SendJSON(s.ctx, &protocol.StatusInfo{Info: "analyzing_images"})
	s.deps.Events.Append(s.ID, "diagnosis_started", map[string]any{"crop": crop, "location": loc, "attempt": attempt})

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.DiagTimeout)
	diag, err := s.deps.Diag.Diagnose(ctx, images, crop, loc, lang)
	cancel()
	if err != nil {
		log.Printf("[voice] diagnose sid=%s attempt=%d: %v", s.ID, attempt, err)
		metricAgentErrors.WithLabelValues("diagnose").Inc()
		return
	}
	if s.ctx.Err() != nil {
		// Session tore down while the call was in flight; discard the result.
		return
	}

	s.mu.Lock()
	s.diagnosis = diag
	s.mu.Unlock()
	metricDiagnosesTotal.Inc()

	if err := s.send.SendJSON(s.ctx, &protocol.DiagnosisReady{}); err != nil {
		log.Printf("[voice] diagnosis_ready send sid=%s: %v", s.ID, err)
	}
	s.deps.Events.Append(s.ID, "diagnosis_ready", map[string]any{"disease": diag.Disease, "severity": diag.Severity})

	s.persistCase(fmt.Sprintf("%s on %s at %s", diag.Disease, crop, loc), "")
}

func (s *Session) detectPlanIntent() {
	s.mu.Lock()
	if s.diagnosis == nil || s.planGenerated {
		s.mu.Unlock()
		return
	}
	recent := s.messages
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	recent = append([]types.Message(nil), recent...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.ReplyTimeout)
	wants, err := s.deps.Agent.DetectPlanIntent(ctx, recent)
	cancel()
	if err != nil {
		log.Printf("[voice] plan intent sid=%s: %v", s.ID, err)
		metricAgentErrors.WithLabelValues("plan_intent").Inc()
		return
	}
	if !wants {
		return
	}
	if err := s.send.SendJSON(s.ctx, &protocol.WantsPlan{}); err != nil {
		log.Printf("[voice] wants_plan send sid=%s: %v", s.ID, err)
	}
	s.deps.Events.Append(s.ID, "wants_plan", nil)
}

// persistCase archives the session. Best effort: failures only log.
func (s *Session) persistCase(summary, pdfURL string) {
	if s.deps.Cases == nil {
		return
	}
	s.mu.Lock()
	rec := types.CaseRecord{
		ID:        s.caseID,
		Phone:     s.phone,
		Language:  s.language,
		Crop:      s.crop,
		Location:  s.location,
		Summary:   summary,
		ImageURLs: append([]string(nil), s.imageURLs...),
		PdfURL:    pdfURL,
	}
	if s.diagnosis != nil {
		rec.Diagnosis = *s.diagnosis
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := s.deps.Cases.SaveCase(ctx, rec)
	if err != nil {
		log.Printf("[voice] persist case sid=%s: %v", s.ID, err)
		return
	}
	s.mu.Lock()
	s.caseID = id
	s.mu.Unlock()
}
