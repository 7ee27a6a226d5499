package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/agent"
	"github.com/deepak6009/khetsaathi-sub000/internal/protocol"
	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

// fakeSender records everything the session tries to send.
type fakeSender struct {
	mu     sync.Mutex
	msgs   []protocol.Message
	audio  [][]byte
	failed int
}

func (f *fakeSender) SendJSON(ctx context.Context, msg protocol.Message) error {
	if ctx.Err() != nil {
		f.mu.Lock()
		f.failed++
		f.mu.Unlock()
		return ctx.Err()
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) SendAudio(ctx context.Context, data []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	f.audio = append(f.audio, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if protocol.TypeOf(m) == typ {
			n++
		}
	}
	return n
}

func (f *fakeSender) last(typ string) protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if protocol.TypeOf(f.msgs[i]) == typ {
			return f.msgs[i]
		}
	}
	return nil
}

type fakeSTT struct {
	mu      sync.Mutex
	scripts []string
}

func (f *fakeSTT) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scripts) == 0 {
		return "", nil
	}
	t := f.scripts[0]
	f.scripts = f.scripts[1:]
	if t == "ERR" {
		return "", errors.New("stt unavailable")
	}
	return t, nil
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	return []byte("wav:" + text), nil
}

type fakeAgent struct {
	mu       sync.Mutex
	facts    agent.Facts
	factsErr error
	wants    bool
	replies  int
	lastDiag *types.Diagnosis
}

func (f *fakeAgent) GenerateReply(ctx context.Context, history []types.Message, lang string, diag *types.Diagnosis, flags agent.PhaseFlags) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies++
	f.lastDiag = diag
	return fmt.Sprintf("reply-%d", f.replies), nil
}

func (f *fakeAgent) ExtractFacts(ctx context.Context, history []types.Message) (agent.Facts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.facts, f.factsErr
}

func (f *fakeAgent) DetectPlanIntent(ctx context.Context, recent []types.Message) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wants, nil
}

func (f *fakeAgent) GeneratePlan(ctx context.Context, history []types.Message, diag *types.Diagnosis, lang string) (string, error) {
	return "Day 1: spray.\nDay 2: rest.", nil
}

type fakeDiag struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (f *fakeDiag) Diagnose(ctx context.Context, imgs []string, crop, loc, lang string) (*types.Diagnosis, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	err := f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &types.Diagnosis{Disease: "Rice Blast", Severity: "high"}, nil
}

func (f *fakeDiag) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePDF struct{}

func (fakePDF) Render(ctx context.Context, planText, lang string) (string, error) {
	return "/plans/test.pdf", nil
}

type fakeCases struct {
	mu    sync.Mutex
	saved []types.CaseRecord
}

func (f *fakeCases) SaveCase(ctx context.Context, rec types.CaseRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return "case-1", nil
}

func newTestSession(t *testing.T, ag *fakeAgent, stt *fakeSTT, dg *fakeDiag) (*Session, *fakeSender) {
	t.Helper()
	snd := &fakeSender{}
	deps := Deps{
		STT:    stt,
		TTS:    fakeTTS{},
		Agent:  ag,
		Diag:   dg,
		PDF:    fakePDF{},
		Cases:  &fakeCases{},
		Events: NewEventLog(),

		BaseURL: "http://localhost:8080",
	}
	s := NewSession(context.Background(), "sid-1", deps, snd)
	t.Cleanup(s.Close)
	return s, snd
}

func startSession(s *Session) {
	s.HandleStart(&protocol.Start{Phone: "+919000000001", Language: "Telugu", ImageURLs: []string{"http://img/1.jpg"}})
}

func TestStartGreetsAndListens(t *testing.T) {
	s, snd := newTestSession(t, &fakeAgent{}, &fakeSTT{}, &fakeDiag{})
	startSession(s)

	if snd.count(protocol.TypeStarted) != 1 {
		t.Fatalf("expected one started message")
	}
	if snd.count(protocol.TypeTranscript) != 1 {
		t.Fatalf("expected greeting transcript")
	}
	if len(snd.audio) != 1 {
		t.Fatalf("expected greeting audio, got %d segments", len(snd.audio))
	}
	if s.State() != protocol.StatusListening {
		t.Fatalf("expected listening, got %s", s.State())
	}
}

func TestRepeatedStartIgnored(t *testing.T) {
	s, snd := newTestSession(t, &fakeAgent{}, &fakeSTT{}, &fakeDiag{})
	startSession(s)
	startSession(s)
	if snd.count(protocol.TypeStarted) != 1 {
		t.Fatalf("second start must be ignored")
	}
}

func TestEmptyTranscriptStaysListening(t *testing.T) {
	ag := &fakeAgent{}
	s, snd := newTestSession(t, ag, &fakeSTT{scripts: []string{""}}, &fakeDiag{})
	startSession(s)

	s.HandleAudio([]byte("silence"))
	s.Wait()

	if s.State() != protocol.StatusListening {
		t.Fatalf("expected listening, got %s", s.State())
	}
	if ag.replies != 0 {
		t.Fatalf("empty transcript must not reach reply generation")
	}
	// Only the greeting transcript; no empty user turn.
	if snd.count(protocol.TypeTranscript) != 1 {
		t.Fatalf("expected no new transcript, got %d", snd.count(protocol.TypeTranscript))
	}
}

func TestTurnPipelineOrdering(t *testing.T) {
	ag := &fakeAgent{}
	s, snd := newTestSession(t, ag, &fakeSTT{scripts: []string{"my paddy has spots"}}, &fakeDiag{})
	startSession(s)

	s.HandleAudio([]byte("utterance"))
	s.Wait()

	snd.mu.Lock()
	var roles []string
	for _, m := range snd.msgs {
		if tr, ok := m.(*protocol.Transcript); ok {
			roles = append(roles, tr.Role)
		}
	}
	snd.mu.Unlock()
	// greeting (assistant), then user turn before assistant reply
	want := []string{types.RoleAssistant, types.RoleUser, types.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("transcripts %v", roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("transcript order %v, want %v", roles, want)
		}
	}
	if len(snd.audio) != 2 {
		t.Fatalf("expected greeting + reply audio, got %d", len(snd.audio))
	}
}

func TestAudioDroppedOutsideListening(t *testing.T) {
	s, _ := newTestSession(t, &fakeAgent{}, &fakeSTT{}, &fakeDiag{})
	// No start yet: session has no phone, frame must be dropped.
	s.HandleAudio([]byte("early"))
	if got := s.deps.Events.List("sid-1"); len(got) != 1 || got[0].Type != "audio_dropped" {
		t.Fatalf("expected audio_dropped event, got %+v", got)
	}
}

func TestSTTErrorRecoversToListening(t *testing.T) {
	s, snd := newTestSession(t, &fakeAgent{}, &fakeSTT{scripts: []string{"ERR"}}, &fakeDiag{})
	startSession(s)

	s.HandleAudio([]byte("utterance"))

	if s.State() != protocol.StatusListening {
		t.Fatalf("expected listening after provider error, got %s", s.State())
	}
	if snd.count(protocol.TypeError) != 1 {
		t.Fatalf("expected one error event")
	}
}

func TestCropOnlyDoesNotTriggerDiagnosis(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice"}}
	dg := &fakeDiag{}
	s, _ := newTestSession(t, ag, &fakeSTT{scripts: []string{"నా వరి పంట"}}, dg)
	startSession(s)

	s.HandleAudio([]byte("utterance"))
	s.Wait()

	if dg.callCount() != 0 {
		t.Fatalf("diagnosis must not run with location unknown")
	}
	s.mu.Lock()
	crop, loc := s.crop, s.location
	s.mu.Unlock()
	if crop != "Rice" || loc != "" {
		t.Fatalf("facts crop=%q location=%q", crop, loc)
	}
}

func TestDiagnosisTriggersOnceWithBothFacts(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice", Location: "Guntur"}}
	dg := &fakeDiag{}
	stt := &fakeSTT{scripts: []string{"turn one", "turn two", "turn three"}}
	s, snd := newTestSession(t, ag, stt, dg)
	startSession(s)

	for i := 0; i < 3; i++ {
		s.HandleAudio([]byte("utterance"))
		s.Wait()
	}

	if dg.callCount() != 1 {
		t.Fatalf("diagnosis must run exactly once, ran %d times", dg.callCount())
	}
	if snd.count(protocol.TypeDiagnosisReady) != 1 {
		t.Fatalf("expected exactly one diagnosis_ready")
	}
}

func TestDiagnosisRetryBounded(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice", Location: "Guntur"}}
	dg := &fakeDiag{err: errors.New("service down")}
	stt := &fakeSTT{scripts: []string{"t1", "t2", "t3", "t4", "t5"}}
	s, snd := newTestSession(t, ag, stt, dg)
	startSession(s)

	for i := 0; i < 5; i++ {
		s.HandleAudio([]byte("utterance"))
		s.Wait()
	}

	if dg.callCount() != 3 {
		t.Fatalf("expected 3 bounded attempts, got %d", dg.callCount())
	}
	if snd.count(protocol.TypeDiagnosisReady) != 0 {
		t.Fatalf("no diagnosis_ready on persistent failure")
	}
	// Agent failures never surface as user-visible errors.
	if snd.count(protocol.TypeError) != 0 {
		t.Fatalf("agent errors must be swallowed")
	}
}

func TestWantsPlanThenExactlyOnePlanReady(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice", Location: "Guntur"}}
	dg := &fakeDiag{}
	stt := &fakeSTT{scripts: []string{"describe", "avunu", "avunu malli", "follow up"}}
	s, snd := newTestSession(t, ag, stt, dg)
	startSession(s)

	s.HandleAudio([]byte("u1")) // facts + diagnosis land here
	s.Wait()
	ag.mu.Lock()
	ag.wants = true
	ag.mu.Unlock()
	s.HandleAudio([]byte("u2")) // affirmation detected
	s.Wait()
	s.HandleAudio([]byte("u3")) // still detected until a plan exists
	s.Wait()

	if snd.count(protocol.TypeWantsPlan) < 2 {
		t.Fatalf("intent should keep firing until a plan exists, got %d", snd.count(protocol.TypeWantsPlan))
	}

	s.HandlePlanLanguage(&protocol.PlanLanguage{Language: "Telugu"})
	s.HandlePlanLanguage(&protocol.PlanLanguage{Language: "Hindi"})

	if snd.count(protocol.TypePlanReady) != 1 {
		t.Fatalf("expected exactly one plan_ready, got %d", snd.count(protocol.TypePlanReady))
	}
	pr := snd.last(protocol.TypePlanReady).(*protocol.PlanReady)
	if pr.PdfURL == "" || pr.Language != "Telugu" {
		t.Fatalf("bad plan_ready %+v", pr)
	}

	// With the plan generated, intent detection goes quiet.
	before := snd.count(protocol.TypeWantsPlan)
	s.HandleAudio([]byte("u4"))
	s.Wait()
	if snd.count(protocol.TypeWantsPlan) != before {
		t.Fatalf("wants_plan after plan generation")
	}
}

func TestPlanLanguageIgnoredWithoutDiagnosis(t *testing.T) {
	s, snd := newTestSession(t, &fakeAgent{}, &fakeSTT{}, &fakeDiag{})
	startSession(s)

	s.HandlePlanLanguage(&protocol.PlanLanguage{Language: "Telugu"})
	if snd.count(protocol.TypePlanReady) != 0 {
		t.Fatalf("plan must not be generated before diagnosis")
	}
}

func TestCloseMidAgentSuppressesSends(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice", Location: "Guntur"}}
	dg := &fakeDiag{block: make(chan struct{})}
	stt := &fakeSTT{scripts: []string{"both facts"}}
	s, snd := newTestSession(t, ag, stt, dg)
	startSession(s)

	s.HandleAudio([]byte("utterance"))
	// The diagnosis agent is now parked inside Diagnose; tear the session down.
	deadline := time.After(2 * time.Second)
	for dg.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("diagnosis never started")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	before := snd.count(protocol.TypeDiagnosisReady)
	s.Close()
	close(dg.block)
	s.Wait()

	if got := snd.count(protocol.TypeDiagnosisReady); got != before {
		t.Fatalf("diagnosis_ready sent after close")
	}
}

func TestFactCorrectionOverwrites(t *testing.T) {
	ag := &fakeAgent{facts: agent.Facts{Crop: "Rice"}}
	stt := &fakeSTT{scripts: []string{"t1", "t2", "t3"}}
	s, _ := newTestSession(t, ag, stt, &fakeDiag{})
	startSession(s)

	s.HandleAudio([]byte("u1"))
	s.Wait()
	// A later empty extraction must not clear the known crop.
	ag.mu.Lock()
	ag.facts = agent.Facts{}
	ag.mu.Unlock()
	s.HandleAudio([]byte("u2"))
	s.Wait()
	s.mu.Lock()
	crop := s.crop
	s.mu.Unlock()
	if crop != "Rice" {
		t.Fatalf("empty extraction cleared crop")
	}
	// A non-empty correction does overwrite.
	ag.mu.Lock()
	ag.facts = agent.Facts{Crop: "Cotton"}
	ag.mu.Unlock()
	s.HandleAudio([]byte("u3"))
	s.Wait()
	s.mu.Lock()
	crop = s.crop
	s.mu.Unlock()
	if crop != "Cotton" {
		t.Fatalf("correction did not overwrite, crop=%q", crop)
	}
}
