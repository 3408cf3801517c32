package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/session"
)

// finalizingStep marks a session whose terminal action is being
// executed; further inputs for it are dropped.
const finalizingStep = "finalizing"

var (
	// ErrActive means the chat already has a flow in progress.
	ErrActive = errors.New("flow already active")
	// ErrIdle means an input arrived for a chat with no session.
	ErrIdle = errors.New("no active flow")
	// ErrStale means a concurrent input already advanced the session;
	// the losing input is safe to drop.
	ErrStale = errors.New("stale input")
)

// ValidationError carries a user-facing rejection from the business
// record collaborator; it is surfaced in the chat, never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Recorder persists a terminal action's business record, returning its
// generated identifier. Touch-point scheduling is the recorder's
// concern and must be atomic with the insert.
type Recorder interface {
	CreateRecord(ctx context.Context, req RecordRequest) (string, error)
}

// Reply tells the inbound adapter what to present next.
type Reply struct {
	Prompt    string
	Options   []Option
	Skippable bool

	// ValidationMsg annotates a re-prompt after rejected input.
	ValidationMsg string

	// Terminal outcome.
	Done      bool
	Cancelled bool
	RecordID  string
	Record    RecordRequest
	Fields    map[string]string
}

type Engine struct {
	Sessions *session.Store
	Recorder Recorder
	Flows    map[string]Flow
}

func NewEngine(store *session.Store, rec Recorder, flows ...Flow) *Engine {
	m := make(map[string]Flow, len(flows))
	for _, f := range flows {
		m[f.Name] = f
	}
	return &Engine{Sessions: store, Recorder: rec, Flows: m}
}

// Start begins a flow for a chat. Seed fields (OCR results, entry
// timestamps) are stored before the first prompt.
func (e *Engine) Start(ctx context.Context, chatID, userID int64, flowName string, seed map[string]string) (*Reply, error) {
	fl, ok := e.Flows[flowName]
	if !ok {
		return nil, fmt.Errorf("unknown flow %q", flowName)
	}

	existing, err := e.Sessions.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrActive
	}

	if seed == nil {
		seed = map[string]string{}
	}
	if err := e.Sessions.Begin(ctx, chatID, userID, stateTag(fl.Name, fl.First), seed); err != nil {
		if errors.Is(err, session.ErrConflict) {
			return nil, ErrActive
		}
		return nil, err
	}

	first, _ := fl.step(fl.First)
	return promptReply(first), nil
}

// AwaitsPhoto reports whether the chat's current step takes a photo,
// so the inbound adapter knows to resolve the image into a link before
// driving the engine. False for idle chats and unknown states.
func (e *Engine) AwaitsPhoto(ctx context.Context, chatID int64) (bool, error) {
	sess, err := e.Sessions.Load(ctx, chatID)
	if err != nil || sess == nil {
		return false, err
	}
	flowName, stepID, ok := splitStateTag(sess.State)
	if !ok {
		return false, nil
	}
	fl, flOK := e.Flows[flowName]
	if !flOK {
		return false, nil
	}
	st, stOK := fl.step(stepID)
	if !stOK {
		return false, nil
	}
	return st.Contract.AcceptsPhoto, nil
}

// Handle feeds one inbound input to the chat's current step.
//
// Cancel works from any state and is idempotent on idle. Validation
// failures re-prompt without touching the session. A concurrent input
// that advances the session first turns this call into ErrStale.
func (e *Engine) Handle(ctx context.Context, chatID int64, in Input) (*Reply, error) {
	if in.Kind == KindCancel {
		if err := e.Sessions.Clear(ctx, chatID); err != nil {
			return nil, err
		}
		return &Reply{Cancelled: true}, nil
	}

	// One retry after a conflict: reload and recompute. If the state
	// moved, this input was a duplicate or lost a race; drop it.
	for attempt := 0; attempt < 2; attempt++ {
		reply, err := e.advance(ctx, chatID, in)
		if errors.Is(err, session.ErrConflict) {
			continue
		}
		return reply, err
	}
	return nil, ErrStale
}

func (e *Engine) advance(ctx context.Context, chatID int64, in Input) (*Reply, error) {
	sess, err := e.Sessions.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrIdle
	}

	flowName, stepID, ok := splitStateTag(sess.State)
	if !ok {
		return nil, fmt.Errorf("malformed session state %q", sess.State)
	}
	fl, flOK := e.Flows[flowName]
	if !flOK {
		return nil, fmt.Errorf("unknown flow %q in session", flowName)
	}
	if stepID == finalizingStep {
		// A doubled press while the record is being written.
		return nil, ErrStale
	}
	st, stOK := fl.step(stepID)
	if !stOK {
		return nil, fmt.Errorf("unknown step %q in flow %q", stepID, flowName)
	}

	vals := sess.Values()

	norm, verr := validate(st.Contract, in)
	if verr != nil {
		return &Reply{
			Prompt:        st.Prompt,
			Options:       st.Contract.Options,
			Skippable:     st.Contract.Skippable,
			ValidationMsg: verr.Error(),
		}, nil
	}
	in.Value = norm

	tr := transitionFor(st, in, vals)

	merged := make(map[string]string, len(vals)+len(tr.Patch))
	for k, v := range vals {
		merged[k] = v
	}
	for k, v := range tr.Patch {
		merged[k] = v
	}

	if tr.Action != nil {
		return e.finalize(ctx, chatID, sess.State, fl, *tr.Action, merged)
	}

	next, nextOK := fl.step(tr.Next)
	if !nextOK {
		return nil, fmt.Errorf("flow %q step %q routes to unknown step %q", flowName, stepID, tr.Next)
	}
	if err := e.Sessions.Transition(ctx, chatID, sess.State, stateTag(flowName, tr.Next), merged); err != nil {
		return nil, err
	}
	return promptReply(next), nil
}

// finalize claims the terminal transition before touching the
// collaborator, so a doubled button press cannot create two records:
// only the CAS winner reaches CreateRecord.
func (e *Engine) finalize(ctx context.Context, chatID int64, fromState string, fl Flow, act Action, fields map[string]string) (*Reply, error) {
	finalState := stateTag(fl.Name, finalizingStep)
	if err := e.Sessions.Transition(ctx, chatID, fromState, finalState, fields); err != nil {
		return nil, err
	}

	req := act.Record
	if req.Fields == nil {
		req.Fields = map[string]string{}
	}

	id, err := e.Recorder.CreateRecord(ctx, req)

	// The session is finished either way: success confirms, a
	// validation rejection is reported and the flow ends, and a store
	// failure is reported with the session cleared so the next command
	// starts clean instead of stranding the chat in finalizing.
	var vErr *ValidationError
	if err != nil && !errors.As(err, &vErr) {
		if clearErr := e.Sessions.Clear(ctx, chatID); clearErr != nil {
			return nil, clearErr
		}
		return nil, err
	}
	if clearErr := e.Sessions.Clear(ctx, chatID); clearErr != nil {
		return nil, clearErr
	}
	if vErr != nil {
		return &Reply{Done: true, ValidationMsg: vErr.Msg, Record: req, Fields: fields}, nil
	}
	return &Reply{Done: true, RecordID: id, Record: req, Fields: fields}, nil
}

func validate(c Contract, in Input) (string, error) {
	switch in.Kind {
	case KindSkip:
		if !c.Skippable {
			return "", errors.New("цей крок не можна пропустити")
		}
		return "", nil
	case KindChoice:
		if len(c.Options) == 0 {
			return "", errors.New("очікується текстова відповідь")
		}
		if in.Value == skipChoiceID && c.Skippable {
			return "", nil
		}
		if !c.hasOption(in.Value) {
			return "", errors.New("невідомий варіант, скористайтеся кнопками")
		}
		return in.Value, nil
	case KindText:
		if len(c.Options) > 0 && c.Validate == nil {
			return "", errors.New("оберіть варіант кнопкою")
		}
		if c.Validate != nil {
			return c.Validate(in.Value)
		}
		return strings.TrimSpace(in.Value), nil
	case KindPhoto:
		if c.AcceptsPhoto {
			return in.Value, nil
		}
		return "", errors.New("фото тут не очікується, завершіть операцію або /cancel")
	default:
		return "", fmt.Errorf("unsupported input kind %q", in.Kind)
	}
}

func transitionFor(st Step, in Input, vals map[string]string) Transition {
	if in.Kind == KindSkip || (in.Kind == KindChoice && in.Value == skipChoiceID) {
		in = Input{Kind: KindSkip}
	}
	tr := st.Next(in, vals)
	if in.Kind == KindSkip {
		// Skipped fields are recorded as explicitly empty, distinct
		// from never asked; renderers warn instead of omitting.
		if tr.Patch == nil {
			tr.Patch = map[string]string{}
		}
		if _, set := tr.Patch[st.Field]; !set && st.Field != "" {
			tr.Patch[st.Field] = ""
		}
	}
	return tr
}

func promptReply(st Step) *Reply {
	return &Reply{
		Prompt:    st.Prompt,
		Options:   st.Contract.Options,
		Skippable: st.Contract.Skippable,
	}
}

func stateTag(flowName, stepID string) string {
	return flowName + ":" + stepID
}

func splitStateTag(s string) (flowName, stepID string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
