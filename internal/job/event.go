package job

import (
	"encoding/json"
	"fmt"
)

// Kind tags an Event
type Kind string

const (
	KindInfo  Kind = "info"
	KindStep  Kind = "step"
	KindOK    Kind = "ok"
	KindError Kind = "error"
	KindDone  Kind = "done"
)

// Event is one immutable progress notification. Only done events carry a
// Result or Failure, and exactly one of them; the fields are unexported so
// no other combination can be built.
type Event struct {
	seq     int64
	kind    Kind
	text    string
	result  *Result
	failure *Failure
}

func textEvent(kind Kind, text string) Event {
	return Event{kind: kind, text: text}
}

func doneEvent(result *Result, failure *Failure) Event {
	if (result == nil) == (failure == nil) {
		panic("job: done event needs exactly one of result or failure")
	}
	return Event{kind: KindDone, result: result, failure: failure}
}

// Seq is the 1-based position of the event in its job's log
func (e Event) Seq() int64 { return e.seq }

func (e Event) Kind() Kind { return e.kind }

// Text is empty for done events
func (e Event) Text() string { return e.text }

// Result is set only on a successful done event
func (e Event) Result() *Result { return e.result }

// Failure is set only on a failed done event
func (e Event) Failure() *Failure { return e.failure }

type wireEvent struct {
	Seq    int64    `json:"seq"`
	Type   Kind     `json:"type"`
	Text   string   `json:"text,omitempty"`
	Result *Result  `json:"result,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Seq:    e.seq,
		Type:   e.kind,
		Text:   e.text,
		Result: e.result,
		Error:  e.failure,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case KindInfo, KindStep, KindOK, KindError:
		if w.Result != nil || w.Error != nil {
			return fmt.Errorf("%s event cannot carry a result or error", w.Type)
		}
		*e = textEvent(w.Type, w.Text)
	case KindDone:
		if (w.Result == nil) == (w.Error == nil) {
			return fmt.Errorf("done event needs exactly one of result or error")
		}
		*e = doneEvent(w.Result, w.Error)
	default:
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	e.seq = w.Seq
	return nil
}
