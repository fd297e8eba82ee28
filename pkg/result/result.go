// Package result tracks the outcome of a long-running operation such as a harvest or an export.
package result

import (
	"encoding/json"
	"fmt"
	"github.com/sf7293/sfm-utils/internal/errval"
	"strings"
	"time"
)

const (
	StatusSuccess = "completed success"
	StatusFailure = "completed failure"
	StatusRunning = "running"
)

// Msg is an informational, warning or error message included in a result.
type Msg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMsg(code, message string) (Msg, error) {
	if code == "" {
		return Msg{}, errval.ErrEmptyCode
	}
	if message == "" {
		return Msg{}, errval.ErrEmptyMessage
	}

	return Msg{Code: code, Message: message}, nil
}

func (m Msg) ToMap() map[string]string {
	return map[string]string{
		"code":    m.Code,
		"message": m.Message,
	}
}

// Result accumulates messages for one operation. Success is driven by the caller:
// adding an error does not flip it.
type Result struct {
	Success  bool
	Started  time.Time
	Ended    time.Time
	Infos    []Msg
	Warnings []Msg
	Errors   []Msg

	name    string
	trailer func() string
}

type Option func(*Result)

// WithName sets the label used in the status line, e.g. "Harvest".
func WithName(name string) Option {
	return func(r *Result) {
		r.name = name
	}
}

// WithTrailer appends the returned text to String, after the message lists.
func WithTrailer(trailer func() string) Option {
	return func(r *Result) {
		r.trailer = trailer
	}
}

func New(opts ...Option) *Result {
	r := &Result{Success: true}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// OK is the result's truth value.
func (r *Result) OK() bool {
	return r.Success
}

func (r *Result) Name() string {
	return r.name
}

func (r *Result) Status() string {
	if !r.Started.IsZero() && r.Ended.IsZero() {
		return StatusRunning
	}
	if r.Success {
		return StatusSuccess
	}

	return StatusFailure
}

func (r *Result) AddInfo(code, message string) error {
	msg, err := NewMsg(code, message)
	if err != nil {
		return err
	}

	r.Infos = append(r.Infos, msg)
	return nil
}

func (r *Result) AddWarning(code, message string) error {
	msg, err := NewMsg(code, message)
	if err != nil {
		return err
	}

	r.Warnings = append(r.Warnings, msg)
	return nil
}

func (r *Result) AddError(code, message string) error {
	msg, err := NewMsg(code, message)
	if err != nil {
		return err
	}

	r.Errors = append(r.Errors, msg)
	return nil
}

func (r *Result) String() string {
	var b strings.Builder

	label := r.name
	if label == "" {
		label = "Result"
	}
	fmt.Fprintf(&b, "%s response is %t.", label, r.Success)
	if !r.Started.IsZero() {
		fmt.Fprintf(&b, "\nStarted: %s", r.Started.Format(time.RFC3339))
	}
	if !r.Ended.IsZero() {
		fmt.Fprintf(&b, "\nEnded: %s", r.Ended.Format(time.RFC3339))
	}

	writeMessages(&b, r.Infos, "Informational")
	writeMessages(&b, r.Warnings, "Warning")
	writeMessages(&b, r.Errors, "Error")

	if r.trailer != nil {
		if trailer := r.trailer(); trailer != "" {
			b.WriteString("\n")
			b.WriteString(trailer)
		}
	}

	return b.String()
}

func writeMessages(b *strings.Builder, messages []Msg, name string) {
	if len(messages) == 0 {
		return
	}

	fmt.Fprintf(b, "\n%s messages are:", name)
	for i, msg := range messages {
		fmt.Fprintf(b, "\n(%d) [%s] %s", i+1, msg.Code, msg.Message)
	}
}

type resultJSON struct {
	Name     string     `json:"name,omitempty"`
	Success  bool       `json:"success"`
	Status   string     `json:"status"`
	Started  *time.Time `json:"started,omitempty"`
	Ended    *time.Time `json:"ended,omitempty"`
	Infos    []Msg      `json:"infos"`
	Warnings []Msg      `json:"warnings"`
	Errors   []Msg      `json:"errors"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Name:     r.name,
		Success:  r.Success,
		Status:   r.Status(),
		Infos:    nonNil(r.Infos),
		Warnings: nonNil(r.Warnings),
		Errors:   nonNil(r.Errors),
	}
	if !r.Started.IsZero() {
		started := r.Started
		out.Started = &started
	}
	if !r.Ended.IsZero() {
		ended := r.Ended
		out.Ended = &ended
	}

	return json.Marshal(out)
}

func nonNil(messages []Msg) []Msg {
	if messages == nil {
		return []Msg{}
	}

	return messages
}
