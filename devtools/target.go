package devtools

import (
	"fmt"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Target is a debuggable target, as listed by the remote debugging server.
type Target struct {
	ID                   string     `json:"id"`
	Type                 TargetType `json:"type"`
	Title                string     `json:"title"`
	URL                  string     `json:"url"`
	Description          string     `json:"description,omitempty"`
	DevtoolsFrontendURL  string     `json:"devtoolsFrontendUrl,omitempty"`
	WebSocketDebuggerURL string     `json:"webSocketDebuggerUrl,omitempty"`
}

// String satisfies stringer.
func (t *Target) String() string {
	return fmt.Sprintf("%s (%s) %q %s", t.ID, t.Type, t.Title, t.URL)
}

// TargetType are the types of targets available in Chrome.
type TargetType string

// TargetType values.
const (
	BackgroundPage TargetType = "background_page"
	Browser        TargetType = "browser"
	IFrame         TargetType = "iframe"
	Other          TargetType = "other"
	Page           TargetType = "page"
	ServiceWorker  TargetType = "service_worker"
	SharedWorker   TargetType = "shared_worker"
	Worker         TargetType = "worker"
)

// String satisfies stringer.
func (tt TargetType) String() string {
	return string(tt)
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (tt TargetType) MarshalEasyJSON(out *jwriter.Writer) {
	out.String(string(tt))
}

// MarshalJSON satisfies json.Marshaler.
func (tt TargetType) MarshalJSON() ([]byte, error) {
	return easyjson.Marshal(tt)
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler. Types newer browsers add
// are kept as reported.
func (tt *TargetType) UnmarshalEasyJSON(in *jlexer.Lexer) {
	*tt = TargetType(in.String())
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (tt *TargetType) UnmarshalJSON(buf []byte) error {
	return easyjson.Unmarshal(buf, tt)
}
