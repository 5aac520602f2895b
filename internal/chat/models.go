package chat

import "encoding/json"

// Message roles used by the chat UI and the Ollama chat API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a conversation as the chat UI stores it.
// Fields other than role and content (images, tool calls, timestamps) are
// kept in Extra and written back unchanged.
type Message struct {
	Role    string                     `json:"role"`
	Content string                     `json:"content"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// plainMessage has Message's fields without its methods.
type plainMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UnmarshalJSON decodes role and content and collects every other key into Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	var p plainMessage
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	delete(fields, "role")
	delete(fields, "content")

	m.Role, m.Content = p.Role, p.Content
	m.Extra = nil
	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}

// MarshalJSON writes role and content followed by the Extra fields.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Extra) == 0 {
		return json.Marshal(plainMessage{Role: m.Role, Content: m.Content})
	}

	fields := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		fields[k] = v
	}

	var err error
	if fields["role"], err = json.Marshal(m.Role); err != nil {
		return nil, err
	}
	if fields["content"], err = json.Marshal(m.Content); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// History is an ordered conversation, oldest message first.
type History []Message

// TitleRequest is the body of POST /generate-title.
type TitleRequest struct {
	History History `json:"history"`
	Model   string  `json:"model"`
}

// TitleResponse is the body of a successful /generate-title response.
// Title is empty when the server omitted it.
type TitleResponse struct {
	Title string `json:"title,omitempty"`
}

// Tail returns the last n messages of h. It returns h itself when n <= 0 or
// h is already short enough.
func (h History) Tail(n int) History {
	if n <= 0 || len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}
