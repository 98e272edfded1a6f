package state

// Message is a message label plus its content once retrieved.
type Message struct {
	GroupID   int    `json:"groupID"`
	MessageID int    `json:"messageID"`
	Username  string `json:"username"`
	PostDate  string `json:"postDate"`
	Subject   string `json:"subject"`
	Content   string `json:"content,omitempty"`
	Loaded    bool   `json:"loaded"`
}

// SetContent stores the message body and marks the message loaded.
func (m *Message) SetContent(content string) {
	m.Content = content
	m.Loaded = true
}
