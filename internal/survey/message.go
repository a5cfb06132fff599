package survey

import (
	"strings"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// Message is display-only text between prompts. It takes no response.
type Message struct {
	itemBase
	text string
}

func NewMessage(id string, index int, condition *Condition, text string) (*Message, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.NewDefinitionError("", "the message ID is missing", nil)
	}
	if index < 0 {
		return nil, fault.NewDefinitionError(id, "the index cannot be negative", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fault.NewDefinitionError(id, "the message text is missing", nil)
	}

	return &Message{
		itemBase: itemBase{id: id, index: index, condition: condition},
		text:     text,
	}, nil
}

func (m *Message) Kind() string    { return KindMessage }
func (m *Message) Text() string    { return m.text }
func (m *Message) NumItems() int   { return 1 }
func (m *Message) NumPrompts() int { return 0 }

func (m *Message) ToJSON() map[string]any {
	doc := m.json(KindMessage)
	doc["message_text"] = m.text
	return doc
}
