package survey

import (
	"fmt"
	"time"

	"github.com/paulexconde/surveysense/internal/concordia"
)

// localTimestamp is the zone-less form older clients submit.
const localTimestamp = "2006-01-02T15:04:05"

// TimestampPrompt asks for a point in time. Responses are normalized to
// RFC 3339.
type TimestampPrompt struct {
	promptBase
}

func NewTimestampPrompt(b PromptBase) (*TimestampPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}

	p := &TimestampPrompt{promptBase: base}
	if err := checkDefault(p, &p.promptBase); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TimestampPrompt) PromptType() string { return TypeTimestamp }

func (p *TimestampPrompt) Validate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, localTimestamp} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format(time.RFC3339), nil
			}
		}
		return nil, p.invalid(fmt.Sprintf("the response is not a timestamp: %q", v))
	}
	return nil, p.invalid(fmt.Sprintf("the response must be a timestamp string, got %T", value))
}

func (p *TimestampPrompt) Concordia() concordia.Node {
	return concordia.Field(p.id, concordia.TypeString)
}

func (p *TimestampPrompt) ToJSON() map[string]any {
	return p.json(TypeTimestamp, nil)
}
