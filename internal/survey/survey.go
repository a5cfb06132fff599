package survey

import (
	"strings"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// Keys of the generic survey document.
const (
	JSONKeyID          = "id"
	JSONKeyTitle       = "title"
	JSONKeyDescription = "description"
	JSONKeyIntroText   = "intro_text"
	JSONKeySubmitText  = "submit_text"
	JSONKeyAnytime     = "anytime"
	JSONKeyItems       = "prompts"
)

// Keys of the survey response document and its Concordia schema.
const (
	JSONKeyLaunchContext  = "survey_launch_context"
	JSONKeyResponses      = "responses"
	JSONKeyLaunchTime     = "launch_time"
	JSONKeyLaunchTimezone = "launch_timezone"
	JSONKeyActiveTriggers = "active_triggers"
)

// Survey is an immutable survey definition.
type Survey struct {
	container
	id          string
	title       string
	description string
	introText   string
	submitText  string
	anytime     bool
}

// New builds a Survey. description and introText may be empty; items maps
// each item's index to the item and is copied.
func New(id, title, description, introText, submitText string, anytime bool, items map[int]Item) (*Survey, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.NewDefinitionError("", "the ID cannot be blank", nil)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fault.NewDefinitionError(id, "the title cannot be blank", nil)
	}
	if strings.TrimSpace(submitText) == "" {
		return nil, fault.NewDefinitionError(id, "the submit text cannot be blank", nil)
	}

	c, err := newContainer(id, items)
	if err != nil {
		return nil, err
	}
	if err := c.checkReferences(nil); err != nil {
		return nil, err
	}

	return &Survey{
		container:   c,
		id:          id,
		title:       title,
		description: description,
		introText:   introText,
		submitText:  submitText,
		anytime:     anytime,
	}, nil
}

func (s *Survey) ID() string          { return s.id }
func (s *Survey) Title() string       { return s.title }
func (s *Survey) Description() string { return s.description }
func (s *Survey) IntroText() string   { return s.introText }
func (s *Survey) SubmitText() string  { return s.submitText }

// Anytime reports whether the survey may be taken at any time rather than
// only when a trigger makes it available.
func (s *Survey) Anytime() bool { return s.anytime }

// Equal reports whether s and other have the same id and items. Other
// fields are ignored.
func (s *Survey) Equal(other *Survey) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.id == other.id && s.container.equal(&other.container)
}

// JSONOptions selects the fields ToJSON emits. When Items is set and
// PromptIDs is non-nil, only top-level items whose id is listed are emitted.
type JSONOptions struct {
	ID          bool
	Title       bool
	Description bool
	IntroText   bool
	SubmitText  bool
	Anytime     bool
	Items       bool
	PromptIDs   []string
}

// AllFields emits the whole survey.
var AllFields = JSONOptions{
	ID:          true,
	Title:       true,
	Description: true,
	IntroText:   true,
	SubmitText:  true,
	Anytime:     true,
	Items:       true,
}

// ToJSON returns the survey's generic document. Absent optional fields are
// left out even when selected.
func (s *Survey) ToJSON(opts JSONOptions) map[string]any {
	doc := make(map[string]any)

	if opts.ID {
		doc[JSONKeyID] = s.id
	}
	if opts.Title {
		doc[JSONKeyTitle] = s.title
	}
	if opts.Description && s.description != "" {
		doc[JSONKeyDescription] = s.description
	}
	if opts.IntroText && s.introText != "" {
		doc[JSONKeyIntroText] = s.introText
	}
	if opts.SubmitText {
		doc[JSONKeySubmitText] = s.submitText
	}
	if opts.Anytime {
		doc[JSONKeyAnytime] = s.anytime
	}
	if opts.Items {
		var filter map[string]bool
		if opts.PromptIDs != nil {
			filter = make(map[string]bool, len(opts.PromptIDs))
			for _, id := range opts.PromptIDs {
				filter[id] = true
			}
		}
		doc[JSONKeyItems] = s.itemsJSON(filter)
	}

	return doc
}

// TopLevelPrompt finds a prompt that is a direct item of the survey,
// ignoring prompts inside repeatable sets.
func (s *Survey) TopLevelPrompt(id string) (Prompt, bool) {
	p, ok := s.prompts[id]
	return p, ok
}

// WriteConcordia appends the response-value schema of every top-level
// prompt to sink, in index order. With a non-empty promptID only that
// top-level prompt is written, if it exists.
func (s *Survey) WriteConcordia(sink concordia.Sink, promptID string) {
	if promptID != "" {
		if p, ok := s.TopLevelPrompt(promptID); ok {
			sink.Append(p.Concordia())
		}
		return
	}

	for _, index := range s.order {
		writeFragment(sink, s.items[index])
	}
}

// Concordia returns the schema of a response to this survey: its launch
// context and the array of response values.
func (s *Survey) Concordia(promptID string) concordia.Node {
	var responses concordia.List
	s.WriteConcordia(&responses, promptID)

	return concordia.Object("",
		LaunchContextSchema(),
		concordia.Tuple(JSONKeyResponses, responses...),
	)
}

// LaunchContextSchema describes the survey_launch_context object.
func LaunchContextSchema() concordia.Node {
	return concordia.Object(JSONKeyLaunchContext,
		concordia.Field(JSONKeyLaunchTime, concordia.TypeNumber),
		concordia.Field(JSONKeyLaunchTimezone, concordia.TypeString),
		concordia.Array(JSONKeyActiveTriggers, concordia.Node{Type: concordia.TypeString}),
	)
}

// Builder collects items for a Survey. The survey is only created, and its
// invariants checked, by Build.
type Builder struct {
	id          string
	title       string
	description string
	introText   string
	submitText  string
	anytime     bool
	items       map[int]Item
}

func NewBuilder(id, title, submitText string) *Builder {
	return &Builder{
		id:         id,
		title:      title,
		submitText: submitText,
		items:      make(map[int]Item),
	}
}

func (b *Builder) Description(d string) *Builder {
	b.description = d
	return b
}

func (b *Builder) IntroText(t string) *Builder {
	b.introText = t
	return b
}

func (b *Builder) Anytime(anytime bool) *Builder {
	b.anytime = anytime
	return b
}

// Add adds items keyed by their own index. A later item with the same index
// replaces an earlier one.
func (b *Builder) Add(items ...Item) *Builder {
	for _, it := range items {
		if it != nil {
			b.items[it.Index()] = it
		}
	}
	return b
}

func (b *Builder) Build() (*Survey, error) {
	return New(b.id, b.title, b.description, b.introText, b.submitText, b.anytime, b.items)
}

// ItemMap keys items by their index, for New and NewRepeatableSet.
func ItemMap(items ...Item) map[int]Item {
	m := make(map[int]Item, len(items))
	for _, it := range items {
		m[it.Index()] = it
	}
	return m
}
