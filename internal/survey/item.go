// Package survey holds the survey definition model and validates responses
// against it.
//
// A Survey is an ordered collection of items: prompts, messages and
// repeatable sets, where a repeatable set recursively contains more items.
// Every value in the package is immutable once constructed and may be shared
// between goroutines.
package survey

import (
	"github.com/paulexconde/surveysense/internal/concordia"
)

// Sentinel response values.
const (
	// Skipped is submitted for, or recorded against, a skippable item the
	// participant chose not to answer.
	Skipped = "SKIPPED"
	// NotDisplayed is recorded against an item whose condition was false.
	NotDisplayed = "NOT_DISPLAYED"
)

// Item kinds, as they appear in definition documents.
const (
	KindPrompt        = "prompt"
	KindMessage       = "message"
	KindRepeatableSet = "repeatable_set"
)

// Item is one entry of a Survey or RepeatableSet. The set of implementations
// is closed: Prompt kinds, *Message and *RepeatableSet.
type Item interface {
	ID() string
	Index() int
	// Condition is nil when the item is always displayed.
	Condition() *Condition
	Kind() string

	// NumItems counts this item and everything it contains. A repeatable
	// set counts only its contents.
	NumItems() int
	NumPrompts() int

	// ToJSON returns the item's generic document form.
	ToJSON() map[string]any

	item()
}

// Container is implemented by Survey and RepeatableSet.
type Container interface {
	// Item finds an item by id, depth-first in ascending index order.
	Item(id string) (Item, bool)
	// ItemAt finds the direct child with the given index.
	ItemAt(index int) (Item, bool)
	// Prompt finds a prompt by id among direct children first, then inside
	// nested repeatable sets.
	Prompt(id string) (Prompt, bool)
	// Items returns the direct children in ascending index order.
	Items() []Item
	NumItems() int
	NumPrompts() int
}

// itemBase carries the attributes every item shares.
type itemBase struct {
	id        string
	index     int
	condition *Condition
}

func (b *itemBase) ID() string            { return b.id }
func (b *itemBase) Index() int            { return b.index }
func (b *itemBase) Condition() *Condition { return b.condition }
func (b *itemBase) item()                 {}

func (b *itemBase) json(kind string) map[string]any {
	doc := map[string]any{
		"id":    b.id,
		"type":  kind,
		"index": b.index,
	}
	if b.condition != nil {
		doc["condition"] = b.condition.String()
	}
	return doc
}

// conditionSource is used by JSON docs and equality.
func conditionSource(c *Condition) string {
	if c == nil {
		return ""
	}
	return c.String()
}

// writeFragment is the Concordia visitor step for a single item. Only
// prompts contribute; messages have no response and repeatable sets have no
// Concordia definition yet.
func writeFragment(sink concordia.Sink, it Item) {
	if p, ok := it.(Prompt); ok {
		sink.Append(p.Concordia())
	}
}

var (
	_ Container = (*Survey)(nil)
	_ Container = (*RepeatableSet)(nil)
	_ Item      = (*RepeatableSet)(nil)
	_ Item      = (*Message)(nil)

	_ Prompt      = (*TextPrompt)(nil)
	_ Prompt      = (*NumberPrompt)(nil)
	_ Prompt      = (*HoursBeforeNowPrompt)(nil)
	_ Prompt      = (*TimestampPrompt)(nil)
	_ Prompt      = (*SingleChoicePrompt)(nil)
	_ Prompt      = (*MultiChoicePrompt)(nil)
	_ MediaPrompt = (*PhotoPrompt)(nil)
	_ MediaPrompt = (*VideoPrompt)(nil)
	_ MediaPrompt = (*AudioPrompt)(nil)
)
