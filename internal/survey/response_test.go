package survey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveysense/pkg/fault"
)

func launch(t *testing.T) LaunchContext {
	t.Helper()
	lc, err := NewLaunchContext(time.UnixMilli(1700000000000), "UTC", []string{"trigger-1"})
	require.NoError(t, err)
	return lc
}

func TestNewResponseMissingRequiredPrompt(t *testing.T) {
	s := scenarioSurvey(t)

	_, err := NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"rs1": []any{}},
	})
	require.Error(t, err)
	assert.True(t, fault.IsResponseError(err))
	assert.Equal(t, "p1", fault.ItemID(err))
}

func TestNewResponseConditionFalseSkipsItem(t *testing.T) {
	s, err := New("s1", "T", "", "", "Submit", false, ItemMap(
		numberPrompt(t, "p1", 0, ""),
		textPrompt(t, "p2", 1, "p1 > 5", false),
	))
	require.NoError(t, err)

	r, err := NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"p1": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"p1": int64(3), "p2": NotDisplayed}, r.Responses())

	_, err = NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"p1": 9},
	})
	require.Error(t, err)
	assert.Equal(t, "p2", fault.ItemID(err))
}

func TestNewResponseRepeatableSet(t *testing.T) {
	inner := ItemMap(
		numberPrompt(t, "count", 0, ""),
		textPrompt(t, "what", 1, "count > 0 and p1 == 'yes'", true),
	)
	rs, err := NewRepeatableSet("meals", 1, nil, false, Termination{
		Question:   "Anything else?",
		TrueLabel:  "Yes",
		FalseLabel: "No",
	}, inner)
	require.NoError(t, err)

	s, err := New("s1", "T", "", "", "Submit", false, ItemMap(
		textPrompt(t, "p1", 0, "", false),
		rs,
		message(t, "bye", 2),
	))
	require.NoError(t, err)

	r, err := NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses: map[string]any{
			"p1": "yes",
			"meals": []any{
				map[string]any{"count": 2, "what": "soup"},
				map[string]any{"count": 0},
				map[string]any{"count": 1},
			},
		},
	})
	require.NoError(t, err)

	got, ok := r.Response("meals")
	require.True(t, ok)
	assert.Equal(t, []map[string]any{
		{"count": int64(2), "what": "soup"},
		{"count": int64(0), "what": NotDisplayed},
		{"count": int64(1), "what": Skipped},
	}, got)

	_, err = NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses: map[string]any{
			"p1":    "yes",
			"meals": []any{map[string]any{"count": "many"}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "count", fault.ItemID(err))
	assert.Contains(t, err.Error(), "meals iteration 0")

	_, err = NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"p1": "yes", "meals": Skipped},
	})
	require.Error(t, err, "the set is not skippable")
}

func TestNewResponseRejects(t *testing.T) {
	s := scenarioSurvey(t)

	tests := []struct {
		name   string
		sub    Submission
		itemID string
	}{
		{
			name: "unknown item",
			sub: Submission{LaunchContext: launch(t), Responses: map[string]any{
				"p1": "a", "rs1": []any{}, "zzz": 1,
			}},
			itemID: "zzz",
		},
		{
			name: "nested id at top level",
			sub: Submission{LaunchContext: launch(t), Responses: map[string]any{
				"p1": "a", "rs1": []any{}, "p2": "b",
			}},
			itemID: "p2",
		},
		{
			name: "other survey",
			sub: Submission{SurveyID: "s2", LaunchContext: launch(t), Responses: map[string]any{
				"p1": "a", "rs1": []any{},
			}},
			itemID: JSONKeySurveyID,
		},
		{
			name:   "no launch context",
			sub:    Submission{Responses: map[string]any{"p1": "a", "rs1": []any{}}},
			itemID: JSONKeyLaunchContext,
		},
		{
			name: "iteration is not an object",
			sub: Submission{LaunchContext: launch(t), Responses: map[string]any{
				"p1": "a", "rs1": []any{"p2"},
			}},
			itemID: "rs1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResponse(s, tt.sub)
			require.Error(t, err)
			assert.True(t, fault.IsResponseError(err))
			assert.Equal(t, tt.itemID, fault.ItemID(err))
		})
	}

	_, err := NewResponse(nil, Submission{})
	require.Error(t, err)
	assert.True(t, fault.IsDefinitionError(err))
}

func TestNewResponseMedia(t *testing.T) {
	audio, err := NewAudioPrompt(PromptBase{ID: "a1", Text: "Say something"}, i64(2000))
	require.NoError(t, err)
	s, err := New("s1", "T", "", "", "Submit", false, ItemMap(audio))
	require.NoError(t, err)

	m := attach(wavBytes(t, time.Second))

	_, err = NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"a1": m.ID.String()},
	})
	require.Error(t, err)
	assert.Equal(t, "a1", fault.ItemID(err))

	r, err := NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"a1": m.ID.String()},
		Media:         MediaSet{m.ID: m},
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID.String(), r.Responses()["a1"])
}

func TestResponseKeyAndJSON(t *testing.T) {
	s := scenarioSurvey(t)
	key := uuid.New()

	r, err := NewResponse(s, Submission{
		Key:           key,
		SurveyID:      "s1",
		LaunchContext: launch(t),
		Responses: map[string]any{
			"p1":  "hello",
			"rs1": []any{map[string]any{"p2": "one"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, key, r.Key())
	assert.Same(t, s, r.Survey())

	doc := r.ToJSON()
	assert.Equal(t, key.String(), doc[JSONKeySurveyKey])
	assert.Equal(t, "s1", doc[JSONKeySurveyID])
	assert.Equal(t, []any{
		map[string]any{"prompt_id": "p1", "value": "hello"},
		map[string]any{"prompt_id": "rs1", "value": []map[string]any{{"p2": "one"}}},
	}, doc[JSONKeyResponses])

	generated, err := NewResponse(s, Submission{
		LaunchContext: launch(t),
		Responses:     map[string]any{"p1": "x", "rs1": []any{}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, generated.Key())
}
