package survey

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

func base(id string) PromptBase {
	return PromptBase{ID: id, Text: "Question " + id}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func i64(n int64) *int64 { return &n }
func iptr(n int) *int    { return &n }

func TestNewPromptBaseRejects(t *testing.T) {
	tests := []struct {
		name string
		b    PromptBase
	}{
		{name: "blank id", b: PromptBase{Text: "Q"}},
		{name: "blank text", b: PromptBase{ID: "p1", Text: " "}},
		{name: "negative index", b: PromptBase{ID: "p1", Index: -1, Text: "Q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextPrompt(tt.b, 0, 0)
			require.Error(t, err)
			assert.True(t, fault.IsDefinitionError(err))
		})
	}
}

func TestTextPrompt(t *testing.T) {
	_, err := NewTextPrompt(base("p1"), 5, 2)
	require.Error(t, err)
	assert.True(t, fault.IsDefinitionError(err))

	p, err := NewTextPrompt(base("p1"), 2, 4)
	require.NoError(t, err)

	tests := []struct {
		value   any
		wantErr bool
	}{
		{value: "ab"},
		{value: "éèà"},
		{value: "a", wantErr: true},
		{value: "abcde", wantErr: true},
		{value: 42, wantErr: true},
	}
	for _, tt := range tests {
		v, err := p.Validate(tt.value)
		if tt.wantErr {
			require.Error(t, err, "%v", tt.value)
			assert.True(t, fault.IsResponseError(err))
			assert.Equal(t, "p1", fault.ItemID(err))
			continue
		}
		require.NoError(t, err, "%v", tt.value)
		assert.Equal(t, tt.value, v)
	}

	assert.Equal(t, concordia.Field("p1", concordia.TypeString), p.Concordia())
}

func TestTextPromptDefault(t *testing.T) {
	b := base("p1")
	b.DefaultResponse = "x"
	_, err := NewTextPrompt(b, 2, 0)
	require.Error(t, err)
	assert.True(t, fault.IsDefinitionError(err))

	b.DefaultResponse = "fine"
	p, err := NewTextPrompt(b, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "fine", p.DefaultResponse())
	assert.Equal(t, "fine", p.ToJSON()["default"])
}

func TestNumberPrompt(t *testing.T) {
	_, err := NewNumberPrompt(base("n1"), NumberConstraints{Min: dec("5"), Max: dec("1")})
	require.Error(t, err)
	_, err = NewNumberPrompt(base("n1"), NumberConstraints{Min: dec("0.5"), WholeNumber: true})
	require.Error(t, err)

	p, err := NewNumberPrompt(base("n1"), NumberConstraints{Min: dec("0"), Max: dec("10.5")})
	require.NoError(t, err)

	tests := []struct {
		value   any
		want    any
		wantErr bool
	}{
		{value: 3, want: int64(3)},
		{value: 3.25, want: 3.25},
		{value: json.Number("10.5"), want: 10.5},
		{value: "7", want: int64(7)},
		{value: -1, wantErr: true},
		{value: 11, wantErr: true},
		{value: "seven", wantErr: true},
		{value: true, wantErr: true},
		{value: math.NaN(), wantErr: true},
		{value: math.Inf(1), wantErr: true},
		{value: float32(math.Inf(-1)), wantErr: true},
		{value: "NaN", wantErr: true},
	}
	for _, tt := range tests {
		v, err := p.Validate(tt.value)
		if tt.wantErr {
			require.Error(t, err, "%v", tt.value)
			assert.True(t, fault.IsResponseError(err))
			continue
		}
		require.NoError(t, err, "%v", tt.value)
		assert.Equal(t, tt.want, v)
	}

	whole, err := NewNumberPrompt(base("n2"), NumberConstraints{WholeNumber: true})
	require.NoError(t, err)
	_, err = whole.Validate(1.5)
	require.Error(t, err)

	assert.Equal(t, map[string]any{"min": int64(0), "max": 10.5}, p.ToJSON()["properties"])
}

func TestHoursBeforeNowPrompt(t *testing.T) {
	p, err := NewHoursBeforeNowPrompt(base("h1"), i64(0), i64(48))
	require.NoError(t, err)
	assert.Equal(t, TypeHoursBeforeNow, p.PromptType())

	v, err := p.Validate(12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = p.Validate(1.5)
	require.Error(t, err)
	_, err = p.Validate(49)
	require.Error(t, err)

	_, err = NewHoursBeforeNowPrompt(base("h1"), i64(10), i64(1))
	require.Error(t, err)

	assert.Equal(t, TypeHoursBeforeNow, p.ToJSON()["prompt_type"])
	assert.Equal(t, concordia.TypeNumber, p.Concordia().Type)
}

func TestTimestampPrompt(t *testing.T) {
	p, err := NewTimestampPrompt(base("t1"))
	require.NoError(t, err)

	v, err := p.Validate("2024-03-01T10:15:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:15:00+01:00", v)

	v, err = p.Validate("2024-03-01T10:15:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:15:00Z", v)

	v, err = p.Validate(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:00:00Z", v)

	_, err = p.Validate("yesterday")
	require.Error(t, err)
	_, err = p.Validate(12)
	require.Error(t, err)
}

func TestChoicePrompts(t *testing.T) {
	five := 5.0
	list := []Choice{{Key: 1, Label: "Yes", Value: &five}, {Key: 0, Label: "No"}}

	for _, bad := range [][]Choice{
		nil,
		{{Key: 1, Label: "A"}, {Key: 1, Label: "B"}},
		{{Key: 1, Label: "A"}, {Key: 2, Label: "A"}},
		{{Key: 1, Label: " "}},
	} {
		_, err := NewSingleChoicePrompt(base("c1"), bad)
		require.Error(t, err, "%v", bad)
		assert.True(t, fault.IsDefinitionError(err))
	}

	single, err := NewSingleChoicePrompt(base("c1"), list)
	require.NoError(t, err)

	v, err := single.Validate(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = single.Validate(json.Number("0"))
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	_, err = single.Validate(3)
	require.Error(t, err)
	_, err = single.Validate("Yes")
	require.Error(t, err)

	assert.Equal(t, []Choice{{Key: 0, Label: "No"}, {Key: 1, Label: "Yes", Value: &five}}, single.Choices())

	multi, err := NewMultiChoicePrompt(base("c2"), list)
	require.NoError(t, err)

	v, err = multi.Validate([]any{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, v)
	v, err = multi.Validate([]int{})
	require.NoError(t, err)
	assert.Equal(t, []int{}, v)
	_, err = multi.Validate([]any{1, 1})
	require.Error(t, err)
	_, err = multi.Validate([]any{2})
	require.Error(t, err)
	_, err = multi.Validate(1)
	require.Error(t, err)

	assert.Equal(t, concordia.Array("c2", concordia.Node{Type: concordia.TypeNumber}), multi.Concordia())
}

func TestValidatePromptSentinels(t *testing.T) {
	required, err := NewTextPrompt(base("p1"), 0, 0)
	require.NoError(t, err)
	b := base("p2")
	b.Skippable = true
	skippable, err := NewTextPrompt(b, 0, 0)
	require.NoError(t, err)

	_, err = validatePrompt(required, nil, false, nil)
	require.Error(t, err)
	assert.Equal(t, "p1", fault.ItemID(err))

	_, err = validatePrompt(required, Skipped, true, nil)
	require.Error(t, err)

	_, err = validatePrompt(required, NotDisplayed, true, nil)
	require.Error(t, err)

	v, err := validatePrompt(skippable, nil, false, nil)
	require.NoError(t, err)
	assert.Equal(t, Skipped, v)

	v, err = validatePrompt(skippable, Skipped, true, nil)
	require.NoError(t, err)
	assert.Equal(t, Skipped, v)
}

// wavBytes builds an 8 kHz, 8-bit mono PCM WAV file of the given length.
func wavBytes(t *testing.T, d time.Duration) []byte {
	t.Helper()
	const rate = 8000
	data := make([]byte, int(d.Seconds()*rate))
	for i := range data {
		data[i] = 128
	}

	var buf bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
	buf.WriteString("RIFF")
	w(uint32(36 + len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(1)) // mono
	w(uint32(rate))
	w(uint32(rate)) // byte rate
	w(uint16(1))    // block align
	w(uint16(8))    // bits per sample
	buf.WriteString("data")
	w(uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func attach(content []byte) Media {
	return Media{ID: uuid.New(), Content: bytes.NewReader(content)}
}

func TestMediaPromptValidateID(t *testing.T) {
	p, err := NewPhotoPrompt(base("ph1"), nil)
	require.NoError(t, err)

	id := uuid.New()
	v, err := p.Validate(id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	v, err = p.Validate(id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	_, err = p.Validate("not-a-uuid")
	require.Error(t, err)

	b := base("ph2")
	b.DefaultResponse = id.String()
	_, err = NewPhotoPrompt(b, nil)
	require.Error(t, err)
}

func TestPhotoPrompt(t *testing.T) {
	p, err := NewPhotoPrompt(base("ph1"), iptr(15))
	require.NoError(t, err)

	assert.NoError(t, p.ValidateMedia(attach(pngBytes(t, 10, 15))))
	err = p.ValidateMedia(attach(pngBytes(t, 20, 10)))
	require.Error(t, err)
	assert.True(t, fault.IsResponseError(err))

	err = p.ValidateMedia(attach(wavBytes(t, time.Second)))
	require.Error(t, err)

	_, err = NewPhotoPrompt(base("ph1"), iptr(0))
	require.Error(t, err)
}

func TestVideoPrompt(t *testing.T) {
	p, err := NewVideoPrompt(base("v1"), iptr(30))
	require.NoError(t, err)

	mp4 := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}
	assert.NoError(t, p.ValidateMedia(attach(mp4)))

	err = p.ValidateMedia(attach(pngBytes(t, 1, 1)))
	require.Error(t, err)
	assert.Equal(t, "v1", fault.ItemID(err))

	assert.Equal(t, map[string]any{"max_seconds": 30}, p.ToJSON()["properties"])
}

func TestAudioPrompt(t *testing.T) {
	recording := wavBytes(t, time.Second)

	short, err := NewAudioPrompt(base("a1"), i64(500))
	require.NoError(t, err)
	err = short.ValidateMedia(attach(recording))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum allowed duration of '500' milliseconds")

	long, err := NewAudioPrompt(base("a1"), i64(2000))
	require.NoError(t, err)
	assert.NoError(t, long.ValidateMedia(attach(recording)))

	unbounded, err := NewAudioPrompt(base("a1"), nil)
	require.NoError(t, err)
	assert.NoError(t, unbounded.ValidateMedia(attach(recording)))

	err = unbounded.ValidateMedia(attach(pngBytes(t, 2, 2)))
	require.Error(t, err)

	// A FLAC stream marker followed by a STREAMINFO block header.
	flac := append([]byte("fLaC\x00\x00\x00\x22"), make([]byte, 34)...)
	assert.NoError(t, unbounded.ValidateMedia(attach(flac)))
	err = long.ValidateMedia(attach(flac))
	require.Error(t, err)
	assert.True(t, fault.IsResponseError(err))
	assert.ErrorIs(t, err, errUnsupportedAudio)

	err = unbounded.ValidateMedia(Media{ID: uuid.New()})
	require.Error(t, err)

	_, err = NewAudioPrompt(base("a1"), i64(-1))
	require.Error(t, err)
}

func TestValidateAttachment(t *testing.T) {
	p, err := NewAudioPrompt(base("a1"), i64(2000))
	require.NoError(t, err)

	m := attach(wavBytes(t, time.Second))
	media := MediaSet{m.ID: m}

	v, err := validatePrompt(p, m.ID.String(), true, media)
	require.NoError(t, err)
	assert.Equal(t, m.ID.String(), v)

	_, err = validatePrompt(p, uuid.NewString(), true, media)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no media was attached")

	// The stream is rewound, so the same attachment validates twice.
	_, err = validatePrompt(p, m.ID.String(), true, media)
	require.NoError(t, err)
}
