package survey

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/paulexconde/surveysense/internal/concordia"
	"github.com/paulexconde/surveysense/pkg/fault"
)

// Media is an uploaded attachment referenced by a media prompt response.
type Media struct {
	ID uuid.UUID
	// ContentType is the type the uploader declared; it may be empty and is
	// not trusted.
	ContentType string
	Content     io.ReadSeeker
}

// MediaSet holds a submission's attachments by id.
type MediaSet map[uuid.UUID]Media

// MediaPrompt is a prompt answered with the id of an attachment. The
// attachment itself is checked by ValidateMedia.
type MediaPrompt interface {
	Prompt
	ValidateMedia(m Media) error
}

var errUnsupportedAudio = errors.New("unsupported audio container")

type mediaBase struct {
	promptBase
}

// Validate accepts the attachment's UUID, as a string or uuid.UUID.
func (p *mediaBase) Validate(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fault.NewResponseError(p.id, "the response is not a media ID", err)
		}
		return id.String(), nil
	}
	return nil, p.invalid(fmt.Sprintf("the response must be a media ID, got %T", value))
}

func (p *mediaBase) Concordia() concordia.Node {
	return concordia.Field(p.id, concordia.TypeString)
}

// detect sniffs the payload type and rewinds the stream.
func (p *mediaBase) detect(m Media, family string) (*mimetype.MIME, error) {
	if m.Content == nil {
		return nil, p.invalid("the media has no content")
	}
	if _, err := m.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fault.NewInternalError("the media could not be read", err)
	}
	mt, err := mimetype.DetectReader(m.Content)
	if err != nil {
		return nil, fault.NewInternalError("the media could not be read", err)
	}
	if _, err := m.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fault.NewInternalError("the media could not be read", err)
	}
	if !strings.HasPrefix(mt.String(), family+"/") {
		return nil, p.invalid(fmt.Sprintf("the media is %s, not %s", mt.String(), family))
	}
	return mt, nil
}

// validateAttachment looks up the attachment a media prompt response names
// and runs the prompt's payload checks against it.
func validateAttachment(p MediaPrompt, value any, media MediaSet) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return fault.NewResponseError(p.ID(), "the response is not a media ID", err)
	}

	m, ok := media[id]
	if !ok {
		return fault.NewResponseError(p.ID(), fmt.Sprintf("no media was attached with the ID %s", id), nil)
	}
	if m.Content != nil {
		defer m.Content.Seek(0, io.SeekStart)
	}

	return p.ValidateMedia(m)
}

// PhotoPrompt is answered with an image. A width or height above
// MaxDimension, when set, is rejected.
type PhotoPrompt struct {
	mediaBase
	maxDimension *int
}

func NewPhotoPrompt(b PromptBase, maxDimension *int) (*PhotoPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	if maxDimension != nil && *maxDimension <= 0 {
		return nil, fault.NewDefinitionError(b.ID, "the maximum dimension must be positive", nil)
	}
	if b.DefaultResponse != nil {
		return nil, fault.NewDefinitionError(b.ID, "media prompts cannot have a default response", nil)
	}

	return &PhotoPrompt{mediaBase: mediaBase{base}, maxDimension: maxDimension}, nil
}

func (p *PhotoPrompt) PromptType() string { return TypePhoto }
func (p *PhotoPrompt) MaxDimension() *int { return p.maxDimension }

func (p *PhotoPrompt) ValidateMedia(m Media) error {
	if _, err := p.detect(m, "image"); err != nil {
		return err
	}
	if p.maxDimension == nil {
		return nil
	}

	cfg, _, err := image.DecodeConfig(m.Content)
	if err != nil {
		return fault.NewResponseError(p.id, "the image could not be decoded", err)
	}
	if cfg.Width > *p.maxDimension || cfg.Height > *p.maxDimension {
		return p.invalid(fmt.Sprintf("the image is %dx%d, larger than the maximum dimension of %d", cfg.Width, cfg.Height, *p.maxDimension))
	}
	return nil
}

func (p *PhotoPrompt) ToJSON() map[string]any {
	var props map[string]any
	if p.maxDimension != nil {
		props = map[string]any{"max_dimension": *p.maxDimension}
	}
	return p.json(TypePhoto, props)
}

// VideoPrompt is answered with a video. MaxSeconds is passed on to clients
// as the recording limit.
type VideoPrompt struct {
	mediaBase
	maxSeconds *int
}

func NewVideoPrompt(b PromptBase, maxSeconds *int) (*VideoPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	if maxSeconds != nil && *maxSeconds <= 0 {
		return nil, fault.NewDefinitionError(b.ID, "the maximum length must be positive", nil)
	}
	if b.DefaultResponse != nil {
		return nil, fault.NewDefinitionError(b.ID, "media prompts cannot have a default response", nil)
	}

	return &VideoPrompt{mediaBase: mediaBase{base}, maxSeconds: maxSeconds}, nil
}

func (p *VideoPrompt) PromptType() string { return TypeVideo }
func (p *VideoPrompt) MaxSeconds() *int   { return p.maxSeconds }

func (p *VideoPrompt) ValidateMedia(m Media) error {
	_, err := p.detect(m, "video")
	return err
}

func (p *VideoPrompt) ToJSON() map[string]any {
	var props map[string]any
	if p.maxSeconds != nil {
		props = map[string]any{"max_seconds": *p.maxSeconds}
	}
	return p.json(TypeVideo, props)
}

// AudioPrompt is answered with an audio recording. WAV and AIFF recordings
// must decode. When MaxDuration (milliseconds) is set, longer recordings are
// rejected, as are recordings whose duration cannot be measured.
type AudioPrompt struct {
	mediaBase
	maxDuration *int64
}

func NewAudioPrompt(b PromptBase, maxDuration *int64) (*AudioPrompt, error) {
	base, err := newPromptBase(b)
	if err != nil {
		return nil, err
	}
	if maxDuration != nil && *maxDuration <= 0 {
		return nil, fault.NewDefinitionError(b.ID, "the maximum duration must be positive", nil)
	}
	if b.DefaultResponse != nil {
		return nil, fault.NewDefinitionError(b.ID, "media prompts cannot have a default response", nil)
	}

	return &AudioPrompt{mediaBase: mediaBase{base}, maxDuration: maxDuration}, nil
}

func (p *AudioPrompt) PromptType() string  { return TypeAudio }
func (p *AudioPrompt) MaxDuration() *int64 { return p.maxDuration }

func (p *AudioPrompt) ValidateMedia(m Media) error {
	mt, err := p.detect(m, "audio")
	if err != nil {
		return err
	}

	d, err := audioDuration(m.Content, mt)
	if errors.Is(err, errUnsupportedAudio) && p.maxDuration == nil {
		return nil
	}
	if err != nil {
		return fault.NewResponseError(p.id, "the audio file was not a valid audio file", err)
	}

	if p.maxDuration != nil && d.Milliseconds() > *p.maxDuration {
		return p.invalid(fmt.Sprintf("the audio file is longer than the maximum allowed duration of '%d' milliseconds", *p.maxDuration))
	}
	return nil
}

func audioDuration(r io.ReadSeeker, mt *mimetype.MIME) (time.Duration, error) {
	switch {
	case mt.Is("audio/wav"):
		d := wav.NewDecoder(r)
		if !d.IsValidFile() {
			return 0, errors.New("invalid WAV data")
		}
		return d.Duration()
	case mt.Is("audio/aiff"):
		d := aiff.NewDecoder(r)
		if !d.IsValidFile() {
			return 0, errors.New("invalid AIFF data")
		}
		return d.Duration()
	}
	return 0, fmt.Errorf("%w: %s", errUnsupportedAudio, mt.String())
}

func (p *AudioPrompt) ToJSON() map[string]any {
	var props map[string]any
	if p.maxDuration != nil {
		props = map[string]any{"max_duration": *p.maxDuration}
	}
	return p.json(TypeAudio, props)
}
