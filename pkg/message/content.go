package message

import "encoding/json"

// Role identifies the speaker of a Message on the wire.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ContentPart is one element of a multimodal Content value.
type ContentPart struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	ImageURL  *URLDetail `json:"image_url,omitempty"`
	AudioURL  *URLRef    `json:"audio_url,omitempty"`
	VideoURL  *VideoRef  `json:"video_url,omitempty"`
}

// URLDetail carries an image reference and an optional provider-specific detail hint.
type URLDetail struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// URLRef carries a plain URL reference (audio parts have no detail hint).
type URLRef struct {
	URL string `json:"url"`
}

// VideoRef carries a video reference with optional sampling hints.
type VideoRef struct {
	URL       string  `json:"url"`
	Detail    string  `json:"detail,omitempty"`
	MaxFrames *int    `json:"max_frames,omitempty"`
	FPS       *float64 `json:"fps,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImagePart(url string, detail ...string) ContentPart {
	d := ""
	if len(detail) > 0 {
		d = detail[0]
	}
	return ContentPart{Type: "image_url", ImageURL: &URLDetail{URL: url, Detail: d}}
}

func AudioPart(url string) ContentPart {
	return ContentPart{Type: "audio_url", AudioURL: &URLRef{URL: url}}
}

func VideoPart(url string, detail string, maxFrames *int, fps *float64) ContentPart {
	return ContentPart{Type: "video_url", VideoURL: &VideoRef{URL: url, Detail: detail, MaxFrames: maxFrames, FPS: fps}}
}

// Content is the tagged Text | Parts sum that backs Message.Content. Exactly one
// of the two forms is populated; IsParts reports which.
type Content struct {
	text    string
	parts   []ContentPart
	isParts bool
}

func NewText(text string) Content {
	return Content{text: text}
}

func NewParts(parts ...ContentPart) Content {
	return Content{parts: parts, isParts: true}
}

func (c Content) IsParts() bool       { return c.isParts }
func (c Content) Text() string        { return c.text }
func (c Content) Parts() []ContentPart { return c.parts }

// FlattenedText concatenates only the TextPart members of a Parts value, or
// returns the Text value directly. Used when a wire format requires a plain
// string (e.g. the non-streaming provider response).
func (c Content) FlattenedText() string {
	if !c.isParts {
		return c.text
	}
	out := ""
	for _, p := range c.parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

func (c Content) IsEmpty() bool {
	return !c.isParts && c.text == "" || (c.isParts && len(c.parts) == 0)
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.isParts {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON is tolerant: a JSON string decodes to Text, a JSON array
// decodes to Parts, and any other shape (null, object, number, bool) decodes
// to an empty Text value rather than failing. This mirrors the wire's own
// polymorphism and keeps malformed upstream payloads from aborting decode.
func (c *Content) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*c = Content{text: asString}
		return nil
	}
	var asParts []ContentPart
	if err := json.Unmarshal(data, &asParts); err == nil {
		*c = Content{parts: asParts, isParts: true}
		return nil
	}
	*c = Content{}
	return nil
}
