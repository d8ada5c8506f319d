package gateway

import (
	"path/filepath"
	"strings"
)

// MediaKind is the explicit discriminant of a payload variant.
type MediaKind string

const (
	KindText     MediaKind = "text"
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindDocument MediaKind = "document"
)

// extension tables for media classification, matched case-insensitively.
var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
	videoExtensions = []string{".mp4", ".avi", ".mov"}
	audioExtensions = []string{".mp3", ".wav", ".ogg"}
)

// ClassifyMedia maps a filename to its media kind by extension. Anything
// not recognized as image, video, or audio is sent as a document.
func ClassifyMedia(filename string) MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range imageExtensions {
		if ext == e {
			return KindImage
		}
	}
	for _, e := range videoExtensions {
		if ext == e {
			return KindVideo
		}
	}
	for _, e := range audioExtensions {
		if ext == e {
			return KindAudio
		}
	}
	return KindDocument
}

// Payload is one gateway send, addressed to a single destination.
// Kind selects the variant: KindText carries Body as the message text;
// media kinds carry MediaID plus Body as the caption (may be empty).
type Payload struct {
	To      string
	Kind    MediaKind
	Body    string
	MediaID string
}

// BuildPayload constructs the send payload for one recipient. It is a pure
// function: identical inputs always yield a structurally identical payload.
// When mediaID is empty the payload is a plain text message and text must
// be non-empty (guaranteed by request validation upstream).
func BuildPayload(text, mediaID string, kind MediaKind, to string) *Payload {
	if mediaID == "" {
		return &Payload{
			To:   to,
			Kind: KindText,
			Body: text,
		}
	}
	return &Payload{
		To:      to,
		Kind:    kind,
		Body:    text,
		MediaID: mediaID,
	}
}

// wirePayload matches the gateway's message send JSON schema.
type wirePayload struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *wireText  `json:"text,omitempty"`
	Image            *wireMedia `json:"image,omitempty"`
	Video            *wireMedia `json:"video,omitempty"`
	Audio            *wireMedia `json:"audio,omitempty"`
	Document         *wireMedia `json:"document,omitempty"`
}

type wireText struct {
	Body string `json:"body"`
}

type wireMedia struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// toWire converts a Payload to the gateway's JSON schema. Exactly one
// variant field is populated, selected by Kind.
func (p *Payload) toWire() wirePayload {
	w := wirePayload{
		MessagingProduct: messagingProduct,
		To:               p.To,
		Type:             string(p.Kind),
	}

	if p.Kind == KindText {
		w.Text = &wireText{Body: p.Body}
		return w
	}

	media := &wireMedia{ID: p.MediaID, Caption: p.Body}
	switch p.Kind {
	case KindImage:
		w.Image = media
	case KindVideo:
		w.Video = media
	case KindAudio:
		w.Audio = media
	default:
		w.Type = string(KindDocument)
		w.Document = media
	}
	return w
}
