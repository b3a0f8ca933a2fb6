package types

import "fmt"

// Modality is a category of raw media input.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// CanonicalModalities is the fixed cross-modality order used in every
// combined result, independent of how a request lists its modalities.
var CanonicalModalities = []Modality{ModalityImage, ModalityVideo, ModalityAudio}

// Valid reports whether m is one of the supported modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityImage, ModalityVideo, ModalityAudio:
		return true
	default:
		return false
	}
}

// ParseModality converts a name such as "image" into a Modality.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown modality: %q", s)
	}
	return m, nil
}

func (m Modality) String() string {
	return string(m)
}
