package types

import "fmt"

// SampleRatePolicy decides what happens when audio arrives at a rate other
// than the target rate.
type SampleRatePolicy string

const (
	SampleRateResample SampleRatePolicy = "resample"
	SampleRateStrict   SampleRatePolicy = "strict"
)

// ImageParams controls the image transform.
type ImageParams struct {
	Size      int        `yaml:"size" json:"size" env:"SIZE"`                   // output side length in pixels
	PatchSize int        `yaml:"patch_size" json:"patch_size" env:"PATCH_SIZE"` // vision patch side
	MergeSize int        `yaml:"merge_size" json:"merge_size" env:"MERGE_SIZE"` // patches merged per token along each axis
	Mean      [3]float32 `yaml:"mean" json:"mean" env:"MEAN"`
	Std       [3]float32 `yaml:"std" json:"std" env:"STD"`
}

// Validate checks that the resolution bounds produce a whole token grid.
func (p ImageParams) Validate() error {
	if p.Size <= 0 || p.PatchSize <= 0 || p.MergeSize <= 0 {
		return Errorf(ErrInvalidConfig, "image size, patch_size and merge_size must be positive")
	}
	if p.Size%(p.PatchSize*p.MergeSize) != 0 {
		return Errorf(ErrInvalidConfig, "image size %d is not a multiple of patch_size*merge_size (%d)",
			p.Size, p.PatchSize*p.MergeSize)
	}
	for c := 0; c < 3; c++ {
		if p.Std[c] == 0 {
			return Errorf(ErrInvalidConfig, "image std[%d] must be non-zero", c)
		}
	}
	return nil
}

// TokensPerImage returns how many placeholder tokens one transformed image
// occupies.
func (p ImageParams) TokensPerImage() int {
	grid := p.Size / p.PatchSize
	return grid * grid / (p.MergeSize * p.MergeSize)
}

// VideoParams controls frame sampling; each sampled frame goes through Image.
type VideoParams struct {
	Image             ImageParams `yaml:"image" json:"image" env:"IMAGE"`
	MinFrames         int         `yaml:"min_frames" json:"min_frames" env:"MIN_FRAMES"`
	MaxFrames         int         `yaml:"max_frames" json:"max_frames" env:"MAX_FRAMES"`
	TemporalPatchSize int         `yaml:"temporal_patch_size" json:"temporal_patch_size" env:"TEMPORAL_PATCH_SIZE"`
}

func (p VideoParams) Validate() error {
	if err := p.Image.Validate(); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	if p.MinFrames <= 0 || p.MaxFrames < p.MinFrames {
		return Errorf(ErrInvalidConfig, "video frame bounds [%d, %d] are invalid", p.MinFrames, p.MaxFrames)
	}
	if p.TemporalPatchSize <= 0 {
		return Errorf(ErrInvalidConfig, "video temporal_patch_size must be positive")
	}
	return nil
}

// AudioParams controls resampling and feature extraction.
type AudioParams struct {
	TargetSampleRate int              `yaml:"target_sample_rate" json:"target_sample_rate" env:"TARGET_SAMPLE_RATE"`
	SampleRatePolicy SampleRatePolicy `yaml:"sample_rate_policy" json:"sample_rate_policy" env:"SAMPLE_RATE_POLICY"`
	WindowSize       int              `yaml:"window_size" json:"window_size" env:"WINDOW_SIZE"`
	HopLength        int              `yaml:"hop_length" json:"hop_length" env:"HOP_LENGTH"`
	FeatureSize      int              `yaml:"feature_size" json:"feature_size" env:"FEATURE_SIZE"`
	MinSamples       int              `yaml:"min_samples" json:"min_samples" env:"MIN_SAMPLES"`
	MaxSamples       int              `yaml:"max_samples" json:"max_samples" env:"MAX_SAMPLES"`
}

func (p AudioParams) Validate() error {
	if p.TargetSampleRate <= 0 {
		return Errorf(ErrInvalidConfig, "audio target_sample_rate must be positive")
	}
	switch p.SampleRatePolicy {
	case SampleRateResample, SampleRateStrict:
	default:
		return Errorf(ErrInvalidConfig, "audio sample_rate_policy %q is unknown", p.SampleRatePolicy)
	}
	if p.WindowSize <= 0 || p.HopLength <= 0 || p.FeatureSize <= 0 {
		return Errorf(ErrInvalidConfig, "audio window_size, hop_length and feature_size must be positive")
	}
	if p.FeatureSize > p.WindowSize {
		return Errorf(ErrInvalidConfig, "audio feature_size %d exceeds window_size %d", p.FeatureSize, p.WindowSize)
	}
	if p.MinSamples < p.WindowSize {
		return Errorf(ErrInvalidConfig, "audio min_samples %d is below window_size %d", p.MinSamples, p.WindowSize)
	}
	if p.MaxSamples < p.MinSamples {
		return Errorf(ErrInvalidConfig, "audio max_samples %d is below min_samples %d", p.MaxSamples, p.MinSamples)
	}
	return nil
}

// ProcessingParameters is everything that affects processing output, plus
// the per-modality item limits enforced at the request boundary.
type ProcessingParameters struct {
	Image  ImageParams      `yaml:"image" json:"image"`
	Video  VideoParams      `yaml:"video" json:"video"`
	Audio  AudioParams      `yaml:"audio" json:"audio"`
	Limits map[Modality]int `yaml:"limits" json:"limits"`
}

// Validate checks every modality's parameters.
func (p ProcessingParameters) Validate() error {
	if err := p.Image.Validate(); err != nil {
		return err
	}
	if err := p.Video.Validate(); err != nil {
		return err
	}
	if err := p.Audio.Validate(); err != nil {
		return err
	}
	for m, limit := range p.Limits {
		if !m.Valid() {
			return Errorf(ErrInvalidConfig, "limit set for unknown modality %q", m)
		}
		if limit < 0 {
			return Errorf(ErrInvalidConfig, "limit for %s must not be negative", m)
		}
	}
	return nil
}

// KeyParams returns the subset of parameters that influences output for m.
// Limits never influence output and are not part of any key.
func (p ProcessingParameters) KeyParams(m Modality) any {
	switch m {
	case ModalityImage:
		return p.Image
	case ModalityVideo:
		return p.Video
	case ModalityAudio:
		return p.Audio
	default:
		return nil
	}
}

// Limit returns the item limit for m. ok is false when no limit is set.
func (p ProcessingParameters) Limit(m Modality) (limit int, ok bool) {
	limit, ok = p.Limits[m]
	return limit, ok
}

// Clone returns a copy that shares nothing mutable with p.
func (p ProcessingParameters) Clone() ProcessingParameters {
	cp := p
	if p.Limits != nil {
		cp.Limits = make(map[Modality]int, len(p.Limits))
		for m, l := range p.Limits {
			cp.Limits[m] = l
		}
	}
	return cp
}
