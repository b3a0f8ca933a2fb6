package types

import (
	"encoding/binary"
	"io"
	"math"
)

// RawItem is one piece of raw media as received from a request.
// Implementations are immutable once constructed.
type RawItem interface {
	// Modality returns the tag used to namespace keys and dispatch processing.
	Modality() Modality

	// Validate checks shape and content. It returns a MALFORMED_INPUT error.
	Validate() error

	// WriteTo writes a canonical encoding of the payload: dimensions first,
	// then every payload byte. Two items with equal encodings are
	// interchangeable for processing purposes.
	WriteTo(w io.Writer) (int64, error)
}

// ImageItem is an RGB image in row-major HWC layout.
type ImageItem struct {
	Width  int
	Height int
	Pix    []byte // len == Width*Height*3
}

// NewImageItem wraps an RGB pixel buffer.
func NewImageItem(width, height int, pix []byte) *ImageItem {
	return &ImageItem{Width: width, Height: height, Pix: pix}
}

func (i *ImageItem) Modality() Modality { return ModalityImage }

func (i *ImageItem) Validate() error {
	if i == nil {
		return NewMalformedInputError("nil image")
	}
	if i.Width <= 0 || i.Height <= 0 {
		return NewMalformedInputError("image has non-positive size %dx%d", i.Width, i.Height)
	}
	// Width*Height*3 must not wrap around, or an empty Pix could match it.
	if i.Width > math.MaxInt/3/i.Height {
		return NewMalformedInputError("image size %dx%d overflows", i.Width, i.Height)
	}
	if want := i.Width * i.Height * 3; len(i.Pix) != want {
		return NewMalformedInputError("image %dx%d expects %d bytes, got %d", i.Width, i.Height, want, len(i.Pix))
	}
	return nil
}

func (i *ImageItem) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	cw.putUint64(uint64(i.Width))
	cw.putUint64(uint64(i.Height))
	cw.write(i.Pix)
	return cw.n, cw.err
}

// At returns the RGB value at (x, y).
func (i *ImageItem) At(x, y int) (r, g, b byte) {
	off := (y*i.Width + x) * 3
	return i.Pix[off], i.Pix[off+1], i.Pix[off+2]
}

// VideoItem is an ordered sequence of equally sized RGB frames.
type VideoItem struct {
	Frames []*ImageItem
}

// NewVideoItem wraps a frame sequence.
func NewVideoItem(frames ...*ImageItem) *VideoItem {
	return &VideoItem{Frames: frames}
}

func (v *VideoItem) Modality() Modality { return ModalityVideo }

func (v *VideoItem) Validate() error {
	if v == nil || len(v.Frames) == 0 {
		return NewMalformedInputError("video has no frames")
	}
	first := v.Frames[0]
	for idx, f := range v.Frames {
		if err := f.Validate(); err != nil {
			return NewMalformedInputError("video frame %d", idx).WithCause(err)
		}
		if f.Width != first.Width || f.Height != first.Height {
			return NewMalformedInputError("video frame %d is %dx%d, expected %dx%d",
				idx, f.Width, f.Height, first.Width, first.Height)
		}
	}
	return nil
}

func (v *VideoItem) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	cw.putUint64(uint64(len(v.Frames)))
	for _, f := range v.Frames {
		if cw.err != nil {
			break
		}
		n, err := f.WriteTo(w)
		cw.n += n
		cw.err = err
	}
	return cw.n, cw.err
}

// AudioItem is a mono waveform with its declared sample rate.
type AudioItem struct {
	Samples    []float32
	SampleRate int
}

// NewAudioItem wraps a waveform.
func NewAudioItem(samples []float32, sampleRate int) *AudioItem {
	return &AudioItem{Samples: samples, SampleRate: sampleRate}
}

func (a *AudioItem) Modality() Modality { return ModalityAudio }

func (a *AudioItem) Validate() error {
	if a == nil || len(a.Samples) == 0 {
		return NewMalformedInputError("audio has no samples")
	}
	if a.SampleRate <= 0 {
		return NewMalformedInputError("audio has non-positive sample rate %d", a.SampleRate)
	}
	for idx, s := range a.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return NewMalformedInputError("audio sample %d is not finite", idx)
		}
	}
	return nil
}

func (a *AudioItem) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	cw.putUint64(uint64(a.SampleRate))
	cw.putUint64(uint64(len(a.Samples)))
	buf := make([]byte, 4*len(a.Samples))
	for i, s := range a.Samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	cw.write(buf)
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
	buf [8]byte
}

func (c *countingWriter) write(p []byte) {
	if c.err != nil {
		return
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
}

func (c *countingWriter) putUint64(v uint64) {
	binary.LittleEndian.PutUint64(c.buf[:], v)
	c.write(c.buf[:])
}
