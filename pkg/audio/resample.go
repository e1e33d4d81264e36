package audio

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

// Resampler converts mono S16 PCM between sample rates.
type Resampler interface {
	Resample(pcm []byte) ([]byte, error)
	Close()
}

// NewResampler returns a pass-through when the rates match and an FFmpeg
// swresample converter otherwise.
func NewResampler(inRate, outRate int) (Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inRate, outRate)
	}
	if inRate == outRate {
		return passthrough{}, nil
	}
	return newSwrResampler(inRate, outRate)
}

type passthrough struct{}

func (passthrough) Resample(pcm []byte) ([]byte, error) { return pcm, nil }
func (passthrough) Close()                              {}

// swrResampler wraps an astiav software resample context with reusable
// mono frames.
type swrResampler struct {
	mu       sync.Mutex
	ctx      *astiav.SoftwareResampleContext
	inFrame  *astiav.Frame
	outFrame *astiav.Frame
	inRate   int
	outRate  int
}

func newSwrResampler(inRate, outRate int) (*swrResampler, error) {
	r := &swrResampler{inRate: inRate, outRate: outRate}

	if r.ctx = astiav.AllocSoftwareResampleContext(); r.ctx == nil {
		return nil, fmt.Errorf("failed to allocate resample context")
	}
	if r.inFrame = astiav.AllocFrame(); r.inFrame == nil {
		r.Close()
		return nil, fmt.Errorf("failed to allocate input frame")
	}
	if r.outFrame = astiav.AllocFrame(); r.outFrame == nil {
		r.Close()
		return nil, fmt.Errorf("failed to allocate output frame")
	}
	return r, nil
}

func (r *swrResampler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.inFrame != nil {
		r.inFrame.Free()
		r.inFrame = nil
	}
	if r.outFrame != nil {
		r.outFrame.Free()
		r.outFrame = nil
	}
}

func (r *swrResampler) Resample(pcm []byte) ([]byte, error) {
	const align = 0

	numSamples := len(pcm) / BytesPerSample
	if numSamples == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return nil, fmt.Errorf("resampler closed")
	}

	r.inFrame.Unref()
	r.outFrame.Unref()

	r.inFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.inFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.inFrame.SetSampleRate(r.inRate)
	r.inFrame.SetNbSamples(numSamples)

	outSamples := max(numSamples*r.outRate/r.inRate, 1)
	r.outFrame.SetChannelLayout(astiav.ChannelLayoutMono)
	r.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	r.outFrame.SetSampleRate(r.outRate)
	r.outFrame.SetNbSamples(outSamples)

	if err := r.inFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate input buffer: %w", err)
	}
	if err := r.outFrame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("failed to allocate output buffer: %w", err)
	}
	if err := r.inFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("making frame writable failed: %w", err)
	}

	size, err := r.inFrame.SamplesBufferSize(align)
	if err != nil {
		return nil, fmt.Errorf("failed to get buffer size: %w", err)
	}
	in := pcm
	if len(in) < size {
		in = make([]byte, size)
		copy(in, pcm)
	}
	if err := r.inFrame.Data().SetBytes(in[:size], align); err != nil {
		return nil, fmt.Errorf("setting frame data failed: %w", err)
	}

	if err := r.ctx.ConvertFrame(r.inFrame, r.outFrame); err != nil {
		return nil, fmt.Errorf("failed to resample: %w", err)
	}

	out, err := r.outFrame.Data().Bytes(align)
	if err != nil {
		return nil, fmt.Errorf("getting output data failed: %w", err)
	}
	return out, nil
}
