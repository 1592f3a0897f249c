package sink

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

type opusPacketFunc func(pkt []byte) error

// encoder wraps a libopus codec context producing Discord-ready packets:
// 48 kHz stereo, 20 ms frames.
type encoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
}

func newEncoder() (*encoder, error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, fmt.Errorf("libopus encoder not found (check ffmpeg installation)")
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, fmt.Errorf("failed to allocate codec context for libopus")
	}
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetBitRate(160_000)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, fmt.Errorf("failed to open opus encoder: %w", err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, fmt.Errorf("failed to allocate audio frame for encoder")
	}
	frame.SetSampleRate(sampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(frameSize)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("failed to allocate frame buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("failed to allocate packet for encoder")
	}

	return &encoder{cc: cc, frame: frame, packet: pkt}, nil
}

func (e *encoder) Close() {
	if e.packet != nil {
		e.packet.Free()
	}
	if e.frame != nil {
		e.frame.Free()
	}
	if e.cc != nil {
		e.cc.Free()
	}
}

// EncodeFrame expects interleaved s16le PCM for exactly 960 samples/ch.
func (e *encoder) EncodeFrame(pcm []byte, onPacket opusPacketFunc) error {
	if len(pcm) != frameBytes {
		return fmt.Errorf("invalid PCM frame size: expected %d bytes, got %d", frameBytes, len(pcm))
	}

	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return fmt.Errorf("failed to set frame data bytes: %w", err)
	}
	if err := e.cc.SendFrame(e.frame); err != nil {
		return fmt.Errorf("failed to send frame to encoder: %w", err)
	}

	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrEagain) || astErr.Is(astiav.ErrEof)) {
				break
			}
			return fmt.Errorf("failed to receive opus packet: %w", err)
		}
		if err := onPacket(e.packet.Data()); err != nil {
			return fmt.Errorf("packet handler error: %w", err)
		}
	}
	return nil
}
