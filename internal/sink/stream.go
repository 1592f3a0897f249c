// Package sink converts one audio input (HTTP URL or local file) into
// 20 ms opus frames and feeds them to a Discord voice connection. ffmpeg
// does demux/decode as a subprocess; its own reconnect options cover
// transient network faults mid-stream.
package sink

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel, 20 ms
	frameBytes = frameSize * channels * 2

	frameInterval = 20 * time.Millisecond
)

type Options struct {
	FFmpegPath string
}

// Stream is a single playback of one input. The completion callback fires
// exactly once: nil on natural end or intentional stop, non-nil on decode
// or subprocess failure.
type Stream struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	paused bool
}

func ffmpegArgs(input string) []string {
	var args []string
	if strings.HasPrefix(input, "http") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1",
	)
}

// Start launches ffmpeg on input and begins sending opus frames to send.
// speak toggles the voice connection's speaking state around playback.
func Start(input string, opts Options, send chan<- []byte, speak func(bool) error, onDone func(error)) (*Stream, error) {
	path := opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, path, ffmpegArgs(input)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	enc, err := newEncoder()
	if err != nil {
		cancel()
		_ = cmd.Wait()
		return nil, err
	}

	st := &Stream{cancel: cancel, done: make(chan struct{})}
	go st.run(ctx, cmd, stdout, &stderr, enc, send, speak, onDone)
	return st, nil
}

func (st *Stream) run(
	ctx context.Context,
	cmd *exec.Cmd,
	stdout io.Reader,
	stderr *bytes.Buffer,
	enc *encoder,
	send chan<- []byte,
	speak func(bool) error,
	onDone func(error),
) {
	defer close(st.done)
	defer enc.Close()

	_ = speak(true)
	defer func() { _ = speak(false) }()

	r := bufio.NewReaderSize(stdout, 64*1024)
	frame := make([]byte, frameBytes)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		for st.IsPaused() {
			select {
			case <-ctx.Done():
				break loop
			case <-time.After(50 * time.Millisecond):
			}
		}

		if _, err := io.ReadFull(r, frame); err != nil {
			// EOF means ffmpeg finished; a short trailing frame is dropped.
			if err != io.EOF && err != io.ErrUnexpectedEOF && ctx.Err() == nil {
				runErr = fmt.Errorf("read pcm: %w", err)
			}
			break
		}

		var pkt []byte
		if err := enc.EncodeFrame(frame, func(p []byte) error {
			pkt = append(pkt[:0], p...)
			return nil
		}); err != nil {
			runErr = err
			break
		}
		if len(pkt) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
		select {
		case <-ctx.Done():
			break loop
		case send <- append([]byte(nil), pkt...):
		}
	}

	werr := cmd.Wait()
	if runErr == nil && werr != nil && ctx.Err() == nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			runErr = fmt.Errorf("ffmpeg: %w: %s", werr, lastLine(msg))
		} else {
			runErr = fmt.Errorf("ffmpeg: %w", werr)
		}
	}
	if ctx.Err() != nil {
		// intentional stop is not an error
		runErr = nil
	}
	onDone(runErr)
}

// Stop kills the subprocess and blocks until the completion callback has
// fired.
func (st *Stream) Stop() {
	st.cancel()
	<-st.done
}

func (st *Stream) Pause() {
	st.mu.Lock()
	st.paused = true
	st.mu.Unlock()
}

func (st *Stream) Resume() {
	st.mu.Lock()
	st.paused = false
	st.mu.Unlock()
}

func (st *Stream) IsPaused() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.paused
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
