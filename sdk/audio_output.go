package tutor

import "sync"

// AudioOutputConfig configures tutor speech playback buffering.
type AudioOutputConfig struct {
	// SampleRate of the PCM stream in Hz. Default 16000.
	SampleRate int
	// MinBufferMs is buffered before the first chunk of an utterance is
	// released, absorbing network jitter at speech onset. Default 200.
	MinBufferMs int
	// ChannelSize bounds the chunk queue. Default 64.
	ChannelSize int
}

func (c AudioOutputConfig) withDefaults() AudioOutputConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.MinBufferMs <= 0 {
		c.MinBufferMs = 200
	}
	if c.ChannelSize <= 0 {
		c.ChannelSize = 64
	}
	return c
}

// AudioOutput queues the tutor's streamed speech for playback. Chunks are
// held back until MinBufferMs of audio accumulates, then delivered on
// Chunks. Flush drops everything queued and signals Flushes so the player
// can cut off stale speech when the user interrupts.
type AudioOutput struct {
	cfg AudioOutputConfig

	mu        sync.Mutex
	pending   []byte
	buffering bool
	closed    bool

	chunks  chan []byte
	flushes chan struct{}
}

// NewAudioOutput creates an output with the given config.
func NewAudioOutput(cfg AudioOutputConfig) *AudioOutput {
	cfg = cfg.withDefaults()
	return &AudioOutput{
		cfg:       cfg,
		buffering: true,
		chunks:    make(chan []byte, cfg.ChannelSize),
		flushes:   make(chan struct{}, 1),
	}
}

// Chunks delivers playable PCM chunks in arrival order.
func (o *AudioOutput) Chunks() <-chan []byte {
	return o.chunks
}

// Flushes signals that queued audio was discarded and playback should stop.
func (o *AudioOutput) Flushes() <-chan struct{} {
	return o.flushes
}

// 16-bit mono PCM.
func (o *AudioOutput) minBytes() int {
	return o.cfg.SampleRate * 2 * o.cfg.MinBufferMs / 1000
}

// Push queues one chunk of tutor speech.
func (o *AudioOutput) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	if o.buffering {
		o.pending = append(o.pending, data...)
		if len(o.pending) < o.minBytes() {
			return
		}
		buffered := o.pending
		o.pending = nil
		o.buffering = false
		o.emitLocked(buffered)
		return
	}
	o.emitLocked(data)
}

// emitLocked drops the chunk when the queue is full rather than blocking
// the websocket read loop.
func (o *AudioOutput) emitLocked(data []byte) {
	select {
	case o.chunks <- data:
	default:
	}
}

// Flush discards queued audio and rearms onset buffering for the next
// utterance.
func (o *AudioOutput) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.pending = nil
	o.buffering = true
	for {
		select {
		case <-o.chunks:
		default:
			select {
			case o.flushes <- struct{}{}:
			default:
			}
			return
		}
	}
}

// Close releases the output. Pending audio is dropped.
func (o *AudioOutput) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.pending = nil
	close(o.chunks)
}
