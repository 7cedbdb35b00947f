package audio

// SimBackend is a deterministic in-process backend. There is no device
// clock: the test (or fixture feeder) advances time explicitly with
// Step, which invokes the callback synchronously on the caller's
// goroutine. An installed source generates the capture input; an
// optional sink observes the rendered output.
type SimBackend struct {
	source func(start uint64, in []float32)
	sink   func(start uint64, out []float32)
	stream *simStream
}

// NewSimBackend returns a backend with silent input and no sink.
func NewSimBackend() *SimBackend {
	return &SimBackend{}
}

// SetSource installs the capture generator. fn fills in with the period
// beginning at absolute frame start. A nil source yields silence.
func (b *SimBackend) SetSource(fn func(start uint64, in []float32)) {
	b.source = fn
}

// SetSink installs an observer for rendered output periods.
func (b *SimBackend) SetSink(fn func(start uint64, out []float32)) {
	b.sink = fn
}

func (b *SimBackend) Open(cfg StreamConfig, cb StreamCallback) (Stream, error) {
	s := &simStream{
		backend: b,
		cb:      cb,
		in:      make([]float32, cfg.FramesPerBuffer),
		out:     make([]float32, cfg.FramesPerBuffer),
	}
	b.stream = s
	return s, nil
}

// Step runs the open stream's callback for the given number of periods.
func (b *SimBackend) Step(periods int) error {
	s := b.stream
	if s == nil || !s.running {
		return ErrNotRunning
	}
	for p := 0; p < periods; p++ {
		for i := range s.in {
			s.in[i] = 0
		}
		if b.source != nil {
			b.source(s.pos, s.in)
		}
		s.cb(s.in, s.out)
		if b.sink != nil {
			b.sink(s.pos, s.out)
		}
		s.pos += uint64(len(s.in))
	}
	return nil
}

// Pos reports the absolute frame index of the next period.
func (b *SimBackend) Pos() uint64 {
	if b.stream == nil {
		return 0
	}
	return b.stream.pos
}

type simStream struct {
	backend *SimBackend
	cb      StreamCallback
	in, out []float32
	pos     uint64
	running bool
}

func (s *simStream) Start() error {
	s.running = true
	return nil
}

func (s *simStream) Stop() error {
	s.running = false
	return nil
}

func (s *simStream) Close() error {
	s.running = false
	return nil
}
