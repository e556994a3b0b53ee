package wire

import "fmt"

// Stage identifies which part of a frame the decoder is waiting for.
type Stage string

const (
	StageHeader  Stage = "header"
	StagePayload Stage = "payload"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// Decoder accumulates one frame from arbitrarily sized chunks.
//
// Callers either read straight into Next() and commit with Advance, or hand
// over chunks with Feed. Bytes beyond the current frame are never consumed.
type Decoder struct {
	// MaxPayload bounds the declared length; zero means DefaultMaxPayload.
	MaxPayload uint32

	header  [HeaderLen]byte
	filled  int
	magicOK bool
	parsed  Header
	payload []byte
	stage   Stage
	err     error
}

// Stage reports the current decoding stage.
func (d *Decoder) Stage() Stage {
	if d.stage == "" {
		return StageHeader
	}
	return d.stage
}

// Ready reports whether a complete frame is available.
func (d *Decoder) Ready() bool {
	return d.stage == StageDone
}

// Started reports whether any byte of the current frame has been consumed.
func (d *Decoder) Started() bool {
	return d.Stage() != StageHeader || d.filled > 0
}

// Err returns the error that failed the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Next returns the unfilled region the next bytes belong in.
func (d *Decoder) Next() []byte {
	switch d.Stage() {
	case StageHeader:
		return d.header[d.filled:]
	case StagePayload:
		return d.payload[d.filled:]
	default:
		return nil
	}
}

// Advance commits n bytes written into the slice returned by Next.
func (d *Decoder) Advance(n int) error {
	if d.err != nil {
		return d.err
	}
	if n < 0 || n > len(d.Next()) {
		return fmt.Errorf("wire: advance %d outside pending region of %d bytes", n, len(d.Next()))
	}
	if n == 0 {
		return nil
	}

	d.filled += n
	switch d.Stage() {
	case StageHeader:
		return d.advanceHeader()
	case StagePayload:
		if d.filled == len(d.payload) {
			d.stage = StageDone
		}
	}
	return nil
}

func (d *Decoder) advanceHeader() error {
	if !d.magicOK && d.filled >= MagicLen {
		if err := checkMagic(d.header[:MagicLen]); err != nil {
			return d.fail(err)
		}
		d.magicOK = true
	}
	if d.filled < HeaderLen {
		return nil
	}

	h, err := DecodeHeader(d.header[:])
	if err != nil {
		return d.fail(err)
	}
	limit := d.MaxPayload
	if limit == 0 {
		limit = DefaultMaxPayload
	}
	if h.Length > limit {
		return d.fail(fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.Length, limit))
	}

	d.parsed = h
	d.payload = make([]byte, h.Length)
	d.filled = 0
	d.stage = StagePayload
	if h.Length == 0 {
		d.stage = StageDone
	}
	return nil
}

// Feed copies bytes from p until the frame completes or p runs out.
func (d *Decoder) Feed(p []byte) (int, error) {
	consumed := 0
	for len(p) > 0 && !d.Ready() {
		if d.err != nil {
			return consumed, d.err
		}
		n := copy(d.Next(), p)
		p = p[n:]
		consumed += n
		if err := d.Advance(n); err != nil {
			return consumed, err
		}
	}
	return consumed, d.err
}

// Header returns the parsed header once the header stage has completed.
func (d *Decoder) Header() (Header, bool) {
	switch d.Stage() {
	case StagePayload, StageDone:
		return d.parsed, true
	default:
		return Header{}, false
	}
}

// Frame returns the completed frame and resets the decoder for the next one.
func (d *Decoder) Frame() (Frame, bool) {
	if !d.Ready() {
		return Frame{}, false
	}
	frame := Frame{Type: d.parsed.Type, Payload: d.payload}
	d.Reset()
	return frame, true
}

// Reset discards any partial state, including a previous failure.
func (d *Decoder) Reset() {
	maxPayload := d.MaxPayload
	*d = Decoder{MaxPayload: maxPayload}
}

func (d *Decoder) fail(err error) error {
	d.err = err
	d.stage = StageFailed
	return err
}
