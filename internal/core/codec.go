package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"reelcore/pkg/domain"
)

// Command wire format: a little-endian type tag followed by the base fields
// (id, user id, revision) and the variant's own fields in a fixed layout.
// Strings and sort keys are length-prefixed with a uint32.

type cmdEncoder struct {
	buf []byte
}

func (e *cmdEncoder) bytes() []byte { return e.buf }

func (e *cmdEncoder) putUint8(v uint8)   { e.buf = append(e.buf, v) }
func (e *cmdEncoder) putInt32(v int32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v)) }
func (e *cmdEncoder) putUint32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *cmdEncoder) putInt64(v int64)   { e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v)) }

func (e *cmdEncoder) putFloat64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

func (e *cmdEncoder) putID(id domain.ID) { e.buf = append(e.buf, id[:]...) }

func (e *cmdEncoder) putString(s string) {
	e.putUint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *cmdEncoder) putSortKey(k domain.SortKey) {
	e.putUint32(uint32(len(k)))
	e.buf = append(e.buf, k...)
}

func (e *cmdEncoder) putLayout(l domain.ChannelLayout) {
	e.putString(l.Name)
	e.putUint32(uint32(len(l.Channels)))
	for _, c := range l.Channels {
		e.putUint8(uint8(c))
	}
}

// cmdDecoder reads the wire format back. The first decode failure sticks;
// every accessor afterwards returns the zero value, and err() reports the
// failure as a corruption error.
type cmdDecoder struct {
	buf  []byte
	off  int
	fail error
}

func newCmdDecoder(buf []byte) *cmdDecoder { return &cmdDecoder{buf: buf} }

func (d *cmdDecoder) setFail(what string) {
	if d.fail == nil {
		d.fail = fmt.Errorf("command record truncated at %s (offset %d of %d): %w", what, d.off, len(d.buf), domain.ErrCorruption)
	}
}

func (d *cmdDecoder) err() error { return d.fail }

// done reports whether the whole record was consumed.
func (d *cmdDecoder) done() error {
	if d.fail != nil {
		return d.fail
	}
	if d.off != len(d.buf) {
		return fmt.Errorf("command record has %d trailing bytes: %w", len(d.buf)-d.off, domain.ErrCorruption)
	}
	return nil
}

func (d *cmdDecoder) take(n int, what string) []byte {
	if d.fail != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.setFail(what)
		return nil
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out
}

func (d *cmdDecoder) uint8(what string) uint8 {
	b := d.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *cmdDecoder) uint32(what string) uint32 {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *cmdDecoder) int32(what string) int32 { return int32(d.uint32(what)) }

// count reads a length prefix and fails when the remaining bytes cannot hold
// that many elements of elemSize bytes each, so a corrupt prefix never drives
// an allocation.
func (d *cmdDecoder) count(what string, elemSize int) uint32 {
	n := d.uint32(what)
	if d.fail != nil {
		return 0
	}
	if int64(n)*int64(elemSize) > int64(len(d.buf)-d.off) {
		d.setFail(what + " (implausible count)")
		return 0
	}
	return n
}

func (d *cmdDecoder) int64(what string) int64 {
	b := d.take(8, what)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (d *cmdDecoder) float64(what string) float64 {
	b := d.take(8, what)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (d *cmdDecoder) id(what string) domain.ID {
	b := d.take(domain.IDSize, what)
	if b == nil {
		return domain.ZeroID
	}
	var id domain.ID
	copy(id[:], b)
	return id
}

func (d *cmdDecoder) string(what string) string {
	n := d.uint32(what)
	b := d.take(int(n), what)
	if b == nil {
		return ""
	}
	return string(b)
}

func (d *cmdDecoder) sortKey(what string) domain.SortKey {
	n := d.uint32(what)
	b := d.take(int(n), what)
	if b == nil {
		return nil
	}
	if !domain.ValidSortKey(b) {
		d.setFail(what + " (malformed sort key)")
		return nil
	}
	return append(domain.SortKey(nil), b...)
}

func (d *cmdDecoder) layout(what string) domain.ChannelLayout {
	name := d.string(what)
	n := d.uint32(what)
	if n > 64 {
		d.setFail(what + " (channel count)")
		return domain.ChannelLayout{}
	}
	channels := make([]domain.ChannelID, 0, n)
	for i := uint32(0); i < n; i++ {
		channels = append(channels, domain.ChannelID(d.uint8(what)))
	}
	if d.fail != nil {
		return domain.ChannelLayout{}
	}
	return domain.ChannelLayout{Name: name, Channels: channels}
}
