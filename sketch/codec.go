package sketch

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	snapshotMagic   = byte('Q')
	snapshotVersion = byte(1)

	flagLower = byte(1)
	flagUpper = byte(2)
)

// MarshalBinary encodes the sketch as
//
//	magic, version, uvarint resolution,
//	uvarint count, mean, m2, min, max (float64 bits, little endian),
//	has-root byte, then the tree in pre-order:
//	uvarint offset, varint level, uvarint count, child flags.
func (s *Sketch) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 64+s.NodeCount()*12)
	buf = append(buf, snapshotMagic, snapshotVersion)
	buf = binary.AppendUvarint(buf, uint64(s.resolution))

	buf = binary.AppendUvarint(buf, s.moments.count)
	for _, f := range []float64{s.moments.mean, s.moments.m2, s.moments.min, s.moments.max} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	}

	if s.root == nil {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	return appendNode(buf, s.root), nil
}

func appendNode(buf []byte, n *node) []byte {
	buf = binary.AppendUvarint(buf, uint64(n.offset))
	buf = binary.AppendVarint(buf, int64(n.level))
	buf = binary.AppendUvarint(buf, n.count)

	flags := byte(0)
	if n.lower != nil {
		flags |= flagLower
	}
	if n.upper != nil {
		flags |= flagUpper
	}
	buf = append(buf, flags)

	if n.lower != nil {
		buf = appendNode(buf, n.lower)
	}
	if n.upper != nil {
		buf = appendNode(buf, n.upper)
	}
	return buf
}

type snapshotReader struct {
	buf []byte
	pos int
}

func (r *snapshotReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("%w: truncated at %d", ErrCorruptSnapshot, r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *snapshotReader) readUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad uvarint at %d", ErrCorruptSnapshot, r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *snapshotReader) readVarint() (int64, error) {
	v, n := binary.Varint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint at %d", ErrCorruptSnapshot, r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *snapshotReader) readFloat64() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated at %d", ErrCorruptSnapshot, r.pos)
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *snapshotReader) readNode(parent *node, upper bool) (*node, error) {
	offset, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	level, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	flags, err := r.readByte()
	if err != nil {
		return nil, err
	}

	n := &node{offset: int64(offset), level: int(level), count: count}
	if n.level < LeafLevel || n.level > LeafLevel+64 || n.offset < 0 || count == 0 {
		return nil, fmt.Errorf("%w: invalid node at %d", ErrCorruptSnapshot, r.pos)
	}
	if parent != nil {
		want := parent.offset << 1
		if upper {
			want++
		}
		if n.level != parent.level-1 || n.offset != want {
			return nil, fmt.Errorf("%w: misplaced child at %d", ErrCorruptSnapshot, r.pos)
		}
	}

	if flags&flagLower != 0 {
		if n.lower, err = r.readNode(n, false); err != nil {
			return nil, err
		}
	}
	if flags&flagUpper != 0 {
		if n.upper, err = r.readNode(n, true); err != nil {
			return nil, err
		}
	}
	if n.childCount() > n.count {
		return nil, fmt.Errorf("%w: children outnumber parent at level %d",
			ErrCorruptSnapshot, n.level)
	}
	return n, nil
}

func (s *Sketch) UnmarshalBinary(data []byte) error {
	r := &snapshotReader{buf: data}
	magic, err := r.readByte()
	if err != nil {
		return err
	}
	version, err := r.readByte()
	if err != nil {
		return err
	}
	if magic != snapshotMagic || version != snapshotVersion {
		return fmt.Errorf("%w: unknown header %x%x", ErrCorruptSnapshot, magic, version)
	}

	resolution, err := r.readUvarint()
	if err != nil {
		return err
	}
	if resolution > 64 {
		return fmt.Errorf("%w: resolution %d", ErrCorruptSnapshot, resolution)
	}

	moments := Moments{}
	if moments.count, err = r.readUvarint(); err != nil {
		return err
	}
	for _, f := range []*float64{&moments.mean, &moments.m2, &moments.min, &moments.max} {
		if *f, err = r.readFloat64(); err != nil {
			return err
		}
	}

	hasRoot, err := r.readByte()
	if err != nil {
		return err
	}
	var root *node
	if hasRoot == 1 {
		if root, err = r.readNode(nil, false); err != nil {
			return err
		}
	}
	if r.pos != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, len(data)-r.pos)
	}

	rootCount := uint64(0)
	if root != nil {
		rootCount = root.count
	}
	if rootCount != moments.count {
		return fmt.Errorf("%w: tree holds %d observations, moments %d",
			ErrCorruptSnapshot, rootCount, moments.count)
	}

	s.resolution = int(resolution)
	s.root = root
	s.moments = moments
	return nil
}

// Decode is UnmarshalBinary into a fresh sketch.
func Decode(data []byte) (*Sketch, error) {
	s := &Sketch{}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}
