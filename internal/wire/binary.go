package wire

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/refineql/refineql/internal/parser"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

// Canonical binary is a deterministic CBOR subset: definite lengths
// only, shortest-form heads, map keys emitted in bytewise order, and
// floats always 64-bit. Refined constructors carry their vendor tag so
// a stream is self-describing down to the type parameters.

const (
	majorUint  = 0
	majorNeg   = 1
	majorBytes = 2
	majorText  = 3
	majorArray = 4
	majorMap   = 5
	majorTag   = 6
	majorOther = 7
)

type cborWriter struct {
	buf []byte
}

func (w *cborWriter) head(major byte, n uint64) {
	switch {
	case n < 24:
		w.buf = append(w.buf, major<<5|byte(n))
	case n <= 0xff:
		w.buf = append(w.buf, major<<5|24, byte(n))
	case n <= 0xffff:
		w.buf = append(w.buf, major<<5|25)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	case n <= 0xffffffff:
		w.buf = append(w.buf, major<<5|26)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	default:
		w.buf = append(w.buf, major<<5|27)
		w.buf = binary.BigEndian.AppendUint64(w.buf, n)
	}
}

func (w *cborWriter) writeInt(v int64) {
	if v >= 0 {
		w.head(majorUint, uint64(v))
	} else {
		w.head(majorNeg, uint64(-(v + 1)))
	}
}

func (w *cborWriter) writeFloat(v float64) {
	w.buf = append(w.buf, majorOther<<5|27)
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *cborWriter) writeBool(v bool) {
	if v {
		w.buf = append(w.buf, majorOther<<5|21)
	} else {
		w.buf = append(w.buf, majorOther<<5|20)
	}
}

func (w *cborWriter) writeText(s string) {
	w.head(majorText, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *cborWriter) writeBytes(b []byte) {
	w.head(majorBytes, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *cborWriter) writeTag(t uint64)    { w.head(majorTag, t) }
func (w *cborWriter) writeArrayHead(n int) { w.head(majorArray, uint64(n)) }
func (w *cborWriter) writeMapHead(n int)   { w.head(majorMap, uint64(n)) }

// EncodeValue renders a typed value and its proof record as canonical
// binary. The envelope is a map with keys "p" (proof blobs, omitted when
// empty), "t" (type expression) and "v" (tagged raw value), in that
// order.
func EncodeValue(v types.TypedValue, blobs []proof.Blob) ([]byte, error) {
	if v.IsZero() {
		return nil, serr("binary", "cannot encode the zero value")
	}
	w := &cborWriter{}
	entries := 2
	if len(blobs) > 0 {
		entries = 3
	}
	w.writeMapHead(entries)
	if len(blobs) > 0 {
		w.writeText("p")
		writeBlobs(w, blobs)
	}
	w.writeText("t")
	w.writeText(v.Type().String())
	w.writeText("v")
	if err := encodeRaw(w, v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func writeBlobs(w *cborWriter, blobs []proof.Blob) {
	w.writeArrayHead(len(blobs))
	for _, b := range blobs {
		w.writeMapHead(5)
		w.writeText("description")
		w.writeText(b.Description)
		w.writeText("evidence")
		w.writeText(b.Evidence)
		w.writeText("kind")
		w.writeText(b.Kind)
		w.writeText("status")
		w.writeText(b.Status)
		w.writeText("subject")
		w.writeText(b.Subject)
	}
}

func encodeRaw(w *cborWriter, v types.TypedValue) error {
	if tag, ok := tagFor(v.Type()); ok {
		w.writeTag(tag)
	}
	switch t := v.Type().(type) {
	case types.Primitive:
		switch t.Kind {
		case types.Nat, types.Int:
			w.writeInt(v.Raw().(int64))
		case types.Float:
			w.writeFloat(v.Raw().(float64))
		case types.Text:
			w.writeText(v.Raw().(string))
		case types.Bool:
			w.writeBool(v.Raw().(bool))
		case types.UUID:
			id := v.Raw().(uuid.UUID)
			w.writeBytes(id[:])
		case types.Timestamp:
			w.writeText(v.Raw().(time.Time).UTC().Format(time.RFC3339Nano))
		default:
			return serr("binary", "unsupported primitive %s", t)
		}
	case types.BoundedNat:
		w.writeInt(v.Raw().(int64))
	case types.BoundedFloat:
		w.writeFloat(v.Raw().(float64))
	case types.Confidence:
		w.writeFloat(v.Raw().(float64))
	case types.NonEmptyText:
		w.writeText(v.Raw().(string))
	case types.Vector:
		elems := v.Raw().([]types.TypedValue)
		w.writeArrayHead(len(elems))
		for _, e := range elems {
			if err := encodeRaw(w, e); err != nil {
				return err
			}
		}
	case types.Provenance:
		pv := v.Raw().(types.ProvValue)
		w.writeMapHead(4)
		w.writeText("actor")
		w.writeText(pv.Actor)
		w.writeText("at")
		w.writeText(pv.At.UTC().Format(time.RFC3339Nano))
		w.writeText("rationale")
		w.writeText(pv.Rationale)
		w.writeText("value")
		if err := encodeRaw(w, pv.Inner); err != nil {
			return err
		}
	case types.CompositeScore:
		sv := v.Raw().(types.ScoreValue)
		w.writeMapHead(2)
		w.writeText("dims")
		w.writeArrayHead(len(sv.Dims))
		for _, d := range sv.Dims {
			w.writeInt(d)
		}
		w.writeText("overall")
		w.writeInt(sv.Overall)
	default:
		return serr("binary", "unsupported type %T", v.Type())
	}
	return nil
}

type cborReader struct {
	data []byte
	pos  int
}

func (r *cborReader) head() (major, ai byte, n uint64, err error) {
	if r.pos >= len(r.data) {
		return 0, 0, 0, serr("binary", "truncated stream at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	major, ai = b>>5, b&0x1f
	switch {
	case ai < 24:
		return major, ai, uint64(ai), nil
	case ai == 24:
		if r.pos+1 > len(r.data) {
			return 0, 0, 0, serr("binary", "truncated head at offset %d", r.pos)
		}
		n = uint64(r.data[r.pos])
		r.pos++
	case ai == 25:
		if r.pos+2 > len(r.data) {
			return 0, 0, 0, serr("binary", "truncated head at offset %d", r.pos)
		}
		n = uint64(binary.BigEndian.Uint16(r.data[r.pos:]))
		r.pos += 2
	case ai == 26:
		if r.pos+4 > len(r.data) {
			return 0, 0, 0, serr("binary", "truncated head at offset %d", r.pos)
		}
		n = uint64(binary.BigEndian.Uint32(r.data[r.pos:]))
		r.pos += 4
	case ai == 27:
		if r.pos+8 > len(r.data) {
			return 0, 0, 0, serr("binary", "truncated head at offset %d", r.pos)
		}
		n = binary.BigEndian.Uint64(r.data[r.pos:])
		r.pos += 8
	default:
		return 0, 0, 0, serr("binary", "indefinite lengths are not canonical")
	}
	return major, ai, n, nil
}

func (r *cborReader) readInt() (int64, error) {
	major, _, n, err := r.head()
	if err != nil {
		return 0, err
	}
	switch major {
	case majorUint:
		if n > math.MaxInt64 {
			return 0, serr("binary", "integer %d overflows int64", n)
		}
		return int64(n), nil
	case majorNeg:
		if n > math.MaxInt64 {
			return 0, serr("binary", "negative integer overflows int64")
		}
		return -int64(n) - 1, nil
	default:
		return 0, serr("binary", "expected integer, found major type %d", major)
	}
}

func (r *cborReader) readFloat() (float64, error) {
	major, ai, n, err := r.head()
	if err != nil {
		return 0, err
	}
	if major != majorOther || ai != 27 {
		return 0, serr("binary", "expected 64-bit float, found major %d ai %d", major, ai)
	}
	return math.Float64frombits(n), nil
}

func (r *cborReader) readBool() (bool, error) {
	major, ai, _, err := r.head()
	if err != nil {
		return false, err
	}
	if major != majorOther || (ai != 20 && ai != 21) {
		return false, serr("binary", "expected boolean, found major %d ai %d", major, ai)
	}
	return ai == 21, nil
}

func (r *cborReader) readText() (string, error) {
	major, _, n, err := r.head()
	if err != nil {
		return "", err
	}
	if major != majorText {
		return "", serr("binary", "expected text, found major type %d", major)
	}
	if n > r.remaining() {
		return "", serr("binary", "truncated text at offset %d", r.pos)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *cborReader) readBytes() ([]byte, error) {
	major, _, n, err := r.head()
	if err != nil {
		return nil, err
	}
	if major != majorBytes {
		return nil, serr("binary", "expected bytes, found major type %d", major)
	}
	if n > r.remaining() {
		return nil, serr("binary", "truncated byte string at offset %d", r.pos)
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// remaining reports how many input bytes are left to read.
func (r *cborReader) remaining() uint64 {
	return uint64(len(r.data) - r.pos)
}

func (r *cborReader) expectHead(major byte) (uint64, error) {
	got, _, n, err := r.head()
	if err != nil {
		return 0, err
	}
	if got != major {
		return 0, serr("binary", "expected major type %d, found %d", major, got)
	}
	return n, nil
}

// expectCount reads an array head and bounds the declared element
// count by the remaining input. Every element occupies at least one
// byte, so a forged count cannot drive a huge allocation.
func (r *cborReader) expectCount() (uint64, error) {
	n, err := r.expectHead(majorArray)
	if err != nil {
		return 0, err
	}
	if n > r.remaining() {
		return 0, serr("binary", "declared count %d exceeds remaining input", n)
	}
	return n, nil
}

func (r *cborReader) expectTag(want uint64) error {
	n, err := r.expectHead(majorTag)
	if err != nil {
		return err
	}
	if n != want {
		return serr("binary", "expected tag %d, found %d", want, n)
	}
	return nil
}

// DecodeValue parses canonical binary back into a typed value. The raw
// payload goes through the type's constructor, so a stream whose value
// violates its declared refinement is rejected even if well-formed.
func DecodeValue(data []byte) (types.TypedValue, []proof.Blob, error) {
	r := &cborReader{data: data}
	entries, err := r.expectHead(majorMap)
	if err != nil {
		return types.TypedValue{}, nil, err
	}
	if entries != 2 && entries != 3 {
		return types.TypedValue{}, nil, serr("binary", "envelope has %d entries, want 2 or 3", entries)
	}

	var blobs []proof.Blob
	if entries == 3 {
		if err := expectKey(r, "p"); err != nil {
			return types.TypedValue{}, nil, err
		}
		blobs, err = readBlobs(r)
		if err != nil {
			return types.TypedValue{}, nil, err
		}
	}
	if err := expectKey(r, "t"); err != nil {
		return types.TypedValue{}, nil, err
	}
	typeStr, err := r.readText()
	if err != nil {
		return types.TypedValue{}, nil, err
	}
	t, err := parser.ParseTypeExprString(typeStr)
	if err != nil {
		return types.TypedValue{}, nil, swrap("binary", err, "invalid type expression %q", typeStr)
	}
	if err := expectKey(r, "v"); err != nil {
		return types.TypedValue{}, nil, err
	}
	v, err := decodeRaw(r, t)
	if err != nil {
		return types.TypedValue{}, nil, err
	}
	if r.pos != len(r.data) {
		return types.TypedValue{}, nil, serr("binary", "%d trailing bytes after value", len(r.data)-r.pos)
	}
	return v, blobs, nil
}

func expectKey(r *cborReader, want string) error {
	key, err := r.readText()
	if err != nil {
		return err
	}
	if key != want {
		return serr("binary", "expected key %q, found %q", want, key)
	}
	return nil
}

func readBlobs(r *cborReader) ([]proof.Blob, error) {
	n, err := r.expectCount()
	if err != nil {
		return nil, err
	}
	blobs := make([]proof.Blob, 0, n)
	for i := uint64(0); i < n; i++ {
		entries, err := r.expectHead(majorMap)
		if err != nil {
			return nil, err
		}
		var b proof.Blob
		for j := uint64(0); j < entries; j++ {
			key, err := r.readText()
			if err != nil {
				return nil, err
			}
			val, err := r.readText()
			if err != nil {
				return nil, err
			}
			switch key {
			case "description":
				b.Description = val
			case "evidence":
				b.Evidence = val
			case "kind":
				b.Kind = val
			case "status":
				b.Status = val
			case "subject":
				b.Subject = val
			default:
				return nil, serr("binary", "unknown proof blob key %q", key)
			}
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

func decodeRaw(r *cborReader, t types.TypeExpr) (types.TypedValue, error) {
	if tag, ok := tagFor(t); ok {
		if err := r.expectTag(tag); err != nil {
			return types.TypedValue{}, err
		}
	}
	switch tt := t.(type) {
	case types.Primitive:
		return decodePrimitive(r, tt)
	case types.BoundedNat:
		v, err := r.readInt()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedNat(v, tt)
	case types.BoundedFloat:
		v, err := r.readFloat()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedFloat(v, tt)
	case types.Confidence:
		v, err := r.readFloat()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewConfidence(v)
	case types.NonEmptyText:
		s, err := r.readText()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNonEmptyText(s)
	case types.Vector:
		n, err := r.expectCount()
		if err != nil {
			return types.TypedValue{}, err
		}
		elems := make([]types.TypedValue, 0, n)
		for i := uint64(0); i < n; i++ {
			e, err := decodeRaw(r, tt.Elem)
			if err != nil {
				return types.TypedValue{}, err
			}
			elems = append(elems, e)
		}
		return types.NewVector(elems, tt)
	case types.Provenance:
		return decodeProvenance(r, tt)
	case types.CompositeScore:
		return decodeScore(r, tt)
	default:
		return types.TypedValue{}, serr("binary", "unsupported type %T", t)
	}
}

func decodePrimitive(r *cborReader, t types.Primitive) (types.TypedValue, error) {
	switch t.Kind {
	case types.Nat:
		v, err := r.readInt()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNat(v)
	case types.Int:
		v, err := r.readInt()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewInt(v), nil
	case types.Float:
		v, err := r.readFloat()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewFloat(v)
	case types.Text:
		s, err := r.readText()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewText(s), nil
	case types.Bool:
		v, err := r.readBool()
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBool(v), nil
	case types.UUID:
		b, err := r.readBytes()
		if err != nil {
			return types.TypedValue{}, err
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return types.TypedValue{}, swrap("binary", err, "invalid UUID payload")
		}
		return types.NewUUID(id), nil
	case types.Timestamp:
		s, err := r.readText()
		if err != nil {
			return types.TypedValue{}, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return types.TypedValue{}, swrap("binary", err, "invalid timestamp %q", s)
		}
		return types.NewTimestamp(ts), nil
	default:
		return types.TypedValue{}, serr("binary", "unsupported primitive %s", t)
	}
}

func decodeProvenance(r *cborReader, t types.Provenance) (types.TypedValue, error) {
	entries, err := r.expectHead(majorMap)
	if err != nil {
		return types.TypedValue{}, err
	}
	if entries != 4 {
		return types.TypedValue{}, serr("binary", "provenance payload has %d entries, want 4", entries)
	}
	var (
		actor, rationale string
		at               time.Time
		inner            types.TypedValue
	)
	for i := uint64(0); i < entries; i++ {
		key, err := r.readText()
		if err != nil {
			return types.TypedValue{}, err
		}
		switch key {
		case "actor":
			if actor, err = r.readText(); err != nil {
				return types.TypedValue{}, err
			}
		case "at":
			s, err := r.readText()
			if err != nil {
				return types.TypedValue{}, err
			}
			if at, err = time.Parse(time.RFC3339Nano, s); err != nil {
				return types.TypedValue{}, swrap("binary", err, "invalid provenance timestamp %q", s)
			}
		case "rationale":
			if rationale, err = r.readText(); err != nil {
				return types.TypedValue{}, err
			}
		case "value":
			if inner, err = decodeRaw(r, t.Inner); err != nil {
				return types.TypedValue{}, err
			}
		default:
			return types.TypedValue{}, serr("binary", "unknown provenance key %q", key)
		}
	}
	return types.NewProvenance(inner, actor, rationale, at, t)
}

func decodeScore(r *cborReader, t types.CompositeScore) (types.TypedValue, error) {
	entries, err := r.expectHead(majorMap)
	if err != nil {
		return types.TypedValue{}, err
	}
	if entries != 2 {
		return types.TypedValue{}, serr("binary", "score payload has %d entries, want 2", entries)
	}
	if err := expectKey(r, "dims"); err != nil {
		return types.TypedValue{}, err
	}
	n, err := r.expectCount()
	if err != nil {
		return types.TypedValue{}, err
	}
	dims := make([]int64, 0, n)
	for i := uint64(0); i < n; i++ {
		d, err := r.readInt()
		if err != nil {
			return types.TypedValue{}, err
		}
		dims = append(dims, d)
	}
	if err := expectKey(r, "overall"); err != nil {
		return types.TypedValue{}, err
	}
	overall, err := r.readInt()
	if err != nil {
		return types.TypedValue{}, err
	}
	return types.NewCompositeScore(dims, overall, t)
}
