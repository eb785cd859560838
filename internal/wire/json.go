package wire

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/refineql/refineql/internal/parser"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

// Canonical JSON mirrors the binary envelope as a readable document:
// object keys in bytewise order, strings NFC normalized at the
// serialization boundary, no HTML escaping. Equal values produce equal
// bytes, so the output is safe to diff and hash.

// EncodeValueJSON renders a typed value and its proof record as
// canonical JSON.
func EncodeValueJSON(v types.TypedValue, blobs []proof.Blob) ([]byte, error) {
	if v.IsZero() {
		return nil, serr("json", "cannot encode the zero value")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	if len(blobs) > 0 {
		buf.WriteString(`"proof":`)
		writeBlobsJSON(&buf, blobs)
		buf.WriteByte(',')
	}
	buf.WriteString(`"type":`)
	writeJSONString(&buf, v.Type().String())
	buf.WriteString(`,"value":`)
	if err := writeRawJSON(&buf, v); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeBlobsJSON(buf *bytes.Buffer, blobs []proof.Blob) {
	buf.WriteByte('[')
	for i, b := range blobs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"description":`)
		writeJSONString(buf, b.Description)
		buf.WriteString(`,"evidence":`)
		writeJSONString(buf, b.Evidence)
		buf.WriteString(`,"kind":`)
		writeJSONString(buf, b.Kind)
		buf.WriteString(`,"status":`)
		writeJSONString(buf, b.Status)
		buf.WriteString(`,"subject":`)
		writeJSONString(buf, b.Subject)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
}

func writeRawJSON(buf *bytes.Buffer, v types.TypedValue) error {
	switch t := v.Type().(type) {
	case types.Primitive:
		switch t.Kind {
		case types.Nat, types.Int:
			buf.WriteString(strconv.FormatInt(v.Raw().(int64), 10))
		case types.Float:
			writeJSONFloat(buf, v.Raw().(float64))
		case types.Text:
			writeJSONString(buf, v.Raw().(string))
		case types.Bool:
			buf.WriteString(strconv.FormatBool(v.Raw().(bool)))
		case types.UUID:
			writeJSONString(buf, v.Raw().(uuid.UUID).String())
		case types.Timestamp:
			writeJSONString(buf, v.Raw().(time.Time).UTC().Format(time.RFC3339Nano))
		default:
			return serr("json", "unsupported primitive %s", t)
		}
	case types.BoundedNat:
		buf.WriteString(strconv.FormatInt(v.Raw().(int64), 10))
	case types.BoundedFloat, types.Confidence:
		writeJSONFloat(buf, v.Raw().(float64))
	case types.NonEmptyText:
		writeJSONString(buf, v.Raw().(string))
	case types.Vector:
		buf.WriteByte('[')
		for i, e := range v.Raw().([]types.TypedValue) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeRawJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case types.Provenance:
		pv := v.Raw().(types.ProvValue)
		buf.WriteString(`{"actor":`)
		writeJSONString(buf, pv.Actor)
		buf.WriteString(`,"at":`)
		writeJSONString(buf, pv.At.UTC().Format(time.RFC3339Nano))
		buf.WriteString(`,"rationale":`)
		writeJSONString(buf, pv.Rationale)
		buf.WriteString(`,"value":`)
		if err := writeRawJSON(buf, pv.Inner); err != nil {
			return err
		}
		buf.WriteByte('}')
	case types.CompositeScore:
		sv := v.Raw().(types.ScoreValue)
		buf.WriteString(`{"dims":[`)
		for i, d := range sv.Dims {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatInt(d, 10))
		}
		buf.WriteString(`],"overall":`)
		buf.WriteString(strconv.FormatInt(sv.Overall, 10))
		buf.WriteByte('}')
	default:
		return serr("json", "unsupported type %T", v.Type())
	}
	return nil
}

// writeJSONString emits a JSON string with the value NFC normalized and
// HTML characters left unescaped.
func writeJSONString(buf *bytes.Buffer, s string) {
	normalized := norm.NFC.String(s)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode never fails for a string; it appends a trailing newline
	// that must come back off.
	_ = enc.Encode(normalized)
	buf.Truncate(buf.Len() - 1)
}

func writeJSONFloat(buf *bytes.Buffer, f float64) {
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

type jsonEnvelope struct {
	Proof []proof.Blob    `json:"proof"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// DecodeValueJSON parses the canonical JSON envelope. As in the binary
// decoder, the raw value is rebuilt through the type's constructor.
func DecodeValueJSON(data []byte) (types.TypedValue, []proof.Blob, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.TypedValue{}, nil, swrap("json", err, "malformed envelope")
	}
	if env.Type == "" {
		return types.TypedValue{}, nil, serr("json", "envelope has no type")
	}
	t, err := parser.ParseTypeExprString(env.Type)
	if err != nil {
		return types.TypedValue{}, nil, swrap("json", err, "invalid type expression %q", env.Type)
	}
	v, err := decodeRawJSON(env.Value, t)
	if err != nil {
		return types.TypedValue{}, nil, err
	}
	return v, env.Proof, nil
}

func decodeRawJSON(raw json.RawMessage, t types.TypeExpr) (types.TypedValue, error) {
	switch tt := t.(type) {
	case types.Primitive:
		return decodePrimitiveJSON(raw, tt)
	case types.BoundedNat:
		v, err := jsonInt(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedNat(v, tt)
	case types.BoundedFloat:
		v, err := jsonFloat(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewBoundedFloat(v, tt)
	case types.Confidence:
		v, err := jsonFloat(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewConfidence(v)
	case types.NonEmptyText:
		s, err := jsonString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNonEmptyText(s)
	case types.Vector:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return types.TypedValue{}, swrap("json", err, "vector payload is not an array")
		}
		vals := make([]types.TypedValue, 0, len(elems))
		for _, e := range elems {
			v, err := decodeRawJSON(e, tt.Elem)
			if err != nil {
				return types.TypedValue{}, err
			}
			vals = append(vals, v)
		}
		return types.NewVector(vals, tt)
	case types.Provenance:
		var body struct {
			Actor     string          `json:"actor"`
			At        string          `json:"at"`
			Rationale string          `json:"rationale"`
			Value     json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return types.TypedValue{}, swrap("json", err, "provenance payload is not an object")
		}
		at, err := time.Parse(time.RFC3339Nano, body.At)
		if err != nil {
			return types.TypedValue{}, swrap("json", err, "invalid provenance timestamp %q", body.At)
		}
		inner, err := decodeRawJSON(body.Value, tt.Inner)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewProvenance(inner, body.Actor, body.Rationale, at, tt)
	case types.CompositeScore:
		var body struct {
			Dims    []int64 `json:"dims"`
			Overall int64   `json:"overall"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return types.TypedValue{}, swrap("json", err, "score payload is not an object")
		}
		return types.NewCompositeScore(body.Dims, body.Overall, tt)
	default:
		return types.TypedValue{}, serr("json", "unsupported type %T", t)
	}
}

func decodePrimitiveJSON(raw json.RawMessage, t types.Primitive) (types.TypedValue, error) {
	switch t.Kind {
	case types.Nat:
		v, err := jsonInt(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewNat(v)
	case types.Int:
		v, err := jsonInt(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewInt(v), nil
	case types.Float:
		v, err := jsonFloat(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewFloat(v)
	case types.Text:
		s, err := jsonString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.NewText(s), nil
	case types.Bool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return types.TypedValue{}, swrap("json", err, "payload is not a boolean")
		}
		return types.NewBool(b), nil
	case types.UUID:
		s, err := jsonString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		return types.ParseUUID(s)
	case types.Timestamp:
		s, err := jsonString(raw)
		if err != nil {
			return types.TypedValue{}, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return types.TypedValue{}, swrap("json", err, "invalid timestamp %q", s)
		}
		return types.NewTimestamp(ts), nil
	default:
		return types.TypedValue{}, serr("json", "unsupported primitive %s", t)
	}
}

func jsonInt(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, swrap("json", err, "payload is not a number")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, swrap("json", err, "payload %s is not an integer", n)
	}
	return v, nil
}

func jsonFloat(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, swrap("json", err, "payload is not a number")
	}
	return n.Float64()
}

func jsonString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", swrap("json", err, "payload is not a string")
	}
	return s, nil
}
