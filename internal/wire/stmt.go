package wire

import (
	"bytes"
	"strconv"
	"time"

	"github.com/refineql/refineql/internal/ir"
	"github.com/refineql/refineql/internal/proof"
	"github.com/refineql/refineql/internal/types"
)

// Statement serialization shares one document shape between the JSON
// and binary renderers. Maps are built with keys already in bytewise
// order, so both renderers emit canonical output by walking in place.

type docNode any

type docEntry struct {
	key string
	val docNode
}

// docMap is an ordered object. Entries must be appended in key order.
type docMap []docEntry

type docArr []docNode

// docValue embeds a typed value with its type expression.
type docValue struct {
	v types.TypedValue
}

// MarshalStatementJSON renders a compiled statement as canonical JSON.
func MarshalStatementJSON(stmt ir.Statement) ([]byte, error) {
	doc, err := statementDoc(stmt)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := renderJSON(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalStatementBinary renders a compiled statement as canonical
// binary.
func MarshalStatementBinary(stmt ir.Statement) ([]byte, error) {
	doc, err := statementDoc(stmt)
	if err != nil {
		return nil, err
	}
	w := &cborWriter{}
	if err := renderBinary(w, doc); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func statementDoc(stmt ir.Statement) (docMap, error) {
	switch s := stmt.(type) {
	case *ir.Insert:
		rows := s.Rows()
		cols := docArr{}
		for _, cv := range rows[0] {
			cols = append(cols, cv.Column)
		}
		rowDocs := docArr{}
		for _, row := range rows {
			vals := docArr{}
			for _, cv := range row {
				vals = append(vals, docValue{cv.Value})
			}
			rowDocs = append(rowDocs, vals)
		}
		doc := docMap{{"columns", cols}, {"kind", string(s.Kind())}}
		if p := s.Provenance(); p != nil {
			doc = append(doc, docEntry{"provenance", provenanceDoc(*p)})
		}
		if blobs := s.Blobs(); len(blobs) > 0 {
			doc = append(doc, docEntry{"proof", blobsDoc(blobs)})
		}
		doc = append(doc, docEntry{"rows", rowDocs}, docEntry{"table", s.Table()})
		return doc, nil

	case *ir.Select:
		cols := docArr{}
		for _, c := range s.ProjectedColumns() {
			cols = append(cols, c)
		}
		doc := docMap{
			{"columns", cols},
			{"distinct", s.Distinct()},
			{"kind", string(s.Kind())},
		}
		if s.Limit() >= 0 {
			doc = append(doc, docEntry{"limit", s.Limit()})
		}
		if keys := s.OrderBy(); len(keys) > 0 {
			arr := docArr{}
			for _, k := range keys {
				arr = append(arr, docMap{{"column", k.Column}, {"desc", k.Desc}})
			}
			doc = append(doc, docEntry{"order_by", arr})
		}
		doc = append(doc, docEntry{"table", s.Table()})
		if s.Where() != nil {
			wd, err := predicateDoc(s.Where())
			if err != nil {
				return nil, err
			}
			doc = append(doc, docEntry{"where", wd})
		}
		return doc, nil

	case *ir.Update:
		sets := docArr{}
		for _, cv := range s.Sets() {
			sets = append(sets, docMap{{"column", cv.Column}, {"value", docValue{cv.Value}}})
		}
		wd, err := predicateDoc(s.Where())
		if err != nil {
			return nil, err
		}
		doc := docMap{{"kind", string(s.Kind())}}
		if blobs := s.Blobs(); len(blobs) > 0 {
			doc = append(doc, docEntry{"proof", blobsDoc(blobs)})
		}
		doc = append(doc,
			docEntry{"provenance", provenanceDoc(s.Provenance())},
			docEntry{"sets", sets},
			docEntry{"table", s.Table()},
			docEntry{"where", wd},
		)
		return doc, nil

	case *ir.Delete:
		wd, err := predicateDoc(s.Where())
		if err != nil {
			return nil, err
		}
		return docMap{
			{"kind", string(s.Kind())},
			{"provenance", provenanceDoc(s.Provenance())},
			{"table", s.Table()},
			{"where", wd},
		}, nil

	case *ir.CreateTable:
		cols := docArr{}
		for _, c := range s.Definition().Columns {
			cols = append(cols, docMap{
				{"name", c.Name},
				{"primary_key", c.PrimaryKey},
				{"type", c.Type.String()},
				{"unique", c.Unique},
			})
		}
		return docMap{
			{"columns", cols},
			{"kind", string(s.Kind())},
			{"table", s.Table()},
		}, nil

	case *ir.Normalize:
		return docMap{
			{"kind", string(s.Kind())},
			{"table", s.Table()},
			{"target", s.Target()},
		}, nil

	default:
		return nil, serr("json", "unsupported statement %T", stmt)
	}
}

func provenanceDoc(p ir.Provenance) docMap {
	doc := docMap{{"actor", p.Actor}}
	if !p.At.IsZero() {
		doc = append(doc, docEntry{"at", p.At.UTC().Format(time.RFC3339Nano)})
	}
	return append(doc, docEntry{"rationale", p.Rationale})
}

func blobsDoc(blobs []proof.Blob) docArr {
	arr := docArr{}
	for _, b := range blobs {
		arr = append(arr, docMap{
			{"description", b.Description},
			{"evidence", b.Evidence},
			{"kind", b.Kind},
			{"status", b.Status},
			{"subject", b.Subject},
		})
	}
	return arr
}

func predicateDoc(p ir.Predicate) (docNode, error) {
	switch pred := p.(type) {
	case ir.Compare:
		return docMap{
			{"column", pred.Column},
			{"op", string(pred.Op)},
			{"value", docValue{pred.Value}},
		}, nil
	case ir.And:
		preds, err := predicateDocs(pred.Predicates)
		if err != nil {
			return nil, err
		}
		return docMap{{"op", "and"}, {"preds", preds}}, nil
	case ir.Or:
		preds, err := predicateDocs(pred.Predicates)
		if err != nil {
			return nil, err
		}
		return docMap{{"op", "or"}, {"preds", preds}}, nil
	case ir.Not:
		inner, err := predicateDoc(pred.Predicate)
		if err != nil {
			return nil, err
		}
		return docMap{{"op", "not"}, {"pred", inner}}, nil
	case ir.Between:
		return docMap{
			{"column", pred.Column},
			{"high", docValue{pred.High}},
			{"low", docValue{pred.Low}},
			{"negated", pred.Negated},
			{"op", "between"},
		}, nil
	case ir.In:
		set := docArr{}
		for _, v := range pred.Set {
			set = append(set, docValue{v})
		}
		return docMap{
			{"column", pred.Column},
			{"negated", pred.Negated},
			{"op", "in"},
			{"set", set},
		}, nil
	case ir.IsNull:
		return docMap{
			{"column", pred.Column},
			{"negated", pred.Negated},
			{"op", "is_null"},
		}, nil
	default:
		return nil, serr("json", "unsupported predicate %T", p)
	}
}

func predicateDocs(preds []ir.Predicate) (docArr, error) {
	arr := docArr{}
	for _, p := range preds {
		d, err := predicateDoc(p)
		if err != nil {
			return nil, err
		}
		arr = append(arr, d)
	}
	return arr, nil
}

func renderJSON(buf *bytes.Buffer, n docNode) error {
	switch node := n.(type) {
	case docMap:
		buf.WriteByte('{')
		for i, e := range node {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, e.key)
			buf.WriteByte(':')
			if err := renderJSON(buf, e.val); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case docArr:
		buf.WriteByte('[')
		for i, e := range node {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := renderJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case docValue:
		buf.WriteString(`{"type":`)
		writeJSONString(buf, node.v.Type().String())
		buf.WriteString(`,"value":`)
		if err := writeRawJSON(buf, node.v); err != nil {
			return err
		}
		buf.WriteByte('}')
	case string:
		writeJSONString(buf, node)
	case int64:
		buf.WriteString(strconv.FormatInt(node, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(node))
	default:
		return serr("json", "unsupported document node %T", n)
	}
	return nil
}

func renderBinary(w *cborWriter, n docNode) error {
	switch node := n.(type) {
	case docMap:
		w.writeMapHead(len(node))
		for _, e := range node {
			w.writeText(e.key)
			if err := renderBinary(w, e.val); err != nil {
				return err
			}
		}
	case docArr:
		w.writeArrayHead(len(node))
		for _, e := range node {
			if err := renderBinary(w, e); err != nil {
				return err
			}
		}
	case docValue:
		w.writeMapHead(2)
		w.writeText("t")
		w.writeText(node.v.Type().String())
		w.writeText("v")
		if err := encodeRaw(w, node.v); err != nil {
			return err
		}
	case string:
		w.writeText(node)
	case int64:
		w.writeInt(node)
	case bool:
		w.writeBool(node)
	default:
		return serr("binary", "unsupported document node %T", n)
	}
	return nil
}
