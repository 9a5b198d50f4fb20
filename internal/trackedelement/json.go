package trackedelement

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kismetcore/kismet/internal/entrytracker"
)

// Encoder renders a tracked-element tree as JSON per the bit-exact rules in
// SPEC_FULL.md §4.1: scalars as primitives, NaN/Inf -> 0, integer-valued
// doubles without a decimal point, byte_array as a quoted string, maps as
// objects keyed by field name (or array, if render-as-vector), generically
// keyed maps stringify their keys, and strings are escaped byte-wise.
type Encoder struct {
	Tracker *entrytracker.Tracker
	// Pretty, when true, emits a "description.<name>" sibling next to every
	// scalar field of a map, giving "<type>, <description>".
	Pretty bool
}

// NewEncoder constructs an Encoder bound to tracker for field name/
// description/type lookups.
func NewEncoder(tracker *entrytracker.Tracker) *Encoder {
	return &Encoder{Tracker: tracker}
}

// Encode writes root's JSON rendering to w.
func (enc *Encoder) Encode(w io.Writer, root *Element) error {
	sb := &strings.Builder{}
	enc.encodeElement(sb, root, nil)
	_, err := io.WriteString(w, sb.String())
	return err
}

// EncodeString is a convenience wrapper returning the rendered JSON as a
// string.
func (enc *Encoder) EncodeString(root *Element) string {
	sb := &strings.Builder{}
	enc.encodeElement(sb, root, nil)
	return sb.String()
}

// EncodeEK renders items (normally the rows of a top-level vector) in
// "ek-json" form: one JSON object per line, with field names' "." replaced
// by "_".
func (enc *Encoder) EncodeEK(w io.Writer, items []*Element) error {
	for _, it := range items {
		sb := &strings.Builder{}
		enc.encodeElement(sb, it, nil)
		line := renameDotsInKeys(sb.String())
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// EncodeIT renders items in "it-json" form: one JSON object per line,
// preserving field names as-is (unlike ek-json).
func (enc *Encoder) EncodeIT(w io.Writer, items []*Element) error {
	for _, it := range items {
		sb := &strings.Builder{}
		enc.encodeElement(sb, it, nil)
		if _, err := io.WriteString(w, sb.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// renameDotsInKeys performs the ek-json "." -> "_" rewrite on JSON object
// keys only (the substring up to the first unescaped colon after a quote).
// Because our field names never themselves contain a literal quote, a
// simple key-position scan is sufficient and avoids re-parsing the whole
// document.
func renameDotsInKeys(jsonText string) string {
	var out strings.Builder
	inKey := false
	atLineStart := true
	for i := 0; i < len(jsonText); i++ {
		c := jsonText[i]
		if c == '"' {
			// A quote starts a key when it follows '{' or ',' (skipping
			// whitespace), and starts a value otherwise.
			if atLineStart {
				inKey = true
				atLineStart = false
			} else {
				inKey = false
			}
			out.WriteByte(c)
			continue
		}
		if inKey && c == '.' {
			out.WriteByte('_')
			continue
		}
		out.WriteByte(c)
		if c == '{' || c == ',' {
			atLineStart = true
		} else if c != ' ' {
			atLineStart = false
		}
	}
	return out.String()
}

// formatDouble implements the shared float-rendering rule: NaN/Inf -> "0",
// integer-valued doubles without a decimal point, otherwise fixed notation.
func formatDouble(f float64) string {
	if isNaNOrInf(f) {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sanitizeJSONString escapes a raw byte sequence for use as a JSON string
// body (without the surrounding quotes). '"' and '\\' are backslash-
// escaped; control bytes below 0x20 use the standard backslash escapes
// where one exists, else \u00XX. All other bytes pass through unchanged
// (this is a byte_array/string encoder, not a UTF-8 validator).
func sanitizeJSONString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) + 2)
	for _, c := range b {
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	sb.WriteString(sanitizeJSONString([]byte(s)))
	sb.WriteByte('"')
}

// mapKeyString stringifies a generic map key for JSON object rendering,
// per the integer/mac/uuid/double-key rules.
func mapKeyString(kind Kind, key any) string {
	switch kind {
	case KindMapInt:
		return fmt.Sprintf("%d", key)
	case KindMapFloat:
		return formatDouble(key.(float64))
	case KindMapMAC:
		return key.(string)
	case KindMapUUID, KindMapHashkey, KindMapDeviceKey:
		return fmt.Sprintf("%v", key)
	default:
		return fmt.Sprintf("%v", key)
	}
}

// scalarValue renders a scalar element's bare JSON value (no hooks, no
// enclosing object/key).
func (enc *Encoder) scalarValue(sb *strings.Builder, e *Element) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case KindI8, KindI16, KindI32, KindI64:
		sb.WriteString(strconv.FormatInt(e.i, 10))
	case KindU8, KindU16, KindU32, KindU64:
		sb.WriteString(strconv.FormatUint(e.u, 10))
	case KindF32, KindF64:
		sb.WriteString(formatDouble(e.f))
	case KindString:
		writeJSONString(sb, e.s)
	case KindByteArray:
		sb.WriteByte('"')
		sb.WriteString(sanitizeJSONString(e.b))
		sb.WriteByte('"')
	case KindMAC:
		writeJSONString(sb, e.mac.String())
	case KindUUID:
		writeJSONString(sb, e.uid.String())
	case KindIPv4:
		writeJSONString(sb, e.ip.String())
	case KindDeviceKey:
		writeJSONString(sb, e.dkey.String())
	default:
		sb.WriteString("null")
	}
}

func (enc *Encoder) fieldName(e *Element) string {
	if r := e.RenameAs(); r != "" {
		return r
	}
	if enc.Tracker != nil {
		if n, ok := enc.Tracker.GetFieldName(e.ID()); ok {
			return n
		}
	}
	return ""
}

// encodeElement writes e's JSON rendering, honoring pre/post-serialize
// hooks registered along path.
func (enc *Encoder) encodeElement(sb *strings.Builder, e *Element, path []entrytracker.FieldID) {
	e = resolveAlias(e)
	if e == nil {
		sb.WriteString("null")
		return
	}

	e.runPreHooks(path)
	defer e.runPostHooks(path)

	switch {
	case e.kind == KindPlaceholder:
		sb.WriteString("null")
		return

	case e.kind.IsScalar():
		enc.scalarValue(sb, e)
		return

	case e.kind == KindVector:
		e.mu.RLock()
		kids := make([]*Element, len(e.vec))
		copy(kids, e.vec)
		e.mu.RUnlock()
		sb.WriteByte('[')
		for i, k := range kids {
			if i > 0 {
				sb.WriteByte(',')
			}
			enc.encodeElement(sb, k, append(path, k.ID()))
		}
		sb.WriteByte(']')
		return

	case e.kind == KindVectorFloat:
		vals := e.FloatSlice()
		sb.WriteByte('[')
		for i, v := range vals {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(formatDouble(v))
		}
		sb.WriteByte(']')
		return

	case e.kind == KindVectorString:
		vals := e.StringSlice()
		sb.WriteByte('[')
		for i, v := range vals {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, v)
		}
		sb.WriteByte(']')
		return

	case e.kind == KindPairFloat:
		a, b := e.Pair()
		sb.WriteByte('[')
		sb.WriteString(formatDouble(a))
		sb.WriteByte(',')
		sb.WriteString(formatDouble(b))
		sb.WriteByte(']')
		return

	case e.kind == KindMapFloatFloat:
		m := e.FloatFloatMap()
		if e.RenderAsVector() {
			sb.WriteByte('[')
			first := true
			for _, v := range m {
				if !first {
					sb.WriteByte(',')
				}
				first = false
				sb.WriteString(formatDouble(v))
			}
			sb.WriteByte(']')
			return
		}
		sb.WriteByte('{')
		first := true
		for k, v := range m {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			writeJSONString(sb, formatDouble(k))
			sb.WriteByte(':')
			sb.WriteString(formatDouble(v))
		}
		sb.WriteByte('}')
		return

	case e.kind == KindMapString:
		enc.encodeFieldMap(sb, e, path)
		return

	case e.kind.IsMap(): // generically-keyed elem maps
		enc.encodeGenericMap(sb, e, path)
		return

	default:
		sb.WriteString("null")
	}
}

func (enc *Encoder) encodeFieldMap(sb *strings.Builder, e *Element, path []entrytracker.FieldID) {
	ids := e.Keys()

	if e.RenderAsVector() {
		sb.WriteByte('[')
		for i, id := range ids {
			if i > 0 {
				sb.WriteByte(',')
			}
			child, _ := e.GetField(id)
			enc.encodeElement(sb, child, append(path, id))
		}
		sb.WriteByte(']')
		return
	}

	sb.WriteByte('{')
	first := true
	for _, id := range ids {
		child, ok := e.GetField(id)
		if !ok {
			continue
		}
		name := enc.fieldName(child)
		if name == "" {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		writeJSONString(sb, name)
		sb.WriteByte(':')
		enc.encodeElement(sb, child, append(path, id))

		if enc.Pretty && child.Kind().IsScalar() && enc.Tracker != nil {
			typ, _ := enc.Tracker.GetFieldType(id)
			desc, _ := enc.Tracker.GetFieldDescription(id)
			sb.WriteByte(',')
			writeJSONString(sb, "description."+name)
			sb.WriteByte(':')
			writeJSONString(sb, fmt.Sprintf("%s, %s", typ, desc))
		}
	}
	sb.WriteByte('}')
}

func (enc *Encoder) encodeGenericMap(sb *strings.Builder, e *Element, path []entrytracker.FieldID) {
	keys := e.OrderedKeys()

	if e.RenderAsVector() {
		sb.WriteByte('[')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			child, _ := e.getGenericKey(e.kind, k)
			enc.encodeElement(sb, child, path)
		}
		sb.WriteByte(']')
		return
	}

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		child, _ := e.getGenericKey(e.kind, k)
		writeJSONString(sb, mapKeyString(e.kind, k))
		sb.WriteByte(':')
		enc.encodeElement(sb, child, path)
	}
	sb.WriteByte('}')
}
