// Package protocol implements the typed wire frame codec used between
// clients, the server, and replicas.
package protocol

// Kind tags a Frame by its leading byte on the wire.
type Kind byte

const (
	KindSimpleString Kind = '+'
	KindSimpleError  Kind = '-'
	KindInteger      Kind = ':'
	KindBulkString   Kind = '$'
	KindArray        Kind = '*'
	KindNull         Kind = '_'
	KindBoolean      Kind = '#'
	KindDouble       Kind = ','
	KindBigNumber    Kind = '('
	KindBulkError    Kind = '!'
	KindVerbatim     Kind = '='
	KindMap          Kind = '%'
	KindAttribute    Kind = '|'
	KindSet          Kind = '~'
	KindPush         Kind = '>'
)

// Frame is a single decoded or to-be-encoded protocol value.
//
// Only the field(s) relevant to Kind are populated:
//
//	SimpleString/SimpleError          -> Str
//	Integer                           -> Int
//	BulkString/Verbatim/BulkError     -> Bulk (nil means a null bulk string)
//	Array/Set/Push                    -> Items
//	Null                              -> (no payload)
type Frame struct {
	Kind  Kind
	Str   string
	Int   int64
	Bulk  []byte
	Items []Frame

	// raw marks a bulk string written without its trailing CRLF, used
	// only for the FULLRESYNC snapshot transfer.
	raw bool
}

// NewSimpleString builds a "+..." frame.
func NewSimpleString(s string) Frame { return Frame{Kind: KindSimpleString, Str: s} }

// NewSimpleError builds a "-..." frame.
func NewSimpleError(s string) Frame { return Frame{Kind: KindSimpleError, Str: s} }

// NewInteger builds a ":..." frame.
func NewInteger(n int64) Frame { return Frame{Kind: KindInteger, Int: n} }

// NewBulkString builds a "$..." frame from the given bytes.
func NewBulkString(b []byte) Frame { return Frame{Kind: KindBulkString, Bulk: b} }

// NewBulkStringFromText is a convenience wrapper over NewBulkString.
func NewBulkStringFromText(s string) Frame { return NewBulkString([]byte(s)) }

// NewNullBulkString builds a "$-1" frame.
func NewNullBulkString() Frame { return Frame{Kind: KindBulkString, Bulk: nil} }

// NewArray builds a "*..." frame.
func NewArray(items []Frame) Frame { return Frame{Kind: KindArray, Items: items} }

// NewNilArray builds a "*-1" frame.
func NewNilArray() Frame { return Frame{Kind: KindArray, Items: nil} }

// NewRawPayload builds the special raw-snapshot-payload variant: a bulk
// string header with no trailing CRLF, used only for the PSYNC handshake.
func NewRawPayload(b []byte) Frame { return Frame{Kind: KindBulkString, Bulk: b, raw: true} }

// IsNullBulk reports whether the frame is a bulk string with no payload.
func (f Frame) IsNullBulk() bool { return f.Kind == KindBulkString && f.Bulk == nil }

// StringArgs converts an array-of-bulk-strings frame into a plain argv
// slice, the shape every client command arrives as.
func (f Frame) StringArgs() ([]string, bool) {
	if f.Kind != KindArray {
		return nil, false
	}
	out := make([]string, len(f.Items))
	for i, item := range f.Items {
		if item.Kind != KindBulkString || item.Bulk == nil {
			return nil, false
		}
		out[i] = string(item.Bulk)
	}
	return out, true
}

// ArgvFrame builds the array-of-bulk-strings frame representing a command
// invocation, used to re-encode writes for replica fan-out.
func ArgvFrame(argv []string) Frame {
	items := make([]Frame, len(argv))
	for i, a := range argv {
		items[i] = NewBulkStringFromText(a)
	}
	return NewArray(items)
}
