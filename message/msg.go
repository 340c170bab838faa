package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// MAPI property identifiers read from a .msg container.
const (
	propSubject      = 0x0037
	propBodyHTML     = 0x1013
	propInternetCPID = 0x3FDE
)

// MAPI property value types.
const (
	typeInt32   = 0x0003
	typeString8 = 0x001E
	typeUnicode = 0x001F
	typeBinary  = 0x0102
)

const (
	substgPrefix   = "__substg1.0_"
	propertyStream = "__properties_version1.0"

	// The top-level property stream starts with a 32-byte header,
	// followed by 16-byte fixed-size entries.
	topLevelPropHeader = 32
	propEntrySize      = 16
)

// codePages maps the Windows code pages most often found in
// PR_INTERNET_CPID to their IANA names.
var codePages = map[uint32]string{
	874:   "windows-874",
	932:   "shift_jis",
	936:   "gbk",
	949:   "euc-kr",
	950:   "big5",
	1250:  "windows-1250",
	1251:  "windows-1251",
	1252:  "windows-1252",
	1253:  "windows-1253",
	1254:  "windows-1254",
	1255:  "windows-1255",
	1256:  "windows-1256",
	1257:  "windows-1257",
	1258:  "windows-1258",
	20127: "us-ascii",
	20866: "koi8-r",
	28591: "iso-8859-1",
	28592: "iso-8859-2",
	28605: "iso-8859-15",
	50220: "iso-2022-jp",
	51932: "euc-jp",
	65001: "utf-8",
}

// msgProps holds the raw property streams of the message object itself.
// Streams inside recipient and attachment storages are not collected.
type msgProps struct {
	streams map[uint16]msgStream
	cpid    uint32
}

type msgStream struct {
	typ  uint16
	data []byte
}

// ParseMSG decodes an Outlook .msg file.
func ParseMSG(r io.Reader) (*Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("message: reading msg: %w", err)
	}
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, malformed("opening msg container", err)
	}

	props, err := readProps(doc)
	if err != nil {
		return nil, err
	}

	msg := &Message{Format: FormatMSG}
	if s, ok := props.streams[propSubject]; ok {
		msg.Subject = props.text(s)
	}

	var html string
	if s, ok := props.streams[propBodyHTML]; ok {
		html = props.text(s)
	}
	return msg.withBody(html), nil
}

func readProps(doc *mscfb.Reader) (*msgProps, error) {
	props := &msgProps{streams: make(map[uint16]msgStream)}
	for {
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("walking msg container", err)
		}
		if len(entry.Path) != 0 {
			continue
		}

		switch {
		case entry.Name == propertyStream:
			b, err := io.ReadAll(entry)
			if err != nil {
				return nil, malformed("reading property stream", err)
			}
			props.cpid = internetCPID(b)

		case strings.HasPrefix(entry.Name, substgPrefix):
			id, typ, ok := parseSubstgName(entry.Name)
			if !ok || (id != propSubject && id != propBodyHTML) {
				continue
			}
			b, err := io.ReadAll(entry)
			if err != nil {
				return nil, malformed("reading "+entry.Name, err)
			}
			// Some writers emit both the string and binary flavour; the
			// unicode one is preferred.
			if prev, seen := props.streams[id]; seen && prev.typ == typeUnicode {
				continue
			}
			props.streams[id] = msgStream{typ: typ, data: b}
		}
	}
	return props, nil
}

// parseSubstgName splits "__substg1.0_1013001F" into property id and type.
func parseSubstgName(name string) (id, typ uint16, ok bool) {
	tag := strings.TrimPrefix(name, substgPrefix)
	if len(tag) != 8 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(tag, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v >> 16), uint16(v), true
}

// internetCPID scans the top-level property stream for PR_INTERNET_CPID.
func internetCPID(b []byte) uint32 {
	if len(b) < topLevelPropHeader {
		return 0
	}
	for off := topLevelPropHeader; off+propEntrySize <= len(b); off += propEntrySize {
		tag := binary.LittleEndian.Uint32(b[off:])
		if uint16(tag>>16) == propInternetCPID && uint16(tag) == typeInt32 {
			return binary.LittleEndian.Uint32(b[off+8:])
		}
	}
	return 0
}

// text decodes a property stream into a Go string.
func (p *msgProps) text(s msgStream) string {
	var out []byte
	switch s.typ {
	case typeUnicode:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		b, err := dec.Bytes(s.data)
		if err != nil {
			return ""
		}
		out = b
	case typeString8, typeBinary:
		out = decodeBytes(s.data, p.encoding(s.data))
	default:
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// encoding picks the charset for 8-bit and binary streams: the message's
// declared code page first, then whatever the HTML itself announces.
func (p *msgProps) encoding(data []byte) encoding.Encoding {
	if name, ok := codePages[p.cpid]; ok {
		if enc, _ := charset.Lookup(name); enc != nil {
			return enc
		}
	}
	enc, _, _ := charset.DetermineEncoding(data, "text/html")
	return enc
}

func decodeBytes(data []byte, enc encoding.Encoding) []byte {
	if enc == nil || enc == encoding.Nop {
		return data
	}
	b, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return b
}
