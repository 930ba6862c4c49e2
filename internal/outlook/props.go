package outlook

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/wesm/pmmail2eml/internal/textutil"
)

// MAPI property types.
const (
	ptLong    uint16 = 0x0003
	ptBoolean uint16 = 0x000B
	ptObject  uint16 = 0x000D
	ptString8 uint16 = 0x001E
	ptUnicode uint16 = 0x001F
	ptSysTime uint16 = 0x0040
	ptBinary  uint16 = 0x0102
)

// MAPI property ids used when rebuilding a message.
const (
	prSubject                  uint16 = 0x0037
	prClientSubmitTime         uint16 = 0x0039
	prSentRepresentingName     uint16 = 0x0042
	prSentRepresentingEmail    uint16 = 0x0065
	prTransportMessageHeaders  uint16 = 0x007D
	prSenderName               uint16 = 0x0C1A
	prRecipientType            uint16 = 0x0C15
	prSenderEmailAddress       uint16 = 0x0C1F
	prDisplayBcc               uint16 = 0x0E02
	prDisplayCc                uint16 = 0x0E03
	prDisplayTo                uint16 = 0x0E04
	prMessageDeliveryTime      uint16 = 0x0E06
	prBody                     uint16 = 0x1000
	prBodyHTML                 uint16 = 0x1013
	prInternetMessageID        uint16 = 0x1035
	prInternetReferences       uint16 = 0x1039
	prInReplyToID              uint16 = 0x1042
	prDisplayName              uint16 = 0x3001
	prAddrType                 uint16 = 0x3002
	prEmailAddress             uint16 = 0x3003
	prAttachDataBin            uint16 = 0x3701
	prAttachFilename           uint16 = 0x3704
	prAttachLongFilename       uint16 = 0x3707
	prAttachMIMETag            uint16 = 0x370E
	prAttachContentID          uint16 = 0x3712
	prSMTPAddress              uint16 = 0x39FE
	prInternetCodepage         uint16 = 0x3FDE
	prMessageCodepage          uint16 = 0x3FFD
	prSenderSMTPAddress        uint16 = 0x5D01
	prSentRepresentingSMTPAddr uint16 = 0x5D02
)

// Recipient types stored in PR_RECIPIENT_TYPE.
const (
	recipTo  = 1
	recipCc  = 2
	recipBcc = 3
)

const (
	substgPrefix     = "__substg1.0_"
	propertiesStream = "__properties_version1.0"
	recipPrefix      = "__recip_version1.0_"
	attachPrefix     = "__attach_version1.0_"
)

// Header sizes of a __properties_version1.0 stream before the first
// 16-byte property entry.
const (
	topLevelPropsHeader = 32
	childPropsHeader    = 8
	propEntrySize       = 16
)

// propTag splits a "__substg1.0_XXXXYYYY" stream name into property id
// and type.
func propTag(name string) (id, typ uint16, ok bool) {
	if !strings.HasPrefix(name, substgPrefix) {
		return 0, 0, false
	}
	hex := name[len(substgPrefix):]
	if len(hex) != 8 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v >> 16), uint16(v), true
}

type propKey struct {
	id  uint16
	typ uint16
}

// propSet holds the properties of one object: the top-level message, a
// recipient or an attachment.
type propSet struct {
	streams map[propKey][]byte
	fixed   map[uint16][8]byte
}

func newPropSet() *propSet {
	return &propSet{
		streams: make(map[propKey][]byte),
		fixed:   make(map[uint16][8]byte),
	}
}

func (p *propSet) addStream(name string, data []byte) {
	id, typ, ok := propTag(name)
	if !ok {
		return
	}
	p.streams[propKey{id, typ}] = data
}

// addFixed parses a __properties_version1.0 stream. Variable-length
// entries only carry a size there and are read from their own streams.
func (p *propSet) addFixed(data []byte, headerSize int) {
	if len(data) < headerSize {
		return
	}
	for off := headerSize; off+propEntrySize <= len(data); off += propEntrySize {
		tag := binary.LittleEndian.Uint32(data[off : off+4])
		typ := uint16(tag)
		switch typ {
		case ptLong, ptBoolean, ptSysTime:
		default:
			continue
		}
		var v [8]byte
		copy(v[:], data[off+8:off+16])
		p.fixed[uint16(tag>>16)] = v
	}
}

// String returns a text property, preferring the Unicode variant.
// PT_STRING8 values are decoded with codePage when known.
func (p *propSet) String(id uint16, codePage int) (string, bool) {
	if data, ok := p.streams[propKey{id, ptUnicode}]; ok {
		return textutil.DecodeUTF16LE(data), true
	}
	if data, ok := p.streams[propKey{id, ptString8}]; ok {
		data = trimNUL(data)
		if codePage > 0 {
			return textutil.DecodeCodePage(data, codePage), true
		}
		return textutil.EnsureUTF8(string(data)), true
	}
	return "", false
}

// Text is String with the value trimmed and the ok flag folded into
// emptiness.
func (p *propSet) Text(id uint16, codePage int) string {
	s, _ := p.String(id, codePage)
	return strings.TrimSpace(s)
}

// Binary returns a PT_BINARY property.
func (p *propSet) Binary(id uint16) ([]byte, bool) {
	data, ok := p.streams[propKey{id, ptBinary}]
	return data, ok
}

// Int32 returns a PT_LONG property from the fixed property stream.
func (p *propSet) Int32(id uint16) (int32, bool) {
	v, ok := p.fixed[id]
	if !ok {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(v[:4])), true
}

// Time returns a PT_SYSTIME property from the fixed property stream.
func (p *propSet) Time(id uint16) (time.Time, bool) {
	v, ok := p.fixed[id]
	if !ok {
		return time.Time{}, false
	}
	ft := binary.LittleEndian.Uint64(v[:])
	if ft == 0 {
		return time.Time{}, false
	}
	return filetimeToTime(ft), true
}

// filetimeEpochDelta is the number of 100ns intervals between
// 1601-01-01 and 1970-01-01.
const filetimeEpochDelta = 116444736000000000

func filetimeToTime(ft uint64) time.Time {
	if ft < filetimeEpochDelta {
		return time.Time{}
	}
	ticks := int64(ft - filetimeEpochDelta)
	return time.Unix(ticks/1e7, (ticks%1e7)*100).UTC()
}

func trimNUL(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
