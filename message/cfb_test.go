package message

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"
)

// Compound file constants for version 3 files with 512-byte sectors.
const (
	cfbSectorSize     = 512
	cfbMiniSectorSize = 64
	cfbDirEntrySize   = 128
	cfbMiniCutoff     = 4096

	cfbFreeSect   = 0xFFFFFFFF
	cfbEndOfChain = 0xFFFFFFFE
	cfbFATSect    = 0xFFFFFFFD
	cfbNoStream   = 0xFFFFFFFF

	cfbTypeStorage = 1
	cfbTypeStream  = 2
	cfbTypeRoot    = 5
)

// cfbStream is a stream placed either at the top level or inside a
// named storage.
type cfbStream struct {
	name    string
	data    []byte
	storage string
}

type cfbEntry struct {
	name  string
	typ   byte
	right uint32
	child uint32
	start uint32
	size  uint32
}

// buildCFB assembles a minimal compound file holding streams. Every
// stream lives in the mini stream, so each must be smaller than 4 KiB.
func buildCFB(t *testing.T, streams []cfbStream) []byte {
	t.Helper()

	entries := []cfbEntry{{name: "Root Entry", typ: cfbTypeRoot, right: cfbNoStream, child: cfbNoStream}}
	var (
		mini     []byte
		miniFAT  []uint32
		topLevel []uint32
		storages = map[string]uint32{}
		children = map[string][]uint32{}
	)

	addStream := func(s cfbStream) uint32 {
		if len(s.data) >= cfbMiniCutoff {
			t.Fatalf("stream %s too large for test builder", s.name)
		}
		e := cfbEntry{name: s.name, typ: cfbTypeStream, right: cfbNoStream, child: cfbNoStream,
			start: cfbEndOfChain, size: uint32(len(s.data))}
		if len(s.data) > 0 {
			e.start = uint32(len(miniFAT))
			n := (len(s.data) + cfbMiniSectorSize - 1) / cfbMiniSectorSize
			for i := 0; i < n; i++ {
				next := uint32(len(miniFAT) + 1)
				if i == n-1 {
					next = cfbEndOfChain
				}
				miniFAT = append(miniFAT, next)
			}
			padded := make([]byte, n*cfbMiniSectorSize)
			copy(padded, s.data)
			mini = append(mini, padded...)
		}
		entries = append(entries, e)
		return uint32(len(entries) - 1)
	}

	for _, s := range streams {
		if s.storage == "" {
			topLevel = append(topLevel, addStream(s))
			continue
		}
		if _, ok := storages[s.storage]; !ok {
			entries = append(entries, cfbEntry{name: s.storage, typ: cfbTypeStorage, right: cfbNoStream, child: cfbNoStream})
			idx := uint32(len(entries) - 1)
			storages[s.storage] = idx
			topLevel = append(topLevel, idx)
		}
		children[s.storage] = append(children[s.storage], addStream(s))
	}

	chain := func(ids []uint32) uint32 {
		if len(ids) == 0 {
			return cfbNoStream
		}
		for i := 0; i < len(ids)-1; i++ {
			entries[ids[i]].right = ids[i+1]
		}
		return ids[0]
	}
	entries[0].child = chain(topLevel)
	for name, idx := range storages {
		entries[idx].child = chain(children[name])
	}

	if len(miniFAT) > cfbSectorSize/4 {
		t.Fatal("mini stream too large for test builder")
	}

	dirSectors := (len(entries)*cfbDirEntrySize + cfbSectorSize - 1) / cfbSectorSize
	miniStreamSectors := (len(mini) + cfbSectorSize - 1) / cfbSectorSize

	// Sector layout: FAT, directory, mini FAT, mini stream.
	firstDir := uint32(1)
	miniFATSector := firstDir + uint32(dirSectors)
	firstMini := miniFATSector + 1
	total := int(firstMini) + miniStreamSectors

	fat := make([]uint32, cfbSectorSize/4)
	for i := range fat {
		fat[i] = cfbFreeSect
	}
	fat[0] = cfbFATSect
	linkRun := func(first uint32, n int) {
		for i := 0; i < n; i++ {
			s := first + uint32(i)
			if i == n-1 {
				fat[s] = cfbEndOfChain
			} else {
				fat[s] = s + 1
			}
		}
	}
	linkRun(firstDir, dirSectors)
	linkRun(miniFATSector, 1)
	linkRun(firstMini, miniStreamSectors)

	entries[0].start = cfbEndOfChain
	if len(mini) > 0 {
		entries[0].start = firstMini
	}
	entries[0].size = uint32(len(mini))

	out := make([]byte, cfbSectorSize*(total+1))
	le := binary.LittleEndian

	// Header.
	h := out[:cfbSectorSize]
	copy(h, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(h[0x18:], 0x003E)
	le.PutUint16(h[0x1A:], 0x0003)
	le.PutUint16(h[0x1C:], 0xFFFE)
	le.PutUint16(h[0x1E:], 9)
	le.PutUint16(h[0x20:], 6)
	le.PutUint32(h[0x2C:], 1)
	le.PutUint32(h[0x30:], firstDir)
	le.PutUint32(h[0x38:], cfbMiniCutoff)
	le.PutUint32(h[0x3C:], miniFATSector)
	le.PutUint32(h[0x40:], 1)
	le.PutUint32(h[0x44:], cfbEndOfChain)
	for i := 0; i < 109; i++ {
		le.PutUint32(h[0x4C+4*i:], cfbFreeSect)
	}
	le.PutUint32(h[0x4C:], 0)

	sector := func(n uint32) []byte {
		off := int(n+1) * cfbSectorSize
		return out[off : off+cfbSectorSize]
	}

	for i, v := range fat {
		le.PutUint32(sector(0)[4*i:], v)
	}

	dir := out[int(firstDir+1)*cfbSectorSize : int(miniFATSector+1)*cfbSectorSize]
	for i := len(entries); i < dirSectors*cfbSectorSize/cfbDirEntrySize; i++ {
		e := dir[i*cfbDirEntrySize:]
		le.PutUint32(e[68:], cfbNoStream)
		le.PutUint32(e[72:], cfbNoStream)
		le.PutUint32(e[76:], cfbNoStream)
	}
	for i, e := range entries {
		b := dir[i*cfbDirEntrySize : (i+1)*cfbDirEntrySize]
		name := utf16.Encode([]rune(e.name))
		for j, u := range name {
			le.PutUint16(b[2*j:], u)
		}
		le.PutUint16(b[64:], uint16(2*(len(name)+1)))
		b[66] = e.typ
		b[67] = 1 // black
		le.PutUint32(b[68:], cfbNoStream)
		le.PutUint32(b[72:], e.right)
		le.PutUint32(b[76:], e.child)
		le.PutUint32(b[116:], e.start)
		le.PutUint32(b[120:], e.size)
	}

	mf := sector(miniFATSector)
	for i := range mf {
		mf[i] = 0xFF
	}
	for i, v := range miniFAT {
		le.PutUint32(mf[4*i:], v)
	}

	copy(out[int(firstMini+1)*cfbSectorSize:], mini)
	return out
}

// utf16z encodes s as null-terminated UTF-16LE, the layout of PT_UNICODE
// property streams.
func utf16z(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*(len(units)+1))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}

// propertyStreamWithCPID returns a top-level __properties_version1.0
// stream declaring PR_INTERNET_CPID.
func propertyStreamWithCPID(cpid uint32) []byte {
	b := make([]byte, topLevelPropHeader+propEntrySize)
	binary.LittleEndian.PutUint32(b[topLevelPropHeader:], uint32(propInternetCPID)<<16|typeInt32)
	binary.LittleEndian.PutUint32(b[topLevelPropHeader+8:], cpid)
	return b
}
