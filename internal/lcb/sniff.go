package lcb

import (
	"bytes"
	"fmt"
)

// FormatTag is the media format inferred from file content.
// The tag doubles as the file extension appended during classification.
type FormatTag string

const (
	FormatJPG     FormatTag = "jpg"
	FormatPNG     FormatTag = "png"
	FormatGIF     FormatTag = "gif"
	FormatMP4     FormatTag = "mp4"
	FormatPDF     FormatTag = "pdf"
	FormatZIP     FormatTag = "zip"
	FormatUnknown FormatTag = "unknown"
)

// SniffHeadSize is the number of leading bytes read for content sniffing.
// Every signature in signatureTable fits within it.
const SniffHeadSize = 32

// KnownFormats lists every tag Sniff can return other than FormatUnknown.
var KnownFormats = []FormatTag{FormatJPG, FormatPNG, FormatGIF, FormatMP4, FormatPDF, FormatZIP}

// signature matches magic at offset in a file's head.
type signature struct {
	offset int
	magic  []byte
	tag    FormatTag
}

// signatureTable is checked top to bottom; the first match wins.
// Longer, more specific signatures come first so that the 3-byte JPEG
// marker is only consulted after everything else failed.
var signatureTable = []signature{
	{0, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, FormatPNG},
	{0, []byte("GIF87a"), FormatGIF},
	{0, []byte("GIF89a"), FormatGIF},
	{0, []byte("%PDF-"), FormatPDF},
	{0, []byte{'P', 'K', 0x03, 0x04}, FormatZIP},
	{0, []byte{'P', 'K', 0x05, 0x06}, FormatZIP},
	{0, []byte{'P', 'K', 0x07, 0x08}, FormatZIP},
	// ISO base media (mp4, m4v, mov, 3gp) all carry an ftyp box first.
	{4, []byte("ftyp"), FormatMP4},
	// Matroska / WebM.
	{0, []byte{0x1A, 0x45, 0xDF, 0xA3}, FormatMP4},
	{0, []byte{0xFF, 0xD8, 0xFF}, FormatJPG},
}

// Sniff returns the format of the file whose leading bytes are head.
// It returns FormatUnknown when no signature matches or head is empty.
func Sniff(head []byte) FormatTag {
	for _, sig := range signatureTable {
		end := sig.offset + len(sig.magic)
		if len(head) < end {
			continue
		}
		if bytes.Equal(head[sig.offset:end], sig.magic) {
			return sig.tag
		}
	}
	return FormatUnknown
}

// IsKnownFormat reports whether ext (without the dot) is one of the sniffable tags.
func IsKnownFormat(ext string) bool {
	for _, f := range KnownFormats {
		if string(f) == ext {
			return true
		}
	}
	return false
}

// SniffFile reads the head of the file at path and sniffs it.
func (s *LCBService) SniffFile(path string) (FormatTag, error) {
	head, err := s.fsmgr.ReadHead(path, SniffHeadSize)
	if err != nil {
		return FormatUnknown, fmt.Errorf("reading head of %s: %w", path, err)
	}
	return Sniff(head), nil
}
