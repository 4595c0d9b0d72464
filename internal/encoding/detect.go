package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffSize is how much of the input is inspected before decoding starts.
const sniffSize = 4096

var boms = []struct {
	prefix []byte
	name   string
	enc    encoding.Encoding
}{
	{[]byte{0xEF, 0xBB, 0xBF}, "UTF-8", nil},
	{[]byte{0xFF, 0xFE}, "UTF-16LE", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{[]byte{0xFE, 0xFF}, "UTF-16BE", unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
}

// decoders maps chardet charset names onto x/text decoders. UTF-8 is absent
// because it needs no decoding.
var decoders = map[string]encoding.Encoding{
	"ISO-8859-1":   charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"ISO-8859-2":   charmap.ISO8859_2,
	"windows-1250": charmap.Windows1250,
	"ISO-8859-9":   charmap.ISO8859_9,
	"ISO-8859-15":  charmap.ISO8859_15,
	"UTF-16LE":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"UTF-16BE":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// NewUTF8Reader returns r decoded to UTF-8 along with the charset it was read as.
// A byte order mark wins; otherwise valid UTF-8 passes through, chardet is
// consulted, and Windows-1252 is assumed when nothing else fits.
func NewUTF8Reader(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffSize)

	buf, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	for _, bom := range boms {
		if !bytes.HasPrefix(buf, bom.prefix) {
			continue
		}

		if bom.enc == nil {
			_, _ = br.Discard(len(bom.prefix))
			return br, bom.name, nil
		}

		return transform.NewReader(br, bom.enc.NewDecoder()), bom.name, nil
	}

	// A multibyte rune may straddle the end of a full sample.
	if err == nil || err == bufio.ErrBufferFull {
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(buf); i++ {
			buf = buf[:len(buf)-1]
		}
	}

	if utf8.Valid(buf) {
		return br, "UTF-8", nil
	}

	charset := Detect(buf)
	if charset == "UTF-8" {
		return br, charset, nil
	}

	dec, ok := decoders[charset]
	if !ok {
		charset, dec = "windows-1252", charmap.Windows1252
	}

	return transform.NewReader(br, dec.NewDecoder()), charset, nil
}

// Detect guesses the charset of a sample. An empty string means no guess.
func Detect(sample []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return ""
	}

	return result.Charset
}
