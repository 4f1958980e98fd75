package tokenizer

import "strings"

// DecodeByteLevel maps the printable runes of a byte-level BPE symbol back
// to the bytes they stand for. The result may be a partial UTF-8 sequence
// when a multi-byte character is split across tokens.
func DecodeByteLevel(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == 0x0100:
			r = 0x00
		case r == 0x0143:
			r = 0x00ad
		case r > 0x0100 && r <= 0x0120:
			r = r - 0x0100
		case r > 0x0120 && r <= 0x0142:
			r = r - 0x00a2
		case r > 0xff:
			// not part of the byte alphabet; keep the character
			sb.WriteRune(r)
			continue
		}

		// NOTE: not using WriteRune here because it writes the UTF-8
		// encoding of the rune which is _not_ what we want
		sb.WriteByte(byte(r))
	}
	return sb.String()
}
