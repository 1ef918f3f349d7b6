package zstring

import "github.com/davetcode/goz/zcore"

// defaultUnicodeTable maps ZSCII extra characters (155..223) to Unicode
// runes per the Z-Machine standard's default Latin-supplement table
// (spec S3.8.5.3), used whenever a story doesn't supply its own.
var defaultUnicodeTable = [...]rune{
	'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß', '»', '«', 'ë',
	'ï', 'ÿ', 'Ë', 'Ï', 'á', 'é', 'í', 'ó', 'ú', 'ý',
	'Á', 'É', 'Í', 'Ó', 'Ú', 'Ý', 'à', 'è', 'ì', 'ò',
	'ù', 'À', 'È', 'Ì', 'Ò', 'Ù', 'â', 'ê', 'î', 'ô',
	'û', 'Â', 'Ê', 'Î', 'Ô', 'Û', 'å', 'Å', 'ø', 'Ø',
	'ã', 'ñ', 'õ', 'Ã', 'Ñ', 'Õ', 'æ', 'Æ', 'ç', 'Ç',
	'þ', 'ð', 'Þ', 'Ð', '£', 'œ', 'Œ', '¡', '¿',
}

// UnicodeTable returns the ZSCII-155..223 translation in effect: a custom
// table if the header extension's Unicode table pointer (word 3) is
// nonzero, otherwise the default. The returned slice is indexed by
// (zsciiCode - 155).
func UnicodeTable(core *zcore.Core) []rune {
	if core.UnicodeExtensionTableBaseAddress == 0 {
		return defaultUnicodeTable[:]
	}

	base := uint32(core.UnicodeExtensionTableBaseAddress)
	count := core.ReadByte(base)
	table := make([]rune, count)
	for i := 0; i < int(count); i++ {
		table[i] = rune(core.ReadWord(base + 1 + uint32(i)*2))
	}
	return table
}

// ZsciiToUnicode converts an extended ZSCII code (155..223) to its Unicode
// rune. ok is false for codes outside the table or beyond its length.
func ZsciiToUnicode(zscii uint8, table []rune) (rune, bool) {
	if zscii < 155 || zscii > 223 {
		return 0, false
	}
	idx := int(zscii) - 155
	if idx >= len(table) {
		return 0, false
	}
	return table[idx], true
}

// UnicodeToZscii is the inverse of ZsciiToUnicode, used by encode_input.
func UnicodeToZscii(r rune, table []rune) (uint8, bool) {
	for i, candidate := range table {
		if candidate == r {
			return uint8(155 + i), true
		}
	}
	return 0, false
}
