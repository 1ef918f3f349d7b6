package zmachine

// TextStyle mirrors the set_text_style opcode's bitmask operand.
type TextStyle int

const (
	Roman        TextStyle = 0b0000_0001
	Bold         TextStyle = 0b0000_0010
	Italic       TextStyle = 0b0000_0100
	ReverseVideo TextStyle = 0b0000_1000
	FixedPitch   TextStyle = 0b0001_0000
)

// Font mirrors the set_font opcode's font-number operand. Only Normal and
// FixedPitch are ever actually available; any other requested font number
// reports unavailable (spec.md S9 open question: set_font for fonts other
// than 1/4).
type Font uint16

const (
	FontNormal     Font = 1
	FontPicture    Font = 2
	FontCharGraphs Font = 3
	FontFixedPitch Font = 4
)

const (
	ColorCurrent = 0
	ColorDefault = 1
	ColorBlack   = 2
	ColorRed     = 3
	ColorGreen   = 4
	ColorYellow  = 5
	ColorBlue    = 6
	ColorMagenta = 7
	ColorCyan    = 8
	ColorWhite   = 9
)

// screenModel tracks the window/cursor/font state the engine itself uses
// (which window printed text is sent to, the previous font set_font
// reports) without the engine owning anything about how it's actually
// rendered - that's the IOProvider's job (spec.md S4.10). No opcode checks
// its preconditions against this state.
type screenModel struct {
	lowerWindowActive bool
	upperWindowHeight int
	upperCursorX      int
	upperCursorY      int
	currentFont       Font
}

func newScreenModel() screenModel {
	return screenModel{
		lowerWindowActive: true,
		upperWindowHeight: 0,
		upperCursorX:      1,
		upperCursorY:      1,
		currentFont:       FontNormal,
	}
}
