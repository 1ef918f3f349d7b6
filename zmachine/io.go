package zmachine

// Command is the closed set of presentation requests the engine can issue,
// modelled as a tagged variant: one concrete type per tag, each carrying
// exactly the fields spec.md S4.10 assigns it. The engine never inspects a
// command's effect - only the reply, for the handful of tags that have one.
type Command interface {
	commandTag() string
}

// TranscriptWindow is the sentinel window id used for output-stream-2
// (transcript) print commands, kept distinct from the real window ids (0
// lower, 1 upper) the screen model uses.
const TranscriptWindow = -1

type PrintCommand struct {
	Window int
	Buffer string
}

func (PrintCommand) commandTag() string { return "print" }

type SplitWindowCommand struct{ Lines int }

func (SplitWindowCommand) commandTag() string { return "split_window" }

type SetWindowCommand struct{ Window int }

func (SetWindowCommand) commandTag() string { return "set_window" }

type SetCursorCommand struct{ Line, Column int }

func (SetCursorCommand) commandTag() string { return "set_cursor" }

type GetCursorCommand struct{}

func (GetCursorCommand) commandTag() string { return "get_cursor" }

type EraseLineCommand struct{ Value int }

func (EraseLineCommand) commandTag() string { return "erase_line" }

type ClearScreenCommand struct{ WindowId int }

func (ClearScreenCommand) commandTag() string { return "clear_screen" }

type SetTextStyleCommand struct{ Style int }

func (SetTextStyleCommand) commandTag() string { return "set_text_style" }

type SetColourCommand struct{ Foreground, Background int }

func (SetColourCommand) commandTag() string { return "set_colour" }

type SetTrueColourCommand struct{ Foreground, Background int }

func (SetTrueColourCommand) commandTag() string { return "set_true_colour" }

type SetFontCommand struct{ Font int }

func (SetFontCommand) commandTag() string { return "set_font" }

type SoundEffectCommand struct{ Number, Effect, Volume int }

func (SoundEffectCommand) commandTag() string { return "sound_effect" }

type ReadCommand struct{ MaxLength int }

func (ReadCommand) commandTag() string { return "read" }

type ReadCharCommand struct{}

func (ReadCharCommand) commandTag() string { return "read_char" }

type SaveCommand struct{ FileData []byte }

func (SaveCommand) commandTag() string { return "save" }

type RestoreCommand struct{}

func (RestoreCommand) commandTag() string { return "restore" }

type StatusCommand struct {
	PlaceName   string
	Score       int
	Moves       int
	IsTimeBased bool
}

func (StatusCommand) commandTag() string { return "status" }

type PrintDebugCommand struct{ Message string }

func (PrintDebugCommand) commandTag() string { return "print_debug" }

type QuitCommand struct{}

func (QuitCommand) commandTag() string { return "quit" }

type InputStreamCommand struct{ Number int }

func (InputStreamCommand) commandTag() string { return "input_stream" }

// Cursor is the get_cursor reply payload.
type Cursor struct{ Row, Column int }

// IOProvider is the I/O dispatch boundary (spec.md S4.10): the engine hands
// it commands and, for the few tags with a reply, reads back a typed
// result. Dispatch must not be called re-entrantly; the engine only ever
// has one Dispatch in flight at a time (spec.md S5).
type IOProvider interface {
	Dispatch(cmd Command) any

	// Flags1 reports which capability bits (spec.md S6) this provider
	// supports, stamped into the story header at load time.
	Flags1() uint8

	// ScreenSize reports the provider's current terminal dimensions in
	// characters, used for the header's screen-geometry fields.
	ScreenSize() (cols, rows int)
}
