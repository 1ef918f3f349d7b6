package zmachine

import (
	"fmt"

	"github.com/davetcode/goz/internal/zlog"
)

// GameException is the engine's single classified-failure type (spec.md
// S7): an unsupported opcode for the current version, stack underflow past
// the outermost frame, or any other illegal-execution condition. The
// execution loop recovers panics at its outermost frame and converts them
// to one of these rather than letting the process crash.
type GameException struct {
	PC      uint32
	Opcode  uint8
	Message string
}

func (e *GameException) Error() string {
	return fmt.Sprintf("zmachine: %s (opcode 0x%x at 0x%x)", e.Message, e.Opcode, e.PC)
}

func newGameException(pc uint32, opcode uint8, format string, args ...interface{}) *GameException {
	return &GameException{PC: pc, Opcode: opcode, Message: fmt.Sprintf(format, args...)}
}

// warnOnce logs a recoverable anomaly (stack underflow, empty-stack peek)
// exactly once per distinct site and lets the caller substitute a zero
// value rather than abort the whole story, matching spec.md S7's
// "Unsupported optional feature" tolerance for soft anomalies.
func (z *ZMachine) warnOnce(site string, format string, args ...interface{}) {
	if z.warnedSites == nil {
		z.warnedSites = make(map[string]bool)
	}
	if z.warnedSites[site] {
		return
	}
	z.warnedSites[site] = true
	zlog.Warn(fmt.Sprintf(format, args...), "site", site)
}
