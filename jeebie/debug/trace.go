package debug

import "github.com/davecgh/go-spew/spew"

// DumpState renders a full CPU/PPU state dump for trace logging, the same
// role go-spew plays in other debugging-heavy emulator codebases: a
// human-readable struct dump that doesn't require per-field formatting code.
func DumpState(data *CompleteDebugData) string {
	if data == nil {
		return "<nil debug data>"
	}
	return spew.Sdump(data.CPU)
}
