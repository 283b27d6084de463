package binary

import (
	"debug/macho"
	"fmt"
)

// machoOpenQuiet opens executablePath as Mach-O, treating "not a Mach-O
// file" (or a missing file, which happens for archives that omit the
// framework binary) as "no UUIDs available" rather than a hard failure:
// bcsymbolmap matching is best-effort.
func machoOpenQuiet(executablePath string) (*macho.File, error) {
	f, err := macho.Open(executablePath)
	if err != nil {
		return nil, nil
	}
	return f, nil
}

// loadCmdIsUUID reports whether raw is an LC_UUID load command (cmd ==
// 0x1b per <mach-o/loader.h>), read directly from the 8-byte load-command
// header rather than through a typed accessor (debug/macho's Load
// interface only guarantees Raw(), see the load-command constants in
// platform.go).
func loadCmdIsUUID(f *macho.File, raw []byte) bool {
	const loadCmdUUID = 0x1b
	return macho.LoadCmd(f.ByteOrder.Uint32(raw[0:4])) == macho.LoadCmd(loadCmdUUID)
}

// formatUUID renders a 16-byte UUID in the canonical
// 8-4-4-4-12 hex form bcsymbolmap filenames use, uppercased to match
// Xcode's own convention.
func formatUUID(b []byte) string {
	return fmt.Sprintf("%08X-%04X-%04X-%04X-%012X",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
