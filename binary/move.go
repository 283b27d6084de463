package binary

import (
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// finalizeMove renames scratch to dest. The rename is atomic on one
// filesystem, so a lost race between two writers is tolerated: the last
// writer wins and both results are byte-equivalent. On EXDEV (scratch
// and dest on different filesystems) it falls back to a non-atomic
// copy-then-delete move; a crash mid-fallback can leave a partial dest
// file.
func finalizeMove(scratch, dest string) error {
	if err := os.Rename(scratch, dest); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return err
	}
	return copyAndRemove(scratch, dest)
}

func isCrossDevice(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	errno, ok := linkErr.Err.(syscall.Errno)
	return ok && errno == syscall.EXDEV
}

func copyAndRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening scratch file for cross-device move")
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(err, "creating destination for cross-device move")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, "copying scratch file across devices")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "closing destination after cross-device move")
	}
	in.Close()
	return os.Remove(src)
}
