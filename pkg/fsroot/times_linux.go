package fsroot

import (
	"os"
	"syscall"
	"time"
)

func statTimes(fi os.FileInfo) (created, accessed time.Time) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fi.ModTime(), fi.ModTime()
	}
	return time.Unix(st.Ctim.Unix()), time.Unix(st.Atim.Unix())
}
