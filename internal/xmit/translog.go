package xmit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"

	"github.com/dwgo/beacond/internal/aprs"
)

const (
	logNameFormat  = "%Y-%m-%d.log"
	logStampFormat = "%H:%M:%S"
)

// TransmitLog appends each transmitted frame to a daily file in the
// configured directory, one line per frame, rotating at midnight local
// time.  Old files are never removed here; that is left to the operator.
type TransmitLog struct {
	dir string

	mu   sync.Mutex
	name string
	file *os.File
}

func NewTransmitLog(dir string) *TransmitLog {
	return &TransmitLog{dir: dir}
}

// Record writes one frame.  Errors are logged and swallowed; a full disk
// must not stop beaconing.
func (l *TransmitLog) Record(channel int, f *aprs.Frame) {
	var now = time.Now()

	var name, err = strftime.Format(logNameFormat, now)
	if err != nil {
		log.Error("Bad transmit log file name format.", "format", logNameFormat, "err", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil || name != l.name {
		if l.file != nil {
			l.file.Close()
			l.file = nil
		}
		var path = filepath.Join(l.dir, name)
		l.file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Error("Unable to open transmit log file.", "path", path, "err", err)
			return
		}
		l.name = name
		log.Info("Opened transmit log file.", "path", path)
	}

	var stamp, _ = strftime.Format(logStampFormat, now)
	if _, err = fmt.Fprintf(l.file, "%s\t%d\t%s\n", stamp, channel, f.String()); err != nil {
		log.Error("Error writing transmit log file.", "err", err)
		l.file.Close()
		l.file = nil
	}
}

func (l *TransmitLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
