package worker

import (
	"bytes"
	"strings"
)

// progressWriter turns git sideband output into log lines. Carriage-return
// updates within a line collapse to the final state.
type progressWriter struct {
	buf    bytes.Buffer
	onLine func(line string)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.send(line[:i])
	}
	return len(p), nil
}

// Flush emits whatever is left without a trailing newline.
func (w *progressWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	w.buf.Reset()
	w.send(line)
}

func (w *progressWriter) send(line string) {
	if i := strings.LastIndexByte(strings.TrimRight(line, "\r"), '\r'); i >= 0 {
		line = line[i+1:]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	w.onLine(line)
}
