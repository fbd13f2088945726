package syncclient

import (
	"bufio"
	"bytes"
	"io"
)

// maxFrameBytes bounds one event. Update events carry a whole document.
const maxFrameBytes = 32 << 20

// readEvents splits an event stream into messages and calls fn with the data
// of each one. Multiple data lines are joined with newlines; comments,
// event names and ids are skipped. It returns when r is exhausted or fn
// fails.
func readEvents(r io.Reader, fn func(data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	var data []byte
	have := false
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if have {
				if err := fn(data); err != nil {
					return err
				}
			}
			data, have = data[:0], false
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if string(field) != "data" {
			continue
		}
		if have {
			data = append(data, '\n')
		}
		data = append(data, value...)
		have = true
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
