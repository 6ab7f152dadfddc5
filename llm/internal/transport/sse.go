package transport

import (
	"bufio"
	"io"
	"strings"
)

// Event 是一个 SSE 事件
type Event struct {
	Name string
	Data string
}

// SSEDecoder decodes Server-Sent Events. Multiple "data:" lines of one event
// are joined with "\n".
type SSEDecoder struct {
	r    *bufio.Reader
	name string
	data []string
}

func NewSSEDecoder(r io.Reader) *SSEDecoder {
	return &SSEDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event with a data payload, or io.EOF.
func (d *SSEDecoder) Next() (Event, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if ev, ok := d.flush(); ok {
				return ev, nil
			}
			if err == io.EOF {
				return Event{}, io.EOF
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			d.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			d.data = append(d.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if err == io.EOF {
			if ev, ok := d.flush(); ok {
				return ev, nil
			}
			return Event{}, io.EOF
		}
	}
}

func (d *SSEDecoder) flush() (Event, bool) {
	if len(d.data) == 0 {
		d.name = ""
		return Event{}, false
	}
	ev := Event{Name: d.name, Data: strings.Join(d.data, "\n")}
	d.name, d.data = "", d.data[:0]
	return ev, true
}

// LineDecoder yields non-empty lines, used for newline-delimited JSON streams.
type LineDecoder struct {
	s *bufio.Scanner
}

func NewLineDecoder(r io.Reader) *LineDecoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &LineDecoder{s: s}
}

// Next returns the next non-empty line, or io.EOF.
func (d *LineDecoder) Next() ([]byte, error) {
	for d.s.Scan() {
		line := strings.TrimSpace(d.s.Text())
		if line != "" {
			return []byte(line), nil
		}
	}
	if err := d.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
