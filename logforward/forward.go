// Package logforward drains framed log records from the init child's log
// pipe and re-emits them into the parent's logger, as a chan-error
// goroutine the caller joins with <-logsDone before declaring success.
package logforward

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// record is the shape of one forwarded log line from init.
type record struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// Start launches a goroutine draining r and logging each framed record into
// logger, and returns a channel that receives the terminal error (nil on
// clean EOF) once r is exhausted. The caller MUST receive from the returned
// channel before declaring the create handshake successful, so that all
// init-side diagnostics are flushed first.
func Start(r io.Reader, logger *logrus.Logger) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- forward(r, logger)
	}()

	return done
}

// forward frames records by reading until the next '}' byte inclusive,
// attempting to parse the accumulated buffer as JSON; a parse failure just
// means the '}' closed a nested object, so accumulation continues until a
// buffer finally parses. A partial trailing buffer at EOF is discarded.
func forward(r io.Reader, logger *logrus.Logger) error {
	br := bufio.NewReader(r)
	var buf []byte

	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading log pipe: %w", err)
		}

		buf = append(buf, b)
		if b != '}' {
			continue
		}

		var rec record
		if jsonErr := json.Unmarshal(buf, &rec); jsonErr != nil {
			continue
		}

		emit(logger, rec)
		buf = buf[:0]
	}
}

func emit(logger *logrus.Logger, rec record) {
	level, err := logrus.ParseLevel(rec.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Log(level, rec.Msg)
}
