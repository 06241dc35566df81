package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// replayScript opens path ("-" is stdin) and feeds its messages to out.
func replayScript(ctx context.Context, path string, interval time.Duration, out chan<- *core.Message) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			close(out)
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		r = f
	}
	return readScript(ctx, r, interval, out)
}

// readScript decodes a stream of JSON messages and sends them on out,
// waiting interval between consecutive messages. out is closed on return.
func readScript(ctx context.Context, r io.Reader, interval time.Duration, out chan<- *core.Message) error {
	defer close(out)

	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var msg core.Message
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		if msg.Type == "" {
			return fmt.Errorf("message %d: missing type", n)
		}

		if n > 1 && interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case out <- &msg:
		}
	}
}
