package storage

import (
	"context"
	"fmt"
	"io"

	"eventrecon/core"

	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// MsgpackWriter writes the timeline as a MessagePack array of events using
// the same field names as the JSON output.
type MsgpackWriter struct {
	fs     afero.Fs
	path   string
	logger *zap.SugaredLogger
}

// Format returns FormatMsgpack
func (w *MsgpackWriter) Format() string {
	return FormatMsgpack
}

// Write encodes events to the output path.
func (w *MsgpackWriter) Write(ctx context.Context, run RunInfo, events []*core.HighLevelEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if events == nil {
		events = []*core.HighLevelEvent{}
	}
	err := writeFileAtomic(w.fs, w.path, func(out io.Writer) error {
		enc := msgpack.NewEncoder(out)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(events); err != nil {
			return fmt.Errorf("failed to encode timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	recordWrite(w.logger, FormatMsgpack, w.path, run, len(events))
	return nil
}

// ReadMsgpack decodes a timeline written by MsgpackWriter.
func ReadMsgpack(r io.Reader) ([]*core.HighLevelEvent, error) {
	var events []*core.HighLevelEvent
	if err := msgpack.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}
	return events, nil
}
