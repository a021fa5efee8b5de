// Package decode provides the composition of LogDecoder(s)
package decode

import (
	"errors"
	"fmt"

	"github.com/relex/slog-analyzer/base"
)

// Chain tries registered decoders in order and returns the first success
type Chain []base.LogDecoder

// ErrNoDecoder is returned by an empty Chain
var ErrNoDecoder = errors.New("no decoder registered")

// Decode implements base.LogDecoder
func (chain Chain) Decode(raw []byte) (*base.LogRecord, error) {
	if len(chain) == 0 {
		return nil, ErrNoDecoder
	}
	var lastErr error
	for _, decoder := range chain {
		record, err := decoder.Decode(raw)
		if err == nil {
			return record, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all %d decoder(s) failed, last: %w", len(chain), lastErr)
}
