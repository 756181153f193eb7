package broker

import (
	"encoding/json"
	"errors"
	"fmt"

	"processing-requests/internal/domain"
)

// ErrUnavailable wraps every failure to hand a message to the broker.
var ErrUnavailable = errors.New("broker unavailable")

func encode(msg domain.WorkMessage) ([]byte, error) {
	if msg.InputAssetsIDs == nil {
		msg.InputAssetsIDs = []string{}
	}
	if msg.OutputAssetsIDs == nil {
		msg.OutputAssetsIDs = []string{}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode message: %w", ErrUnavailable, err)
	}
	return data, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
