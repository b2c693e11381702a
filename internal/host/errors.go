package host

import (
	"errors"
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
)

// ErrInstanceFaulted is returned by every binding after the instance has
// committed a protocol violation.
var ErrInstanceFaulted = errors.New("guest instance is faulted")

var (
	ErrUnknownComponent = fmt.Errorf("%w: unregistered component index", abi.ErrProtocolViolation)
	ErrTypeMismatch     = fmt.Errorf("%w: value does not match the component type", abi.ErrProtocolViolation)
	ErrInvalidEvent     = fmt.Errorf("%w: unknown query event", abi.ErrProtocolViolation)
	ErrInvalidName      = fmt.Errorf("%w: empty event name", abi.ErrProtocolViolation)
)
