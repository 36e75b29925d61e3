package emulation

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDevice      = errors.New("unknown device class")
	ErrBuiltinController  = errors.New("engine has no built-in controller")
	ErrInterfaceNameLimit = errors.New("interface name too long")
)

// InstantiationError reports the node or link the engine failed to create.
type InstantiationError struct {
	Node string
	Link string
	Err  error
}

func (e *InstantiationError) Error() string {
	if e.Link != "" {
		return fmt.Sprintf("instantiate link %s: %v", e.Link, e.Err)
	}
	return fmt.Sprintf("instantiate node %s: %v", e.Node, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}
