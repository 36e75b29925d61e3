package topology

import "errors"

var (
	ErrDuplicateNode = errors.New("duplicate node")
	ErrUnknownNode   = errors.New("unknown node")
	ErrSelfLink      = errors.New("self link")
	ErrDuplicateLink = errors.New("duplicate link")
	ErrInvalidConfig = errors.New("invalid config")
	ErrIsolatedNode  = errors.New("isolated node")
)
