package event

import "errors"

// ErrStopPropagation stops event propagation (not considered an error)
// When the listener returns this error, subsequent listeners do not execute, but Dispatch does not return an error
var ErrStopPropagation = errors.New("stop propagation")

// ErrDispatcherClosed dispatch after Close
var ErrDispatcherClosed = errors.New("event dispatcher closed")
