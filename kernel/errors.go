package kernel

import "errors"

// ErrPoolExhausted is returned by FromPool when every pool TCB is
// currently in use.
var ErrPoolExhausted = errors.New("kernel: thread pool exhausted")

// ErrNotInitialized is returned by operations that require Init to have
// run first.
var ErrNotInitialized = errors.New("kernel: not initialized")
