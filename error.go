package bionic

import "fmt"

// LastError returns the most recently latched error message for this
// Context and clears the latch, mirroring the original loader's
// error()/dlerror()-style API (spec.md §4.9). It returns "" if nothing
// is latched.
func (c *Context) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.lastErr
	c.lastErr = ""
	return msg
}

// fail latches msg (built the same way fmt.Errorf would) and returns it
// as an error, the single path every public operation uses to report
// failure.
func (c *Context) fail(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	c.lastErr = err.Error()
	return err
}
