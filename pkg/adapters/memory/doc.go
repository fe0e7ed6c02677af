// Package memory provides an in-process session store, used by tests and the
// interactive terminal mode.
package memory
