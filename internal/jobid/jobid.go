// Package jobid generates the opaque identifiers JobRecord and every
// control.Sink event carry.
package jobid

import "github.com/google/uuid"

// New returns a fresh random job identifier.
func New() string {
	return uuid.NewString()
}
