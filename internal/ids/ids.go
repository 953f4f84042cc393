package ids

import "github.com/oklog/ulid/v2"

// New returns a lexicographically sortable identifier. Audit trace ids use it
// so records sort by creation time even across processes.
func New() string {
	return ulid.Make().String()
}
