package util

import "github.com/oklog/ulid/v2"

// New returns a ULID. Ids made by one process sort by creation time,
// which keeps queue rows and upload directories in enqueue order.
func New() string {
	return ulid.Make().String()
}
