package realtime

import (
	"time"

	"github.com/mladen081/u-m/cmd/identity/ids"
)

// newConnID tags one transport in logs so attempts can be told apart.
func newConnID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return ids.RequestID()
	}
	return id
}
