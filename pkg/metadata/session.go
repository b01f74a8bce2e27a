package metadata

import (
	"time"

	"github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
)

// Session identifies a single program run. The ID tags every metadata
// record, the Name doubles as a human readable directory name.
type Session struct {
	ID      string
	Name    string
	Started time.Time
}

// NewSession generates a fresh run session.
func NewSession() Session {
	id, err := uuid.NewV4()
	if err != nil {
		// Programmer error, the system random source is gone.
		panic(errors.Wrap(err, "cannot generate run id"))
	}

	started := time.Now()
	return Session{
		ID:      id.String(),
		Name:    started.Format("2006-01-02T15h04m05s_") + id.String(),
		Started: started,
	}
}
