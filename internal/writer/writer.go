// internal/writer/writer.go
package writer

import (
	"errors"
	"strings"

	"github.com/tamzrod/lnictl/internal/status"
)

// endpointClient is the exact contract the status writer uses.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// EndpointClients maps a status memory endpoint to its client.
type EndpointClients map[string]endpointClient

type fanout struct {
	writers []StatusWriter
}

// New fans one snapshot out to every writer.
// Every writer is attempted; failures are joined.
func New(writers ...StatusWriter) StatusWriter {
	var live []StatusWriter
	for _, w := range writers {
		if w != nil {
			live = append(live, w)
		}
	}
	return &fanout{writers: live}
}

func (f *fanout) WriteStatus(s status.Snapshot) error {
	var errs []string

	for _, w := range f.writers {
		if err := w.WriteStatus(s); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}
