package capture

import (
	"github.com/jbweber/virtfleet/internal/naming"
)

// Key identifies one capture job.
type Key struct {
	VMID    string
	Display int
}

func (k Key) String() string {
	return naming.CaptureKey(k.VMID, k.Display)
}
