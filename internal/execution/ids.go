package execution

import (
	"strings"

	"github.com/google/uuid"
)

// newOrderID returns a short ID that is easy to type back into /cancel.
func newOrderID() string {
	return "ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
