package worker

import (
	"github.com/spec-kit/ticket-lease-service/internal/service"
)

// StartEventRelay registers the relay's handlers on the dispatcher.
func StartEventRelay(relay *service.EventRelay) {
	if relay == nil {
		return
	}
	relay.RegisterHandlers()
}
