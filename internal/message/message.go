// Package message defines the events carried by the bus: commands flowing
// into the playback controller and notifications flowing out of it.
//
// Both are closed sets. Commands arrive from the UI boundary as tagged JSON
// ({"kind": "...", ...payload}) and are parsed into concrete types here, so
// unknown kinds never reach the controller.
package message

import (
	"github.com/llehouerou/wavepost/internal/bus"
)

// Event is any message published on the bus.
type Event interface {
	bus.Message
	event()
}

// Command is a request for the playback controller.
type Command interface {
	Event
	command()
}

// Notification reports state after a command or engine event was applied.
type Notification interface {
	Event
	notification()
}

// Bus is the post office carrying every event.
type Bus = bus.Bus[Event]
