package playback

import (
	"github.com/llehouerou/wavepost/internal/errmsg"
	"github.com/llehouerou/wavepost/internal/message"
)

// trackInfo describes the session's track for notifications, or nil when
// no track is loaded.
func (c *Controller) trackInfo() *message.TrackInfo {
	t := c.session.Track
	if t == nil {
		return nil
	}
	return &message.TrackInfo{
		ID:       t.ID.String(),
		Location: t.Location,
		Title:    c.session.Metadata.Title,
		Artist:   c.session.Metadata.Artist,
		Album:    c.session.Metadata.Album,
	}
}

// transition moves to state, refreshes the snapshot and publishes
// StateChanged. Moving to the current state publishes nothing.
func (c *Controller) transition(to State) {
	from := c.session.State
	if from == to {
		c.refresh()
		return
	}
	c.session.State = to
	c.refresh()
	c.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
	c.bus.Publish(message.StateChanged{
		Previous: from.String(),
		Current:  to.String(),
		Track:    c.trackInfo(),
	})
}

func (c *Controller) publishTrack() {
	info := c.trackInfo()
	if info == nil {
		return
	}
	c.bus.Publish(message.TrackChanged{Track: *info, Index: c.session.Index})
}

func (c *Controller) publishError(op errmsg.Op, err error) {
	location := ""
	if c.session.Track != nil {
		location = c.session.Track.Location
	}
	c.bus.Publish(message.ErrorOccurred{
		Op:      string(op),
		Kind:    errmsg.Kind(err),
		Track:   c.trackInfo(),
		Message: errmsg.FormatWith(op, location, err),
	})
}
