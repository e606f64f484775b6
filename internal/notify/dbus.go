//go:build linux

package notify

import (
	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	notificationsDest      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
)

type dbusNotifier struct {
	obj  dbus.BusObject
	opts Options
}

// New connects to the session bus. Without one, the returned Notifier
// drops everything.
func New(opts Options, log zerolog.Logger) Notifier {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Debug().Err(err).Msg("no session bus, desktop notifications off")
		return discard{}
	}
	return &dbusNotifier{
		obj:  conn.Object(notificationsDest, notificationsPath),
		opts: opts,
	}
}

func (d *dbusNotifier) Notify(n Notification) (uint32, error) {
	call := d.obj.Call(
		notificationsInterface+".Notify",
		0,
		d.opts.AppName,
		n.ReplacesID,
		n.Icon,
		n.Summary,
		n.Body,
		[]string{},
		hints(n, d.opts),
		expireMillis(n.Timeout),
	)
	if call.Err != nil {
		return 0, errors.Wrap(call.Err, "notify")
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, errors.Wrap(err, "notify reply")
	}
	return id, nil
}

func (d *dbusNotifier) Close(id uint32) error {
	call := d.obj.Call(notificationsInterface+".CloseNotification", 0, id)
	return errors.Wrap(call.Err, "close notification")
}

// hints builds the Notify hints dictionary. Empty values are left out.
func hints(n Notification, opts Options) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if opts.DesktopEntry != "" {
		h["desktop-entry"] = dbus.MakeVariant(opts.DesktopEntry)
	}
	if n.Category != "" {
		h["category"] = dbus.MakeVariant(n.Category)
	}
	return h
}
