package event

// Channel is a relay broadcast channel.
type Channel uint8

const (
	ChannelNotifications Channel = iota
	ChannelUrgent
	ChannelSystem
)

const (
	channelNotificationsName = "notifications"
	channelUrgentName        = "urgent-notifications"
	channelSystemName        = "system-notifications"
)

// Name returns the broker-side channel name.
func (c Channel) Name() string {
	switch c {
	case ChannelUrgent:
		return channelUrgentName
	case ChannelSystem:
		return channelSystemName
	}
	return channelNotificationsName
}

// ChannelByName resolves a broker-side channel name.
func ChannelByName(name string) (Channel, bool) {
	switch name {
	case channelNotificationsName:
		return ChannelNotifications, true
	case channelUrgentName:
		return ChannelUrgent, true
	case channelSystemName:
		return ChannelSystem, true
	}
	return ChannelNotifications, false
}

// Channels returns the relay channels a publish of e goes out on.
// This is a pure function of priority and category:
// system events go to the base channel only (the system flag on the
// payload carries the classification), high-priority events go to the
// base channel plus the urgent channel, everything else to the base
// channel alone.
func Channels(e Event) []Channel {
	if e.Category == CategorySystem {
		return []Channel{ChannelNotifications}
	}
	if e.Priority == PriorityHigh {
		return []Channel{ChannelNotifications, ChannelUrgent}
	}
	return []Channel{ChannelNotifications}
}
