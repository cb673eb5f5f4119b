package transport

import (
	"fmt"
	"strings"
)

// Default NATS subjects.
const (
	SubjectPrefix = "bridge"
	// SubjectAllEvents receives lifecycle events of every channel.
	SubjectAllEvents = "bridge.events"
)

// Side names one end of a bridge channel.
type Side int

const (
	// NativeSide is the sandboxed module.
	NativeSide Side = iota
	// HostSide is the scripting environment.
	HostSide
)

func (s Side) String() string {
	if s == HostSide {
		return "host"
	}
	return "native"
}

// sanitizeToken makes s usable as a single NATS subject token.
func sanitizeToken(s string) string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return r.Replace(s)
}

// BuildToHostSubject builds the subject carrying messages to the host.
func BuildToHostSubject(channel string) string {
	return fmt.Sprintf("%s.%s.to_host", SubjectPrefix, sanitizeToken(channel))
}

// BuildToNativeSubject builds the subject carrying messages to the native side.
func BuildToNativeSubject(channel string) string {
	return fmt.Sprintf("%s.%s.to_native", SubjectPrefix, sanitizeToken(channel))
}

// BuildEventsSubject builds the subject carrying lifecycle events of channel.
func BuildEventsSubject(channel string) string {
	return fmt.Sprintf("%s.%s.events", SubjectPrefix, sanitizeToken(channel))
}

// Subjects returns the outbound and inbound subjects used by side.
func Subjects(channel string, side Side) (outbound, inbound string) {
	if side == HostSide {
		return BuildToNativeSubject(channel), BuildToHostSubject(channel)
	}
	return BuildToHostSubject(channel), BuildToNativeSubject(channel)
}
