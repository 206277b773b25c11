package router

// GapPolicy selects how a detected sequence gap is resolved. Either way the
// book is cleared and a resync event is surfaced; the policy decides whether
// the router also requests a fresh snapshot on its own.
type GapPolicy string

const (
	// GapPolicyResubscribe re-requests the book snapshot automatically.
	GapPolicyResubscribe GapPolicy = "resubscribe"

	// GapPolicyNotify surfaces the resync event and leaves resubscription
	// to the application.
	GapPolicyNotify GapPolicy = "notify"
)

// Config tunes dispatch behavior.
type Config struct {
	// OnGap is the sequence-gap policy. Defaults to GapPolicyResubscribe.
	OnGap GapPolicy

	// Resubscribe gates every subscribe frame the router emits on its own
	// (gap recovery, server-initiated resync). Mirrors the connection's
	// auto-resubscribe setting.
	Resubscribe bool
}

// DefaultConfig returns the default dispatch configuration.
func DefaultConfig() Config {
	return Config{
		OnGap:       GapPolicyResubscribe,
		Resubscribe: true,
	}
}

// Stats counts dispatch outcomes since the router was created.
type Stats struct {
	MessagesReceived int64
	ParseErrors      int64
	UnknownMessages  int64
	SequenceGaps     int64
	Resyncs          int64
}
