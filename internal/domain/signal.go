package domain

import "strings"

// StatusSignal is the normalized reading of the processor's free-text status field.
type StatusSignal string

const (
	SignalSuccess           StatusSignal = "success"
	SignalFailedOrCancelled StatusSignal = "failed_or_cancelled"
	SignalUnknown           StatusSignal = "unknown"
)

func ClassifyStatus(status string) StatusSignal {
	switch strings.ToLower(status) {
	case "success":
		return SignalSuccess
	case "failed", "cancelled":
		return SignalFailedOrCancelled
	default:
		return SignalUnknown
	}
}

// Channel identifies which ingress path delivered a signal.
type Channel string

const (
	ChannelInitiate Channel = "initiate"
	ChannelVerify   Channel = "verify"
	ChannelWebhook  Channel = "webhook"
)
