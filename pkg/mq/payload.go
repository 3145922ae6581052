package mq

type Payload uint32

const (
	PayloadUnknown Payload = iota
	PayloadTrackingEvent
	PayloadMailSent
)

var Payloads = map[Payload]string{
	PayloadTrackingEvent: "tracking_event",
	PayloadMailSent:      "mail_sent",
}

func (p Payload) String() string {
	if name, ok := Payloads[p]; ok {
		return name
	}
	return "unknown"
}
