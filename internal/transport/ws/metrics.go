package ws

// Metrics counts connection and inbound event activity
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventHandled(eventType, result string)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}
func (nopMetrics) EventHandled(string, string) {}

const resultOK = "ok"
