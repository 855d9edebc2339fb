package webhook

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/signalgw/gateway/events"
)

// DeliveryTimeout bounds a single webhook POST.
const DeliveryTimeout = 10 * time.Second

// Dispatcher is a long-lived bus subscriber that POSTs each event to every
// matching registration. Deliveries are fire-and-forget: each runs on its
// own goroutine, failures are logged and never retried, and no hook can
// delay another.
type Dispatcher struct {
	log      *zap.SugaredLogger
	registry *Registry
	bus      *events.Bus
	client   *http.Client
}

func NewDispatcher(log *zap.SugaredLogger, registry *Registry, bus *events.Bus) *Dispatcher {
	return &Dispatcher{
		log:      log.Named("webhooks"),
		registry: registry,
		bus:      bus,
		client:   &http.Client{Timeout: DeliveryTimeout},
	}
}

// Run consumes events until the bus closes. Run it on its own goroutine.
func (d *Dispatcher) Run() {
	sub := d.bus.Subscribe()
	defer sub.Close()

	for raw := range sub.Events() {
		eventType := events.Classify(raw)
		for _, hook := range d.registry.List() {
			if !hook.Matches(eventType) {
				continue
			}
			go d.deliver(hook, raw)
		}
	}
	d.log.Debug("event bus closed, dispatcher exiting")
}

func (d *Dispatcher) deliver(hook Registration, body []byte) {
	resp, err := d.client.Post(hook.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		d.log.Warnf("webhook delivery to %s failed: %s", hook.URL, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.log.Warnf("webhook delivery to %s returned status %d", hook.URL, resp.StatusCode)
	}
}
