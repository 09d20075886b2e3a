package restree

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
)

// Op identifies whether a change event is an addition or removal.
type Op int

const (
	Added Op = iota
	Removed
)

func (o Op) String() string {
	if o == Added {
		return "ADDED"
	}
	return "REMOVED"
}

// ChangeEvent is the immutable record delivered to listeners. Listeners
// must not mutate the tree during dispatch.
type ChangeEvent struct {
	ID   string
	Path string
	Kind Kind
	Op   Op
}

// Listener receives synchronous change notifications.
type Listener func(ChangeEvent)

// dispatcher holds the registered listeners and optional NATS notifier for
// a Tree.
type dispatcher struct {
	listeners []Listener
	notifier  *Notifier
	metrics   *metric.Metrics
	logger    *slog.Logger
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{logger: logger}
}

// AddListener registers a synchronous change listener.
func (d *dispatcher) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// SetNotifier attaches the optional NATS-backed fan-out notifier.
func (d *dispatcher) SetNotifier(n *Notifier) {
	d.notifier = n
}

func (d *dispatcher) dispatch(path string, kind Kind, op Op) {
	ev := ChangeEvent{ID: uuid.NewString(), Path: path, Kind: kind, Op: op}
	for _, l := range d.listeners {
		l(ev)
	}
	if d.notifier != nil {
		d.notifier.Publish(ev)
	}
	if d.metrics != nil {
		d.metrics.RecordChangeEvent(op.String())
	}
	d.logger.Debug("dispatched change event", "path", path, "kind", kind.String(), "op", op.String())
}

// Notifier mirrors dispatched change events onto a NATS subject for
// external admin tooling. It never touches tree state directly — it only
// ever receives already-computed records over a channel, preserving
// "listeners must not mutate the tree" by construction.
type Notifier struct {
	client  *natsclient.Client
	subject string
	events  chan ChangeEvent
	logger  *slog.Logger
	done    chan struct{}
}

// NewNotifier starts a notifier publishing to subject over client. Publish
// calls enqueue onto a buffered channel drained by a single background
// goroutine — the one goroutine the restree package starts.
func NewNotifier(client *natsclient.Client, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		client:  client,
		subject: subject,
		events:  make(chan ChangeEvent, 256),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Publish enqueues ev for publication, dropping it if the queue is full
// rather than blocking the dispatching actor.
func (n *Notifier) Publish(ev ChangeEvent) {
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("notifier queue full, dropping change event", "path", ev.Path)
	}
}

func (n *Notifier) run() {
	for {
		select {
		case ev := <-n.events:
			n.publishOne(ev)
		case <-n.done:
			return
		}
	}
}

// wireChangeEvent is the over-the-wire shape published to NATS; encoding it
// through encoding/json (rather than string concatenation) guarantees Path
// is escaped correctly even when it contains '"' or '\'.
type wireChangeEvent struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Kind string `json:"kind"`
	Op   string `json:"op"`
}

func encodeChangeEvent(ev ChangeEvent) ([]byte, error) {
	return json.Marshal(wireChangeEvent{ev.ID, ev.Path, ev.Kind.String(), ev.Op.String()})
}

func (n *Notifier) publishOne(ev ChangeEvent) {
	payload, err := encodeChangeEvent(ev)
	if err != nil {
		n.logger.Warn("failed to encode change event", "path", ev.Path, "error", err)
		return
	}
	if err := n.client.Publish(context.Background(), n.subject+"."+ev.Kind.String(), payload); err != nil {
		n.logger.Warn("failed to publish change event", "path", ev.Path, "error", err)
	}
}

// Close stops the notifier's background publisher.
func (n *Notifier) Close() {
	close(n.done)
}
