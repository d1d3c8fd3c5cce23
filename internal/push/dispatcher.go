package push

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edtsync/edt-sync-api/internal/service"
	"github.com/edtsync/edt-sync-api/pkg/jobs"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// ErrSendBufferFull is returned when a connection's outbound buffer is full;
// the message is dropped for that connection only.
var ErrSendBufferFull = errors.New("push: send buffer full")

// ErrRoomNotPushable rejects room subscriptions; room timetables are served
// over REST only.
var ErrRoomNotPushable = errors.New("push: room identities cannot subscribe")

// Event names on the socket channel.
const (
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// Message is the server-to-client push payload: a full current-week snapshot
// for one identity.
type Message struct {
	Event string `json:"event"`
	timetable.Snapshot
}

// ErrorMessage is the server-to-client failure payload.
type ErrorMessage struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SnapshotSource computes identity/week projections. Implemented by
// service.SnapshotService.
type SnapshotSource interface {
	CurrentWeek() timetable.WeekKey
	ForIdentity(ctx context.Context, schoolID string, identity timetable.Identity, week timetable.WeekKey) (*timetable.Snapshot, error)
}

type identityJob struct {
	identity timetable.Identity
}

// Dispatcher recomputes current-week snapshots after schedule mutations and
// fans them out to subscribed connections. Notifications run through a small
// worker queue so mutation handlers never wait on socket writes; delivery is
// at-least-once, best-effort, with per-connection failures isolated.
type Dispatcher struct {
	registry  *Registry
	snapshots SnapshotSource
	queue     *jobs.Queue
	metrics   *service.MetricsService
	logger    *zap.Logger
}

// NewDispatcher builds a dispatcher around the given registry and source.
func NewDispatcher(registry *Registry, snapshots SnapshotSource, metrics *service.MetricsService, workers int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		registry:  registry,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
	}
	d.queue = jobs.NewQueue("push-notify", d.process, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 1,
		Logger:     logger,
	})
	return d
}

// Start launches the notify workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the notify workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Notify queues a snapshot recomputation for every affected identity. Safe
// to call from mutation handlers; never blocks on socket I/O.
func (d *Dispatcher) Notify(ctx context.Context, teacherIDs, classNames []string) {
	for _, id := range teacherIDs {
		d.enqueue(timetable.TeacherIdentity(id))
	}
	for _, name := range classNames {
		d.enqueue(timetable.ClassIdentity(name))
	}
}

// Subscribe registers the identity for a connection and immediately sends it
// a current-week snapshot. The first snapshot and mutation-triggered
// snapshots share the same computation path.
func (d *Dispatcher) Subscribe(ctx context.Context, conn Conn, schoolID string, identity timetable.Identity) error {
	if !identity.Pushable() {
		if identity.Room != "" {
			return ErrRoomNotPushable
		}
		return timetable.ErrAmbiguousIdentity
	}
	if err := d.registry.Subscribe(conn, schoolID, identity); err != nil {
		return err
	}
	d.metrics.SetSubscriptionCount(d.registry.Count())

	snap, err := d.snapshots.ForIdentity(ctx, schoolID, identity, d.snapshots.CurrentWeek())
	if err != nil {
		return err
	}
	d.deliver(Target{Conn: conn, SchoolID: schoolID}, identity, snap)
	return nil
}

// Disconnect drops the connection's subscription.
func (d *Dispatcher) Disconnect(connID string) {
	d.registry.Disconnect(connID)
	d.metrics.SetSubscriptionCount(d.registry.Count())
}

func (d *Dispatcher) enqueue(identity timetable.Identity) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Payload: identityJob{identity: identity},
	})
	if err != nil {
		d.logger.Warn("failed to queue push notification", zap.String("identity", identity.Key()), zap.Error(err))
	}
}

// process recomputes the current server week for one identity and delivers
// it to every matching connection. Snapshots are computed once per school,
// not per connection.
func (d *Dispatcher) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(identityJob)
	if !ok {
		return nil
	}
	identity := payload.identity

	targets := d.registry.Matching(identity)
	if len(targets) == 0 {
		return nil
	}

	week := d.snapshots.CurrentWeek()
	bySchool := make(map[string]*timetable.Snapshot)
	for _, target := range targets {
		snap, ok := bySchool[target.SchoolID]
		if !ok {
			var err error
			snap, err = d.snapshots.ForIdentity(ctx, target.SchoolID, identity, week)
			if err != nil {
				// Build failures affect the whole identity; let the queue retry.
				return err
			}
			bySchool[target.SchoolID] = snap
		}
		d.deliver(target, identity, snap)
	}
	return nil
}

// deliver writes one snapshot to one connection. Failures are logged and
// counted but never abort delivery to the remaining connections.
func (d *Dispatcher) deliver(target Target, identity timetable.Identity, snap *timetable.Snapshot) {
	msg := Message{Event: EventSnapshot, Snapshot: *snap}
	if err := target.Conn.WriteJSON(msg); err != nil {
		d.metrics.RecordPushDelivery(false)
		d.logger.Warn("push delivery failed",
			zap.String("conn_id", target.Conn.ID()),
			zap.String("identity", identity.Key()),
			zap.Error(err),
		)
		return
	}
	d.metrics.RecordPushDelivery(true)
}
