package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/ai"
	"github.com/kdimtricp/detectsnap/internal/models"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

const subscriberBuffer = 16

// Controller drives one capture session: acquire an image, run detection,
// review the result, optionally commit it, and browse saved records.
//
// Events are expected one at a time. The detection call and storage
// operations run without holding the state lock, so Snapshot stays
// responsive, but no second operation is started while one is in flight.
type Controller struct {
	id       string
	detector ai.Detector
	store    storage.RecordStore
	ids      *models.IDSource
	now      func() time.Time
	logger   *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	subscribers map[chan State]struct{}
}

type Option func(*Controller)

// WithClock overrides the time source used for record ids and dates.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Controller) { c.logger = logger }
}

func NewController(detector ai.Detector, store storage.RecordStore, opts ...Option) *Controller {
	c := &Controller{
		id:          uuid.New().String(),
		detector:    detector,
		store:       store,
		ids:         &models.IDSource{},
		now:         time.Now,
		state:       State{Phase: PhaseIdle, Detections: []models.Detection{}, Saved: []models.Record{}},
		subscribers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	c.logger = c.logger.With("session", c.id)
	return c
}

func (c *Controller) ID() string {
	return c.id
}

// Initialize prepares the store and loads the saved listing.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.store.Initialize(ctx); err != nil {
		c.fail(err)
		return err
	}
	return c.Refresh(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe returns a channel receiving a snapshot after every transition,
// and a func to stop the subscription. Slow subscribers only miss
// intermediate snapshots, never the latest one.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.state.clone()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Capture asks the capture collaborator for an image and acquires it.
func (c *Controller) Capture(ctx context.Context, capturer Capturer) error {
	result, err := capturer.Capture(ctx)
	if err != nil {
		return errors.Wrap(err, "capture failed")
	}
	return c.Acquire(ctx, result)
}

// Acquire starts detection for a newly captured image. A canceled capture
// leaves the state untouched. The returned error, if any, is also surfaced
// in the state, which ends up Reviewing either way.
func (c *Controller) Acquire(ctx context.Context, capture CaptureResult) error {
	if capture.Canceled {
		c.logger.Debug("capture canceled")
		return nil
	}

	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		c.logger.Debug("ignoring acquisition while busy")
		return ErrBusy
	}
	if capture.URI == "" {
		err := &models.PreconditionError{Reason: "no image reference"}
		c.state.Error = Surface(err)
		c.publishLocked()
		c.mu.Unlock()
		return err
	}

	c.state.Phase = PhaseProcessing
	c.state.Busy = true
	c.state.Browsing = false
	c.state.ImageRef = capture.URI
	c.state.Detections = []models.Detection{}
	c.state.Outcome = OutcomeNone
	c.state.RecordID = ""
	c.state.Error = nil
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Infow("detecting", "image", capture.URI)
	detections, err := c.detector.Detect(ctx, capture.URI)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Phase = PhaseReviewing
	c.state.Busy = false
	switch {
	case err != nil:
		c.logger.Warnw("detection failed", "image", capture.URI, "error", err)
		c.state.Detections = []models.Detection{}
		c.state.Outcome = OutcomeFailed
		c.state.Error = Surface(err)
	case len(detections) == 0:
		c.state.Detections = []models.Detection{}
		c.state.Outcome = OutcomeEmpty
	default:
		c.state.Detections = models.CloneDetections(detections)
		c.state.Outcome = OutcomeDetected
	}
	c.publishLocked()

	return err
}

// Commit saves the detections under review as a new record and refreshes
// the listing. Committing with no detections is a PreconditionError and
// never reaches the store.
func (c *Controller) Commit(ctx context.Context) (*models.Record, error) {
	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if err := c.commitPreconditionLocked(); err != nil {
		c.state.Error = Surface(err)
		c.publishLocked()
		c.mu.Unlock()
		return nil, err
	}

	createdAt := c.now()
	record := models.NewRecord(c.ids.Next(createdAt), c.state.ImageRef, c.state.Detections, createdAt)
	c.state.Busy = true
	c.state.Error = nil
	c.publishLocked()
	c.mu.Unlock()

	if err := c.store.Save(ctx, record); err != nil {
		c.logger.Errorw("failed to save record", "id", record.ID, "error", err)
		c.mu.Lock()
		c.state.Busy = false
		c.state.Error = Surface(err)
		c.publishLocked()
		c.mu.Unlock()
		return nil, err
	}

	records, listErr := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Busy = false
	c.state.RecordID = record.ID
	if listErr != nil {
		c.logger.Warnw("failed to refresh saved records", "error", listErr)
		c.state.Saved = append(c.state.Saved, *record)
	} else {
		c.state.Saved = records
	}
	c.publishLocked()

	c.logger.Infow("record committed", "id", record.ID, "detections", len(record.Detections))
	return record, nil
}

func (c *Controller) commitPreconditionLocked() error {
	switch {
	case c.state.Phase != PhaseReviewing:
		return &models.PreconditionError{Reason: "no image under review"}
	case len(c.state.Detections) == 0:
		return &models.PreconditionError{Reason: "no detections to save"}
	case c.state.RecordID != "":
		return &models.PreconditionError{Reason: "detections already saved as record " + c.state.RecordID}
	}
	return nil
}

// Reset discards the image and detections under review.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Busy {
		return ErrBusy
	}
	if c.state.Phase == PhaseIdle {
		return nil
	}

	c.state.Phase = PhaseIdle
	c.state.ImageRef = ""
	c.state.Detections = []models.Detection{}
	c.state.Outcome = OutcomeNone
	c.state.RecordID = ""
	c.state.Error = nil
	c.publishLocked()
	return nil
}

// Refresh reloads the cached listing from the store.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.Busy = true
	c.mu.Unlock()

	records, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Busy = false
	if err != nil {
		c.logger.Warnw("failed to list saved records", "error", err)
		c.state.Error = Surface(err)
	} else {
		c.state.Saved = records
	}
	c.publishLocked()
	return err
}

// EnterBrowsing switches to the saved-records view and refreshes it. A
// failed refresh keeps the view on the previous listing.
func (c *Controller) EnterBrowsing(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.Browsing = true
	c.publishLocked()
	c.mu.Unlock()

	return c.Refresh(ctx)
}

func (c *Controller) ExitBrowsing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Busy {
		return ErrBusy
	}
	if !c.state.Browsing {
		return nil
	}
	c.state.Browsing = false
	c.publishLocked()
	return nil
}

// SelectRecord puts a saved record under review without calling the
// detection service.
func (c *Controller) SelectRecord(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Busy {
		return ErrBusy
	}
	if !c.state.Browsing {
		return &TransitionError{Event: "select record", Phase: c.state.Phase}
	}

	var found *models.Record
	for i := range c.state.Saved {
		if c.state.Saved[i].ID == id {
			found = &c.state.Saved[i]
			break
		}
	}
	if found == nil {
		return errors.Wrapf(ErrRecordNotFound, "id %s", id)
	}

	c.state.Phase = PhaseReviewing
	c.state.Browsing = false
	c.state.ImageRef = found.URI
	c.state.Detections = models.CloneDetections(found.Detections)
	if c.state.Detections == nil {
		c.state.Detections = []models.Detection{}
	}
	c.state.Outcome = OutcomeLoaded
	c.state.RecordID = found.ID
	c.state.Error = nil
	c.publishLocked()
	return nil
}

// fail surfaces an error without a transition.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Error = Surface(err)
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	for ch := range c.subscribers {
		snapshot := c.state.clone()
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Drop the oldest pending snapshot to make room for the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
