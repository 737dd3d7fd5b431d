// Package payment drives an M-Pesa payment to a terminal state: initiate, then verify on a
// fixed interval until the gateway settles or the wall-clock budget runs out.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/Domenick1991/glamexpress/internal/lifecycle"
	"github.com/Domenick1991/glamexpress/internal/schedule"
	"github.com/sirupsen/logrus"
)

type PaymentUseCase interface {
	Initiate(ctx context.Context, sess *auth.Session, bookingID, phone string, observer Observer) (*domain.Payment, error)
	Verify(ctx context.Context, sess *auth.Session, bookingID string) (*Update, error)
	Cancel(sess *auth.Session, bookingID string) error
	History(ctx context.Context, sess *auth.Session) ([]*domain.Payment, error)
}

type PaymentAPI interface {
	InitiatePayment(ctx context.Context, bookingID, phone string) (*domain.Payment, error)
	VerifyPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	PaymentHistory(ctx context.Context) ([]*domain.Payment, error)
}

// Bookings is the booking controller as seen from payments.
type Bookings interface {
	Get(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
	Refresh(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type State string

const (
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s != StatePolling
}

// Update is reported to the observer after initiation, after every verify and on resolution.
type Update struct {
	BookingID string          `json:"bookingId"`
	UserID    string          `json:"userId"`
	Payment   *domain.Payment `json:"payment,omitempty"`
	State     State           `json:"state"`
	Attempt   int             `json:"attempt"`
	Message   string          `json:"message,omitempty"`
	Err       error           `json:"-"`
}

type Observer func(Update)

// poll is one booking's verification loop. Fields are guarded by Coordinator.mu.
type poll struct {
	bookingID string
	paymentID string
	sess      *auth.Session
	booking   *domain.Booking
	observer  Observer
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	attempt   int
	gen       int
	inFlight  bool
	done      bool
	next      schedule.Task
	deadline  schedule.Task
}

type Coordinator struct {
	newAPI       func(*auth.Session) PaymentAPI
	bookings     Bookings
	producer     Producer
	topic        string
	logger       *logrus.Logger
	scheduler    schedule.Scheduler
	initialDelay time.Duration
	interval     time.Duration
	timeout      time.Duration

	mu    sync.Mutex
	polls map[string]*poll
	// last unresolved payment per booking, for manual checks after the loop ended
	last      map[string]lastPayment
	retention time.Duration
}

type lastPayment struct {
	id string
	at time.Time
}

type CoordinatorOption func(*Coordinator)

func WithBookings(b Bookings) CoordinatorOption {
	return func(c *Coordinator) {
		c.bookings = b
	}
}

func WithProducer(p Producer, topic string) CoordinatorOption {
	return func(c *Coordinator) {
		c.producer = p
		c.topic = topic
	}
}

func WithLogger(l *logrus.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func WithScheduler(s schedule.Scheduler) CoordinatorOption {
	return func(c *Coordinator) {
		c.scheduler = s
	}
}

// WithRetention sets how long an unresolved payment id is remembered for manual checks once
// its loop has ended.
func WithRetention(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.retention = d
		}
	}
}

// WithTiming overrides the first-verify delay, the retry interval and the overall budget.
// Non-positive values keep the defaults.
func WithTiming(initialDelay, interval, timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if initialDelay > 0 {
			c.initialDelay = initialDelay
		}
		if interval > 0 {
			c.interval = interval
		}
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewCoordinator(newAPI func(*auth.Session) PaymentAPI, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		newAPI:       newAPI,
		logger:       logrus.StandardLogger(),
		scheduler:    schedule.Real(),
		initialDelay: 5 * time.Second,
		interval:     10 * time.Second,
		timeout:      300 * time.Second,
		polls:        make(map[string]*poll),
		last:         make(map[string]lastPayment),
		retention:    time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate validates the phone, asks the gateway for an STK push and starts polling. A loop
// already running for the booking is cancelled first.
func (c *Coordinator) Initiate(ctx context.Context, sess *auth.Session, bookingID, phone string, observer Observer) (*domain.Payment, error) {
	if sess == nil || sess.Token == "" {
		return nil, domain.ErrUnauthorized
	}
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if sess.User.Role != domain.RoleCustomer {
		return nil, fmt.Errorf("%w: only customers pay for bookings", domain.ErrInvalidActor)
	}

	var booking *domain.Booking
	if c.bookings != nil {
		booking, err = c.bookings.Get(ctx, sess, bookingID)
		if err != nil {
			return nil, err
		}
		if err := lifecycle.CheckPayable(booking); err != nil {
			return nil, err
		}
	}

	c.stop(bookingID, StateCancelled)

	log := c.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"actor":      sess.User.ID,
		"phone":      maskPhone(msisdn),
	})
	api := c.newAPI(sess)
	payment, err := api.InitiatePayment(ctx, bookingID, msisdn)
	if err != nil {
		log.WithError(err).Warn("payment initiation failed")
		return nil, err
	}
	log.WithField("payment_id", payment.ID).Info("payment initiated")

	// the loop outlives the request that started it
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &poll{
		bookingID: bookingID,
		paymentID: payment.ID,
		sess:      sess,
		booking:   booking,
		observer:  observer,
		ctx:       pollCtx,
		cancel:    cancel,
		startedAt: c.scheduler.Now(),
	}

	c.mu.Lock()
	if old := c.polls[bookingID]; old != nil {
		// a concurrent Initiate won the race; this one replaces it
		c.finishLocked(old)
	}
	c.polls[bookingID] = p
	c.pruneLocked()
	c.last[bookingID] = lastPayment{id: payment.ID, at: c.scheduler.Now()}
	p.deadline = c.scheduler.AfterFunc(c.timeout, func() { c.expire(p) })
	c.scheduleLocked(p, c.initialDelay)
	c.mu.Unlock()

	c.publish(ctx, kafka.EventPaymentInitiated, bookingID, booking, payment, sess.User)
	c.emit(p, Update{BookingID: bookingID, UserID: sess.User.ID, Payment: payment, State: StatePolling})
	return payment, nil
}

// Verify runs an out-of-band check. With a live loop the pending retry is replaced by this
// check and the budget keeps counting from initiation. Without one it is a single lookup.
func (c *Coordinator) Verify(ctx context.Context, sess *auth.Session, bookingID string) (*Update, error) {
	if sess == nil || sess.Token == "" {
		return nil, domain.ErrUnauthorized
	}

	c.mu.Lock()
	p := c.polls[bookingID]
	if p != nil {
		if p.sess.User.ID != sess.User.ID {
			c.mu.Unlock()
			return nil, domain.ErrInvalidActor
		}
		if p.inFlight {
			c.mu.Unlock()
			return nil, domain.ErrVerifyInFlight
		}
		if p.next != nil {
			p.next.Stop()
			p.next = nil
		}
		p.gen++
		p.inFlight = true
		p.attempt++
		attempt := p.attempt
		c.mu.Unlock()

		payment, err := c.newAPI(sess).VerifyPayment(ctx, p.paymentID)
		u := c.settle(p, attempt, payment, err)
		if u == nil {
			// the loop ended while this check was out
			return c.lookup(ctx, sess, bookingID, p.paymentID)
		}
		return u, u.Err
	}
	c.pruneLocked()
	paymentID := c.last[bookingID].id
	c.mu.Unlock()

	return c.lookup(ctx, sess, bookingID, paymentID)
}

// Cancel stops the booking's loop. No further verify is issued and late results are dropped.
func (c *Coordinator) Cancel(sess *auth.Session, bookingID string) error {
	c.mu.Lock()
	p := c.polls[bookingID]
	if p == nil {
		c.mu.Unlock()
		return domain.ErrNotFound
	}
	if sess == nil || p.sess.User.ID != sess.User.ID {
		c.mu.Unlock()
		return domain.ErrInvalidActor
	}
	c.mu.Unlock()

	c.stop(bookingID, StateCancelled)
	return nil
}

func (c *Coordinator) History(ctx context.Context, sess *auth.Session) ([]*domain.Payment, error) {
	if sess == nil || sess.Token == "" {
		return nil, domain.ErrUnauthorized
	}
	payments, err := c.newAPI(sess).PaymentHistory(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Timestamp.After(payments[j].Timestamp)
	})
	return payments, nil
}

// Active reports whether a loop is running for the booking.
func (c *Coordinator) Active(bookingID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls[bookingID] != nil
}

// Close cancels every loop.
func (c *Coordinator) Close() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.polls))
	for id := range c.polls {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.stop(id, StateCancelled)
	}
}

// scheduleLocked arms the next verify. A tick from an older arming is ignored. c.mu must be held.
func (c *Coordinator) scheduleLocked(p *poll, d time.Duration) {
	p.gen++
	gen := p.gen
	p.next = c.scheduler.AfterFunc(d, func() { c.tick(p, gen) })
}

func (c *Coordinator) tick(p *poll, gen int) {
	c.mu.Lock()
	if p.done || p.inFlight || p.gen != gen {
		c.mu.Unlock()
		return
	}
	p.next = nil
	p.inFlight = true
	p.attempt++
	attempt := p.attempt
	c.mu.Unlock()

	payment, err := c.newAPI(p.sess).VerifyPayment(p.ctx, p.paymentID)
	c.settle(p, attempt, payment, err)
}

// settle applies one verify result. It returns nil when the loop had already ended and the
// result was dropped.
func (c *Coordinator) settle(p *poll, attempt int, payment *domain.Payment, err error) *Update {
	log := c.logger.WithFields(logrus.Fields{
		"booking_id": p.bookingID,
		"payment_id": p.paymentID,
		"attempt":    attempt,
	})

	c.mu.Lock()
	p.inFlight = false
	if p.done {
		c.mu.Unlock()
		log.Debug("dropping verify result for a finished poll")
		return nil
	}

	u := Update{BookingID: p.bookingID, UserID: p.sess.User.ID, Payment: payment, State: StatePolling, Attempt: attempt}
	switch {
	case err != nil:
		u.Payment = nil
		u.Err = err
		u.Message = domain.UserMessage(err)
		if errors.Is(err, domain.ErrUnauthorized) {
			u.State = StateCancelled
			c.finishLocked(p)
			break
		}
		log.WithError(err).Warn("payment verify failed, retrying")
		c.scheduleLocked(p, c.interval)
	case payment.Status == domain.PaymentStateCompleted:
		u.State = StateCompleted
		c.finishLocked(p)
		c.forgetLocked(p.bookingID, p.paymentID)
	case payment.Status == domain.PaymentStateFailed:
		u.State = StateFailed
		u.Message = "M-Pesa payment failed. Please try again."
		c.finishLocked(p)
		c.forgetLocked(p.bookingID, p.paymentID)
	default:
		c.scheduleLocked(p, c.interval)
	}
	c.mu.Unlock()

	// the loop context is already cancelled once finished
	ctx := context.WithoutCancel(p.ctx)
	switch u.State {
	case StateCompleted:
		log.WithField("mpesa_code", payment.MpesaCode).Info("payment completed")
		c.refresh(ctx, p.sess, p.bookingID)
		c.publish(ctx, kafka.EventPaymentCompleted, p.bookingID, p.booking, payment, p.sess.User)
	case StateFailed:
		log.Info("payment failed")
		c.publish(ctx, kafka.EventPaymentFailed, p.bookingID, p.booking, payment, p.sess.User)
	case StateCancelled:
		log.WithError(err).Warn("payment polling stopped")
	}
	c.emit(p, u)
	return &u
}

func (c *Coordinator) expire(p *poll) {
	c.mu.Lock()
	if p.done {
		c.mu.Unlock()
		return
	}
	attempt := p.attempt
	c.finishLocked(p)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"booking_id": p.bookingID,
		"payment_id": p.paymentID,
		"attempt":    attempt,
		"elapsed":    c.scheduler.Now().Sub(p.startedAt).String(),
	}).Warn("payment confirmation timed out")

	c.publish(context.WithoutCancel(p.ctx), kafka.EventPaymentTimeout, p.bookingID, p.booking, &domain.Payment{ID: p.paymentID, BookingID: p.bookingID}, p.sess.User)
	c.emit(p, Update{
		BookingID: p.bookingID,
		UserID:    p.sess.User.ID,
		State:     StateTimedOut,
		Attempt:   attempt,
		Message:   "We could not confirm the payment yet. Check the status again shortly.",
		Err:       domain.ErrPaymentTimeout,
	})
}

// stop ends the booking's loop, if any, and tells its observer.
func (c *Coordinator) stop(bookingID string, state State) {
	c.mu.Lock()
	p := c.polls[bookingID]
	if p == nil {
		c.mu.Unlock()
		return
	}
	attempt := p.attempt
	c.finishLocked(p)
	c.mu.Unlock()

	c.logger.WithField("booking_id", bookingID).Info("payment polling cancelled")
	c.emit(p, Update{BookingID: bookingID, UserID: p.sess.User.ID, State: state, Attempt: attempt})
}

// finishLocked releases the loop's timers and context. c.mu must be held.
func (c *Coordinator) finishLocked(p *poll) {
	p.done = true
	if p.next != nil {
		p.next.Stop()
		p.next = nil
	}
	if p.deadline != nil {
		p.deadline.Stop()
		p.deadline = nil
	}
	p.cancel()
	if c.polls[p.bookingID] == p {
		delete(c.polls, p.bookingID)
	}
}

// lookup verifies once outside any loop, falling back to the newest payment in the history.
func (c *Coordinator) lookup(ctx context.Context, sess *auth.Session, bookingID, paymentID string) (*Update, error) {
	api := c.newAPI(sess)
	if paymentID == "" {
		history, err := api.PaymentHistory(ctx)
		if err != nil {
			return nil, err
		}
		var latest *domain.Payment
		for _, p := range history {
			if p.BookingID == bookingID && (latest == nil || p.Timestamp.After(latest.Timestamp)) {
				latest = p
			}
		}
		if latest == nil {
			return nil, fmt.Errorf("%w: no payment for booking %s", domain.ErrNotFound, bookingID)
		}
		paymentID = latest.ID
	}

	payment, err := api.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	u := &Update{BookingID: bookingID, UserID: sess.User.ID, Payment: payment, State: StatePolling}
	switch payment.Status {
	case domain.PaymentStateCompleted:
		u.State = StateCompleted
		c.refresh(ctx, sess, bookingID)
	case domain.PaymentStateFailed:
		u.State = StateFailed
	}
	if u.State.Terminal() {
		c.mu.Lock()
		c.forgetLocked(bookingID, paymentID)
		c.mu.Unlock()
	}
	return u, nil
}

// forgetLocked drops the remembered payment once it resolved. c.mu must be held.
func (c *Coordinator) forgetLocked(bookingID, paymentID string) {
	if c.last[bookingID].id == paymentID {
		delete(c.last, bookingID)
	}
}

// pruneLocked drops remembered payments older than the retention window. c.mu must be held.
func (c *Coordinator) pruneLocked() {
	cutoff := c.scheduler.Now().Add(-c.retention)
	for id, lp := range c.last {
		if lp.at.Before(cutoff) {
			delete(c.last, id)
		}
	}
}

func (c *Coordinator) refresh(ctx context.Context, sess *auth.Session, bookingID string) {
	if c.bookings == nil {
		return
	}
	if _, err := c.bookings.Refresh(ctx, sess, bookingID); err != nil {
		c.logger.WithError(err).WithField("booking_id", bookingID).Warn("booking refresh after payment failed")
	}
}

func (c *Coordinator) publish(ctx context.Context, t kafka.EventType, bookingID string, b *domain.Booking, payment *domain.Payment, actor domain.User) {
	if c.producer == nil || c.topic == "" {
		return
	}
	event := kafka.NewBookingEvent(t, b, actor, c.scheduler.Now())
	event.BookingID = bookingID
	if payment != nil {
		event.PaymentID = payment.ID
		if payment.Amount > 0 {
			event.Amount = payment.Amount
		}
	}
	if err := c.producer.Publish(ctx, c.topic, bookingID, event); err != nil {
		c.logger.WithError(err).WithField("booking_id", bookingID).Warnf("failed to publish %s event", t)
	}
}

func (c *Coordinator) emit(p *poll, u Update) {
	if p.observer != nil {
		p.observer(u)
	}
}

var _ PaymentUseCase = (*Coordinator)(nil)
