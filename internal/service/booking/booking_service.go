package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/internal/auth"
	"github.com/Domenick1991/glamexpress/internal/backend"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/Domenick1991/glamexpress/internal/kafka"
	"github.com/Domenick1991/glamexpress/internal/lifecycle"
	"github.com/Domenick1991/glamexpress/internal/negotiation"
	"github.com/Domenick1991/glamexpress/internal/pricing"
	"github.com/sirupsen/logrus"
)

type BookingUseCase interface {
	Create(ctx context.Context, sess *auth.Session, input CreateInput) (*domain.Booking, error)
	List(ctx context.Context, sess *auth.Session) ([]*domain.Booking, error)
	Get(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
	Refresh(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
	ChangeStatus(ctx context.Context, sess *auth.Session, id string, to domain.BookingStatus) (*domain.Booking, error)
	Propose(ctx context.Context, sess *auth.Session, id string, input ProposeInput) (*domain.Booking, error)
	Accept(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
	Reject(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error)
	Remove(ctx context.Context, sess *auth.Session, id string) error
	Review(ctx context.Context, sess *auth.Session, input ReviewInput) (*domain.Review, error)
}

// BookingAPI is the slice of the backend client the controller drives.
type BookingAPI interface {
	CreateBooking(ctx context.Context, in backend.CreateBookingInput) (*domain.Booking, error)
	ListBookings(ctx context.Context) ([]*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) (*domain.Booking, error)
	ProposeChanges(ctx context.Context, id string, changes domain.ProposedChanges) (*domain.Booking, error)
	AcceptNegotiation(ctx context.Context, id string) (*domain.Booking, error)
	RejectNegotiation(ctx context.Context, id string) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	CreateReview(ctx context.Context, review domain.Review) (*domain.Review, error)
	GetBeautician(ctx context.Context, id string) (*domain.Beautician, error)
}

type Cache interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	SetBooking(ctx context.Context, b *domain.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	AcquireActionLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseActionLock(ctx context.Context, bookingID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	newAPI             func(*auth.Session) BookingAPI
	cache              Cache
	producer           Producer
	logger             *logrus.Logger
	now                func() time.Time
	bookingTopic       string
	notificationsTopic string
	lockTTL            time.Duration
	removalGrace       time.Duration
}

type CreateInput struct {
	BeauticianID string             `json:"beauticianId"`
	Services     []string           `json:"services"`
	ServiceType  domain.ServiceType `json:"serviceType"`
	Date         time.Time          `json:"date"`
	Location     *domain.Location   `json:"location,omitempty"`
}

// ProposeInput stages changes. Zero fields keep the booking's current value.
type ProposeInput struct {
	Date        time.Time          `json:"date"`
	ServiceType domain.ServiceType `json:"serviceType,omitempty"`
	Services    []string           `json:"services,omitempty"`
}

type ReviewInput struct {
	BookingID string `json:"bookingId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type BookingServiceOption func(*BookingService)

func WithCache(c Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = c
	}
}

func WithProducer(p Producer, bookingTopic, notificationsTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = p
		s.bookingTopic = bookingTopic
		s.notificationsTopic = notificationsTopic
	}
}

func WithLogger(l *logrus.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithLockTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithRemovalGrace(grace time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if grace > 0 {
			s.removalGrace = grace
		}
	}
}

// NewBookingService takes a constructor so each call talks to the backend as its own session.
func NewBookingService(newAPI func(*auth.Session) BookingAPI, opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		newAPI:       newAPI,
		logger:       logrus.StandardLogger(),
		now:          time.Now,
		lockTTL:      30 * time.Second,
		removalGrace: lifecycle.DefaultRemovalGrace,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Create(ctx context.Context, sess *auth.Session, input CreateInput) (*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if sess.User.Role != domain.RoleCustomer {
		return nil, fmt.Errorf("%w: only customers can book", domain.ErrInvalidActor)
	}
	if input.BeauticianID == "" {
		return nil, fmt.Errorf("%w: beautician is required", domain.ErrInvalidProposal)
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", domain.ErrInvalidProposal)
	}
	if !input.ServiceType.Valid() {
		return nil, fmt.Errorf("%w: unknown service type %q", domain.ErrInvalidProposal, input.ServiceType)
	}
	if input.ServiceType == domain.ServiceTypeInHome && (input.Location == nil || input.Location.Address == "") {
		return nil, fmt.Errorf("%w: please provide a valid location for in-home service", domain.ErrInvalidProposal)
	}

	api := s.newAPI(sess)
	beautician, err := api.GetBeautician(ctx, input.BeauticianID)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.Calculate(beautician.Services, input.Services)
	if err != nil {
		return nil, err
	}

	location := input.Location
	if input.ServiceType == domain.ServiceTypeSalon && location == nil && beautician.Location != nil {
		loc := *beautician.Location
		location = &loc
	}

	lockKey := "create:" + sess.User.ID + ":" + input.BeauticianID
	release, err := s.lock(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer release()

	created, err := api.CreateBooking(ctx, backend.CreateBookingInput{
		BeauticianID: input.BeauticianID,
		CustomerID:   sess.User.ID,
		Services:     quote.Services,
		ServiceType:  input.ServiceType,
		Date:         input.Date,
		Location:     location,
		Amount:       quote.Total,
	})
	if err != nil {
		s.log(sess, input.BeauticianID, "create").WithError(err).Warn("create booking failed")
		return nil, err
	}

	s.store(ctx, created)
	s.publish(ctx, kafka.EventBookingCreated, created, sess.User)
	return created, nil
}

// List always reads through to the backend and refreshes the cache.
func (s *BookingService) List(ctx context.Context, sess *auth.Session) ([]*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	bookings, err := s.newAPI(sess).ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		s.store(ctx, b)
	}
	return bookings, nil
}

// Get serves the cached view when there is one.
func (s *BookingService) Get(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	b, err := s.current(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if _, ok := b.Party(sess.User.ID); !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// Refresh drops the cached view and re-reads the booking from the backend.
func (s *BookingService) Refresh(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	b, err := s.newAPI(sess).GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.forget(ctx, id)
		}
		return nil, err
	}
	s.store(ctx, b)
	return b, nil
}

func (s *BookingService) ChangeStatus(ctx context.Context, sess *auth.Session, id string, to domain.BookingStatus) (*domain.Booking, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, to)
	}
	return s.mutate(ctx, sess, id, "status:"+string(to),
		func(b *domain.Booking, role domain.Role) (*domain.Booking, error) {
			return lifecycle.Apply(b, role, to)
		},
		func(api BookingAPI) (*domain.Booking, error) {
			return api.UpdateStatus(ctx, id, to)
		},
		kafka.EventBookingStatusChanged,
	)
}

func (s *BookingService) Propose(ctx context.Context, sess *auth.Session, id string, input ProposeInput) (*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	current, err := s.current(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	role, err := actorRole(current, sess)
	if err != nil {
		return nil, err
	}

	changes := domain.ProposedChanges{
		Date:        current.Date,
		ServiceType: current.ServiceType,
		Services:    append([]domain.Service(nil), current.Services...),
	}
	if !input.Date.IsZero() {
		changes.Date = input.Date
	}
	if input.ServiceType != "" {
		changes.ServiceType = input.ServiceType
	}
	if len(input.Services) > 0 {
		// turn check before the catalog read
		if _, err := negotiation.Propose(current, role, changes); err != nil {
			return nil, err
		}
		beautician, err := s.newAPI(sess).GetBeautician(ctx, current.BeauticianID)
		if err != nil {
			return nil, err
		}
		quote, err := pricing.Calculate(beautician.Services, input.Services)
		if err != nil {
			return nil, err
		}
		changes.Services = quote.Services
	}

	return s.mutate(ctx, sess, id, "propose",
		func(b *domain.Booking, role domain.Role) (*domain.Booking, error) {
			return negotiation.Propose(b, role, changes)
		},
		func(api BookingAPI) (*domain.Booking, error) {
			return api.ProposeChanges(ctx, id, changes)
		},
		kafka.EventNegotiationProposed,
	)
}

func (s *BookingService) Accept(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error) {
	return s.mutate(ctx, sess, id, "accept",
		negotiation.Accept,
		func(api BookingAPI) (*domain.Booking, error) {
			return api.AcceptNegotiation(ctx, id)
		},
		kafka.EventNegotiationAccepted,
	)
}

func (s *BookingService) Reject(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error) {
	return s.mutate(ctx, sess, id, "reject",
		negotiation.Reject,
		func(api BookingAPI) (*domain.Booking, error) {
			return api.RejectNegotiation(ctx, id)
		},
		kafka.EventNegotiationRejected,
	)
}

func (s *BookingService) Remove(ctx context.Context, sess *auth.Session, id string) error {
	if err := checkSession(sess); err != nil {
		return err
	}
	current, err := s.current(ctx, sess, id)
	if err != nil {
		return err
	}
	if _, err := actorRole(current, sess); err != nil {
		return err
	}
	if err := lifecycle.CheckRemovable(current, s.now(), s.removalGrace); err != nil {
		return err
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.newAPI(sess).DeleteBooking(ctx, id); err != nil {
		s.log(sess, id, "remove").WithError(err).Warn("remove booking failed")
		return err
	}
	s.forget(ctx, id)
	s.publish(ctx, kafka.EventBookingRemoved, current, sess.User)
	return nil
}

func (s *BookingService) Review(ctx context.Context, sess *auth.Session, input ReviewInput) (*domain.Review, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateRating(input.Rating); err != nil {
		return nil, err
	}
	current, err := s.current(ctx, sess, input.BookingID)
	if err != nil {
		return nil, err
	}
	role, err := actorRole(current, sess)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleCustomer {
		return nil, fmt.Errorf("%w: only the customer can review a booking", domain.ErrInvalidActor)
	}
	if err := lifecycle.CheckReviewable(current); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, "review:"+input.BookingID)
	if err != nil {
		return nil, err
	}
	defer release()

	review, err := s.newAPI(sess).CreateReview(ctx, domain.Review{
		BookingID: input.BookingID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventReviewSubmitted, current, sess.User)
	return review, nil
}

// mutate runs one role-gated action: local pre-validation against the current view, the
// resubmission guard, the backend call, then the server's answer replaces the cached view.
func (s *BookingService) mutate(
	ctx context.Context,
	sess *auth.Session,
	id, action string,
	check func(*domain.Booking, domain.Role) (*domain.Booking, error),
	call func(BookingAPI) (*domain.Booking, error),
	eventType kafka.EventType,
) (*domain.Booking, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	current, err := s.current(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	role, err := actorRole(current, sess)
	if err != nil {
		return nil, err
	}
	expected, err := check(current, role)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	log := s.log(sess, id, action)
	api := s.newAPI(sess)
	updated, err := call(api)
	if err != nil {
		log.WithError(err).Warn("backend refused booking action")
		if outdated(err) {
			s.forget(ctx, id)
		}
		return nil, err
	}
	if updated == nil {
		updated, err = api.GetBooking(ctx, id)
		if err != nil {
			log.WithError(err).Warn("re-read after acknowledged action failed")
			s.forget(ctx, id)
			return nil, err
		}
	}

	updated = reconcile(updated, expected, role, eventType)
	if updated.Amount != pricing.Total(updated.Services) {
		log.WithFields(logrus.Fields{
			"amount":   updated.Amount,
			"services": pricing.Total(updated.Services),
		}).Warn("backend amount does not match services")
	}

	s.store(ctx, updated)
	s.publish(ctx, eventType, updated, sess.User)
	return updated, nil
}

// reconcile resolves what the wire format leaves ambiguous using what the actor just did. It
// never overrides a field the server stated unambiguously.
func reconcile(updated, expected *domain.Booking, actor domain.Role, eventType kafka.EventType) *domain.Booking {
	out := updated.Clone()
	if eventType == kafka.EventNegotiationProposed && out.Negotiation.IsOpen() && !out.Negotiation.Resolved() {
		out.Negotiation = domain.AwaitingResponse(actor.Counterpart())
		if out.ProposedChanges == nil && expected != nil {
			out.ProposedChanges = expected.ProposedChanges.Clone()
		}
	}
	if out.ProposedChanges != nil && out.ProposedChanges.ProposedBy == "" && out.Negotiation.Resolved() {
		out.ProposedChanges.ProposedBy = out.Negotiation.Awaiting.Counterpart()
	}
	if out.Status.Settled() && out.Negotiation.IsOpen() {
		out = negotiation.Terminate(out)
	}
	return out
}

// outdated reports backend refusals meaning the server's booking differs from the cached view.
// The view is dropped so the next action pre-validates against a fresh read.
func outdated(err error) bool {
	return errors.Is(err, domain.ErrStaleState) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrInvalidActor) ||
		errors.Is(err, domain.ErrNotFound)
}

func (s *BookingService) current(ctx context.Context, sess *auth.Session, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		cached, err := s.cache.GetBooking(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Warn("booking cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}
	return s.Refresh(ctx, sess, id)
}

func (s *BookingService) store(ctx context.Context, b *domain.Booking) {
	if s.cache == nil || b == nil {
		return
	}
	if err := s.cache.SetBooking(ctx, b); err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("booking cache write failed")
	}
}

func (s *BookingService) forget(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteBooking(ctx, id); err != nil {
		s.logger.WithError(err).WithField("booking_id", id).Warn("booking cache delete failed")
	}
}

// lock takes the resubmission guard for key. The returned release is always safe to call.
func (s *BookingService) lock(ctx context.Context, key string) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}
	ok, err := s.cache.AcquireActionLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrActionInFlight
	}
	return func() {
		// ctx may already be cancelled; the lock must still go.
		if err := s.cache.ReleaseActionLock(context.WithoutCancel(ctx), key); err != nil {
			s.logger.WithError(err).WithField("lock", key).Warn("failed to release action lock")
		}
	}, nil
}

func (s *BookingService) publish(ctx context.Context, eventType kafka.EventType, b *domain.Booking, actor domain.User) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, b, actor, s.now())
	if err := s.producer.Publish(ctx, s.bookingTopic, b.ID, event); err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warnf("failed to publish %s event", eventType)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, b.ID, event); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warnf("failed to publish %s notification", eventType)
		}
	}
}

func (s *BookingService) log(sess *auth.Session, bookingID, action string) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"actor":      sess.User.ID,
		"role":       sess.User.Role,
		"action":     action,
	})
}

func checkSession(sess *auth.Session) error {
	if sess == nil || sess.Token == "" || !sess.User.Role.Valid() {
		return domain.ErrUnauthorized
	}
	return nil
}

// actorRole is the role the session plays on b. It must agree with the session's own role.
func actorRole(b *domain.Booking, sess *auth.Session) (domain.Role, error) {
	role, ok := b.Party(sess.User.ID)
	if !ok || role != sess.User.Role {
		return "", fmt.Errorf("%w: not a party to booking %s", domain.ErrInvalidActor, b.ID)
	}
	return role, nil
}

var _ BookingUseCase = (*BookingService)(nil)
