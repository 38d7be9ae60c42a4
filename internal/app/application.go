package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/letsbefriends/platform/internal/app/realtime"
	"github.com/letsbefriends/platform/internal/app/services/bookings"
	"github.com/letsbefriends/platform/internal/app/services/discovery"
	"github.com/letsbefriends/platform/internal/app/services/follows"
	"github.com/letsbefriends/platform/internal/app/services/locations"
	"github.com/letsbefriends/platform/internal/app/services/messaging"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/services/offerings"
	"github.com/letsbefriends/platform/internal/app/services/payments"
	"github.com/letsbefriends/platform/internal/app/services/posts"
	"github.com/letsbefriends/platform/internal/app/services/reviews"
	"github.com/letsbefriends/platform/internal/app/services/sites"
	"github.com/letsbefriends/platform/internal/app/services/uploads"
	"github.com/letsbefriends/platform/internal/app/services/users"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	"github.com/letsbefriends/platform/internal/app/system"
	"github.com/letsbefriends/platform/internal/cache"
	"github.com/letsbefriends/platform/internal/config"
	"github.com/letsbefriends/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Posts         storage.PostStore
	Follows       storage.FollowStore
	Offerings     storage.OfferingStore
	Bookings      storage.BookingStore
	Reviews       storage.ReviewStore
	Messages      storage.MessageStore
	Notifications storage.NotificationStore
	Sites         storage.SiteStore
	Locations     storage.LocationStore
}

// Options carries the non-store dependencies. Zero values select local
// defaults: built-in plans, an in-process cache and a local payment
// provider.
type Options struct {
	Plans         config.Plans
	Cache         cache.Cache
	CacheTTL      time.Duration
	Currency      string
	Payments      payments.Provider
	PaymentConfig payments.Config
	Uploads       uploads.Config
	SweepSpec     string
	// RealtimeBuffer is the per-connection push queue length.
	RealtimeBuffer int
	// DisableSweeper skips registering the booking sweeper.
	DisableSweeper bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users         *users.Service
	Follows       *follows.Service
	Posts         *posts.Service
	Discovery     *discovery.Service
	Offerings     *offerings.Service
	Bookings      *bookings.Service
	Payments      *payments.Service
	Reviews       *reviews.Service
	Messaging     *messaging.Service
	Notifications *notifications.Service
	Sites         *sites.Service
	Uploads       *uploads.Service
	Locations     *locations.Service
	Sweeper       *bookings.Sweeper
	Realtime      *realtime.Hub
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	stores.fill(memory.New())

	if opts.Plans == nil {
		opts.Plans = config.DefaultPlans()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Payments == nil {
		log.Warn("no payment provider configured; checkouts use the local provider")
		opts.Payments = payments.LocalProvider{}
	}
	if opts.PaymentConfig.WebhookSecret == "" {
		opts.PaymentConfig.WebhookSecret = uuid.NewString()
		log.WithField("webhook_secret", opts.PaymentConfig.WebhookSecret).
			Warn("payment webhook secret not set; using an ephemeral secret for local checkouts")
	}
	if opts.Uploads.Secret == "" {
		log.Warn("upload signing secret not set; using an ephemeral secret")
		opts.Uploads.Secret = uuid.NewString()
	}
	if opts.Uploads.BaseURL == "" {
		opts.Uploads.BaseURL = "http://localhost:8080/files"
	}

	hub := realtime.NewHub(opts.RealtimeBuffer, log.Named("realtime"))
	notificationSvc := notifications.New(stores.Notifications, log.Named("notifications"))
	notificationSvc.SetPublisher(hub)
	userSvc := users.New(stores.Users, opts.Plans, log.Named("users"))
	followSvc := follows.New(stores.Users, stores.Follows, notificationSvc, log.Named("follows"))
	postSvc := posts.New(stores.Posts, stores.Follows, notificationSvc, log.Named("posts"))
	discoverySvc := discovery.New(stores.Users, stores.Posts, stores.Offerings, opts.Cache, opts.CacheTTL, log.Named("discovery"))
	offeringSvc := offerings.New(stores.Offerings, stores.Bookings, opts.Currency, log.Named("offerings"))
	bookingSvc := bookings.New(stores.Bookings, stores.Offerings, notificationSvc, log.Named("bookings"))
	paymentSvc := payments.New(bookingSvc, opts.Payments, opts.PaymentConfig, log.Named("payments"))
	reviewSvc := reviews.New(stores.Reviews, stores.Bookings, stores.Offerings, notificationSvc, log.Named("reviews"))
	messagingSvc := messaging.New(stores.Users, stores.Messages, notificationSvc, log.Named("messaging"))
	messagingSvc.SetPublisher(hub)
	siteSvc := sites.New(stores.Sites, stores.Users, opts.Plans, log.Named("sites"))
	locationSvc := locations.New(stores.Locations, log.Named("locations"))
	uploadSvc, err := uploads.New(opts.Uploads, log.Named("uploads"))
	if err != nil {
		return nil, fmt.Errorf("configure uploads: %w", err)
	}

	manager := system.NewManager(log.Named("system"))
	application := &Application{
		manager:       manager,
		log:           log,
		Users:         userSvc,
		Follows:       followSvc,
		Posts:         postSvc,
		Discovery:     discoverySvc,
		Offerings:     offeringSvc,
		Bookings:      bookingSvc,
		Payments:      paymentSvc,
		Reviews:       reviewSvc,
		Messaging:     messagingSvc,
		Notifications: notificationSvc,
		Sites:         siteSvc,
		Uploads:       uploadSvc,
		Locations:     locationSvc,
		Realtime:      hub,
	}

	if !opts.DisableSweeper {
		sweeper, err := bookings.NewSweeper(bookingSvc, opts.SweepSpec, log.Named("booking-sweeper"))
		if err != nil {
			return nil, fmt.Errorf("configure booking sweeper: %w", err)
		}
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
		application.Sweeper = sweeper
	}

	return application, nil
}

func (s *Stores) fill(mem *memory.Store) {
	if s.Users == nil {
		s.Users = mem
	}
	if s.Posts == nil {
		s.Posts = mem
	}
	if s.Follows == nil {
		s.Follows = mem
	}
	if s.Offerings == nil {
		s.Offerings = mem
	}
	if s.Bookings == nil {
		s.Bookings = mem
	}
	if s.Reviews == nil {
		s.Reviews = mem
	}
	if s.Messages == nil {
		s.Messages = mem
	}
	if s.Notifications == nil {
		s.Notifications = mem
	}
	if s.Sites == nil {
		s.Sites = mem
	}
	if s.Locations == nil {
		s.Locations = mem
	}
}

// StoresFrom uses one implementation for every store.
func StoresFrom(all interface {
	storage.UserStore
	storage.PostStore
	storage.FollowStore
	storage.OfferingStore
	storage.BookingStore
	storage.ReviewStore
	storage.MessageStore
	storage.NotificationStore
	storage.SiteStore
	storage.LocationStore
}) Stores {
	return Stores{
		Users: all, Posts: all, Follows: all, Offerings: all, Bookings: all,
		Reviews: all, Messages: all, Notifications: all, Sites: all, Locations: all,
	}
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the lifecycle-managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and ends open realtime streams.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Realtime.CloseAll()
	return err
}
