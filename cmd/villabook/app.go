package main

import (
	"fmt"
	"time"

	"villabook/internal/app/commands"
	bookingapp "villabook/internal/app/handlers/booking"
	cartapp "villabook/internal/app/handlers/cart"
	checkoutapp "villabook/internal/app/handlers/checkout"
	paymentsapp "villabook/internal/app/handlers/payments"
	propertiesapp "villabook/internal/app/handlers/properties"
	reviewsapp "villabook/internal/app/handlers/reviews"
	"villabook/internal/app/middleware"
	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	"villabook/internal/app/queries"
	authsvc "villabook/internal/app/services/auth"
	"villabook/internal/infra/cache"
	"villabook/internal/infra/config"
	"villabook/internal/infra/gateway"
	ginserver "villabook/internal/infra/http/gin"
	"villabook/internal/infra/security"
	"villabook/internal/infra/storage/s3"
)

type application struct {
	commands  commands.Bus
	queries   queries.Bus
	auth      *authsvc.Service
	reaper    *checkoutapp.Reaper
	completer *bookingapp.StayCompleter
	cache     *cache.PropertyCache
	archive   *s3.Archive
}

func buildApplication(rt *runtime) (*application, error) {
	cfg := rt.cfg
	logger := rt.logger
	encoder := appoutbox.JSONEventEncoder{IDGenerator: appoutbox.NewEventID}
	box := rt.outbox

	auth := &authsvc.Service{
		Users:     rt.users,
		Passwords: security.BcryptHasher{},
		Tokens:    security.JWTIssuer{Secret: cfg.Secret(), Issuer: cfg.JWTIssuer},
		TokenTTL:  cfg.TokenTTL,
		Logger:    logger.With("component", "auth"),
	}

	gw, decoders, err := buildGateway(cfg, rt)
	if err != nil {
		return nil, err
	}

	app := &application{auth: auth}
	var archive policies.PayloadArchive
	if cfg.S3Endpoint != "" {
		a, err := s3.NewArchive(s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("webhook archive: %w", err)
		}
		app.archive = a
		archive = a
		rt.checks["archive"] = a.Ping
	}

	propertyReader := propertiesapp.UnitReader{UoWFactory: rt.factory}
	app.cache = cache.NewPropertyCache(propertyReader, cfg.PropertyCacheSize, cfg.PropertyCacheTTL)

	orchestrator := &checkoutapp.Orchestrator{
		UoWFactory: rt.factory,
		Gateway:    gw,
		Users:      auth,
		Outbox:     box,
		Encoder:    encoder,
		Currency:   cfg.Currency,
		Logger:     logger.With("component", "checkout"),
	}
	app.reaper = &checkoutapp.Reaper{
		UoWFactory: rt.factory,
		Outbox:     box,
		Encoder:    encoder,
		TTL:        cfg.CheckoutTTL,
		Logger:     logger.With("component", "reaper"),
	}
	app.completer = &bookingapp.StayCompleter{
		UoWFactory: rt.factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger.With("component", "stays"),
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, checkoutapp.CheckoutCommand{}.Key(), &checkoutapp.CheckoutHandler{
		UoWFactory:   rt.factory,
		Orchestrator: orchestrator,
	})
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		Orchestrator: orchestrator,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: rt.factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, cartapp.AddItemCommand{}.Key(), &cartapp.AddItemHandler{
		UoWFactory: rt.factory,
		Currency:   cfg.Currency,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, cartapp.UpdateItemCommand{}.Key(), &cartapp.UpdateItemHandler{
		UoWFactory: rt.factory,
		Currency:   cfg.Currency,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, cartapp.RemoveItemCommand{}.Key(), &cartapp.RemoveItemHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, cartapp.ClearCartCommand{}.Key(), &cartapp.ClearCartHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, paymentsapp.ReconcileCommand{}.Key(), &paymentsapp.ReconcileHandler{
		UoWFactory: rt.factory,
		Decoders:   decoders,
		Notifier:   appoutbox.Notifier{Box: box},
		Archive:    archive,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger.With("component", "payments"),
	})
	commands.RegisterHandler(commandBus, propertiesapp.UpsertPropertyCommand{}.Key(), &propertiesapp.UpsertPropertyHandler{
		UoWFactory:      rt.factory,
		Outbox:          box,
		Encoder:         encoder,
		Cache:           app.cache,
		DefaultCurrency: cfg.Currency,
		Logger:          logger,
	})
	commands.RegisterHandler(commandBus, reviewsapp.CreateReviewCommand{}.Key(), &reviewsapp.CreateReviewHandler{
		UoWFactory: rt.factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, reviewsapp.UpdateReviewCommand{}.Key(), &reviewsapp.UpdateReviewHandler{
		UoWFactory: rt.factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, reviewsapp.DeleteReviewCommand{}.Key(), &reviewsapp.DeleteReviewHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, propertiesapp.GetPropertyQuery{}.Key(), &propertiesapp.GetPropertyHandler{
		Reader: app.cache,
		Logger: logger,
	})
	queries.RegisterHandler(queryBus, propertiesapp.CheckAvailabilityQuery{}.Key(), &propertiesapp.CheckAvailabilityHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, cartapp.GetCartQuery{}.Key(), &cartapp.GetCartHandler{
		UoWFactory: rt.factory,
		Properties: app.cache,
		Currency:   cfg.Currency,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, bookingapp.ListMyBookingsQuery{}.Key(), &bookingapp.ListMyBookingsHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, reviewsapp.ListPropertyReviewsQuery{}.Key(), &reviewsapp.ListPropertyReviewsHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, reviewsapp.EligibilityQuery{}.Key(), &reviewsapp.EligibilityHandler{
		UoWFactory: rt.factory,
		Logger:     logger,
	})

	pipeline := middleware.Pipeline{
		Validator:   middleware.NewStructValidator(),
		Authorizer:  middleware.RoleAuthorizer{},
		Idempotency: rt.idempotency,
		Outbox:      box,
		Units:       rt.factory,
		Logger:      logger.With("component", "bus"),
	}
	app.commands = pipeline.Commands(commandBus)
	app.queries = pipeline.Queries(queryBus)
	logger.Debug("buses ready", "commands", commandBus.Keys(), "queries", queryBus.Keys())
	return app, nil
}

// buildGateway picks the outbound gateway and registers every decoder whose secret is known,
// so callbacks for transactions opened before a provider switch still reconcile. The
// self-signed sandbox decoder exists only while the sandbox provider runs in dev.
func buildGateway(cfg config.Config, rt *runtime) (policies.PaymentGateway, map[string]policies.NotificationDecoder, error) {
	decoders := map[string]policies.NotificationDecoder{}
	if cfg.SandboxEnabled() {
		decoders[gateway.ProviderSandbox] = gateway.SnapDecoder{Provider: gateway.ProviderSandbox, ServerKey: cfg.SandboxServerKey()}
	}
	if cfg.SnapServerKey != "" {
		decoders[gateway.ProviderSnap] = gateway.SnapDecoder{Provider: gateway.ProviderSnap, ServerKey: cfg.SnapServerKey}
	}
	if cfg.StripeWebhookKey != "" {
		decoders[gateway.ProviderStripe] = gateway.StripeDecoder{WebhookSecret: cfg.StripeWebhookKey}
	}

	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	switch cfg.PaymentProvider {
	case config.ProviderSnap:
		gw, err := gateway.NewSnap(cfg.SnapServerKey, gateway.SnapEnvironment(cfg.SnapProduction), nil, rt.logger)
		return gw, decoders, err
	case config.ProviderStripe:
		gw, err := gateway.NewStripe(gateway.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
			Timeout:    timeout,
			Logger:     rt.logger,
		})
		return gw, decoders, err
	case config.ProviderSandbox:
		if !cfg.SandboxEnabled() {
			return nil, nil, fmt.Errorf("sandbox payments are disabled in %q", cfg.Env)
		}
		return gateway.Sandbox{ServerKey: cfg.SandboxServerKey(), ReturnURL: cfg.SandboxReturnURL}, decoders, nil
	default:
		return nil, nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

// notificationProvider is the decoder behind POST /payments/notifications. Outside the dev
// sandbox it is always Snap, which answers unknown_provider when no Snap key is configured.
func notificationProvider(cfg config.Config) string {
	if cfg.SandboxEnabled() {
		return gateway.ProviderSandbox
	}
	return gateway.ProviderSnap
}

func (a *application) httpHandlers(rt *runtime) ginserver.Handlers {
	logger := rt.logger
	return ginserver.Handlers{
		Auth:     ginserver.AuthHandler{Service: a.auth, Logger: logger},
		Property: ginserver.PropertyHandler{Commands: a.commands, Queries: a.queries, Logger: logger},
		Cart:     ginserver.CartHandler{Commands: a.commands, Queries: a.queries, Logger: logger},
		Booking:  ginserver.BookingHandler{Commands: a.commands, Queries: a.queries, Logger: logger},
		Payment: ginserver.PaymentHandler{
			Commands: a.commands,
			Provider: notificationProvider(rt.cfg),
			Logger:   logger,
		},
		Review:         ginserver.ReviewsHandler{Commands: a.commands, Queries: a.queries, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Resolver: a.auth, Logger: logger}.Handle,
	}
}
