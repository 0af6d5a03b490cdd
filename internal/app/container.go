package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stayloop/rental-booking-backend/internal/api"
	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/booking"
	"github.com/stayloop/rental-booking-backend/internal/cache"
	"github.com/stayloop/rental-booking-backend/internal/config"
	"github.com/stayloop/rental-booking-backend/internal/db"
	"github.com/stayloop/rental-booking-backend/internal/dispute"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	"github.com/stayloop/rental-booking-backend/internal/payment"
	"github.com/stayloop/rental-booking-backend/internal/photo"
	"github.com/stayloop/rental-booking-backend/internal/pkg/storage"
	"github.com/stayloop/rental-booking-backend/internal/property"
	"github.com/stayloop/rental-booking-backend/internal/refund"
	"github.com/stayloop/rental-booking-backend/internal/unit"
	"github.com/stayloop/rental-booking-backend/internal/user"
)

// Container holds the initialized components needed outside the wiring:
// the router to serve and the booking service for the expiry sweeper.
type Container struct {
	Router         *gin.Engine
	BookingService booking.Service
	JWTManager     *auth.JWTManager

	PaymentTTL    time.Duration
	SweepInterval time.Duration
}

// NewContainer initializes every module and wires them together. Nothing in
// the codebase reaches for globals; all dependencies flow through here.
func NewContainer(cfg *config.Config, pool *pgxpool.Pool) (*Container, error) {
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	txRunner := db.NewTxRunner(pool)
	bookingCache := cache.New(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.CacheTTL)

	gateway := payment.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey)

	photoStore, err := storage.NewLocalStorage(cfg.PhotoDir)
	if err != nil {
		return nil, fmt.Errorf("init photo storage: %w", err)
	}

	// User module
	userRepo := user.NewPgxRepository(pool)
	userService := user.NewService(userRepo, passwordHasher)

	// Notification module
	notifRepo := notification.NewPgxRepository(pool)
	var publisher notification.Publisher
	if cfg.AMQPURL != "" {
		publisher = notification.NewAMQPPublisher(cfg.AMQPURL)
	}
	notifService := notification.NewService(notifRepo, publisher)

	// Property module
	propRepo := property.NewPgxRepository(pool)
	propService := property.NewService(propRepo)

	// Unit module
	unitRepo := unit.NewPgxRepository(pool)
	unitService := unit.NewService(unitRepo, propService)

	// Payment module
	txnRepo := payment.NewPgxRepository(pool)

	// Refund module
	refundRepo := refund.NewPgxRepository(pool)
	refundService := refund.NewService(refundRepo, txnRepo, gateway, notifService)

	// Booking module
	bookingRepo := booking.NewPgxRepository(pool)
	bookingService := booking.NewService(
		bookingRepo, unitRepo, unitService, txnRepo, refundRepo,
		gateway, notifService, txRunner, bookingCache, cfg.GatewayCallback,
	)

	// Dispute module
	disputeRepo := dispute.NewPgxRepository(pool)
	disputeService := dispute.NewService(
		disputeRepo, bookingRepo, unitRepo, txnRepo, refundRepo,
		refundService, notifService, txRunner,
	)

	// Photo module
	photoRepo := photo.NewPgxRepository(pool)
	photoService := photo.NewService(photoRepo, propService, photoStore)

	router := api.NewRouter(api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		UserService:         userService,
		PropertyService:     propService,
		UnitService:         unitService,
		BookingService:      bookingService,
		DisputeService:      disputeService,
		RefundService:       refundService,
		NotificationService: notifService,
		PhotoService:        photoService,
		JWTManager:          jwtManager,
	})

	return &Container{
		Router:         router,
		BookingService: bookingService,
		JWTManager:     jwtManager,
		PaymentTTL:     cfg.BookingPaymentTTL,
		SweepInterval:  cfg.SweepInterval,
	}, nil
}
