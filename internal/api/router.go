package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stayloop/rental-booking-backend/internal/auth"
	"github.com/stayloop/rental-booking-backend/internal/booking"
	bookingHttp "github.com/stayloop/rental-booking-backend/internal/booking/http"
	"github.com/stayloop/rental-booking-backend/internal/dispute"
	disputeHttp "github.com/stayloop/rental-booking-backend/internal/dispute/http"
	"github.com/stayloop/rental-booking-backend/internal/notification"
	notificationHttp "github.com/stayloop/rental-booking-backend/internal/notification/http"
	"github.com/stayloop/rental-booking-backend/internal/photo"
	photoHttp "github.com/stayloop/rental-booking-backend/internal/photo/http"
	"github.com/stayloop/rental-booking-backend/internal/property"
	propertyHttp "github.com/stayloop/rental-booking-backend/internal/property/http"
	"github.com/stayloop/rental-booking-backend/internal/refund"
	refundHttp "github.com/stayloop/rental-booking-backend/internal/refund/http"
	"github.com/stayloop/rental-booking-backend/internal/unit"
	unitHttp "github.com/stayloop/rental-booking-backend/internal/unit/http"
	"github.com/stayloop/rental-booking-backend/internal/user"
	userHttp "github.com/stayloop/rental-booking-backend/internal/user/http"
)

// Config carries everything the router needs to assemble the API surface.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	UserService         user.Service
	PropertyService     property.Service
	UnitService         unit.Service
	BookingService      booking.Service
	DisputeService      dispute.Service
	RefundService       refund.Service
	NotificationService notification.Service
	PhotoService        photo.Service

	JWTManager *auth.JWTManager
}

// NewRouter assembles middleware (CORS, logging, auth) and registers every
// module's routes under /v1.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		corsConfig.AllowOrigins = []string{cfg.ProdOrigins}
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}
	r.Use(cors.New(corsConfig))

	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	adminMiddleware := RequireAdmin(cfg.UserService)

	userHandler := userHttp.NewUserHandler(cfg.UserService, cfg.JWTManager)
	propertyHandler := propertyHttp.NewHandler(cfg.PropertyService, cfg.UserService)
	unitHandler := unitHttp.NewHandler(cfg.UnitService, cfg.UserService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.UserService)
	disputeHandler := disputeHttp.NewHandler(cfg.DisputeService, cfg.UserService)
	refundHandler := refundHttp.NewHandler(cfg.RefundService)
	notificationHandler := notificationHttp.NewHandler(cfg.NotificationService)
	photoHandler := photoHttp.NewHandler(cfg.PhotoService, cfg.UserService)

	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware, adminMiddleware)
		propertyHttp.RegisterRoutes(v1, propertyHandler, authMiddleware)
		unitHttp.RegisterRoutes(v1, unitHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
		disputeHttp.RegisterRoutes(v1, disputeHandler, authMiddleware, adminMiddleware)
		refundHttp.RegisterRoutes(v1, refundHandler, authMiddleware, adminMiddleware)
		notificationHttp.RegisterRoutes(v1, notificationHandler, authMiddleware)
		photoHttp.RegisterRoutes(v1, photoHandler, authMiddleware)
	}

	return r
}
