package httpserver

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chadiek/frontdesk/internal/booking"
	"github.com/chadiek/frontdesk/internal/config"
	"github.com/chadiek/frontdesk/internal/rtc"
	"github.com/chadiek/frontdesk/internal/telephony"
)

// Server bundles the Echo router with the call handler and its dependencies.
type Server struct {
	Echo *echo.Echo
}

// New wires routes: health, WebRTC offer/answer over HTTP, WebSocket
// signaling, and the Twilio phone entry point.
func New(cfg config.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	var store booking.Store
	var recordings telephony.RecordingStore
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		sb, err := booking.NewSupabaseStore(booking.SupabaseConfig{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			Table:          cfg.SupabaseTable,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("supabase unavailable, bookings will be log-only: %v", err)
		} else {
			store = sb
			recordings = sb
		}
	}
	if store == nil {
		store = booking.LogStore{}
	}

	h := rtc.NewHandler(rtc.Config{
		AssemblyAIKey:   cfg.AssemblyAIKey,
		CerebrasKey:     cfg.CerebrasKey,
		CerebrasModel:   cfg.CerebrasModelID,
		ElevenLabsKey:   cfg.ElevenLabsKey,
		ElevenLabsVoice: cfg.ElevenLabsVoiceID,
		DeepgramKey:     cfg.DeepgramKey,
		DeepgramModel:   cfg.DeepgramModelID,
		Store:           store,
	})

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.POST("/call", func(c echo.Context) error {
		var offer rtc.SessionDescription
		if err := c.Bind(&offer); err != nil {
			log.Printf("invalid offer: %v", err)
			return c.NoContent(http.StatusBadRequest)
		}
		answer, err := h.HandleOffer(c.Request().Context(), offer)
		if err != nil {
			log.Printf("webrtc handle offer failed: %v", err)
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, answer)
	})

	e.GET("/session", func(c echo.Context) error {
		h.ServeWebSocket(c.Response(), c.Request(), cfg.ICEServersJSON, cfg.AuthPassword)
		return nil
	})

	if cfg.TwilioAccountSID != "" && recordings != nil {
		phone := telephony.New(telephony.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
		}, recordings)
		phone.RegisterHandlers(e)
	}

	return &Server{Echo: e}
}
