package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/api"
	"github.com/voyagehq/bookingcore/config"
)

type Handlers struct {
	Bookings *api.BookingHandler
	Disputes *api.DisputeHandler
	Refunds  *api.RefundHandler
	Stats    *api.StatsHandler
	Audit    *api.AuditHandler
}

// Run starts the HTTP server and blocks until the context is cancelled or the
// server fails. Shutdown drains in-flight requests for up to 5 seconds.
func Run(ctx context.Context, cfg *config.Config, h Handlers, log *logrus.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h.Bookings.Register(router.Group("/bookings"))
	h.Disputes.Register(router.Group("/disputes"))
	h.Refunds.Register(router.Group("/refunds"))
	h.Stats.Register(router.Group("/stats"))
	h.Audit.Register(router.Group("/audit"))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.HTTP.Address).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
