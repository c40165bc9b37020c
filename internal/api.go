package fsrpad

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReader provides the current pad status.
type StatusReader interface {
	Status() Status
}

// NewRouter returns the HTTP API.
func NewRouter(pad StatusReader) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/v1/pad.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, pad.Status())
	})

	r.GET("/api/v1/config.json", func(c *gin.Context) {
		s, err := LoadSettings()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, s)
	})
	r.POST("/api/v1/config.json", func(c *gin.Context) {
		s, err := LoadSettings()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}

		if err := c.BindJSON(&s); err != nil {
			log.Warn("Failed to bind config", "error", err)
			return
		}

		if err := SaveSettings(s); err != nil {
			if errors.Is(err, ErrInvalidConfig) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("failed to save config: %w", err))
			return
		}
		c.JSON(http.StatusOK, s)
	})

	r.GET("/api/v1/preview.jpg", func(c *gin.Context) {
		jpeg := loadPreview()
		if len(jpeg) == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		c.DataFromReader(http.StatusOK, int64(len(jpeg)), "image/jpeg", bytes.NewReader(jpeg), map[string]string{})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunApi serves the HTTP API on addr until ctx is cancelled.
func RunApi(ctx context.Context, addr string, verbose bool, pad StatusReader) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(pad),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving API", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
