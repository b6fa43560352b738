package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/carbooking/api"
	"github.com/Domenick1991/carbooking/config"
	"github.com/gin-gonic/gin"
)

// Run starts the HTTP server for the UI layer and blocks until the context
// is cancelled or the server fails.
func Run(ctx context.Context, cfg *config.Config, handler *api.BookingHandler) error {
	router := gin.New()
	router.Use(gin.Recovery())

	handler.Register(router.Group("/api/v1"))

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs", func(c *gin.Context) {
			renderSwaggerUI(c, "/swagger/carbooking.swagger.json")
		})
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

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

func renderSwaggerUI(c *gin.Context, jsonURL string) {
	html := fmt.Sprintf(`<!DOCTYPE html>
    <html>
    <head>
        <title>API Docs</title>
        <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@latest/swagger-ui.css">
    </head>
    <body>
        <div id="swagger-ui"></div>
        <script src="https://unpkg.com/swagger-ui-dist@latest/swagger-ui-bundle.js"></script>
        <script>
            window.onload = function() {
                window.ui = SwaggerUIBundle({
                    url: "%s",
                    dom_id: '#swagger-ui'
                });
            };
        </script>
    </body>
    </html>`, jsonURL)

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
