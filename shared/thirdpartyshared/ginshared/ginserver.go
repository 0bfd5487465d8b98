package ginshared

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewEngine returns a gin engine with panic recovery and a handler that renders
// the first recorded error as a 500 response.
func NewEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(context *gin.Context) {
		context.Next()
		var err error
		// handling first error to respond
		for _, v := range context.Errors {
			err = v
			break
		}
		if err != nil && !context.Writer.Written() {
			context.String(http.StatusInternalServerError, err.Error())
		}
	})
	return engine
}

// StartBareMetalGinServer serves engine on l in the background. The returned
// channel receives the serve error once the server stops.
func StartBareMetalGinServer(l net.Listener, engine *gin.Engine) (*http.Server, <-chan error) {
	server := &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		err := server.Serve(l)
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return server, errCh
}
