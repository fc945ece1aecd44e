package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agnosto/fbtweeter/db/models"
	dbservice "github.com/agnosto/fbtweeter/db/service"
	"github.com/agnosto/fbtweeter/publish"
	"github.com/agnosto/fbtweeter/service"
)

const (
	defaultPendingLimit = 20
	maxPendingLimit     = 200
)

// Runner triggers a pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (service.RunResult, error)
}

type Server struct {
	// RunToken is the bearer token POST /run requires. Empty disables the endpoint.
	RunToken string

	runner    Runner
	openStore publish.StoreOpener
	logger    *log.Logger
	started   time.Time
}

func New(runner Runner, openStore publish.StoreOpener, logger *log.Logger) *Server {
	return &Server{runner: runner, openStore: openStore, logger: logger, started: time.Now()}
}

// Router builds the gin engine. mode is a gin mode name ("release", "debug", "test").
func (s *Server) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.health)
	router.GET("/posts/pending", s.pending)
	router.POST("/run", s.requireToken(), s.run)
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr, mode string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(mode),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Status server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Printf("Status server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.RunToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "run endpoint disabled, set STATUS_TOKEN to enable it"})
			return
		}
		got := c.GetHeader("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte("Bearer "+s.RunToken)) != 1 {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) pending(c *gin.Context) {
	limit := defaultPendingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxPendingLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxPendingLimit)})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	repo, err := s.openStore(ctx)
	if err != nil {
		s.logger.Printf("Error opening store: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	defer func() {
		if cerr := repo.Close(ctx); cerr != nil {
			s.logger.Printf("Error closing store: %v", cerr)
		}
	}()

	records, err := dbservice.NewPostService(repo).Pending(ctx, limit)
	if err != nil {
		s.logger.Printf("Error listing pending posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if records == nil {
		records = []models.PostRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "posts": records})
}

func (s *Server) run(c *gin.Context) {
	res, err := s.runner.RunOnce(c.Request.Context())
	body := gin.H{
		"run_id":   res.RunID,
		"fetched":  res.Fetched,
		"kept":     res.Kept,
		"inserted": res.Inserted,
		"shared":   res.Shared,
	}
	if res.Next != nil {
		body["post_id"] = res.Next.ID
	}
	if res.TweetID != "" {
		body["tweet_id"] = res.TweetID
	}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusBadGateway, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
