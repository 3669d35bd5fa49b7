package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/floroz/commerce/internal/auction"
	"github.com/floroz/commerce/internal/infra/ratelimit"
	"github.com/floroz/commerce/internal/users"
	"github.com/floroz/commerce/pkg/auth"
)

const sessionCookie = "session"

// AuctionService is the part of auction.AuctionService the site uses
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd auction.CreateAuctionCommand) (*auction.Auction, error)
	PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Bid, error)
	CloseAuction(ctx context.Context, cmd auction.CloseAuctionCommand) (bool, error)
	ToggleWatchlist(ctx context.Context, cmd auction.WatchlistCommand) (bool, error)
	ListWatchlist(ctx context.Context, userID uuid.UUID) ([]*auction.AuctionSummary, error)
	AddComment(ctx context.Context, cmd auction.AddCommentCommand) (*auction.Comment, error)
	ListCategories(ctx context.Context) ([]*auction.CategorySummary, error)
	Categories(ctx context.Context) ([]*auction.Category, error)
	ListActiveAuctions(ctx context.Context) ([]*auction.AuctionSummary, error)
	ListCategoryAuctions(ctx context.Context, name string) (*auction.Category, []*auction.AuctionSummary, error)
	GetListing(ctx context.Context, auctionID uuid.UUID, viewerID *uuid.UUID) (*auction.Listing, error)
}

// UserService handles accounts
type UserService interface {
	Register(ctx context.Context, cmd users.RegisterCommand) (*users.User, error)
	Login(ctx context.Context, username, password string) (*users.User, error)
}

// SessionStore creates and ends login sessions
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, username string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// TokenIssuer signs the token stored in the session cookie
type TokenIssuer interface {
	IssueToken(userID uuid.UUID, username, sessionID string) (string, time.Time, error)
}

// Authenticator resolves a session token to its claims
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// RateLimiter counts requests per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// Deps are the collaborators of the site. Limiter may be nil.
type Deps struct {
	Auctions     AuctionService
	Users        UserService
	Sessions     SessionStore
	Tokens       TokenIssuer
	Authn        Authenticator
	Limiter      RateLimiter
	Logger       logrus.FieldLogger
	CookieSecure bool
}

// Server serves the HTML marketplace
type Server struct {
	auctions     AuctionService
	users        UserService
	sessions     SessionStore
	tokens       TokenIssuer
	authn        Authenticator
	limiter      RateLimiter
	logger       logrus.FieldLogger
	cookieSecure bool
}

func NewServer(deps Deps) *Server {
	return &Server{
		auctions:     deps.Auctions,
		users:        deps.Users,
		sessions:     deps.Sessions,
		tokens:       deps.Tokens,
		authn:        deps.Authn,
		limiter:      deps.Limiter,
		logger:       deps.Logger,
		cookieSecure: deps.CookieSecure,
	}
}

// NewEngine builds a gin engine with recovery, request ids, access logging
// and the page templates installed.
func NewEngine(logger logrus.FieldLogger) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	renderer, err := newPageRenderer()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RealIP())
	r.Use(RequestLogger(logger))
	r.HTMLRender = renderer
	return r, nil
}

// Register mounts the site routes on r
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	site := r.Group("/", s.loadSession(), s.rateLimit())
	site.GET("/", s.index)
	site.GET("/login", s.loginPage)
	site.POST("/login", s.login)
	site.GET("/logout", s.logout)
	site.GET("/register", s.registerPage)
	site.POST("/register", s.register)
	site.GET("/categories", s.categories)
	site.GET("/:slug", s.listingOrCategory)

	member := site.Group("/", s.requireUser())
	member.GET("/create", s.createPage)
	member.POST("/create", s.create)
	member.GET("/watchlist", s.watchlist)
	member.POST("/add_bid/:id", s.addBid)
	member.POST("/edit_watchlist/:id", s.editWatchlist)
	member.POST("/close_auction/:id", s.closeAuction)
	member.POST("/add_comment/:id", s.addComment)
}

func (s *Server) render(c *gin.Context, status int, page string, data gin.H) {
	if claims, ok := auth.GetUserClaims(c.Request.Context()); ok {
		data["User"] = claims
	}
	if _, ok := data["Message"]; !ok {
		data["Message"] = ""
	}
	c.HTML(status, page, data)
}

func (s *Server) renderError(c *gin.Context, status int, title, message string) {
	s.render(c, status, "error", gin.H{"Title": title, "Message": message})
}

func (s *Server) notFound(c *gin.Context) {
	s.renderError(c, http.StatusNotFound, "Not found", "The page you requested does not exist.")
}

func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	s.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("request failed")
	s.renderError(c, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
}

func (s *Server) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(time.Until(expiresAt).Seconds()), "/", "", s.cookieSecure, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cookieSecure, true)
}

// currentUser returns the signed-in user id; handlers behind requireUser can rely on ok
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	return auth.GetUserID(c.Request.Context())
}

// safeNext only allows redirects to local paths
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// sentence formats an error for display: capitalized and ending with a period
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func isNotFound(err error) bool {
	return errors.Is(err, auction.ErrAuctionNotFound) || errors.Is(err, auction.ErrCategoryNotFound)
}
