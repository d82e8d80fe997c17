package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/accapool/internal/adapters/auth"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const claimsKey = "claims"

// TokenValidator valida un bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// requireAuth valida "Authorization: Bearer <token>" y deja los claims en el contexto.
func requireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expected: Bearer <token>"})
			return
		}

		claims, err := v.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireOperator deja pasar solo tokens con rol operator.
func requireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok || !claims.IsOperator() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator role required"})
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func participantID(c *gin.Context) string {
	if claims, ok := claimsFrom(c); ok {
		return claims.ParticipantID()
	}
	return ""
}

// participantLimiter mantiene un token bucket por participante.
type participantLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newParticipantLimiter(rps float64, burst int) *participantLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &participantLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *participantLimiter) get(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[id] = lim
	}
	return lim
}

// rateLimit corta con 429 cuando un participante excede su cuota.
func (l *participantLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := participantID(c)
		if id == "" {
			id = c.ClientIP()
		}
		if !l.get(id).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// HTTPObserver recibe la latencia de cada request.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, elapsed time.Duration)
}

func observe(o HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		o.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
