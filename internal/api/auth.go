package api

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/logger"
)

const (
	SessionCookieName = "third_strike_session"
	SessionDuration   = 12 * time.Hour

	// Cookie settings
	CookieSecure   = false // Set to true when served over HTTPS
	CookieHTTPOnly = true
	CookieSameSite = http.SameSiteLaxMode

	// AnySeat marks a session allowed to drive both players.
	AnySeat = -1
)

var (
	ErrBadToken  = errors.New("invalid control token")
	ErrBadSeat   = errors.New("seat must be -1, 0 or 1")
	ErrBadCookie = errors.New("invalid session cookie")
)

// ControlSession grants the right to send input and reset the match.
// A session bound to a seat may only drive that player.
type ControlSession struct {
	Seat      int       `json:"seat"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CanDrive reports whether the session may send input for player.
func (s *ControlSession) CanDrive(player int) bool {
	return s.Seat == AnySeat || s.Seat == player
}

// SessionManager issues signed session cookies to clients that present the
// shared control token.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ControlSession

	token     []byte
	secretKey []byte // Signs cookies; regenerated per process
	log       logrus.FieldLogger

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a manager for token and starts expiring old
// sessions in the background. Call Stop to release it.
func NewSessionManager(token string, log logrus.FieldLogger) *SessionManager {
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(errors.Wrap(err, "generate session key"))
	}

	sm := &SessionManager{
		sessions:  make(map[string]*ControlSession),
		token:     []byte(token),
		secretKey: secretKey,
		log:       logger.OrDiscard(log),
		stopChan:  make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// Stop ends the cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stopChan) })
}

// CreateSession checks token and opens a session for seat.
func (sm *SessionManager) CreateSession(token string, seat int) (string, *ControlSession, error) {
	if !hmac.Equal([]byte(token), sm.token) {
		return "", nil, ErrBadToken
	}
	if seat < AnySeat || seat > 1 {
		return "", nil, errors.Wrapf(ErrBadSeat, "seat %d", seat)
	}

	now := time.Now()
	id := generateSessionID()
	session := &ControlSession{
		Seat:      seat,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[id] = session
	sm.mu.Unlock()

	sm.log.WithField("seat", seat).Info("control session created")
	return id, session, nil
}

// GetSession returns a live session by ID.
func (sm *SessionManager) GetSession(id string) *ControlSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, ok := sm.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil
	}
	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
}

// ValidateSession returns the request's session, or nil.
func (sm *SessionManager) ValidateSession(r *http.Request) *ControlSession {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	id, err := sm.decodeCookie(cookie.Value)
	if err != nil {
		return nil
	}
	return sm.GetSession(id)
}

// SetSessionCookie sets the session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sm.encodeCookie(id),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: CookieHTTPOnly,
		Secure:   CookieSecure,
		SameSite: CookieSameSite,
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: CookieHTTPOnly,
		Secure:   CookieSecure,
		SameSite: CookieSameSite,
	})
}

// encodeCookie returns base64(id.hmac(id)).
func (sm *SessionManager) encodeCookie(id string) string {
	return base64.URLEncoding.EncodeToString([]byte(id + "." + sm.sign(id)))
}

func (sm *SessionManager) decodeCookie(value string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", errors.Wrap(ErrBadCookie, "encoding")
	}

	id, sig, ok := strings.Cut(string(decoded), ".")
	if !ok {
		return "", errors.Wrap(ErrBadCookie, "format")
	}
	if !hmac.Equal([]byte(sig), []byte(sm.sign(id))) {
		return "", errors.Wrap(ErrBadCookie, "signature")
	}
	return id, nil
}

func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopChan:
			return
		case now := <-ticker.C:
			sm.expire(now)
		}
	}
}

func (sm *SessionManager) expire(now time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
}

func generateSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type sessionKey struct{}

// sessionFrom returns the session RequireSession stored, or nil when
// authentication is disabled.
func sessionFrom(ctx context.Context) *ControlSession {
	s, _ := ctx.Value(sessionKey{}).(*ControlSession)
	return s
}

// RequireSession rejects requests without a valid session cookie.
func (sm *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sm.ValidateSession(r)
		if session == nil {
			RecordConnectionRejected("unauthorized")
			writeError(w, "control session required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// AuthStatus is the body of GET /api/session.
type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	Seat          int   `json:"seat"`
	ExpiresAt     int64 `json:"expires_at,omitempty"`
}

func statusOf(s *ControlSession) AuthStatus {
	if s == nil {
		return AuthStatus{Seat: AnySeat}
	}
	return AuthStatus{Authenticated: true, Seat: s.Seat, ExpiresAt: s.ExpiresAt.Unix()}
}

// HandleLogin exchanges the control token for a session cookie.
func (sm *SessionManager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		Seat  *int   `json:"seat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	seat := AnySeat
	if req.Seat != nil {
		seat = *req.Seat
	}

	id, session, err := sm.CreateSession(req.Token, seat)
	switch {
	case errors.Is(err, ErrBadToken):
		RecordConnectionRejected("unauthorized")
		writeError(w, err.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sm.SetSessionCookie(w, id)
	writeJSON(w, statusOf(session))
}

// HandleAuthStatus returns current auth status
func (sm *SessionManager) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusOf(sm.ValidateSession(r)))
}

// HandleLogout ends the session.
func (sm *SessionManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if id, err := sm.decodeCookie(cookie.Value); err == nil {
			sm.DeleteSession(id)
		}
	}
	sm.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
