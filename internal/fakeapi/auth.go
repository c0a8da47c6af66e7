package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = time.Hour

// Claims holds JWT token claims.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AddUser registers an account and returns it.
func (s *Server) AddUser(email, password string, plan models.Plan) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: hash password: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	u := models.User{
		ID:        fmt.Sprintf("user-%d", s.seq),
		Email:     email,
		Username:  strings.SplitN(email, "@", 2)[0],
		Plan:      plan,
		CreatedAt: s.now().UTC(),
	}
	s.accounts[strings.ToLower(email)] = &account{user: u, password: string(hash)}
	return u
}

// IssueToken signs a token for userID valid for ttl. A negative ttl yields
// an expired token.
func (s *Server) IssueToken(userID, email string, ttl time.Duration) string {
	now := s.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fakeapi",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: sign token: %v", err))
	}
	return token
}

func (s *Server) validateToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("missing token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// currentUserLocked resolves the caller: the token subject when a valid
// token is sent, else the first registered account.
func (s *Server) currentUserLocked(r *http.Request) (*account, bool) {
	if claims, err := s.validateToken(extractToken(r)); err == nil {
		for _, a := range s.accounts {
			if a.user.ID == claims.Subject {
				return a, true
			}
		}
		return nil, false
	}
	if s.auth || len(s.accounts) == 0 {
		return nil, false
	}
	emails := make([]string, 0, len(s.accounts))
	for e := range s.accounts {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return s.accounts[emails[0]], true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": "1.0"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendError(w, http.StatusBadRequest, "email and password required")
		return
	}

	s.mu.Lock()
	acct := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.password), []byte(req.Password)) != nil {
		logging.Debug("fakeapi: login failed", zap.String("email", req.Email))
		s.sendError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := s.IssueToken(acct.user.ID, acct.user.Email, TokenTTL)
	s.mu.Lock()
	user := s.userDocLocked(acct)
	s.mu.Unlock()
	sendData(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.currentUserLocked(r)
	if !ok {
		s.sendError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sendData(w, http.StatusOK, map[string]any{"user": s.userDocLocked(acct)})
}

func (s *Server) userDocLocked(a *account) map[string]any {
	var files, folders int
	for _, e := range s.entries {
		if e.trashed {
			continue
		}
		if e.kind == models.KindFolder {
			folders++
		} else {
			files++
		}
	}
	return map[string]any{
		"id":          a.user.ID,
		"email":       a.user.Email,
		"username":    a.user.Username,
		"plan":        string(a.user.Plan),
		"storageUsed": s.storageUsedLocked(),
		"fileCount":   files,
		"folderCount": folders,
		"createdAt":   a.user.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	var env protocol.ErrorEnvelope
	env.Error.Message = message
	sendJSON(w, code, env)
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendData(w http.ResponseWriter, code int, data any) {
	sendJSON(w, code, map[string]any{"success": true, "data": data})
}
