package fakebackend

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/you/chefkix/domain"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AddUser registers an account that can log in with identifier and password
func (s *Server) AddUser(user domain.User, identifier, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[identifier] = &account{user: user, passwordHash: string(hash)}
}

// IssueTokens mints a token pair for userID, as a login would
func (s *Server) IssueTokens(userID string) domain.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

// IssueAccessToken mints an access token with an explicit lifetime
func (s *Server) IssueAccessToken(userID string, ttl time.Duration) string {
	token, err := s.sign(userID, ttl)
	if err != nil {
		panic(err)
	}
	return token
}

// RevokeRefreshTokens invalidates every refresh token, as a server-side logout-all would
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

func (s *Server) issueLocked(userID string) domain.Credential {
	access, err := s.sign(userID, s.accessTTL)
	if err != nil {
		panic(err)
	}
	refresh := generateJTI()
	s.refreshTokens[refresh] = userID
	return domain.Credential{AccessToken: access, RefreshToken: refresh}
}

func (s *Server) sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": generateJTI(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func generateJTI() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Identifier]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.mu.Lock()
	cred := s.issueLocked(acc.user.ID)
	s.mu.Unlock()

	user := acc.user
	respond(c, http.StatusOK, gin.H{
		"accessToken":  cred.AccessToken,
		"refreshToken": cred.RefreshToken,
		"user":         user,
	})
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		fail(c, http.StatusBadRequest, "refreshToken required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	delete(s.refreshTokens, req.RefreshToken)
	cred := s.issueLocked(userID)

	respond(c, http.StatusOK, gin.H{
		"accessToken":  cred.AccessToken,
		"refreshToken": cred.RefreshToken,
	})
}

func (s *Server) logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()

	respond(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// withJWT validates the bearer token and stores the user id in the context
func (s *Server) withJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			fail(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, domain.ErrTokenMalformed
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			fail(c, http.StatusUnauthorized, "Token expired or invalid")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set("user_id", sub)
		c.Next()
	}
}
