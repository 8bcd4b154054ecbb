package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "appraisal_go_backend/internal/errors"
	"appraisal_go_backend/internal/models"
	"appraisal_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenManager issues and verifies HS256 signed session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims is the subset of token claims the API relies on.
type Claims struct {
	UserID   string
	Username string
	Role     string
}

func (m *TokenManager) IssueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   user.ID,
		"username": user.Username,
		"role":     user.Role,
		"iat":      m.now().Unix(),
		"exp":      m.now().Add(m.ttl).Unix(),
	})
	return token.SignedString(m.secret)
}

func (m *TokenManager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return nil, errors.New("token has no user id")
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return &Claims{UserID: userID, Username: username, Role: role}, nil
}

func SetupRoutes(r *gin.Engine, userService *services.UserService, tokens *TokenManager) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", registerHandler(userService, tokens))
		auth.POST("/login", loginHandler(userService, tokens))
		auth.GET("/user", AuthMiddleware(tokens, userService), getUser)
	}
}

// AuthMiddleware requires a valid bearer token and stores the matching
// *models.User under "user". WebSocket upgrades may pass the token as the
// "token" query parameter instead.
func AuthMiddleware(tokens *TokenManager, userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := zerolog.Ctx(c.Request.Context())

		var token string
		if websocket.IsWebSocketUpgrade(c.Request) && c.Query("token") != "" {
			token = c.Query("token")
		} else {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				apperrors.HandleError(c, apperrors.New401Error("Authorization header is required"))
				return
			}
			bearerToken := strings.Fields(authHeader)
			if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
				apperrors.HandleError(c, apperrors.New401Error("Invalid authorization header"))
				return
			}
			token = bearerToken[1]
		}

		claims, err := tokens.VerifyToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("Token verification failed")
			apperrors.HandleError(c, apperrors.New401Error("Token is not valid"))
			return
		}

		user, err := userService.GetUser(c.Request.Context(), claims.UserID)
		if errors.Is(err, services.ErrUserNotFound) {
			apperrors.HandleError(c, apperrors.New401Error("Token is not valid"))
			return
		}
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	userModel, ok := user.(*models.User)
	return userModel, ok
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func authResponse(message, token string, user *models.User) gin.H {
	return gin.H{
		"message": message,
		"token":   token,
		"user": userSummary{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	}
}

func registerHandler(userService *services.UserService, tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request services.RegisterRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body").WithInternal(err))
			return
		}

		user, err := userService.Register(c.Request.Context(), request)
		if errors.Is(err, services.ErrUserExists) {
			apperrors.HandleError(c, apperrors.New400Error("User already exists"))
			return
		}
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		token, err := tokens.IssueToken(user)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		c.JSON(http.StatusCreated, authResponse("User created successfully", token, user))
	}
}

func loginHandler(userService *services.UserService, tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request services.LoginRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body").WithInternal(err))
			return
		}

		user, err := userService.Login(c.Request.Context(), request)
		if errors.Is(err, services.ErrInvalidCredentials) {
			apperrors.HandleError(c, apperrors.New400Error("Invalid credentials"))
			return
		}
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		token, err := tokens.IssueToken(user)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		c.JSON(http.StatusOK, authResponse("Login successful", token, user))
	}
}

func getUser(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error("User not found in context"))
		return
	}
	c.JSON(http.StatusOK, user)
}
