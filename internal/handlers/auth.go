package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/infoescom/backend/pkg/mailer"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userRepository  repositories.UserRepository
	mail            mailer.Mailer
	jwtSecret       string
	frontendBaseURL string
	log             zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, mail mailer.Mailer, jwtSecret, frontendBaseURL string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userRepository:  userRepo,
		mail:            mail,
		jwtSecret:       jwtSecret,
		frontendBaseURL: frontendBaseURL,
		log:             log,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.GET("/verify-email", h.VerifyEmail)
}

// Signup registers a new unverified account and mails a verification link.
// Signing up again with an unverified account re-sends the link instead of
// conflicting.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if !models.ValidOrgEmail(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Email must belong to the ipn.mx domain")
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown role")
	}

	existing, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err == nil {
		if existing.Verified {
			return echo.NewHTTPError(http.StatusConflict, "User already exists")
		}
		// Unverified duplicate signup: re-send the verification link.
		if err := h.sendVerificationMail(existing); err != nil {
			h.log.Error().Err(err).Str("email", existing.Email).Msg("failed to re-send verification mail")
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "User already exists but is not verified. The verification mail has been re-sent.",
		})
	} else if err != repositories.ErrNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
		Verified: false,
	}
	if req.Area != "" {
		areaID, err := primitive.ObjectIDFromHex(req.Area)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
		}
		user.Area = &areaID
	}

	if err := h.userRepository.CreateUser(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.sendVerificationMail(user); err != nil {
		h.log.Error().Err(err).Str("email", user.Email).Msg("failed to send verification mail")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered. Check your mail to verify the account.",
	})
}

// Login authenticates a verified account and issues a JWT.
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusBadRequest, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !user.Verified {
		return echo.NewHTTPError(http.StatusBadRequest,
			"The account has not been verified. Check your mail, or sign up again if the link expired.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Wrong password")
	}

	token, err := h.generateLoginToken(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
			"area":  user.Area,
		},
	})
}

// VerifyEmail validates the mailed token and flags the account verified.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Verification token not provided")
	}

	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired token")
	}

	if err := h.userRepository.SetVerified(c.Request().Context(), claims.UserID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Your account has been verified. You can now log in.",
	})
}

// generateLoginToken issues the 24h session token carrying id and role.
func (h *AuthHandler) generateLoginToken(user *models.User) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}

// sendVerificationMail issues a short-lived token and mails the activation
// link. The 5 minute window matches the re-signup flow above.
func (h *AuthHandler) sendVerificationMail(user *models.User) error {
	claims := &models.JwtCustomClaims{
		UserID: user.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", h.frontendBaseURL, token)
	body := fmt.Sprintf("Hola %s,\n\nPara activar tu cuenta, haz clic en el siguiente enlace:\n%s\n\nSi no solicitaste esta cuenta, ignora este mensaje.",
		user.Name, link)
	return h.mail.Send(user.Email, "Verifica tu cuenta en InfoEscom", body)
}
