package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/infoescom/backend/pkg/mailer"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles HTTP requests related to accounts
type UserHandler struct {
	userRepository  repositories.UserRepository
	areaRepository  repositories.AreaRepository
	mail            mailer.Mailer
	jwtSecret       string
	frontendBaseURL string
	log             zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, areaRepo repositories.AreaRepository, mail mailer.Mailer, jwtSecret, frontendBaseURL string, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		userRepository:  userRepo,
		areaRepository:  areaRepo,
		mail:            mail,
		jwtSecret:       jwtSecret,
		frontendBaseURL: frontendBaseURL,
		log:             log,
	}
}

// RegisterUserRoutes registers account routes. Password recovery and the
// bootstrap create are public; everything else needs a token, and the
// account administration routes need the admin role on top.
func (h *UserHandler) RegisterUserRoutes(g *echo.Group, authn echo.MiddlewareFunc) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	g.GET("/me", h.GetProfile, authn)
	g.PATCH("/me", h.UpdateProfile, authn)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)
	g.GET("", h.GetUsers, authn, adminOnly)
	g.POST("", h.CreateUser)
	g.PATCH("/:id", h.UpdateUser, authn, adminOnly)
	g.DELETE("/:id", h.DeleteUser, authn, adminOnly)
}

// GetProfile retrieves the authenticated user's own record.
func (h *UserHandler) GetProfile(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	user, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's name and/or password. Email
// is immutable.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		user.Name = req.Name
		if err := h.userRepository.UpdateUser(c.Request().Context(), user); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
		}
		if err := h.userRepository.SetPassword(c.Request().Context(), claims.UserID, string(hashed)); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated", "user": user})
}

// ForgotPassword mails a reset link with a one-hour token.
func (h *UserHandler) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
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
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	claims := &models.JwtCustomClaims{
		UserID: user.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", h.frontendBaseURL, token)
	body := fmt.Sprintf("Para restablecer tu contraseña, haz clic en el siguiente enlace: %s\nEl enlace expirará en 1 hora.", link)
	if err := h.mail.Send(user.Email, "Recuperación de Contraseña", body); err != nil {
		h.log.Error().Err(err).Str("email", user.Email).Msg("failed to send reset mail")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to send recovery mail")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Recovery mail sent"})
}

// ResetPassword validates the mailed token and replaces the credential.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(req.Token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	if err := h.userRepository.SetPassword(c.Request().Context(), claims.UserID, string(hashed)); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Password updated"})
}

// EnrichedUser is a user with its assigned area resolved.
type EnrichedUser struct {
	models.User
	Area *models.AreaCompact `json:"area,omitempty"`
}

// GetUsers returns every account with its area resolved. Admin only.
func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userRepository.GetUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	areaIDs := make([]primitive.ObjectID, 0, len(users))
	seen := make(map[primitive.ObjectID]bool)
	for _, u := range users {
		if u.Area != nil && !seen[*u.Area] {
			seen[*u.Area] = true
			areaIDs = append(areaIDs, *u.Area)
		}
	}
	areaMap := make(map[primitive.ObjectID]models.AreaCompact)
	areas, err := h.areaRepository.GetAreasByIDs(c.Request().Context(), areaIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, a := range areas {
		areaMap[a.ID] = a.ToCompact()
	}

	enriched := make([]EnrichedUser, len(users))
	for i, u := range users {
		enriched[i] = EnrichedUser{User: u}
		if u.Area != nil {
			if compact, ok := areaMap[*u.Area]; ok {
				enriched[i].Area = &compact
			}
		}
	}
	return c.JSON(http.StatusOK, enriched)
}

// CreateUser is the admin bootstrap creation: the account is verified
// immediately, no mail is involved.
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req models.AdminCreateUserRequest
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
	if !req.Role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown role")
	}

	if _, err := h.userRepository.GetUserByEmail(c.Request().Context(), req.Email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	} else if err != repositories.ErrNotFound {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
		Verified: true,
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
	return c.JSON(http.StatusCreated, echo.Map{"message": "User registered"})
}

// UpdateUser lets an admin change another account's name, role or area.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	var req models.AdminUpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Role != "" {
		if !req.Role.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown role")
		}
		user.Role = req.Role
	}
	if req.Area != "" {
		areaID, err := primitive.ObjectIDFromHex(req.Area)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
		}
		user.Area = &areaID
	}

	if err := h.userRepository.UpdateUser(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated", "user": user})
}

// DeleteUser removes an account. Admin only.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	if err := h.userRepository.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted"})
}
