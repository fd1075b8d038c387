package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/notify"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationHandler handles push subscription HTTP requests
type NotificationHandler struct {
	subscriptionRepository repositories.SubscriptionRepository
	userRepository         repositories.UserRepository
	dispatcher             *notify.Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(subRepo repositories.SubscriptionRepository, userRepo repositories.UserRepository, dispatcher *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{
		subscriptionRepository: subRepo,
		userRepository:         userRepo,
		dispatcher:             dispatcher,
	}
}

// RegisterNotificationRoutes registers subscription routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.POST("/subscribe", h.Subscribe)
	g.DELETE("/unsubscribe", h.Unsubscribe)
	g.POST("/send", h.Send)
}

// Subscribe registers (or refreshes) the caller's push subscription for an
// area and mirrors the area into the account's subscribed list.
func (h *NotificationHandler) Subscribe(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	var req models.SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID in token")
	}
	areaID, err := primitive.ObjectIDFromHex(req.Area)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
	}

	sub, err := h.subscriptionRepository.Upsert(c.Request().Context(), userID, areaID, req.Token)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.userRepository.AddSubscribedArea(c.Request().Context(), claims.UserID, req.Area); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"message": "Subscription registered", "sub": sub})
}

// Unsubscribe removes the caller's subscription for an area. Unsubscribing
// without a prior subscription is a not-found error, and in that case the
// account's subscribed list is left untouched.
func (h *NotificationHandler) Unsubscribe(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	var req models.UnsubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID in token")
	}
	areaID, err := primitive.ObjectIDFromHex(req.Area)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
	}

	if err := h.subscriptionRepository.Delete(c.Request().Context(), userID, areaID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "No subscription found for that area")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.userRepository.RemoveSubscribedArea(c.Request().Context(), claims.UserID, req.Area); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Subscription removed"})
}

// Send fans a payload out to all subscribers of an area. Per-subscriber
// failures are swallowed by the dispatcher; only the lookup can fail here.
func (h *NotificationHandler) Send(c echo.Context) error {
	var req models.SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	areaID, err := primitive.ObjectIDFromHex(req.Area)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
	}

	var payload models.PushPayload
	if err := json.Unmarshal([]byte(req.Payload), &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Payload must be a JSON string with title and body")
	}

	sent, err := h.dispatcher.NotifyArea(c.Request().Context(), areaID, payload.Title, payload.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Notifications sent", "sent": sent})
}
