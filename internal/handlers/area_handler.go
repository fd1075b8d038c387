package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AreaHandler handles HTTP requests related to the area hierarchy
type AreaHandler struct {
	areaRepository repositories.AreaRepository
}

// NewAreaHandler creates a new AreaHandler
func NewAreaHandler(areaRepo repositories.AreaRepository) *AreaHandler {
	return &AreaHandler{areaRepository: areaRepo}
}

// RegisterAreaRoutes registers area routes. The listing is public, mutations
// are admin only.
func (h *AreaHandler) RegisterAreaRoutes(g *echo.Group, authn echo.MiddlewareFunc) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	g.GET("", h.GetAreas)
	g.POST("", h.CreateArea, authn, adminOnly)
	g.PUT("/:id", h.UpdateArea, authn, adminOnly)
	g.DELETE("/:id", h.DeleteArea, authn, adminOnly)
}

// parseFocus converts raw focus strings into audience roles.
func parseFocus(raw []string) ([]models.Role, error) {
	focus := make([]models.Role, 0, len(raw))
	for _, f := range raw {
		role := models.Role(f)
		if !role.Audience() {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Focus must be one of alumno, docente, paae")
		}
		focus = append(focus, role)
	}
	return focus, nil
}

// CreateArea creates an area, linking it into its parent's subarea set when a
// parent is given.
func (h *AreaHandler) CreateArea(c echo.Context) error {
	var req models.CreateAreaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	focus, err := parseFocus(req.Focus)
	if err != nil {
		return err
	}

	area := &models.Area{Name: req.Name, Focus: focus}
	if req.Parent != "" {
		parentID, err := primitive.ObjectIDFromHex(req.Parent)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid parent area ID")
		}
		if _, err := h.areaRepository.GetAreaByID(c.Request().Context(), req.Parent); err != nil {
			if err == repositories.ErrNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "Parent area not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		area.Parent = &parentID
	}

	if err := h.areaRepository.CreateArea(c.Request().Context(), area); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if area.Parent != nil {
		if err := h.areaRepository.AddSubarea(c.Request().Context(), *area.Parent, area.ID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, area)
}

// GetAreas lists the top-level areas with their subareas resolved.
func (h *AreaHandler) GetAreas(c echo.Context) error {
	areas, err := h.areaRepository.GetTopLevelAreas(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	subIDs := make([]primitive.ObjectID, 0)
	for _, a := range areas {
		subIDs = append(subIDs, a.Subareas...)
	}
	subareas, err := h.areaRepository.GetAreasByIDs(c.Request().Context(), subIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	subMap := make(map[primitive.ObjectID]models.AreaCompact, len(subareas))
	for _, s := range subareas {
		subMap[s.ID] = s.ToCompact()
	}

	nodes := make([]models.AreaNode, len(areas))
	for i, a := range areas {
		node := models.AreaNode{
			ID:       a.ID,
			Name:     a.Name,
			Focus:    a.Focus,
			Subareas: []models.AreaCompact{},
		}
		for _, subID := range a.Subareas {
			if compact, ok := subMap[subID]; ok {
				node.Subareas = append(node.Subareas, compact)
			}
		}
		nodes[i] = node
	}

	return c.JSON(http.StatusOK, nodes)
}

// UpdateArea updates an area's name and/or focus.
func (h *AreaHandler) UpdateArea(c echo.Context) error {
	var req models.UpdateAreaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	area, err := h.areaRepository.GetAreaByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Area not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		area.Name = req.Name
	}
	if len(req.Focus) > 0 {
		focus, err := parseFocus(req.Focus)
		if err != nil {
			return err
		}
		area.Focus = focus
	}

	if err := h.areaRepository.UpdateArea(c.Request().Context(), area); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, area)
}

// DeleteArea removes an area and unlinks it from its parent. Subareas of a
// deleted top-level area are intentionally left in place (see DESIGN.md).
func (h *AreaHandler) DeleteArea(c echo.Context) error {
	area, err := h.areaRepository.DeleteArea(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Area not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if area.Parent != nil {
		if err := h.areaRepository.RemoveSubarea(c.Request().Context(), *area.Parent, area.ID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Area deleted", "area": area})
}
