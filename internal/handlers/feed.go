package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedHandler serves the approved-post feed.
type FeedHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	areaRepository repositories.AreaRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, areaRepo repositories.AreaRepository) *FeedHandler {
	return &FeedHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		areaRepository: areaRepo,
	}
}

// RegisterFeedRoutes registers the approved feed route
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/approved", h.GetApprovedPosts)
}

// EnrichedPost is a post with author, area and approver resolved. The outer
// fields shadow the raw ObjectID references of the embedded post in the JSON
// output.
type EnrichedPost struct {
	models.Post
	Author     models.UserCompact  `json:"author"`
	Area       models.AreaCompact  `json:"area"`
	ApprovedBy *models.UserCompact `json:"approvedBy,omitempty"`
}

// enrichPosts resolves author, area and approver references via lookup maps.
func enrichPosts(ctx context.Context, posts []models.Post, users repositories.UserRepository, areas repositories.AreaRepository) ([]EnrichedPost, error) {
	areaIDs := make([]primitive.ObjectID, 0, len(posts))
	seenAreas := make(map[primitive.ObjectID]bool)
	for _, p := range posts {
		if !seenAreas[p.Area] {
			seenAreas[p.Area] = true
			areaIDs = append(areaIDs, p.Area)
		}
	}
	areaDocs, err := areas.GetAreasByIDs(ctx, areaIDs)
	if err != nil {
		return nil, err
	}
	areaMap := make(map[primitive.ObjectID]models.AreaCompact, len(areaDocs))
	for _, a := range areaDocs {
		areaMap[a.ID] = a.ToCompact()
	}

	userCache := make(map[primitive.ObjectID]models.UserCompact)
	lookupUser := func(id primitive.ObjectID) models.UserCompact {
		if compact, ok := userCache[id]; ok {
			return compact
		}
		compact := models.UserCompact{ID: id}
		if user, err := users.GetUserByID(ctx, id.Hex()); err == nil {
			compact = user.ToCompact()
		}
		userCache[id] = compact
		return compact
	}

	enriched := make([]EnrichedPost, len(posts))
	for i, p := range posts {
		enriched[i] = EnrichedPost{
			Post:   p,
			Author: lookupUser(p.Author),
			Area:   areaMap[p.Area],
		}
		if p.ApprovedBy != nil {
			approver := lookupUser(*p.ApprovedBy)
			enriched[i].ApprovedBy = &approver
		}
	}
	return enriched, nil
}

// orderForReader applies the two-tier feed ordering: posts from the trailing
// 24 hours whose area focus includes the reader's role come first, everything
// else after. The input is already reverse chronological and both partitions
// preserve that order.
func orderForReader(posts []EnrichedPost, role models.Role, now time.Time) []EnrichedPost {
	cutoff := now.Add(-24 * time.Hour)

	boosted := make([]EnrichedPost, 0, len(posts))
	rest := make([]EnrichedPost, 0, len(posts))
	for _, p := range posts {
		if !p.CreatedAt.Before(cutoff) && hasFocus(p.Area.Focus, role) {
			boosted = append(boosted, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(boosted, rest...)
}

func hasFocus(focus []models.Role, role models.Role) bool {
	for _, f := range focus {
		if f == role {
			return true
		}
	}
	return false
}

// GetApprovedPosts returns the approved, non-deleted posts. Non-admin readers
// get the focus boost applied before pagination; admins read the plain
// reverse-chronological order.
func (h *FeedHandler) GetApprovedPosts(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 200
	}

	filter := repositories.ApprovedFilter{Search: c.QueryParam("search")}
	if areaParam := c.QueryParam("area"); areaParam != "" {
		areaID, err := primitive.ObjectIDFromHex(areaParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid area ID")
		}
		filter.Area = &areaID
	}

	posts, err := h.postRepository.GetApprovedPosts(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched, err := enrichPosts(c.Request().Context(), posts, h.userRepository, h.areaRepository)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if claims.Role != models.RoleAdmin {
		enriched = orderForReader(enriched, claims.Role, time.Now())
	}

	total := len(enriched)
	skip := (page - 1) * limit
	if skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, echo.Map{
		"page":  page,
		"limit": limit,
		"total": total,
		"posts": enriched[skip:end],
	})
}
