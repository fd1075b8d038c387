package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/infoescom/backend/internal/middleware"
	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/notify"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/infoescom/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostHandler handles HTTP requests related to posts and their lifecycle
type PostHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	areaRepository repositories.AreaRepository
	store          storage.Store
	dispatcher     *notify.Dispatcher
	log            zerolog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	areaRepo repositories.AreaRepository,
	store storage.Store,
	dispatcher *notify.Dispatcher,
	log zerolog.Logger,
) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		areaRepository: areaRepo,
		store:          store,
		dispatcher:     dispatcher,
		log:            log,
	}
}

// RegisterPostRoutes registers the authenticated post routes. GetPost is
// registered separately because it is public.
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("", h.CreatePost, middleware.RequireRole(models.RoleOperator))
	g.GET("/pending", h.GetPendingPosts, middleware.RequireRole(models.RoleChief))
	g.GET("/myPosts", h.GetMyPosts, middleware.RequireRole(models.RoleOperator))
	g.PATCH("/:id/review", h.ReviewPost, middleware.RequireRole(models.RoleChief))
	g.PATCH("/:id/like", h.LikePost)
	g.PATCH("/:id/unlike", h.UnlikePost)
	g.PATCH("/:id", h.ReEditPost)
	g.DELETE("/:id", h.DeletePost, middleware.RequireRole(models.RoleAdmin))
}

// saveUploads partitions multipart files into images and documents by MIME
// prefix and stores them.
func (h *PostHandler) saveUploads(files []*multipart.FileHeader) (images, documents []string, err error) {
	for _, file := range files {
		contentType := file.Header.Get("Content-Type")
		ref, err := h.store.Save(file)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case strings.HasPrefix(contentType, "image/"):
			images = append(images, ref)
		case strings.HasPrefix(contentType, "application/"):
			documents = append(documents, ref)
		}
	}
	return images, documents, nil
}

// splitTags converts a comma-separated tag string into a clean slice.
func splitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// CreatePost submits a new announcement. The post always lands in the
// author's assigned area, in pending state.
func (h *PostHandler) CreatePost(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	author, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}
	if author.Area == nil {
		return echo.NewHTTPError(http.StatusForbidden, "You have no assigned area to publish in")
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	}

	post := &models.Post{
		Title:   title,
		Content: c.FormValue("content"),
		Tags:    splitTags(c.FormValue("tags")),
		Area:    *author.Area,
		Author:  author.ID,
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		var files []*multipart.FileHeader
		for _, headers := range form.File {
			files = append(files, headers...)
		}
		post.Images, post.Documents, err = h.saveUploads(files)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPendingPosts lists the posts awaiting review in the chief's area.
func (h *PostHandler) GetPendingPosts(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	chief, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}
	if chief.Area == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "You have no assigned area")
	}

	posts, err := h.postRepository.GetPendingPostsByArea(c.Request().Context(), *chief.Area)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched, err := enrichPosts(c.Request().Context(), posts, h.userRepository, h.areaRepository)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, enriched)
}

// GetMyPosts lists the authenticated operator's own posts, any status.
func (h *PostHandler) GetMyPosts(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	authorID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID in token")
	}

	posts, err := h.postRepository.GetPostsByAuthor(c.Request().Context(), authorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, posts)
}

// GetPost retrieves a single post with its author resolved. Public.
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched, err := enrichPosts(c.Request().Context(), []models.Post{*post}, h.userRepository, h.areaRepository)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, enriched[0])
}

// ReviewPost approves or rejects a pending post. Approval requires the
// chief's signature attachment and fires the subscriber fan-out; rejection
// requires feedback, which accumulates on the post.
func (h *PostHandler) ReviewPost(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	postID := c.Param("id")

	status := models.Status(strings.TrimSpace(c.FormValue("status")))
	if status != models.StatusApproved && status != models.StatusRejected {
		return echo.NewHTTPError(http.StatusBadRequest, "Status must be 'aprobado' or 'rechazado'")
	}

	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	chief, err := h.userRepository.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}
	if chief.Area == nil || *chief.Area != post.Area {
		return echo.NewHTTPError(http.StatusForbidden, "You cannot review posts of another area")
	}

	if status == models.StatusApproved {
		signFile, err := c.FormFile("sign")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "A signature is required to approve the post")
		}
		signRef, err := h.store.Save(signFile)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err := h.postRepository.ApprovePost(c.Request().Context(), postID, chief.ID, signRef); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		post.Status = models.StatusApproved
		post.ApprovedBy = &chief.ID
		post.Sign = signRef

		h.notifyApproval(post)
	} else {
		feedback := strings.TrimSpace(c.FormValue("feedback"))
		if feedback == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Feedback is required to reject the post")
		}
		if err := h.postRepository.RejectPost(c.Request().Context(), postID, feedback); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		post.Status = models.StatusRejected
		post.Edits = append(post.Edits, feedback)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Post updated", "post": post})
}

// notifyApproval issues the fan-out batch in the background. The review
// response never waits on, or fails because of, push delivery.
func (h *PostHandler) notifyApproval(post *models.Post) {
	title := "Nuevo comunicado"
	if area, err := h.areaRepository.GetAreaByID(context.Background(), post.Area.Hex()); err == nil {
		title = fmt.Sprintf("Nuevo comunicado del %s", area.Name)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := h.dispatcher.NotifyArea(ctx, post.Area, title, post.Title); err != nil {
			h.log.Error().Err(err).Str("post", post.ID.Hex()).Msg("approval fan-out failed")
		}
	}()
}

// ReEditPost lets the original author rework a rejected post and resubmit it.
// Whatever changes, the status always goes back to pending.
func (h *PostHandler) ReEditPost(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	postID := c.Param("id")

	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if post.Author.Hex() != claims.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "You cannot update this post")
	}
	if post.Status != models.StatusRejected {
		return echo.NewHTTPError(http.StatusBadRequest, "Only a rejected post can be edited")
	}

	if title := strings.TrimSpace(c.FormValue("title")); title != "" {
		post.Title = title
	}
	if content := c.FormValue("content"); content != "" {
		post.Content = content
	}

	if raw := c.FormValue("deletedImages"); raw != "" {
		var deleted []string
		if err := json.Unmarshal([]byte(raw), &deleted); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "deletedImages must be a JSON array")
		}
		post.Images = h.removeAttachments(post.Images, deleted)
	}
	if raw := c.FormValue("deletedDocuments"); raw != "" {
		var deleted []string
		if err := json.Unmarshal([]byte(raw), &deleted); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "deletedDocuments must be a JSON array")
		}
		post.Documents = h.removeAttachments(post.Documents, deleted)
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		var files []*multipart.FileHeader
		for _, headers := range form.File {
			files = append(files, headers...)
		}
		images, documents, err := h.saveUploads(files)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		post.Images = append(post.Images, images...)
		post.Documents = append(post.Documents, documents...)
	}

	if tags := c.FormValue("tags"); tags != "" {
		post.Tags = splitTags(tags)
	}

	// Back to review, unconditionally.
	post.Status = models.StatusPending

	if err := h.postRepository.UpdatePost(c.Request().Context(), postID, post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Post updated and sent back to review", "post": post})
}

// removeAttachments deletes the listed refs from storage and filters them out
// of the kept slice. Storage failures are logged, not fatal: the document
// stays consistent either way.
func (h *PostHandler) removeAttachments(kept, deleted []string) []string {
	drop := make(map[string]bool, len(deleted))
	for _, ref := range deleted {
		drop[ref] = true
		if err := h.store.Remove(ref); err != nil {
			h.log.Warn().Err(err).Str("ref", ref).Msg("failed to remove attachment")
		}
	}
	remaining := make([]string, 0, len(kept))
	for _, ref := range kept {
		if !drop[ref] {
			remaining = append(remaining, ref)
		}
	}
	return remaining
}

// DeletePost takes a post down with a mandatory reason. The lifecycle status
// is left untouched for audit.
func (h *PostHandler) DeletePost(c echo.Context) error {
	var req models.DeletePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if strings.TrimSpace(req.DeleteReason) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "A reason is required to take down the post")
	}

	if err := h.postRepository.SoftDeletePost(c.Request().Context(), c.Param("id"), req.DeleteReason); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Post taken down"})
}

// LikePost adds the authenticated user to the post's liking set.
func (h *PostHandler) LikePost(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID in token")
	}

	count, err := h.postRepository.AddLike(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		switch err {
		case repositories.ErrNotFound:
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		case repositories.ErrAlreadyLiked:
			return echo.NewHTTPError(http.StatusConflict, "You already liked this post")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Post liked", "likeCount": count})
}

// UnlikePost removes the authenticated user from the post's liking set.
func (h *PostHandler) UnlikePost(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID in token")
	}

	count, err := h.postRepository.RemoveLike(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		switch err {
		case repositories.ErrNotFound:
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		case repositories.ErrNotLiked:
			return echo.NewHTTPError(http.StatusConflict, "You have not liked this post")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "Like removed", "likeCount": count})
}
