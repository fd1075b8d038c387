package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/infoescom/backend/internal/models"
	"github.com/infoescom/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- in-memory repositories ---

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Subscribed == nil {
		u.Subscribed = []string{}
	}
	r.users[u.ID.Hex()] = u
	return u
}

func (r *fakeUserRepo) CreateUser(_ context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	if u.Subscribed == nil {
		u.Subscribed = []string{}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID.Hex()] = u
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) GetUsers(_ context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, u *models.User) error {
	stored, ok := r.users[u.ID.Hex()]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Name = u.Name
	stored.Role = u.Role
	stored.Area = u.Area
	stored.Verified = u.Verified
	return nil
}

func (r *fakeUserRepo) DeleteUser(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) SetVerified(_ context.Context, id string) error {
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Verified = true
	return nil
}

func (r *fakeUserRepo) SetPassword(_ context.Context, id, hashed string) error {
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Password = hashed
	return nil
}

func (r *fakeUserRepo) AddSubscribedArea(_ context.Context, userID, areaID string) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	for _, a := range u.Subscribed {
		if a == areaID {
			return nil
		}
	}
	u.Subscribed = append(u.Subscribed, areaID)
	return nil
}

func (r *fakeUserRepo) RemoveSubscribedArea(_ context.Context, userID, areaID string) error {
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	kept := u.Subscribed[:0]
	for _, a := range u.Subscribed {
		if a != areaID {
			kept = append(kept, a)
		}
	}
	u.Subscribed = kept
	return nil
}

type fakeAreaRepo struct {
	areas map[string]*models.Area
}

func newFakeAreaRepo() *fakeAreaRepo {
	return &fakeAreaRepo{areas: make(map[string]*models.Area)}
}

func (r *fakeAreaRepo) add(a *models.Area) *models.Area {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.Subareas == nil {
		a.Subareas = []primitive.ObjectID{}
	}
	r.areas[a.ID.Hex()] = a
	return a
}

func (r *fakeAreaRepo) CreateArea(_ context.Context, a *models.Area) error {
	a.ID = primitive.NewObjectID()
	if a.Subareas == nil {
		a.Subareas = []primitive.ObjectID{}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.areas[a.ID.Hex()] = a
	return nil
}

func (r *fakeAreaRepo) GetAreaByID(_ context.Context, id string) (*models.Area, error) {
	if a, ok := r.areas[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAreaRepo) GetAreasByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Area, error) {
	areas := make([]models.Area, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.areas[id.Hex()]; ok {
			areas = append(areas, *a)
		}
	}
	return areas, nil
}

func (r *fakeAreaRepo) GetTopLevelAreas(_ context.Context) ([]models.Area, error) {
	areas := make([]models.Area, 0)
	for _, a := range r.areas {
		if a.Parent == nil {
			areas = append(areas, *a)
		}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, nil
}

func (r *fakeAreaRepo) UpdateArea(_ context.Context, a *models.Area) error {
	stored, ok := r.areas[a.ID.Hex()]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Name = a.Name
	stored.Focus = a.Focus
	return nil
}

func (r *fakeAreaRepo) DeleteArea(_ context.Context, id string) (*models.Area, error) {
	a, ok := r.areas[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	delete(r.areas, id)
	return a, nil
}

func (r *fakeAreaRepo) AddSubarea(_ context.Context, parentID, childID primitive.ObjectID) error {
	p, ok := r.areas[parentID.Hex()]
	if !ok {
		return nil
	}
	p.Subareas = append(p.Subareas, childID)
	return nil
}

func (r *fakeAreaRepo) RemoveSubarea(_ context.Context, parentID, childID primitive.ObjectID) error {
	p, ok := r.areas[parentID.Hex()]
	if !ok {
		return nil
	}
	kept := p.Subareas[:0]
	for _, id := range p.Subareas {
		if id != childID {
			kept = append(kept, id)
		}
	}
	p.Subareas = kept
	return nil
}

type fakePostRepo struct {
	posts map[string]*models.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[string]*models.Post)}
}

func (r *fakePostRepo) add(p *models.Post) *models.Post {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.LikedBy == nil {
		p.LikedBy = []primitive.ObjectID{}
	}
	if p.Edits == nil {
		p.Edits = []string{}
	}
	p.Like = len(p.LikedBy)
	r.posts[p.ID.Hex()] = p
	return p
}

func (r *fakePostRepo) CreatePost(_ context.Context, p *models.Post) error {
	p.ID = primitive.NewObjectID()
	p.Status = models.StatusPending
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Documents == nil {
		p.Documents = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Edits = []string{}
	p.LikedBy = []primitive.ObjectID{}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.posts[p.ID.Hex()] = p
	return nil
}

func (r *fakePostRepo) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	if p, ok := r.posts[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *fakePostRepo) GetApprovedPosts(_ context.Context, filter repositories.ApprovedFilter) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	for _, p := range r.posts {
		if p.Status != models.StatusApproved || p.Deleted {
			continue
		}
		if filter.Area != nil && p.Area != *filter.Area {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Title), needle) &&
				!strings.Contains(strings.ToLower(p.Content), needle) {
				continue
			}
		}
		posts = append(posts, *p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (r *fakePostRepo) GetPendingPostsByArea(_ context.Context, areaID primitive.ObjectID) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	for _, p := range r.posts {
		if p.Status == models.StatusPending && p.Area == areaID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (r *fakePostRepo) GetPostsByAuthor(_ context.Context, authorID primitive.ObjectID) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	for _, p := range r.posts {
		if p.Author == authorID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (r *fakePostRepo) UpdatePost(_ context.Context, id string, p *models.Post) error {
	stored, ok := r.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Title = p.Title
	stored.Content = p.Content
	stored.Images = p.Images
	stored.Documents = p.Documents
	stored.Tags = p.Tags
	stored.Status = p.Status
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakePostRepo) ApprovePost(_ context.Context, id string, approver primitive.ObjectID, signPath string) error {
	p, ok := r.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Status = models.StatusApproved
	p.ApprovedBy = &approver
	p.Sign = signPath
	return nil
}

func (r *fakePostRepo) RejectPost(_ context.Context, id string, feedback string) error {
	p, ok := r.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Status = models.StatusRejected
	p.Edits = append(p.Edits, feedback)
	return nil
}

func (r *fakePostRepo) SoftDeletePost(_ context.Context, id string, reason string) error {
	p, ok := r.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Deleted = true
	p.DeleteReason = reason
	return nil
}

func (r *fakePostRepo) AddLike(_ context.Context, id string, userID primitive.ObjectID) (int, error) {
	p, ok := r.posts[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	if p.LikedByUser(userID) {
		return 0, repositories.ErrAlreadyLiked
	}
	p.LikedBy = append(p.LikedBy, userID)
	p.Like = len(p.LikedBy)
	return p.Like, nil
}

func (r *fakePostRepo) RemoveLike(_ context.Context, id string, userID primitive.ObjectID) (int, error) {
	p, ok := r.posts[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	if !p.LikedByUser(userID) {
		return 0, repositories.ErrNotLiked
	}
	kept := p.LikedBy[:0]
	for _, uid := range p.LikedBy {
		if uid != userID {
			kept = append(kept, uid)
		}
	}
	p.LikedBy = kept
	p.Like = len(p.LikedBy)
	return p.Like, nil
}

type fakeSubRepo struct {
	subs map[string]*models.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[string]*models.Subscription)}
}

func subKey(userID, areaID primitive.ObjectID) string {
	return userID.Hex() + "|" + areaID.Hex()
}

func (r *fakeSubRepo) Upsert(_ context.Context, userID, areaID primitive.ObjectID, token string) (*models.Subscription, error) {
	key := subKey(userID, areaID)
	if sub, ok := r.subs[key]; ok {
		sub.Token = token
		return sub, nil
	}
	sub := &models.Subscription{
		ID:    primitive.NewObjectID(),
		User:  userID,
		Area:  areaID,
		Token: token,
	}
	r.subs[key] = sub
	return sub, nil
}

func (r *fakeSubRepo) Delete(_ context.Context, userID, areaID primitive.ObjectID) error {
	key := subKey(userID, areaID)
	if _, ok := r.subs[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.subs, key)
	return nil
}

func (r *fakeSubRepo) GetByArea(_ context.Context, areaID primitive.ObjectID) ([]models.Subscription, error) {
	subs := make([]models.Subscription, 0)
	for _, sub := range r.subs {
		if sub.Area == areaID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Token < subs[j].Token })
	return subs, nil
}

// --- collaborators ---

type fakeSender struct {
	mu         sync.Mutex
	sent       []string
	failTokens map[string]bool
}

func (s *fakeSender) Send(_ context.Context, token, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTokens[token] {
		return io.ErrUnexpectedEOF
	}
	s.sent = append(s.sent, token)
	return nil
}

func (s *fakeSender) sentTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, to)
	return nil
}

type fakeStore struct {
	saved   []string
	removed []string
}

func (s *fakeStore) Save(file *multipart.FileHeader) (string, error) {
	ref := "uploads/" + file.Filename
	s.saved = append(s.saved, ref)
	return ref, nil
}

func (s *fakeStore) Remove(ref string) error {
	s.removed = append(s.removed, ref)
	return nil
}

// --- request helpers ---

func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

type filePart struct {
	field       string
	filename    string
	contentType string
}

func newMultipartContext(e *echo.Echo, method, target string, fields map[string]string, files []filePart) (echo.Context, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		header.Set("Content-Type", f.contentType)
		part, _ := w.CreatePart(header)
		_, _ = part.Write([]byte("test-bytes"))
	}
	_ = w.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withClaims(c echo.Context, userID primitive.ObjectID, role models.Role) echo.Context {
	c.Set("user", &models.JwtCustomClaims{UserID: userID.Hex(), Role: role})
	return c
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusOK
}
