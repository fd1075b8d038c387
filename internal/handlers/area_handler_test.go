package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/infoescom/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateArea(t *testing.T) {
	t.Run("creates a top-level area", func(t *testing.T) {
		areas := newFakeAreaRepo()
		handler := NewAreaHandler(areas)
		e := echo.New()

		c, rec := newJSONContext(e, http.MethodPost, "/api/areas",
			`{"name":"Gestión Escolar","focus":["alumno","docente"]}`)
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		require.NoError(t, handler.CreateArea(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		require.Len(t, areas.areas, 1)
		for _, a := range areas.areas {
			assert.Equal(t, "Gestión Escolar", a.Name)
			assert.Nil(t, a.Parent)
			assert.Equal(t, []models.Role{models.RoleStudent, models.RoleTeacher}, a.Focus)
		}
	})

	t.Run("links a subarea into its parent", func(t *testing.T) {
		areas := newFakeAreaRepo()
		handler := NewAreaHandler(areas)
		e := echo.New()

		parent := areas.add(&models.Area{Name: "Dirección", Focus: []models.Role{models.RoleStudent}})

		c, _ := newJSONContext(e, http.MethodPost, "/api/areas",
			`{"name":"Subdirección","parent":"`+parent.ID.Hex()+`","focus":["paae"]}`)
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		require.NoError(t, handler.CreateArea(c))

		require.Len(t, parent.Subareas, 1)
		child := areas.areas[parent.Subareas[0].Hex()]
		require.NotNil(t, child)
		assert.Equal(t, "Subdirección", child.Name)
		require.NotNil(t, child.Parent)
		assert.Equal(t, parent.ID, *child.Parent)
	})

	t.Run("rejects a focus outside the audience roles", func(t *testing.T) {
		handler := NewAreaHandler(newFakeAreaRepo())
		e := echo.New()

		c, _ := newJSONContext(e, http.MethodPost, "/api/areas",
			`{"name":"Dirección","focus":["administrador"]}`)
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		err := handler.CreateArea(c)
		assert.Equal(t, http.StatusBadRequest, httpCode(err))
	})

	t.Run("rejects an unknown parent", func(t *testing.T) {
		handler := NewAreaHandler(newFakeAreaRepo())
		e := echo.New()

		c, _ := newJSONContext(e, http.MethodPost, "/api/areas",
			`{"name":"Huérfana","parent":"`+primitive.NewObjectID().Hex()+`","focus":["alumno"]}`)
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		err := handler.CreateArea(c)
		assert.Equal(t, http.StatusNotFound, httpCode(err))
	})
}

func TestGetAreas(t *testing.T) {
	areas := newFakeAreaRepo()
	handler := NewAreaHandler(areas)
	e := echo.New()

	parent := areas.add(&models.Area{Name: "Dirección", Focus: []models.Role{models.RoleStudent}})
	child := areas.add(&models.Area{Name: "Subdirección", Parent: &parent.ID, Focus: []models.Role{models.RoleStaff}})
	parent.Subareas = []primitive.ObjectID{child.ID}

	c, rec := newJSONContext(e, http.MethodGet, "/api/areas", "")

	require.NoError(t, handler.GetAreas(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var nodes []models.AreaNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	// Only the top-level area appears as a node; the subarea hangs off it.
	require.Len(t, nodes, 1)
	assert.Equal(t, "Dirección", nodes[0].Name)
	require.Len(t, nodes[0].Subareas, 1)
	assert.Equal(t, "Subdirección", nodes[0].Subareas[0].Name)
	assert.Equal(t, []models.Role{models.RoleStaff}, nodes[0].Subareas[0].Focus)
}

func TestUpdateArea(t *testing.T) {
	areas := newFakeAreaRepo()
	handler := NewAreaHandler(areas)
	e := echo.New()

	area := areas.add(&models.Area{Name: "Dirección", Focus: []models.Role{models.RoleStudent}})

	c, rec := newJSONContext(e, http.MethodPut, "/api/areas/"+area.ID.Hex(),
		`{"focus":["docente","paae"]}`)
	c.SetParamNames("id")
	c.SetParamValues(area.ID.Hex())
	withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

	require.NoError(t, handler.UpdateArea(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	// Name untouched, focus replaced.
	assert.Equal(t, "Dirección", area.Name)
	assert.Equal(t, []models.Role{models.RoleTeacher, models.RoleStaff}, area.Focus)
}

func TestDeleteArea(t *testing.T) {
	t.Run("unlinks a subarea from its parent", func(t *testing.T) {
		areas := newFakeAreaRepo()
		handler := NewAreaHandler(areas)
		e := echo.New()

		parent := areas.add(&models.Area{Name: "Dirección", Focus: []models.Role{models.RoleStudent}})
		child := areas.add(&models.Area{Name: "Subdirección", Parent: &parent.ID, Focus: []models.Role{models.RoleStaff}})
		parent.Subareas = []primitive.ObjectID{child.ID}

		c, rec := newJSONContext(e, http.MethodDelete, "/api/areas/"+child.ID.Hex(), "")
		c.SetParamNames("id")
		c.SetParamValues(child.ID.Hex())
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		require.NoError(t, handler.DeleteArea(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, areas.areas, child.ID.Hex())
		assert.Empty(t, parent.Subareas)
	})

	t.Run("deleting a parent leaves its subareas as orphans", func(t *testing.T) {
		areas := newFakeAreaRepo()
		handler := NewAreaHandler(areas)
		e := echo.New()

		parent := areas.add(&models.Area{Name: "Dirección", Focus: []models.Role{models.RoleStudent}})
		child := areas.add(&models.Area{Name: "Subdirección", Parent: &parent.ID, Focus: []models.Role{models.RoleStaff}})
		parent.Subareas = []primitive.ObjectID{child.ID}

		c, _ := newJSONContext(e, http.MethodDelete, "/api/areas/"+parent.ID.Hex(), "")
		c.SetParamNames("id")
		c.SetParamValues(parent.ID.Hex())
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		require.NoError(t, handler.DeleteArea(c))
		// The child record survives, still pointing at the deleted parent.
		orphan := areas.areas[child.ID.Hex()]
		require.NotNil(t, orphan)
		require.NotNil(t, orphan.Parent)
		assert.Equal(t, parent.ID, *orphan.Parent)
	})

	t.Run("missing area is not found", func(t *testing.T) {
		handler := NewAreaHandler(newFakeAreaRepo())
		e := echo.New()

		missing := primitive.NewObjectID().Hex()
		c, _ := newJSONContext(e, http.MethodDelete, "/api/areas/"+missing, "")
		c.SetParamNames("id")
		c.SetParamValues(missing)
		withClaims(c, primitive.NewObjectID(), models.RoleAdmin)

		err := handler.DeleteArea(c)
		assert.Equal(t, http.StatusNotFound, httpCode(err))
	})
}
