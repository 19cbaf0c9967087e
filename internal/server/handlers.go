package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/filter"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

// FieldsParam is the query parameter holding the fields expression.
const FieldsParam = "fields"

const contentTypeJSON = "application/json; charset=utf-8"

// selection returns the tree for the request's fields parameter. A nil
// schema selects schema-less parsing.
func (s *Server) selection(c *gin.Context, st *State, sch *schema.Schema) (*fields.Fields, error) {
	raw, ok := c.GetQuery(FieldsParam)
	if !ok || raw == "" {
		raw = st.DefaultFields
	}

	ctx := c.Request.Context()
	if sch == nil {
		return st.Trees.GetOrParse(ctx, "", raw, func() (*fields.Fields, error) {
			return st.Parser.Parse(ctx, raw)
		})
	}
	return st.Trees.GetOrParse(ctx, sch.Name, raw, func() (*fields.Fields, error) {
		return st.Parser.ParseSchema(ctx, raw, sch)
	})
}

// wrap selects a single member holding the list filtered by f.
func wrap(name string, f *fields.Fields) *fields.Fields {
	return fields.NewFields(false, []string{name}, map[string]*fields.Fields{name: f}, nil)
}

func (s *Server) render(c *gin.Context, v interface{}, f *fields.Fields) {
	body, err := filter.Marshal(v, f, filter.WithMetrics(s.filterMetrics))
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, body)
}

func (s *Server) listSchemas(c *gin.Context) {
	st := s.State()

	f, err := s.selection(c, st, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}

	names := st.Registry.Names()
	schemas := make([]*schema.Schema, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, st.Registry.Get(name))
	}

	s.render(c, map[string]interface{}{"schemas": schemas}, wrap("schemas", f))
}

func (s *Server) getSchema(c *gin.Context) {
	st := s.State()

	name := c.Param("name")
	sch := st.Registry.Get(name)
	if sch == nil {
		sch = st.Registry.GetByPlural(name)
	}
	if sch == nil {
		c.AbortWithStatusJSON(http.StatusNotFound,
			NewWebMessage(http.StatusNotFound, fmt.Sprintf("schema not found: %s", name)))
		return
	}

	f, err := s.selection(c, st, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.render(c, sch, f)
}

func (s *Server) listObjects(c *gin.Context) {
	st := s.State()
	resource := c.Param("resource")

	items, err := st.Store.List(resource)
	if err != nil {
		abortWithError(c, err)
		return
	}

	f, err := s.selection(c, st, st.Registry.GetByPlural(resource))
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.render(c, map[string]interface{}{resource: items}, wrap(resource, f))
}

func (s *Server) getObject(c *gin.Context) {
	st := s.State()
	resource := c.Param("resource")

	obj, err := st.Store.Get(resource, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	f, err := s.selection(c, st, st.Registry.GetByPlural(resource))
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.render(c, obj, f)
}

func (s *Server) notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound,
		NewWebMessage(http.StatusNotFound, fmt.Sprintf("no handler for %s %s", c.Request.Method, c.Request.URL.Path)))
}
