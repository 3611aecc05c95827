// Package devserver hosts every function on one local HTTP server.
package devserver

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biso/functions/internal/handler"
	"github.com/biso/functions/internal/router"
)

// maxBody caps request bodies read from local callers.
const maxBody = 10 << 20

// Server serves each function at /<name>.
type Server struct {
	deps   *handler.Deps
	router *gin.Engine
}

// New creates a server calling the functions with deps.
func New(deps *handler.Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{deps: deps, router: r}

	r.GET("/", s.handleIndex)
	for _, route := range router.All() {
		h := s.handleFunction(route)
		r.POST("/"+route.Name, h)
		r.GET("/"+route.Name, h)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until the server fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

type functionInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Requires    []string `json:"requires"`
}

func (s *Server) handleIndex(c *gin.Context) {
	routes := router.All()
	out := make([]functionInfo, 0, len(routes))
	for _, r := range routes {
		info := functionInfo{Name: r.Name, Description: r.Description, Requires: []string{}}
		for _, sec := range r.Requires {
			info.Requires = append(info.Requires, string(sec))
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"functions": out})
}

func (s *Server) handleFunction(route router.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.ErrorBody{Error: "failed to read request body"})
			return
		}

		req := handler.Request{
			Method:  c.Request.Method,
			Path:    c.Request.URL.Path,
			Headers: flatten(c.Request.Header),
			Query:   flatten(c.Request.URL.Query()),
			Body:    body,
		}
		resp := handler.Run(c.Request.Context(), s.deps, route.Name, route.Handler, req)
		c.JSON(resp.Status, resp.Body)
	}
}

// flatten keeps the first value of every key.
func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
