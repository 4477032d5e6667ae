package generic

import "github.com/gin-gonic/gin"

type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
}

// Allowed reports whether the server answers requests with method.
func (s *Server) Allowed(method string) bool {
	for _, m := range s.Methods {
		if m == method {
			return true
		}
	}
	return false
}
