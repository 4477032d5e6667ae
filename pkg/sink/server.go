package sink

import (
	"net/http"

	"energylogger/pkg/apis"
	"energylogger/pkg/apis/response"
	"github.com/gin-gonic/gin"
)

type ResponseModel struct {
	Sinks interface{} `json:"sinks"`
}

func InstallHandler(group *gin.RouterGroup, r *Registry) {
	group.GET("/sinks", listSinks(r))
	group.GET("/sinks/:name", getSinkByName(r))
}

func listSinks(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := r.Info()
		if !info.ModTime.IsZero() {
			c.Header(apis.LastModified, info.ModTime.UTC().Format(http.TimeFormat))
		}
		c.JSON(http.StatusOK, &ResponseModel{Sinks: r.Statuses()})
	}
}

func getSinkByName(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		for _, st := range r.Statuses() {
			if st.Name == name {
				c.JSON(http.StatusOK, st)
				return
			}
		}
		c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrResourceNotFound("sink "+name)))
	}
}
