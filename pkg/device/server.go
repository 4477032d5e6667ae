package device

import (
	"encoding/json"
	"net/http"
	"strconv"

	"energylogger/pkg/apis"
	"energylogger/pkg/apis/response"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type deviceFilter struct {
	Name      interface{} `json:"name"`
	ID        int         `json:"id"`
	Transport string      `json:"transport"`
	Link      string      `json:"link"`
}

type ResponseModel struct {
	Devices interface{} `json:"devices"`
}

func InstallHandler(group *gin.RouterGroup, r *Registry) {
	group.GET("/devices", listDevices(r))
	group.GET("/devices/:id", getDeviceById(r))
}

func listDevices(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		filter := &Filter{}
		if v := c.Query(apis.Filter); len(v) > 0 {
			var df deviceFilter
			if err := json.Unmarshal([]byte(v), &df); err != nil {
				klog.V(2).InfoS("Failed to parse device filter", "err", err)
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
			filter = &Filter{Name: df.Name, ID: df.ID, Transport: df.Transport, Link: df.Link}
		}

		info := r.Info()
		if !info.ModTime.IsZero() {
			c.Header(apis.LastModified, info.ModTime.UTC().Format(http.TimeFormat))
		}
		c.JSON(http.StatusOK, &ResponseModel{Devices: r.List(filter)})
	}
}

func getDeviceById(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrInvalidParameter("id", err)))
			return
		}
		st, ok := r.GetStatus(id)
		if !ok {
			c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrResourceNotFound("device "+c.Param("id"))))
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
