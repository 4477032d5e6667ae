package host

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.GET("/host/cpu", getCpu(mgr))
	group.GET("/host/mem", getMem(mgr))
	group.GET("/host/disk", getDisks(mgr))
}

func getCpu(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cpu, err := mgr.Cpu(c.Request.Context())
		if err != nil {
			klog.V(2).InfoS("Failed to read cpu usage", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Cpus: cpu})
	}
}

func getMem(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		mem, err := mgr.Mem(c.Request.Context())
		if err != nil {
			klog.V(2).InfoS("Failed to read memory usage", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Mem: mem})
	}
}

func getDisks(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		disks, err := mgr.Disks(c.Request.Context())
		if err != nil {
			klog.V(2).InfoS("Failed to read disk usage", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Disks: disks})
	}
}
