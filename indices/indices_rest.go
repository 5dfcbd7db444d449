package indices

import (
	"net/http"

	"blogapi/authority"
	"blogapi/session"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexRequests = "/v1/index-requests"
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", session.RequirePermissions(authority.EditPost), handleIndexRequest)
}

func handleIndexRequest(c *gin.Context) {
	success, err := ScheduleNewSyncRunFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": success})
}
