package rpc

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// PathPrefix is where the procedures are served on the site
const PathPrefix = "/rpc"

// Mount serves handler under /rpc with CORS for browser clients
func Mount(r *gin.Engine, handler http.Handler, allowedOrigins []string) {
	group := r.Group(PathPrefix, cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"Connect-Protocol-Version", "Connect-Timeout-Ms", "X-User-Agent",
		},
		ExposeHeaders: []string{"Content-Length", "Grpc-Status", "Grpc-Message", "X-Bid-Rejection-Reason"},
		MaxAge:        12 * time.Hour,
	}))
	group.Any("/*procedure", gin.WrapH(http.StripPrefix(PathPrefix, handler)))
}
