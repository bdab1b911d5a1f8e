package utils

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Cors allows the configured origins. An entry starting with "*." matches
// every subdomain of the rest.
func Cors(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()

	var exact, suffixes []string
	for _, origin := range origins {
		if strings.HasPrefix(origin, "*.") {
			suffixes = append(suffixes, origin[1:])
			continue
		}
		exact = append(exact, origin)
	}

	config.AllowOriginFunc = func(origin string) bool {
		for _, allowed := range exact {
			if origin == allowed {
				return true
			}
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
		return false
	}

	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "Authorization", "X-Request-Id"}
	config.ExposeHeaders = []string{"Content-Disposition", "X-Request-Id"}
	config.AllowCredentials = true

	return cors.New(config)
}
