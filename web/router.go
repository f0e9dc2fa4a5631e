package web

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"github.com/mklatt/dorfplatz/activitypub"
	"github.com/mklatt/dorfplatz/db"
	"github.com/mklatt/dorfplatz/gates"
	"github.com/mklatt/dorfplatz/util"
	"golang.org/x/time/rate"
)

const activityJSONContentType = "application/activity+json; charset=utf-8"

// NewRouter wires the HTTP surface: RSS feeds, and (behind withFed) the
// federation endpoints.
func NewRouter(database *db.DB, prov gates.Provider, conf *util.AppConfig) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		rss, err := GetRSS(database, conf, c.Query("username"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		feedId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}
		rssItem, err := GetRSSItem(database, conf, feedId)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rssItem})
		}
	})

	if conf.Conf.WithFed {
		// Stricter rate limit for federation endpoints: 5 req/sec per IP
		apLimiter := NewRateLimiter(rate.Limit(5), 10)

		// Max 1MB request body size for activities
		maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

		// Both inbox routes run the same handler; the activity itself
		// names its target, so no routing by username is needed.
		inboxHandler := func(c *gin.Context) {
			activitypub.HandleInbox(database, prov, conf, c.Writer, c.Request)
		}
		g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, inboxHandler)
		g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, inboxHandler)

		g.GET("/users/:actor", func(c *gin.Context) {
			c.Header("Content-Type", activityJSONContentType)
			err, doc := GetActorDocument(database, c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: doc})
			} else {
				c.Render(200, render.String{Format: doc})
			}
		})

		g.GET("/users/:actor/outbox", func(c *gin.Context) {
			c.Header("Content-Type", activityJSONContentType)
			paged := c.Query("page") == "true"
			err, outbox := GetOutbox(database, c.Param("actor"), c.Query("cursor"), paged, conf)
			if err != nil {
				c.Render(404, render.String{Format: outbox})
			} else {
				c.Render(200, render.String{Format: outbox})
			}
		})

		g.GET("/users/:actor/followers", func(c *gin.Context) {
			c.Header("Content-Type", activityJSONContentType)
			err, collection := GetFollowersCollection(database, c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: collection})
			} else {
				c.Render(200, render.String{Format: collection})
			}
		})

		g.GET("/users/:actor/following", func(c *gin.Context) {
			c.Header("Content-Type", activityJSONContentType)
			err, collection := GetFollowingCollection(database, c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: collection})
			} else {
				c.Render(200, render.String{Format: collection})
			}
		})

		g.GET("/statuses/:id", func(c *gin.Context) {
			c.Header("Content-Type", activityJSONContentType)
			statusId, err := uuid.Parse(c.Param("id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "Invalid status ID"})
				return
			}
			err, object := GetStatusObject(database, statusId)
			if err != nil {
				c.JSON(404, gin.H{"error": "Status not found"})
			} else {
				c.Render(200, render.String{Format: object})
			}
		})

		g.GET("/.well-known/webfinger", func(c *gin.Context) {
			c.Header("Content-Type", "application/json; charset=utf-8")
			resource := c.Query("resource")
			if resource == "" || !strings.HasPrefix(resource, "acct:") {
				c.Render(404, render.String{Format: GetWebFingerNotFound()})
				return
			}
			resource = strings.TrimPrefix(resource, "acct:")
			resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.Domain))
			err, resp := GetWebfinger(database, resource, conf)
			if err != nil {
				c.Render(404, render.String{Format: GetWebFingerNotFound()})
			} else {
				c.Render(200, render.String{Format: resp})
			}
		})
	}

	return g
}

// Router starts the HTTP server and blocks.
func Router(database *db.DB, prov gates.Provider, conf *util.AppConfig) error {
	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := NewRouter(database, prov, conf)
	return g.Run(fmt.Sprintf(":%d", conf.Conf.HttpPort))
}
