package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const sessionUser = "user"

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	Username      string
	Password      string
	SessionSecret string
	// TemplateDir holds index.html and login.html. Empty skips loading, so
	// callers can install templates themselves.
	TemplateDir string
	// TemplateFile is served by /download-template when it exists.
	TemplateFile string
}

// NewRouter wires the login flow, the job endpoints and the ambient routes.
func NewRouter(cfg RouterConfig, h *JobHandler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("zonemap", store))

	if cfg.TemplateDir != "" {
		r.LoadHTMLGlob(filepath.Join(cfg.TemplateDir, "*.html"))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	r.GET("/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "login.html", gin.H{})
	})
	r.POST("/login", Login(cfg.Username, cfg.Password))
	r.GET("/logout", Logout)

	authorized := r.Group("/")
	authorized.Use(AuthRequired)
	{
		authorized.GET("/", func(c *gin.Context) {
			c.HTML(http.StatusOK, "index.html", gin.H{})
		})
		authorized.POST("/run", h.Run)
		authorized.GET("/logs", h.Logs)
		authorized.GET("/status", h.Status)
		authorized.POST("/cancel", h.Cancel)
		authorized.GET("/download/:job_id/:kind", h.Download)
		authorized.GET("/download-template", func(c *gin.Context) {
			if cfg.TemplateFile == "" {
				c.String(http.StatusNotFound, "Template not found")
				return
			}
			if _, err := os.Stat(cfg.TemplateFile); err != nil {
				c.String(http.StatusNotFound, "Template not found")
				return
			}
			c.FileAttachment(cfg.TemplateFile, filepath.Base(cfg.TemplateFile))
		})
	}
	return r
}

// AuthRequired redirects anonymous visitors to the login page.
func AuthRequired(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get(sessionUser) == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// Login checks the configured credentials. An empty password rejects every
// login attempt.
func Login(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.PostForm("username")
		pass := c.PostForm("password")

		if password == "" || user != username || pass != password {
			c.HTML(http.StatusUnauthorized, "login.html", gin.H{
				"Error": "Invalid username or password",
			})
			return
		}

		session := sessions.Default(c)
		session.Set(sessionUser, user)
		if err := session.Save(); err != nil {
			c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "Could not open a session"})
			return
		}
		c.Redirect(http.StatusFound, "/")
	}
}

func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}
