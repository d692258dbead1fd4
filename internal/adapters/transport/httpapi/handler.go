package httpapi

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/clipstream/account-service/internal/adapters/transport/httpapi/dto"
	"github.com/clipstream/account-service/internal/adapters/transport/httpapi/middleware"
	appsvc "github.com/clipstream/account-service/internal/app/account/service"
	customErrors "github.com/clipstream/account-service/internal/domain/account/errors"
	"github.com/clipstream/account-service/internal/domain/account/media"
	"github.com/clipstream/account-service/internal/domain/account/model"
	"github.com/clipstream/account-service/internal/infra/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	svc appsvc.Service
	cfg *config.Config
	log *zap.Logger
}

func NewHandler(svc appsvc.Service, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{svc: svc, cfg: cfg, log: log}
}

// Mount вешает все маршруты на роутер. Группа /api/v1/users повторяет
// публичный контракт фронтенда.
func (h *Handler) Mount(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	users := r.Group("/api/v1/users")
	users.POST("/register", h.register)
	users.POST("/login", h.login)
	users.POST("/refresh-token", h.refresh)

	secured := users.Group("", middleware.RequireAuth(h.svc))
	secured.POST("/logout", h.logout)
	secured.GET("/current-user", h.currentUser)
	secured.POST("/change-password", h.changePassword)
	secured.PATCH("/update-details", h.updateDetails)
	secured.PATCH("/change-avatar", h.changeAvatar)
	secured.PATCH("/change-cover-image", h.changeCoverImage)
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	defer closeAvatar()

	var cover *media.Upload
	if up, closeCover, err := formUpload(c, "coverImage"); err == nil {
		defer closeCover()
		cover = &up
	}

	acc, err := h.svc.Register(c.Request.Context(), body, avatar, cover)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": acc})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, acc, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueTokens(c, pair, acc)
}

// refresh берёт токен из cookie, а если её нет — из JSON-тела. Так работают
// и браузерные, и мобильные клиенты.
func (h *Handler) refresh(c *gin.Context) {
	var body dto.RefreshDTO
	if cookie, err := c.Cookie("refreshToken"); err == nil && cookie != "" {
		body.RefreshToken = cookie
	} else if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.issueTokens(c, pair, model.PublicAccount{})
}

func (h *Handler) logout(c *gin.Context) {
	acc, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), acc.ID); err != nil {
		h.handleError(c, err)
		return
	}
	h.clearTokens(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) currentUser(c *gin.Context) {
	acc, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": acc.Public()})
}

func (h *Handler) changePassword(c *gin.Context) {
	acc, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body dto.ChangePasswordDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), acc.ID, body); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) updateDetails(c *gin.Context) {
	acc, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body dto.UpdateDetailsDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.svc.UpdateDetails(c.Request.Context(), acc.ID, body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}

func (h *Handler) changeAvatar(c *gin.Context) {
	h.changeMedia(c, "avatar", h.svc.UpdateAvatar)
}

func (h *Handler) changeCoverImage(c *gin.Context) {
	h.changeMedia(c, "coverImage", h.svc.UpdateCoverImage)
}

func (h *Handler) changeMedia(
	c *gin.Context,
	field string,
	update func(context.Context, uuid.UUID, media.Upload) (model.PublicAccount, error),
) {
	acc, ok := middleware.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	up, closeUp, err := formUpload(c, field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return
	}
	defer closeUp()

	updated, err := update(c.Request.Context(), acc.ID, up)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// issueTokens ставит пару cookie: access уходит с Lax (редиректы с внешних
// страниц должны проходить), refresh — строго Strict.
func (h *Handler) issueTokens(c *gin.Context, pair model.TokenPair, acc model.PublicAccount) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"accessToken",
		pair.AccessToken,
		int(pair.AccessTTL.Seconds()),
		"/",
		h.cfg.CookieDomain,
		true, // secure
		true, // httpOnly
	)

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		"refreshToken",
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/",
		h.cfg.CookieDomain,
		true,
		true,
	)

	resp := gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    int(pair.AccessTTL.Seconds()),
	}
	if acc.ID != uuid.Nil {
		resp["user"] = acc
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) clearTokens(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("accessToken", "", -1, "/", h.cfg.CookieDomain, true, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("refreshToken", "", -1, "/", h.cfg.CookieDomain, true, true)
}

func formUpload(c *gin.Context, field string) (media.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return media.Upload{}, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return media.Upload{}, nil, err
	}
	return media.Upload{
		Name:        fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case customErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case customErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case customErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case customErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case customErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
