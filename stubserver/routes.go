package stubserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/goPortal/model"
)

func (s *Server) routes(r *gin.RouterGroup) {
	r.Use(bearer)

	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/token/refresh", s.refresh)
	auth.POST("/token/revoke", s.revoke)

	account := r.Group("/account")
	account.GET("/verify", s.verifyEmail)
	account.POST("/resend-verification", s.resendVerification)
	account.POST("/password/forgot", s.forgotPassword)
	account.POST("/password/reset", s.resetPassword)

	users := r.Group("/users")
	users.GET("/profile", s.currentUser)
	users.PUT("/profile", s.updateProfile)
	users.POST("/profile/picture", s.uploadProfilePicture)
	users.POST("/profile/change-password", s.changePassword)
	users.GET("", s.listUsers)
	users.GET("/by-role/:role", s.listUsers)
	users.GET("/:id", s.getUser)
	users.PUT("/:id", s.updateUser)
	users.DELETE("/:id", s.deleteUser)

	props := r.Group("/properties")
	props.GET("", s.listProperties)
	props.POST("", s.createProperty)
	props.GET("/search", s.searchProperties)
	props.GET("/favorites", s.favoriteProperties)
	props.GET("/favorites/ids", s.favoriteIDs)
	props.GET("/favorites/count", s.favoriteCount)
	props.POST("/favorites/:id", s.addFavorite)
	props.DELETE("/favorites/:id", s.removeFavorite)
	props.GET("/favorites/:id/status", s.favoriteStatus)
	props.GET("/favorites/:id/count", s.propertyFavoriteCount)
	props.GET("/:id", s.getProperty)
	props.PUT("/:id", s.updateProperty)
	props.DELETE("/:id", s.deleteProperty)
	props.GET("/:id/similar", s.similarProperties)
	props.GET("/:id/images", s.listImages)
	props.POST("/:id/images", s.uploadImage)
	props.PUT("/:id/images/reorder", s.reorderImages)
	props.DELETE("/:id/images/:imageId", s.deleteImage)
	props.PUT("/:id/images/:imageId/main", s.setMainImage)

	contact := r.Group("/contact")
	contact.POST("/submit", s.submitContact)
	contact.POST("/newsletter", s.subscribe)
	contact.POST("/newsletter/unsubscribe", s.unsubscribe)
	contact.GET("/newsletter/verify", s.verifyUnsubscribe)
}

// bind decodes a JSON body into dst, answering 400 on failure.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.badRequest(c, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) id(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *Server) pageRequest(c *gin.Context) (model.PageRequest, bool) {
	var req model.PageRequest
	var err error
	if v := c.Query("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			s.badRequest(c, "Invalid page")
			return req, false
		}
	}
	if v := c.Query("size"); v != "" {
		if req.Size, err = strconv.Atoi(v); err != nil {
			s.badRequest(c, "Invalid size")
			return req, false
		}
	}
	req.Sort = c.Query("sort")
	return req, true
}

// upload reads the multipart "file" field.
func (s *Server) upload(c *gin.Context) (model.Upload, func(), bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, "File is required")
		return model.Upload{}, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		s.badRequest(c, "Could not read file")
		return model.Upload{}, nil, false
	}
	return model.Upload{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}, func() { f.Close() }, true
}

func (s *Server) respond(c *gin.Context, status int, body any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}

// Auth and account.

func (s *Server) login(c *gin.Context) {
	var creds model.Credentials
	if !s.bind(c, &creds) {
		return
	}
	resp, err := s.backend.Login(c.Request.Context(), creds)
	s.respond(c, http.StatusOK, resp, err)
}

func (s *Server) register(c *gin.Context) {
	var reg model.Registration
	if !s.bind(c, &reg) {
		return
	}
	msg, err := s.backend.Register(c.Request.Context(), reg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.String(http.StatusCreated, msg)
}

func (s *Server) refresh(c *gin.Context) {
	var req model.RefreshRequest
	if !s.bind(c, &req) {
		return
	}
	resp, err := s.backend.RefreshToken(c.Request.Context(), req.RefreshToken)
	s.respond(c, http.StatusOK, resp, err)
}

func (s *Server) revoke(c *gin.Context) {
	var req model.RefreshRequest
	if !s.bind(c, &req) {
		return
	}
	s.respond(c, http.StatusNoContent, nil, s.backend.RevokeToken(c.Request.Context(), req.RefreshToken))
}

func (s *Server) verifyEmail(c *gin.Context) {
	err := s.backend.VerifyEmail(c.Request.Context(), trimmed(c, "token"))
	s.respond(c, http.StatusOK, model.Message{Message: "Email verified successfully"}, err)
}

func (s *Server) resendVerification(c *gin.Context) {
	err := s.backend.ResendVerification(c.Request.Context(), trimmed(c, "email"))
	s.respond(c, http.StatusOK, model.Message{Message: "Verification email sent"}, err)
}

func (s *Server) forgotPassword(c *gin.Context) {
	err := s.backend.ForgotPassword(c.Request.Context(), trimmed(c, "email"))
	s.respond(c, http.StatusOK, model.Message{Message: "Password reset email sent"}, err)
}

func (s *Server) resetPassword(c *gin.Context) {
	var reset model.PasswordReset
	if !s.bind(c, &reset) {
		return
	}
	err := s.backend.ResetPassword(c.Request.Context(), reset)
	s.respond(c, http.StatusOK, model.Message{Message: "Password reset successful"}, err)
}

func (s *Server) currentUser(c *gin.Context) {
	u, err := s.backend.CurrentUser(c.Request.Context())
	s.respond(c, http.StatusOK, u, err)
}

func (s *Server) updateProfile(c *gin.Context) {
	var update model.ProfileUpdate
	if !s.bind(c, &update) {
		return
	}
	u, err := s.backend.UpdateProfile(c.Request.Context(), update)
	s.respond(c, http.StatusOK, u, err)
}

func (s *Server) uploadProfilePicture(c *gin.Context) {
	up, done, ok := s.upload(c)
	if !ok {
		return
	}
	defer done()
	url, err := s.backend.UploadProfilePicture(c.Request.Context(), up)
	s.respond(c, http.StatusOK, model.ImageURL{URL: url}, err)
}

func (s *Server) changePassword(c *gin.Context) {
	var change model.PasswordChange
	if !s.bind(c, &change) {
		return
	}
	err := s.backend.ChangePassword(c.Request.Context(), change)
	s.respond(c, http.StatusOK, model.Message{Message: "Password changed successfully"}, err)
}

// Administration.

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.backend.ListUsers(c.Request.Context(), c.Param("role"))
	s.respond(c, http.StatusOK, users, err)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	u, err := s.backend.GetUser(c.Request.Context(), id)
	s.respond(c, http.StatusOK, u, err)
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	var update model.UserUpdate
	if !s.bind(c, &update) {
		return
	}
	u, err := s.backend.UpdateUser(c.Request.Context(), id, update)
	s.respond(c, http.StatusOK, u, err)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	s.respond(c, http.StatusNoContent, nil, s.backend.DeleteUser(c.Request.Context(), id))
}

// Listings.

func (s *Server) listProperties(c *gin.Context) {
	req, ok := s.pageRequest(c)
	if !ok {
		return
	}
	page, err := s.backend.ListProperties(c.Request.Context(), req)
	s.respond(c, http.StatusOK, page, err)
}

func (s *Server) searchProperties(c *gin.Context) {
	req, ok := s.pageRequest(c)
	if !ok {
		return
	}
	criteria, err := model.ParseSearchCriteria(c.Request.URL.Query())
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	page, err := s.backend.SearchProperties(c.Request.Context(), criteria, req)
	s.respond(c, http.StatusOK, page, err)
}

func (s *Server) getProperty(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	p, err := s.backend.GetProperty(c.Request.Context(), id)
	s.respond(c, http.StatusOK, p, err)
}

func (s *Server) similarProperties(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	props, err := s.backend.SimilarProperties(c.Request.Context(), id, limit)
	s.respond(c, http.StatusOK, props, err)
}

func (s *Server) createProperty(c *gin.Context) {
	var p model.Property
	if !s.bind(c, &p) {
		return
	}
	created, err := s.backend.CreateProperty(c.Request.Context(), p)
	s.respond(c, http.StatusCreated, created, err)
}

func (s *Server) updateProperty(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	var p model.Property
	if !s.bind(c, &p) {
		return
	}
	updated, err := s.backend.UpdateProperty(c.Request.Context(), id, p)
	s.respond(c, http.StatusOK, updated, err)
}

func (s *Server) deleteProperty(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	s.respond(c, http.StatusNoContent, nil, s.backend.DeleteProperty(c.Request.Context(), id))
}

func (s *Server) listImages(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	imgs, err := s.backend.ListImages(c.Request.Context(), id)
	s.respond(c, http.StatusOK, imgs, err)
}

func (s *Server) uploadImage(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	up, done, ok := s.upload(c)
	if !ok {
		return
	}
	defer done()
	img, err := s.backend.UploadImage(c.Request.Context(), id, up)
	s.respond(c, http.StatusCreated, img, err)
}

func (s *Server) reorderImages(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	var ids []int64
	if !s.bind(c, &ids) {
		return
	}
	imgs, err := s.backend.ReorderImages(c.Request.Context(), id, ids)
	s.respond(c, http.StatusOK, imgs, err)
}

func (s *Server) deleteImage(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	imageID, ok := s.id(c, "imageId")
	if !ok {
		return
	}
	s.respond(c, http.StatusNoContent, nil, s.backend.DeleteImage(c.Request.Context(), id, imageID))
}

func (s *Server) setMainImage(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	imageID, ok := s.id(c, "imageId")
	if !ok {
		return
	}
	img, err := s.backend.SetMainImage(c.Request.Context(), id, imageID)
	s.respond(c, http.StatusOK, img, err)
}

// Favorites.

func (s *Server) favoriteIDs(c *gin.Context) {
	ids, err := s.backend.FavoriteIDs(c.Request.Context())
	s.respond(c, http.StatusOK, ids, err)
}

func (s *Server) favoriteProperties(c *gin.Context) {
	req, ok := s.pageRequest(c)
	if !ok {
		return
	}
	page, err := s.backend.FavoriteProperties(c.Request.Context(), req)
	s.respond(c, http.StatusOK, page, err)
}

func (s *Server) addFavorite(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	fav, err := s.backend.AddFavorite(c.Request.Context(), id)
	s.respond(c, http.StatusOK, fav, err)
}

func (s *Server) removeFavorite(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	s.respond(c, http.StatusNoContent, nil, s.backend.RemoveFavorite(c.Request.Context(), id))
}

func (s *Server) favoriteStatus(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	fav, err := s.backend.IsFavorite(c.Request.Context(), id)
	s.respond(c, http.StatusOK, model.FavoriteStatus{IsFavorite: fav}, err)
}

func (s *Server) favoriteCount(c *gin.Context) {
	n, err := s.backend.FavoriteCount(c.Request.Context())
	s.respond(c, http.StatusOK, model.Count{Count: n}, err)
}

func (s *Server) propertyFavoriteCount(c *gin.Context) {
	id, ok := s.id(c, "id")
	if !ok {
		return
	}
	n, err := s.backend.PropertyFavoriteCount(c.Request.Context(), id)
	s.respond(c, http.StatusOK, model.Count{Count: n}, err)
}

// Contact and newsletter.

func (s *Server) submitContact(c *gin.Context) {
	var form model.ContactForm
	if !s.bind(c, &form) {
		return
	}
	msg, err := s.backend.SubmitContact(c.Request.Context(), form)
	s.respond(c, http.StatusOK, msg, err)
}

func (s *Server) subscribe(c *gin.Context) {
	var req model.NewsletterRequest
	if !s.bind(c, &req) {
		return
	}
	resp, err := s.backend.Subscribe(c.Request.Context(), req.Email)
	s.respond(c, http.StatusOK, resp, err)
}

func (s *Server) unsubscribe(c *gin.Context) {
	var req model.NewsletterRequest
	if !s.bind(c, &req) {
		return
	}
	resp, err := s.backend.Unsubscribe(c.Request.Context(), req.Email, req.Token)
	s.respond(c, http.StatusOK, resp, err)
}

func (s *Server) verifyUnsubscribe(c *gin.Context) {
	resp, err := s.backend.VerifyUnsubscribeToken(c.Request.Context(), trimmed(c, "token"))
	s.respond(c, http.StatusOK, resp, err)
}
