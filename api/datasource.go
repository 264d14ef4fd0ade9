package api

import (
	"context"

	"github.com/MrEthical07/goPortal/model"
)

// AuthService covers authentication, account recovery and the caller's
// own profile.
type AuthService interface {
	Login(ctx context.Context, creds model.Credentials) (*model.LoginResponse, error)
	// Register returns the server's confirmation message.
	Register(ctx context.Context, reg model.Registration) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	RevokeToken(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, reset model.PasswordReset) error
	CurrentUser(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error)
	// UploadProfilePicture returns the URL of the stored picture.
	UploadProfilePicture(ctx context.Context, upload model.Upload) (string, error)
	ChangePassword(ctx context.Context, change model.PasswordChange) error
}

// PropertyService covers listings and their images.
type PropertyService interface {
	ListProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error)
	GetProperty(ctx context.Context, id int64) (*model.Property, error)
	SearchProperties(ctx context.Context, criteria model.SearchCriteria, page model.PageRequest) (*model.PropertyPage, error)
	SimilarProperties(ctx context.Context, id int64, limit int) ([]model.Property, error)
	CreateProperty(ctx context.Context, p model.Property) (*model.Property, error)
	UpdateProperty(ctx context.Context, id int64, p model.Property) (*model.Property, error)
	DeleteProperty(ctx context.Context, id int64) error
	ListImages(ctx context.Context, propertyID int64) ([]model.Image, error)
	UploadImage(ctx context.Context, propertyID int64, upload model.Upload) (*model.Image, error)
	DeleteImage(ctx context.Context, propertyID, imageID int64) error
	SetMainImage(ctx context.Context, propertyID, imageID int64) (*model.Image, error)
	ReorderImages(ctx context.Context, propertyID int64, imageIDs []int64) ([]model.Image, error)
}

// FavoriteService covers the caller's saved listings.
type FavoriteService interface {
	FavoriteIDs(ctx context.Context) ([]int64, error)
	FavoriteProperties(ctx context.Context, page model.PageRequest) (*model.PropertyPage, error)
	AddFavorite(ctx context.Context, propertyID int64) (*model.Favorite, error)
	RemoveFavorite(ctx context.Context, propertyID int64) error
	IsFavorite(ctx context.Context, propertyID int64) (bool, error)
	FavoriteCount(ctx context.Context) (int64, error)
	PropertyFavoriteCount(ctx context.Context, propertyID int64) (int64, error)
}

// ContactService covers the contact form and the newsletter.
type ContactService interface {
	SubmitContact(ctx context.Context, form model.ContactForm) (*model.Message, error)
	Subscribe(ctx context.Context, email string) (*model.NewsletterResponse, error)
	Unsubscribe(ctx context.Context, email, token string) (*model.NewsletterResponse, error)
	VerifyUnsubscribeToken(ctx context.Context, token string) (*model.NewsletterResponse, error)
}

// UserAdminService covers account administration. It requires ROLE_ADMIN.
type UserAdminService interface {
	// ListUsers returns every account, or those holding role when set.
	ListUsers(ctx context.Context, role string) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, update model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// DataSource is everything the portal reads from or writes to its backend.
// One implementation is chosen when the client is built and never swapped
// at runtime.
type DataSource interface {
	AuthService
	PropertyService
	FavoriteService
	ContactService
	UserAdminService
}
