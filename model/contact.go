package model

// Favorite links a user to a saved listing.
type Favorite struct {
	ID         int64     `json:"id"`
	UserEmail  string    `json:"userEmail"`
	PropertyID int64     `json:"propertyId"`
	CreatedAt  Timestamp `json:"createdAt"`
}

// FavoriteStatus is returned by the favorite status endpoint.
type FavoriteStatus struct {
	IsFavorite bool `json:"isFavorite"`
}

// Count is the body of the favorite count endpoints.
type Count struct {
	Count int64 `json:"count"`
}

// ContactForm is the body of POST /contact/submit.
type ContactForm struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	InquiryType string `json:"inquiryType,omitempty"`
}

// NewsletterRequest subscribes or unsubscribes an address.
type NewsletterRequest struct {
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// NewsletterResponse is returned by the newsletter endpoints.
type NewsletterResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Message is a bare {message} body.
type Message struct {
	Message string `json:"message"`
}

// ImageURL is the body returned by upload endpoints.
type ImageURL struct {
	URL string `json:"url"`
}
