package users

import "time"

// User is an authenticated SpareFinder account.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	PictureURL     string    `json:"pictureUrl"`
	WelcomeGranted bool      `json:"welcomeGranted"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
