// models/category.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category model
type Category struct {
	ID             primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	Name           string              `json:"name" bson:"name"`
	Description    string              `json:"description,omitempty" bson:"description,omitempty"`
	ParentCategory *primitive.ObjectID `json:"parentCategory,omitempty" bson:"parentCategory,omitempty"`
	IsActive       bool                `json:"isActive" bson:"isActive"`
	Image          string              `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// CategoryRequest is the payload for creating or updating a category.
// Image uploads arrive as multipart form data alongside these fields.
type CategoryRequest struct {
	Name           string `json:"name" form:"name"`
	Description    string `json:"description" form:"description"`
	ParentCategory string `json:"parentCategory" form:"parentCategory"`
	IsActive       *bool  `json:"isActive" form:"isActive"`
}
