package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plantify/plantify_backend/config"
	"github.com/plantify/plantify_backend/models"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Client) *UserRepository {
	return &UserRepository{
		collection: config.GetCollection(db, "users"),
	}
}

// Create inserts a new user and returns it with its generated ID.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

// FindByEmail returns the user with the given email, or
// mongo.ErrNoDocuments.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns the user with the given hex ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByGoogleID returns the user linked to the given Google account.
func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"googleId": googleID}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarkEmailVerified flips the verification flag for the email. It is the
// persistence step of a successful OTP verification.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, email string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"isVerified": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdatePassword replaces the stored credential hash and invalidates any
// outstanding refresh token.
func (r *UserRepository) UpdatePassword(ctx context.Context, email, hashedPassword string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"email": email},
		bson.M{
			"$set":   bson.M{"password": hashedPassword, "updatedAt": time.Now()},
			"$unset": bson.M{"refreshToken": ""},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetRefreshToken stores the refresh token issued at login.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID primitive.ObjectID, refreshToken string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"refreshToken": refreshToken, "updatedAt": time.Now()}},
	)
	return err
}

// ClearRefreshToken removes the stored refresh token at logout.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":   bson.M{"updatedAt": time.Now()},
			"$unset": bson.M{"refreshToken": ""},
		},
	)
	return err
}

// UpdateProfile updates mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID primitive.ObjectID, fullName string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"fullName": fullName, "updatedAt": time.Now()}},
	)
	return err
}

// UpdateProfileImage stores the URL of a newly uploaded profile image.
func (r *UserRepository) UpdateProfileImage(ctx context.Context, userID primitive.ObjectID, imageURL string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"profileImage": imageURL, "updatedAt": time.Now()}},
	)
	return err
}

// LinkGoogleID attaches a Google account to an existing user.
func (r *UserRepository) LinkGoogleID(ctx context.Context, userID primitive.ObjectID, googleID string) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"googleId": googleID, "updatedAt": time.Now()}},
	)
	return err
}

// List returns users ordered by creation time, newest first.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Delete removes the user with the given hex ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
