package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-project/backend/apperrors"
	"taskboard-project/backend/logging"
	"taskboard-project/backend/models"
	"taskboard-project/backend/utils"
)

// UserService is the identity store: user records and their owned-project
// back-references. Username uniqueness is enforced at the collection level.
type UserService struct {
	UserCollection *mongo.Collection
}

func NewUserService(userCollection *mongo.Collection) *UserService {
	return &UserService{UserCollection: userCollection}
}

// EnsureIndexes creates the unique username index. Called once at startup.
func (s *UserService) EnsureIndexes(ctx context.Context) error {
	_, err := s.UserCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create username index: %v", err)
	}
	return nil
}

// FindByUsername returns the user, or nil without error when absent.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.UserCollection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %v", err)
	}
	return &user, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	userID, err := utils.ToObjectID(id)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.UserCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %v", err)
	}
	return &user, nil
}

// CreateUser inserts a new user record. A duplicate username surfaces as a
// Conflict via the unique index, whichever request wins the race.
func (s *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Projects == nil {
		user.Projects = []primitive.ObjectID{}
	}

	result, err := s.UserCollection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("username already taken")
		}
		return nil, fmt.Errorf("failed to save user: %v", err)
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	logging.Logger.Infof("Event ID: USER_CREATED, Description: User %s created", user.Username)
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	userID, err := utils.ToObjectID(id)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.UserCollection.FindOneAndDelete(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_DELETED, Description: User %s deleted", user.Username)
	return &user, nil
}

// GetAllUsers returns every user record, unordered.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.UserCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}
