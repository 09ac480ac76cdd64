package repository

import (
	"context"
	"errors"
	"task-manager-api/logger"
	"task-manager-api/model"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDocument is the BSON shape of a user in the users collection.
type userDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	Avatar                  model.Avatar       `bson:"avatar"`
	Username                string             `bson:"username"`
	Email                   string             `bson:"email"`
	FullName                string             `bson:"fullName,omitempty"`
	Password                string             `bson:"password"`
	IsEmailVerified         bool               `bson:"isEmailVerified"`
	RefreshToken            string             `bson:"refreshToken,omitempty"`
	ForgotPasswordToken     string             `bson:"forgotPasswordToken,omitempty"`
	ForgotPasswordExpiry    *time.Time         `bson:"forgotPasswordExpiry,omitempty"`
	EmailVerificationToken  string             `bson:"emailVerificationToken,omitempty"`
	EmailVerificationExpiry *time.Time         `bson:"emailVerificationExpiry,omitempty"`
	CreatedAt               time.Time          `bson:"createdAt"`
	UpdatedAt               time.Time          `bson:"updatedAt"`
}

func toDocument(u *model.User) userDocument {
	return userDocument{
		Avatar:                  u.Avatar,
		Username:                u.Username,
		Email:                   u.Email,
		FullName:                u.FullName,
		Password:                u.PasswordHash,
		IsEmailVerified:         u.IsEmailVerified,
		RefreshToken:            u.RefreshToken,
		ForgotPasswordToken:     u.ForgotPasswordToken,
		ForgotPasswordExpiry:    u.ForgotPasswordExpiry,
		EmailVerificationToken:  u.EmailVerificationToken,
		EmailVerificationExpiry: u.EmailVerificationExpiry,
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func (d *userDocument) toModel() *model.User {
	return &model.User{
		ID:                      d.ID.Hex(),
		Avatar:                  d.Avatar,
		Username:                d.Username,
		Email:                   d.Email,
		FullName:                d.FullName,
		PasswordHash:            d.Password,
		IsEmailVerified:         d.IsEmailVerified,
		RefreshToken:            d.RefreshToken,
		ForgotPasswordToken:     d.ForgotPasswordToken,
		ForgotPasswordExpiry:    d.ForgotPasswordExpiry,
		EmailVerificationToken:  d.EmailVerificationToken,
		EmailVerificationExpiry: d.EmailVerificationExpiry,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

// MongoUserRepository implements IUserRepository on a MongoDB collection.
type MongoUserRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoUserRepository(collection *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{collection: collection, now: time.Now}
}

// EnsureIndexes creates the unique username/email indexes that back
// ErrDuplicate, plus sparse lookup indexes for the token hashes.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "emailVerificationToken", Value: 1}}, Options: options.Index().SetSparse(true).SetName("email_verification_token")},
		{Keys: bson.D{{Key: "forgotPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true).SetName("forgot_password_token")},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Log.WithError(err).Error("Failed to create user indexes")
		return err
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute user lookup")
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	username = model.NormalizeUsername(username)
	email = model.NormalizeEmail(email)

	var or bson.A
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

func (r *MongoUserRepository) Create(ctx context.Context, user *model.User) error {
	user.Normalize()
	log := logger.Log.WithFields(logrus.Fields{
		"username": user.Username,
		"email":    user.Email,
	})
	log.Info("Inserting a new user document")

	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Info("User insert rejected by unique index")
			return ErrDuplicate
		}
		log.WithError(err).Error("Failed to insert user document")
		return err
	}

	user.ID = doc.ID.Hex()
	return nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoUserRepository) FindByEmailVerificationToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"emailVerificationToken": tokenHash})
}

func (r *MongoUserRepository) FindByForgotPasswordToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"forgotPasswordToken": tokenHash})
}

// updateOne applies set and unset to the document matching filter. Only the
// named fields are written.
func (r *MongoUserRepository) updateOne(ctx context.Context, filter, set bson.M, unset ...string) error {
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = r.now().UTC()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, f := range unset {
			fields[f] = ""
		}
		update["$unset"] = fields
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Log.WithError(err).WithField("filter", filter).Error("Failed to update user document")
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) updateByID(ctx context.Context, id string, filter, set bson.M, unset ...string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	if filter == nil {
		filter = bson.M{}
	}
	filter["_id"] = oid
	return r.updateOne(ctx, filter, set, unset...)
}

// consume atomically updates the document matching filter and returns it
// as stored after the update.
func (r *MongoUserRepository) consume(ctx context.Context, filter, set bson.M, unset ...string) (*model.User, error) {
	set["updatedAt"] = r.now().UTC()
	fields := bson.M{}
	for _, f := range unset {
		fields[f] = ""
	}
	update := bson.M{"$set": set, "$unset": fields}

	var doc userDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to consume user token")
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepository) SetEmailVerificationToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return r.updateByID(ctx, id, nil, bson.M{
		"emailVerificationToken":  tokenHash,
		"emailVerificationExpiry": expiry.UTC(),
	})
}

func (r *MongoUserRepository) SetForgotPasswordToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return r.updateByID(ctx, id, nil, bson.M{
		"forgotPasswordToken":  tokenHash,
		"forgotPasswordExpiry": expiry.UTC(),
	})
}

func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	if token == "" {
		return r.updateByID(ctx, id, nil, nil, "refreshToken")
	}
	return r.updateByID(ctx, id, nil, bson.M{"refreshToken": token})
}

func (r *MongoUserRepository) ReplaceRefreshToken(ctx context.Context, id, current, next string) error {
	if current == "" {
		return ErrNotFound
	}
	return r.updateByID(ctx, id, bson.M{"refreshToken": current}, bson.M{"refreshToken": next})
}

func (r *MongoUserRepository) ReplacePasswordHash(ctx context.Context, id, current, next string) error {
	return r.updateByID(ctx, id, bson.M{"password": current}, bson.M{"password": next})
}

func (r *MongoUserRepository) ConsumeEmailVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	filter := bson.M{
		"emailVerificationToken":  tokenHash,
		"emailVerificationExpiry": bson.M{"$gt": now.UTC()},
	}
	return r.consume(ctx, filter, bson.M{"isEmailVerified": true},
		"emailVerificationToken", "emailVerificationExpiry")
}

func (r *MongoUserRepository) ConsumeForgotPasswordToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, ErrNotFound
	}
	filter := bson.M{
		"forgotPasswordToken":  tokenHash,
		"forgotPasswordExpiry": bson.M{"$gt": now.UTC()},
	}
	return r.consume(ctx, filter, bson.M{"password": passwordHash},
		"forgotPasswordToken", "forgotPasswordExpiry", "refreshToken")
}
