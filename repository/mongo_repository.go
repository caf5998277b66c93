package repository

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crispai/crisp/backend/models"
)

// Connect opens a Mongo client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// MongoRepository wraps the users, interviews and refresh token collections.
type MongoRepository struct {
	users      *mongo.Collection
	interviews *mongo.Collection
	tokens     *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		users:      db.Collection("users"),
		interviews: db.Collection("interviews"),
		tokens:     db.Collection("refresh_tokens"),
	}
}

// EnsureIndexes creates the indexes the query paths rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = r.interviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "candidateId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "totalScore", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = r.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// User operations

func (r *MongoRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	res, err := r.users.InsertOne(ctx, user)
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	slog.Info("User created", "user_id", user.ID.Hex(), "email", user.Email)
	return nil
}

func (r *MongoRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *MongoRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id.Hex())
		return nil, err
	}
	return &user, nil
}

// Token operations

func (r *MongoRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.CreatedAt = time.Now().UTC()
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *MongoRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	filter := bson.M{"token": tokenHash, "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	if err := r.tokens.FindOne(ctx, filter).Decode(&token); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &token, nil
}

func (r *MongoRepository) DeleteAllUserTokens(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := r.tokens.DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
		slog.Error("Failed to delete user tokens", "error", err, "user_id", userID.Hex())
		return err
	}
	return nil
}

// Interview operations

func (r *MongoRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	now := time.Now().UTC()
	interview.CreatedAt, interview.UpdatedAt = now, now
	interview.TotalScore = interview.ComputeTotalScore()
	res, err := r.interviews.InsertOne(ctx, interview)
	if err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		interview.ID = oid
	}
	slog.Info("Interview created", "interview_id", interview.ID.Hex(), "candidate_id", interview.CandidateID.Hex())
	return nil
}

func (r *MongoRepository) GetInterview(ctx context.Context, id primitive.ObjectID) (*models.Interview, error) {
	var interview models.Interview
	if err := r.interviews.FindOne(ctx, bson.M{"_id": id}).Decode(&interview); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", id.Hex())
		return nil, err
	}
	return &interview, nil
}

func (r *MongoRepository) GetInterviewForCandidate(ctx context.Context, id, candidateID primitive.ObjectID) (*models.Interview, error) {
	var interview models.Interview
	filter := bson.M{"_id": id, "candidateId": candidateID}
	if err := r.interviews.FindOne(ctx, filter).Decode(&interview); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get interview for candidate", "error", err, "interview_id", id.Hex(), "candidate_id", candidateID.Hex())
		return nil, err
	}
	return &interview, nil
}

// GetLatestCompletedInterview returns the candidate's most recent completed
// interview. The reattempt gate is evaluated against this document.
func (r *MongoRepository) GetLatestCompletedInterview(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error) {
	var interview models.Interview
	filter := bson.M{"candidateId": candidateID, "status": models.StatusCompleted}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.interviews.FindOne(ctx, filter, opts).Decode(&interview); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get completed interview", "error", err, "candidate_id", candidateID.Hex())
		return nil, err
	}
	return &interview, nil
}

func (r *MongoRepository) UpdateCandidateInfo(ctx context.Context, id, candidateID primitive.ObjectID, name, email, phone string) (*models.Interview, error) {
	filter := bson.M{"_id": id, "candidateId": candidateID}
	update := bson.M{"$set": bson.M{
		"candidateName":  name,
		"candidateEmail": email,
		"candidatePhone": phone,
		"updatedAt":      time.Now().UTC(),
	}}
	var updated models.Interview
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.interviews.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to update candidate info", "error", err, "interview_id", id.Hex())
		return nil, err
	}
	return &updated, nil
}

// StartInterview moves a pending interview to in_progress. The filter
// includes the pending status so the transition cannot repeat or regress.
func (r *MongoRepository) StartInterview(ctx context.Context, id, candidateID primitive.ObjectID, startedAt time.Time) (*models.Interview, error) {
	filter := bson.M{"_id": id, "candidateId": candidateID, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{
		"status":               models.StatusInProgress,
		"startedAt":            startedAt,
		"currentQuestionIndex": 0,
		"updatedAt":            time.Now().UTC(),
	}}
	var updated models.Interview
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.interviews.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to start interview", "error", err, "interview_id", id.Hex())
		return nil, err
	}
	slog.Info("Interview started", "interview_id", id.Hex(), "candidate_id", candidateID.Hex())
	return &updated, nil
}

// SubmitAnswer persists one answered question in a single guarded update.
// The filter pins the question cursor read by the caller, so two racing
// submissions for the same index cannot both commit: the loser matches
// nothing and the caller reports a conflict.
func (r *MongoRepository) SubmitAnswer(ctx context.Context, interview *models.Interview, answeredIndex int) (*models.Interview, error) {
	interview.TotalScore = interview.ComputeTotalScore()
	filter := bson.M{
		"_id":                  interview.ID,
		"candidateId":          interview.CandidateID,
		"currentQuestionIndex": answeredIndex,
	}
	set := bson.M{
		"questions":            interview.Questions,
		"currentQuestionIndex": interview.CurrentQuestionIndex,
		"status":               interview.Status,
		"totalScore":           interview.TotalScore,
		"updatedAt":            time.Now().UTC(),
	}
	if interview.Status == models.StatusCompleted {
		set["aiSummary"] = interview.AISummary
		set["completedAt"] = interview.CompletedAt
	}
	var updated models.Interview
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.interviews.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to submit answer", "error", err, "interview_id", interview.ID.Hex(), "question_index", answeredIndex)
		return nil, err
	}
	return &updated, nil
}

// CandidateQuery describes a paginated search over completed interviews.
type CandidateQuery struct {
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Sortable fields for the candidate list. Anything else falls back to
// totalScore.
var candidateSortFields = map[string]string{
	"totalScore":     "totalScore",
	"completedAt":    "completedAt",
	"createdAt":      "createdAt",
	"candidateName":  "candidateName",
	"candidateEmail": "candidateEmail",
}

// ListCompletedInterviews returns one page of completed interviews plus the
// total match count. Resume text and the question list are projected out of
// the listing; the detail endpoint returns them.
func (r *MongoRepository) ListCompletedInterviews(ctx context.Context, q CandidateQuery) ([]models.Interview, int64, error) {
	filter := bson.M{"status": models.StatusCompleted}
	if q.Search != "" {
		regex := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"candidateName": regex},
			bson.M{"candidateEmail": regex},
		}
	}

	sortField, ok := candidateSortFields[q.SortBy]
	if !ok {
		sortField = "totalScore"
	}
	sortDir := -1
	if q.SortOrder == "asc" {
		sortDir = 1
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDir}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit)).
		SetProjection(bson.M{"resumeText": 0, "questions": 0})

	cur, err := r.interviews.Find(ctx, filter, opts)
	if err != nil {
		slog.Error("Failed to list completed interviews", "error", err)
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Interview
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}

	total, err := r.interviews.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) GetInterviewsByCandidate(ctx context.Context, candidateID primitive.ObjectID) ([]models.Interview, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.interviews.Find(ctx, bson.M{"candidateId": candidateID}, opts)
	if err != nil {
		slog.Error("Failed to get interviews by candidate", "error", err, "candidate_id", candidateID.Hex())
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Interview
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetLatestInterviewByCandidate(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error) {
	var interview models.Interview
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.interviews.FindOne(ctx, bson.M{"candidateId": candidateID}, opts).Decode(&interview); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to get latest interview", "error", err, "candidate_id", candidateID.Hex())
		return nil, err
	}
	return &interview, nil
}

func (r *MongoRepository) SetReattempt(ctx context.Context, id primitive.ObjectID, allow bool) (*models.Interview, error) {
	update := bson.M{"$set": bson.M{"allowReattempt": allow, "updatedAt": time.Now().UTC()}}
	var updated models.Interview
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.interviews.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		slog.Error("Failed to set reattempt", "error", err, "interview_id", id.Hex(), "allow", allow)
		return nil, err
	}
	slog.Info("Reattempt flag updated", "interview_id", id.Hex(), "allow", allow)
	return &updated, nil
}
