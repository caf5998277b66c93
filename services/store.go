package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/crispai/crisp/backend/models"
	"github.com/crispai/crisp/backend/repository"
)

// Store is the persistence surface the services depend on. Implemented by
// repository.MongoRepository. Lookups return (nil, nil) when nothing
// matches; guarded updates (StartInterview, SubmitAnswer) return (nil, nil)
// when their filter matches nothing.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteAllUserTokens(ctx context.Context, userID primitive.ObjectID) error

	CreateInterview(ctx context.Context, interview *models.Interview) error
	GetInterview(ctx context.Context, id primitive.ObjectID) (*models.Interview, error)
	GetInterviewForCandidate(ctx context.Context, id, candidateID primitive.ObjectID) (*models.Interview, error)
	GetLatestCompletedInterview(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error)
	UpdateCandidateInfo(ctx context.Context, id, candidateID primitive.ObjectID, name, email, phone string) (*models.Interview, error)
	StartInterview(ctx context.Context, id, candidateID primitive.ObjectID, startedAt time.Time) (*models.Interview, error)
	SubmitAnswer(ctx context.Context, interview *models.Interview, answeredIndex int) (*models.Interview, error)
	ListCompletedInterviews(ctx context.Context, q repository.CandidateQuery) ([]models.Interview, int64, error)
	GetInterviewsByCandidate(ctx context.Context, candidateID primitive.ObjectID) ([]models.Interview, error)
	GetLatestInterviewByCandidate(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error)
	SetReattempt(ctx context.Context, id primitive.ObjectID, allow bool) (*models.Interview, error)
}

var _ Store = (*repository.MongoRepository)(nil)
