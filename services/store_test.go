package services

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/crispai/crisp/backend/models"
	"github.com/crispai/crisp/backend/repository"
)

// fakeStore is an in-memory Store for handler tests. The guarded updates
// mirror the Mongo filters: StartInterview matches only pending documents
// and SubmitAnswer matches only the pinned question cursor.
type fakeStore struct {
	users      map[primitive.ObjectID]*models.User
	interviews map[primitive.ObjectID]*models.Interview
	tokens     map[string]*models.RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[primitive.ObjectID]*models.User),
		interviews: make(map[primitive.ObjectID]*models.Interview),
		tokens:     make(map[string]*models.RefreshToken),
	}
}

func copyInterview(i *models.Interview) *models.Interview {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Questions = make([]models.Question, len(i.Questions))
	copy(cp.Questions, i.Questions)
	return &cp
}

func (f *fakeStore) putInterview(i *models.Interview) *models.Interview {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	f.interviews[i.ID] = copyInterview(i)
	return i
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	f.tokens[token.Token] = &cp
	return nil
}

func (f *fakeStore) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	t, ok := f.tokens[tokenHash]
	if !ok || t.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) DeleteAllUserTokens(ctx context.Context, userID primitive.ObjectID) error {
	for hash, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, hash)
		}
	}
	return nil
}

func (f *fakeStore) CreateInterview(ctx context.Context, interview *models.Interview) error {
	now := time.Now().UTC()
	interview.CreatedAt, interview.UpdatedAt = now, now
	interview.TotalScore = interview.ComputeTotalScore()
	f.putInterview(interview)
	return nil
}

func (f *fakeStore) GetInterview(ctx context.Context, id primitive.ObjectID) (*models.Interview, error) {
	return copyInterview(f.interviews[id]), nil
}

func (f *fakeStore) GetInterviewForCandidate(ctx context.Context, id, candidateID primitive.ObjectID) (*models.Interview, error) {
	i, ok := f.interviews[id]
	if !ok || i.CandidateID != candidateID {
		return nil, nil
	}
	return copyInterview(i), nil
}

func (f *fakeStore) GetLatestCompletedInterview(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error) {
	var latest *models.Interview
	for _, i := range f.interviews {
		if i.CandidateID != candidateID || i.Status != models.StatusCompleted {
			continue
		}
		if latest == nil || i.CreatedAt.After(latest.CreatedAt) {
			latest = i
		}
	}
	return copyInterview(latest), nil
}

func (f *fakeStore) UpdateCandidateInfo(ctx context.Context, id, candidateID primitive.ObjectID, name, email, phone string) (*models.Interview, error) {
	i, ok := f.interviews[id]
	if !ok || i.CandidateID != candidateID {
		return nil, nil
	}
	i.CandidateName, i.CandidateEmail, i.CandidatePhone = name, email, phone
	i.UpdatedAt = time.Now().UTC()
	return copyInterview(i), nil
}

func (f *fakeStore) StartInterview(ctx context.Context, id, candidateID primitive.ObjectID, startedAt time.Time) (*models.Interview, error) {
	i, ok := f.interviews[id]
	if !ok || i.CandidateID != candidateID || i.Status != models.StatusPending {
		return nil, nil
	}
	i.Status = models.StatusInProgress
	i.StartedAt = &startedAt
	i.CurrentQuestionIndex = 0
	i.UpdatedAt = time.Now().UTC()
	return copyInterview(i), nil
}

func (f *fakeStore) SubmitAnswer(ctx context.Context, interview *models.Interview, answeredIndex int) (*models.Interview, error) {
	interview.TotalScore = interview.ComputeTotalScore()
	stored, ok := f.interviews[interview.ID]
	if !ok || stored.CandidateID != interview.CandidateID || stored.CurrentQuestionIndex != answeredIndex {
		return nil, nil
	}
	stored.Questions = make([]models.Question, len(interview.Questions))
	copy(stored.Questions, interview.Questions)
	stored.CurrentQuestionIndex = interview.CurrentQuestionIndex
	stored.Status = interview.Status
	stored.TotalScore = interview.TotalScore
	if interview.Status == models.StatusCompleted {
		stored.AISummary = interview.AISummary
		stored.CompletedAt = interview.CompletedAt
	}
	stored.UpdatedAt = time.Now().UTC()
	return copyInterview(stored), nil
}

func (f *fakeStore) ListCompletedInterviews(ctx context.Context, q repository.CandidateQuery) ([]models.Interview, int64, error) {
	var out []models.Interview
	for _, i := range f.interviews {
		if i.Status == models.StatusCompleted {
			out = append(out, *copyInterview(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].TotalScore > out[b].TotalScore })
	return out, int64(len(out)), nil
}

func (f *fakeStore) GetInterviewsByCandidate(ctx context.Context, candidateID primitive.ObjectID) ([]models.Interview, error) {
	var out []models.Interview
	for _, i := range f.interviews {
		if i.CandidateID == candidateID {
			out = append(out, *copyInterview(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetLatestInterviewByCandidate(ctx context.Context, candidateID primitive.ObjectID) (*models.Interview, error) {
	var latest *models.Interview
	for _, i := range f.interviews {
		if i.CandidateID != candidateID {
			continue
		}
		if latest == nil || i.CreatedAt.After(latest.CreatedAt) {
			latest = i
		}
	}
	return copyInterview(latest), nil
}

func (f *fakeStore) SetReattempt(ctx context.Context, id primitive.ObjectID, allow bool) (*models.Interview, error) {
	i, ok := f.interviews[id]
	if !ok {
		return nil, nil
	}
	i.AllowReattempt = allow
	i.UpdatedAt = time.Now().UTC()
	return copyInterview(i), nil
}

var _ Store = (*fakeStore)(nil)
