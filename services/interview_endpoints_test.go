package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/crispai/crisp/backend/models"
)

func testCandidate() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Email: "candidate@example.com",
		Name:  "Demo Candidate",
		Role:  models.RoleInterviewee,
	}
}

// newInterviewRouter wires the endpoints behind a middleware that plants
// the given user, standing in for the auth chain.
func newInterviewRouter(t *testing.T, store Store, user *models.User) http.Handler {
	t.Helper()

	storage, err := NewStorageService(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	endpoints := NewInterviewEndpoints(store, &AIService{}, storage, 10<<20)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), userContextKey, user)))
		})
	})
	endpoints.RegisterRoutes(r)
	return r
}

func seedInterview(store *fakeStore, candidateID primitive.ObjectID, status string, index int) *models.Interview {
	interview := &models.Interview{
		ID:                   primitive.NewObjectID(),
		CandidateID:          candidateID,
		CandidateName:        "Demo Candidate",
		Questions:            FallbackQuestions(),
		CurrentQuestionIndex: index,
		Status:               status,
		CreatedAt:            time.Now().UTC(),
	}
	store.putInterview(interview)
	return interview
}

func TestStartInterviewTransition(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	interview := seedInterview(store, user.ID, models.StatusPending, 0)
	router := newInterviewRouter(t, store, user)

	req := httptest.NewRequest("POST", "/interview/start/"+interview.ID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("first start status = %d, expected 200", rec.Code)
	}

	stored, _ := store.GetInterview(context.Background(), interview.ID)
	if stored.Status != models.StatusInProgress {
		t.Errorf("status = %s, expected in_progress", stored.Status)
	}
	if stored.CurrentQuestionIndex != 0 {
		t.Errorf("currentQuestionIndex = %d, expected 0", stored.CurrentQuestionIndex)
	}
	if stored.StartedAt == nil {
		t.Error("startedAt not set")
	}

	// The transition is one-way: a second start must not re-enter.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/interview/start/"+interview.ID.Hex(), nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, expected 409", rec.Code)
	}

	if after, _ := store.GetInterview(context.Background(), interview.ID); after.Status != models.StatusInProgress {
		t.Errorf("status after repeated start = %s, expected in_progress", after.Status)
	}
}

func TestStartInterviewRejectsBadID(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	router := newInterviewRouter(t, store, user)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/interview/start/not-a-hex-id", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func submitAnswer(t *testing.T, router http.Handler, id primitive.ObjectID, answer string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(SubmitAnswerRequest{Answer: answer, TimeSpent: 15})
	req := httptest.NewRequest("POST", "/interview/submit-answer/"+id.Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAnswerAdvancesCursorByOne(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	interview := seedInterview(store, user.ID, models.StatusInProgress, 0)
	router := newInterviewRouter(t, store, user)

	rec := submitAnswer(t, router, interview.ID, "react components hold state and props")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body %s", rec.Code, rec.Body.String())
	}

	stored, _ := store.GetInterview(context.Background(), interview.ID)
	if stored.CurrentQuestionIndex != 1 {
		t.Errorf("currentQuestionIndex = %d, expected 1", stored.CurrentQuestionIndex)
	}
	if stored.Status != models.StatusInProgress {
		t.Errorf("status = %s, expected in_progress", stored.Status)
	}
	if stored.Questions[0].Answer == "" || stored.Questions[0].Score == 0 {
		t.Errorf("first question not recorded: %+v", stored.Questions[0])
	}
	if stored.TotalScore != stored.ComputeTotalScore() {
		t.Errorf("totalScore = %d, expected recomputed %d", stored.TotalScore, stored.ComputeTotalScore())
	}
}

func TestSubmitAnswerRejectsWrongStatus(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	pending := seedInterview(store, user.ID, models.StatusPending, 0)
	done := seedInterview(store, user.ID, models.StatusCompleted, models.QuestionCount)
	router := newInterviewRouter(t, store, user)

	if rec := submitAnswer(t, router, pending.ID, "answer"); rec.Code != http.StatusConflict {
		t.Errorf("submit on pending = %d, expected 409", rec.Code)
	}
	if rec := submitAnswer(t, router, done.ID, "answer"); rec.Code != http.StatusConflict {
		t.Errorf("submit on completed = %d, expected 409", rec.Code)
	}
}

// staleCursorStore serves reads from a stale snapshot, standing in for a
// concurrent submission committing between the handler's read and write.
type staleCursorStore struct {
	*fakeStore
	stale *models.Interview
}

func (s *staleCursorStore) GetInterviewForCandidate(ctx context.Context, id, candidateID primitive.ObjectID) (*models.Interview, error) {
	if s.stale != nil && s.stale.ID == id {
		return copyInterview(s.stale), nil
	}
	return s.fakeStore.GetInterviewForCandidate(ctx, id, candidateID)
}

func TestSubmitAnswerConcurrentLoserConflicts(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	interview := seedInterview(store, user.ID, models.StatusInProgress, 1)

	stale := copyInterview(store.interviews[interview.ID])
	stale.CurrentQuestionIndex = 0
	racing := &staleCursorStore{fakeStore: store, stale: stale}
	router := newInterviewRouter(t, racing, user)

	rec := submitAnswer(t, router, interview.ID, "duplicate submission")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, expected 409", rec.Code)
	}

	stored, _ := store.GetInterview(context.Background(), interview.ID)
	if stored.CurrentQuestionIndex != 1 {
		t.Errorf("loser mutated the cursor: index = %d, expected 1", stored.CurrentQuestionIndex)
	}
	if stored.Questions[0].Answer != "" {
		t.Errorf("loser overwrote the answer: %q", stored.Questions[0].Answer)
	}
}

func TestSubmitFinalAnswerCompletes(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	interview := seedInterview(store, user.ID, models.StatusInProgress, models.QuestionCount-1)
	for i := 0; i < models.QuestionCount-1; i++ {
		store.interviews[interview.ID].Questions[i].Answer = "answered"
		store.interviews[interview.ID].Questions[i].Score = 7
	}
	router := newInterviewRouter(t, store, user)

	rec := submitAnswer(t, router, interview.ID, "final answer about react and node scalability")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Completed  bool   `json:"completed"`
		TotalScore int    `json:"totalScore"`
		Summary    string `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Completed {
		t.Error("completed = false, expected true")
	}
	if response.Summary == "" {
		t.Error("summary missing from completion response")
	}

	stored, _ := store.GetInterview(context.Background(), interview.ID)
	if stored.Status != models.StatusCompleted {
		t.Errorf("status = %s, expected completed", stored.Status)
	}
	if stored.CurrentQuestionIndex != models.QuestionCount {
		t.Errorf("currentQuestionIndex = %d, expected %d", stored.CurrentQuestionIndex, models.QuestionCount)
	}
	if stored.CompletedAt == nil {
		t.Error("completedAt not set")
	}
	if stored.TotalScore != stored.ComputeTotalScore() {
		t.Errorf("totalScore = %d, expected %d", stored.TotalScore, stored.ComputeTotalScore())
	}
	if !strings.Contains(stored.AISummary, "Overall Performance") {
		t.Errorf("summary not persisted: %q", stored.AISummary)
	}
}

func docxUpload(t *testing.T, text string) (*bytes.Buffer, string) {
	t.Helper()

	var docx bytes.Buffer
	zw := zip.NewWriter(&docx)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	f.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	zw.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("resume", "resume.docx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(docx.Bytes())
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestUploadResumeDefaultsToProfile(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	router := newInterviewRouter(t, store, user)

	body, contentType := docxUpload(t, "Seven years building distributed systems and web services")
	req := httptest.NewRequest("POST", "/interview/upload-resume", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, expected 201; body %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Interview     models.Interview `json:"interview"`
		MissingFields MissingFields    `json:"missingFields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// Nothing extractable, so the record falls back to the profile while
	// missingFields still reports the raw extraction result.
	if response.Interview.CandidateName != user.Name {
		t.Errorf("candidateName = %q, expected profile name %q", response.Interview.CandidateName, user.Name)
	}
	if response.Interview.CandidateEmail != user.Email {
		t.Errorf("candidateEmail = %q, expected profile email %q", response.Interview.CandidateEmail, user.Email)
	}
	if !response.MissingFields.Name || !response.MissingFields.Email || !response.MissingFields.Phone {
		t.Errorf("missingFields = %+v, expected all true", response.MissingFields)
	}
	if response.Interview.Status != models.StatusPending {
		t.Errorf("status = %s, expected pending", response.Interview.Status)
	}
	if len(response.Interview.Questions) != models.QuestionCount {
		t.Errorf("questions = %d, expected %d", len(response.Interview.Questions), models.QuestionCount)
	}
}

func TestUploadResumeReattemptGate(t *testing.T) {
	store := newFakeStore()
	user := testCandidate()
	completed := seedInterview(store, user.ID, models.StatusCompleted, models.QuestionCount)
	now := time.Now().UTC()
	store.interviews[completed.ID].CompletedAt = &now
	store.interviews[completed.ID].TotalScore = 42
	router := newInterviewRouter(t, store, user)

	body, contentType := docxUpload(t, "any resume")
	req := httptest.NewRequest("POST", "/interview/upload-resume", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, expected 403", rec.Code)
	}

	var response struct {
		Completed  bool `json:"completed"`
		TotalScore int  `json:"totalScore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Completed || response.TotalScore != 42 {
		t.Errorf("gate response = %+v, expected completed with prior score", response)
	}

	// Flipping the flag on the latest attempt reopens the gate.
	store.interviews[completed.ID].AllowReattempt = true
	body, contentType = docxUpload(t, "any resume")
	req = httptest.NewRequest("POST", "/interview/upload-resume", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("status after reattempt enabled = %d, expected 201", rec.Code)
	}
}
