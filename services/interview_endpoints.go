package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/crispai/crisp/backend/models"
)

type InterviewEndpoints struct {
	repo      Store
	aiService *AIService
	storage   *StorageService
	maxUpload int64
}

func NewInterviewEndpoints(repo Store, aiService *AIService, storage *StorageService, maxUpload int64) *InterviewEndpoints {
	if maxUpload <= 0 {
		maxUpload = 10 << 20 // 10MB
	}
	return &InterviewEndpoints{
		repo:      repo,
		aiService: aiService,
		storage:   storage,
		maxUpload: maxUpload,
	}
}

type UpdateCandidateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SubmitAnswerRequest struct {
	Answer    string `json:"answer"`
	TimeSpent int    `json:"timeSpent"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interview", func(r chi.Router) {
		r.Post("/upload-resume", e.UploadResumeHandler)
		r.Put("/update-candidate/{id}", e.UpdateCandidateHandler)
		r.Post("/start/{id}", e.StartHandler)
		r.Post("/submit-answer/{id}", e.SubmitAnswerHandler)
		r.Get("/{id}", e.GetInterviewHandler)
	})
}

// allowedResumeExtensions mirrors what the text extraction supports.
var allowedResumeExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

func (e *InterviewEndpoints) UploadResumeHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Reattempt gate: a candidate with a completed interview may only try
	// again after a reviewer flips the flag on their latest attempt.
	latest, err := e.repo.GetLatestCompletedInterview(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to check interview history", http.StatusInternalServerError)
		return
	}
	if latest != nil && !latest.AllowReattempt {
		response := map[string]interface{}{
			"message":           "You have already completed an interview. Ask an interviewer to enable a reattempt.",
			"completed":         true,
			"totalScore":        latest.TotalScore,
			"completedAt":       latest.CompletedAt,
			"interviewId":       latest.ID.Hex(),
			"reattemptsAllowed": false,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(response)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, e.maxUpload)
	if err := r.ParseMultipartForm(e.maxUpload); err != nil {
		http.Error(w, "File too large or invalid form", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("resume")
	if err != nil {
		http.Error(w, "Resume file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedResumeExtensions[ext] {
		http.Error(w, "Only PDF and DOCX resumes are accepted", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	filename, path, err := e.storage.SaveFile(header.Filename, data)
	if err != nil {
		slog.Error("Failed to store resume", "error", err, "user_id", user.ID.Hex())
		http.Error(w, "Failed to store resume", http.StatusInternalServerError)
		return
	}

	resumeText, err := ExtractResumeText(path)
	if err != nil {
		slog.Error("Failed to extract resume text", "error", err, "filename", filename)
		e.storage.DeleteFile(filename)
		http.Error(w, "Could not extract text from resume", http.StatusUnprocessableEntity)
		return
	}

	info := ExtractCandidateInfo(resumeText)
	// missingFields reflects the raw extraction; the profile defaults
	// below only fill the stored record.
	missing := info.Missing()

	candidateName := info.Name
	if candidateName == "" {
		candidateName = user.Name
	}
	candidateEmail := info.Email
	if candidateEmail == "" {
		candidateEmail = user.Email
	}

	questions, err := e.aiService.GenerateQuestions(r.Context(), resumeText)
	if err != nil {
		slog.Error("Failed to generate questions", "error", err, "user_id", user.ID.Hex())
		e.storage.DeleteFile(filename)
		http.Error(w, "Failed to generate interview questions", http.StatusBadGateway)
		return
	}

	interview := &models.Interview{
		CandidateID:    user.ID,
		CandidateName:  candidateName,
		CandidateEmail: candidateEmail,
		CandidatePhone: info.Phone,
		ResumeText:     resumeText,
		ResumeFile:     filename,
		Questions:      questions,
		Status:         models.StatusPending,
	}
	if err := e.repo.CreateInterview(r.Context(), interview); err != nil {
		e.storage.DeleteFile(filename)
		http.Error(w, "Failed to create interview", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"interview":     interview,
		"candidate":     info,
		"missingFields": missing,
		"message":       "Resume processed",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)

	slog.Info("Resume uploaded", "interview_id", interview.ID.Hex(), "user_id", user.ID.Hex(), "filename", filename)
}

func (e *InterviewEndpoints) UpdateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	var req UpdateCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" {
		http.Error(w, "Name and email are required", http.StatusBadRequest)
		return
	}

	updated, err := e.repo.UpdateCandidateInfo(r.Context(), id, user.ID, req.Name, req.Email, req.Phone)
	if err != nil {
		http.Error(w, "Failed to update candidate info", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"interview": updated})
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	updated, err := e.repo.StartInterview(r.Context(), id, user.ID, time.Now().UTC())
	if err != nil {
		http.Error(w, "Failed to start interview", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		// Either the interview does not exist for this candidate or it
		// already left the pending state.
		existing, err := e.repo.GetInterviewForCandidate(r.Context(), id, user.ID)
		if err != nil {
			http.Error(w, "Failed to start interview", http.StatusInternalServerError)
			return
		}
		if existing == nil {
			http.Error(w, "Interview not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Interview has already started", http.StatusConflict)
		return
	}

	response := map[string]interface{}{
		"interview": updated,
		"question":  updated.Questions[0],
		"message":   "Interview started",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TimeSpent < 0 {
		req.TimeSpent = 0
	}

	interview, err := e.repo.GetInterviewForCandidate(r.Context(), id, user.ID)
	if err != nil {
		http.Error(w, "Failed to get interview", http.StatusInternalServerError)
		return
	}
	if interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}
	if interview.Status != models.StatusInProgress {
		http.Error(w, "Interview is not in progress", http.StatusConflict)
		return
	}

	idx := interview.CurrentQuestionIndex
	if idx < 0 || idx >= len(interview.Questions) {
		http.Error(w, "No question awaiting an answer", http.StatusConflict)
		return
	}
	question := interview.Questions[idx]

	// An empty answer is a valid timeout submission and scores through the
	// same path as any other answer.
	result, err := e.aiService.ScoreAnswer(r.Context(), ScoreRequest{
		Question:   question.Question,
		Answer:     req.Answer,
		Difficulty: question.Difficulty,
		ResumeText: interview.ResumeText,
	})
	if err != nil {
		slog.Error("Failed to score answer", "error", err, "interview_id", id.Hex(), "question_index", idx)
		http.Error(w, "Failed to score answer", http.StatusBadGateway)
		return
	}

	interview.Questions[idx].Answer = req.Answer
	interview.Questions[idx].TimeSpent = req.TimeSpent
	interview.Questions[idx].Score = result.Score
	interview.CurrentQuestionIndex = idx + 1

	completed := interview.CurrentQuestionIndex >= len(interview.Questions)
	if completed {
		interview.Status = models.StatusCompleted
		interview.AISummary = interview.BuildSummary()
		now := time.Now().UTC()
		interview.CompletedAt = &now
	}

	updated, err := e.repo.SubmitAnswer(r.Context(), interview, idx)
	if err != nil {
		http.Error(w, "Failed to submit answer", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		// A concurrent submission for the same question already won.
		http.Error(w, "Answer already submitted for this question", http.StatusConflict)
		return
	}

	response := map[string]interface{}{
		"score":     result.Score,
		"completed": completed,
		"interview": updated,
	}
	if result.Rationale != "" {
		response["rationale"] = result.Rationale
	}
	if completed {
		response["totalScore"] = updated.TotalScore
		response["summary"] = updated.AISummary
	} else {
		response["nextQuestion"] = updated.Questions[updated.CurrentQuestionIndex]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	slog.Info("Answer submitted", "interview_id", id.Hex(), "question_index", idx, "score", result.Score, "completed", completed)
}

func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	var interview *models.Interview
	var err error
	if user.Role == models.RoleInterviewer {
		interview, err = e.repo.GetInterview(r.Context(), id)
	} else {
		interview, err = e.repo.GetInterviewForCandidate(r.Context(), id, user.ID)
	}
	if err != nil {
		http.Error(w, "Failed to get interview", http.StatusInternalServerError)
		return
	}
	if interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"interview": interview})
}

// parseObjectID validates the {id} path parameter before any store access.
func parseObjectID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		http.Error(w, "Invalid interview ID", http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}
