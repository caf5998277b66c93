package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Interview statuses. Transitions are monotonic:
// pending -> in_progress -> completed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Question difficulties and their fixed answer time limits in seconds.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	TimeLimitEasy   = 20
	TimeLimitMedium = 60
	TimeLimitHard   = 120
)

// QuestionCount is the fixed number of questions per interview:
// positions 0-1 easy, 2-3 medium, 4-5 hard.
const QuestionCount = 6

// Question is embedded in an Interview. Question text, difficulty and
// time limit are fixed at generation time; answer, timeSpent and score
// are written exactly once, when the candidate submits that question.
type Question struct {
	Question   string `bson:"question" json:"question"`
	Difficulty string `bson:"difficulty" json:"difficulty"`
	TimeLimit  int    `bson:"timeLimit" json:"timeLimit"`
	Answer     string `bson:"answer" json:"answer"`
	TimeSpent  int    `bson:"timeSpent" json:"timeSpent"`
	Score      int    `bson:"score" json:"score"`
}

// Interview is one candidate attempt. Documents are never deleted; a
// candidate accumulates multiple interviews only via the reattempt gate.
type Interview struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CandidateID          primitive.ObjectID `bson:"candidateId" json:"candidateId"`
	CandidateName        string             `bson:"candidateName" json:"candidateName"`
	CandidateEmail       string             `bson:"candidateEmail" json:"candidateEmail"`
	CandidatePhone       string             `bson:"candidatePhone" json:"candidatePhone"`
	ResumeText           string             `bson:"resumeText" json:"resumeText,omitempty"`
	ResumeFile           string             `bson:"resumeFile,omitempty" json:"resumeFile,omitempty"`
	Questions            []Question         `bson:"questions" json:"questions"`
	CurrentQuestionIndex int                `bson:"currentQuestionIndex" json:"currentQuestionIndex"`
	Status               string             `bson:"status" json:"status"`
	TotalScore           int                `bson:"totalScore" json:"totalScore"`
	AISummary            string             `bson:"aiSummary" json:"aiSummary,omitempty"`
	StartedAt            *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt          *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	AllowReattempt       bool               `bson:"allowReattempt" json:"allowReattempt"`
	CreatedAt            time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updated_at"`
}

// ComputeTotalScore sums all question scores. Persist paths call this
// before every write so TotalScore is never independently set.
func (i *Interview) ComputeTotalScore() int {
	total := 0
	for _, q := range i.Questions {
		total += q.Score
	}
	return total
}

// SubScores returns the easy, medium and hard subtotals, each out of 20.
func (i *Interview) SubScores() (easy, medium, hard int) {
	for idx, q := range i.Questions {
		switch {
		case idx < 2:
			easy += q.Score
		case idx < 4:
			medium += q.Score
		default:
			hard += q.Score
		}
	}
	return easy, medium, hard
}

// BuildSummary produces the deterministic completion summary from the
// score bands. It is templated text, not an AI call.
func (i *Interview) BuildSummary() string {
	total := i.ComputeTotalScore()
	average := float64(total) / float64(QuestionCount)
	easy, medium, hard := i.SubScores()

	overall := "Needs Improvement"
	switch {
	case average >= 7.5:
		overall = "Excellent"
	case average >= 6:
		overall = "Good"
	case average >= 4:
		overall = "Fair"
	}

	band := func(score int) string {
		switch {
		case score >= 16:
			return "Strong"
		case score >= 12:
			return "Good"
		default:
			return "Weak"
		}
	}

	summary := fmt.Sprintf("Overall Performance: %s (%d/60). ", overall, total)
	summary += fmt.Sprintf("Fundamentals: %s (%d/20). ", band(easy), easy)
	summary += fmt.Sprintf("Intermediate Skills: %s (%d/20). ", band(medium), medium)
	summary += fmt.Sprintf("Advanced Concepts: %s (%d/20). ", band(hard), hard)

	switch {
	case total >= 45:
		summary += "Recommendation: Strong candidate, proceed to next round. Shows solid understanding across all difficulty levels."
	case total >= 35:
		summary += "Recommendation: Good candidate with potential. Consider for further technical evaluation or pair programming session."
	case total >= 25:
		summary += "Recommendation: Average candidate. May benefit from additional training or junior-level position with mentorship."
	default:
		summary += "Recommendation: Candidate needs significant improvement in technical skills before considering for this role."
	}

	return summary
}

// TimeLimitFor maps a difficulty to its fixed time limit in seconds.
func TimeLimitFor(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return TimeLimitEasy
	case DifficultyMedium:
		return TimeLimitMedium
	case DifficultyHard:
		return TimeLimitHard
	}
	return 0
}
