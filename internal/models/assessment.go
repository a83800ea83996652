package models

import "encoding/json"

type YouTubeAssessmentRequest struct {
	VideoURL          string `json:"videoUrl"`
	NumberOfQuestions int    `json:"numberOfQuestions"`
	Difficulty        string `json:"difficulty"`
	Type              string `json:"type"`
}

// ApplyDefaults fills the defaults the original API used for omitted fields.
func (r *YouTubeAssessmentRequest) ApplyDefaults() {
	if r.NumberOfQuestions <= 0 {
		r.NumberOfQuestions = 5
	}
	if r.Difficulty == "" {
		r.Difficulty = "medium"
	}
	if r.Type == "" {
		r.Type = "MCQ"
	}
}

type Question struct {
	Question    string   `json:"question"`
	Type        string   `json:"type,omitempty"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// Assessment is either a parsed question list or, when the model output
// could not be parsed as JSON anywhere, a raw-text wrapper. The wrapper is
// still a successful response, never an error.
type Assessment struct {
	Questions   []Question `json:"-"`
	RawResponse string     `json:"-"`
}

func (a Assessment) MarshalJSON() ([]byte, error) {
	if a.Questions != nil {
		return json.Marshal(a.Questions)
	}
	return json.Marshal(map[string]string{"rawResponse": a.RawResponse})
}

func (a *Assessment) UnmarshalJSON(data []byte) error {
	var questions []Question
	if err := json.Unmarshal(data, &questions); err == nil {
		a.Questions = questions
		return nil
	}

	var wrapper struct {
		RawResponse string `json:"rawResponse"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	a.RawResponse = wrapper.RawResponse
	return nil
}

type AssessmentMetadata struct {
	Type          string `json:"type"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
}

type AssessmentResponse struct {
	Success    bool               `json:"success"`
	VideoID    string             `json:"videoId,omitempty"`
	Assessment Assessment         `json:"assessment"`
	Metadata   AssessmentMetadata `json:"metadata"`
}

type DocumentResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Length  int    `json:"length"`
	Message string `json:"message"`
}
