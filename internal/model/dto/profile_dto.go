package dto

type ConflictItem struct {
	Field      string   `json:"field"`
	Candidates []string `json:"candidates"`
}

type ResolveConflictRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value" binding:"required"`
}

type AnswerRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}
