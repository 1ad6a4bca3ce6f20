package dto

// UpsertWorkerRequest 同步员工档案
type UpsertWorkerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	JobTitle   string `json:"job_title"`
	Department string `json:"department"`
	Skills     string `json:"skills"`
	WorkStart  string `json:"work_start"`
	WorkEnd    string `json:"work_end"`
	Active     *bool  `json:"active"`
	Verified   bool   `json:"verified"`
	Role       string `json:"role"`
}

// RefreshTokenRequest 刷新令牌
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}
