package model

import (
	"strings"
)

// WorkerRole 角色
type WorkerRole string

const (
	RoleUser  WorkerRole = "user"
	RoleAdmin WorkerRole = "admin"
)

// WorkerProfile 员工档案，由外部用户系统同步，这里只读
type WorkerProfile struct {
	BaseModel
	WorkerID   string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"worker_id"`
	Name       string     `gorm:"type:varchar(100);not null" json:"name"`
	Email      string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	JobTitle   string     `gorm:"type:varchar(100)" json:"job_title,omitempty"`
	Department string     `gorm:"type:varchar(100);index" json:"department,omitempty"`
	Skills     string     `gorm:"type:varchar(500)" json:"skills,omitempty"` // 逗号分隔
	WorkStart  string     `gorm:"type:varchar(5)" json:"work_start,omitempty"`
	WorkEnd    string     `gorm:"type:varchar(5)" json:"work_end,omitempty"`
	Active     bool       `gorm:"not null;index" json:"active"`
	Verified   bool       `gorm:"not null" json:"verified"`
	Role       WorkerRole `gorm:"type:varchar(16);not null" json:"role"`
}

func (WorkerProfile) TableName() string {
	return "worker_profiles"
}

func (p *WorkerProfile) SkillList() []string {
	if p.Skills == "" {
		return nil
	}
	parts := strings.Split(p.Skills, ",")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MatchesCategory 职位、部门或技能中包含任务类别即视为匹配，不区分大小写
func (p *WorkerProfile) MatchesCategory(category string) bool {
	needle := strings.ToLower(strings.TrimSpace(category))
	if needle == "" {
		return false
	}

	fields := append([]string{p.JobTitle, p.Department}, p.SkillList()...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func (p *WorkerProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
