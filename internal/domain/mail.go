package domain

import "time"

// MailTemplate customer notification template. Subject and body are
// text/template sources rendered against a bandwidth transaction.
type MailTemplate struct {
	ID        int64     `json:"id,string" form:"id"`
	Name      string    `json:"name" form:"name" gorm:"uniqueIndex;size:100"`
	Subject   string    `json:"subject" form:"subject"`
	Body      string    `json:"body" form:"body" gorm:"type:text"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (MailTemplate) TableName() string {
	return "mail_template"
}
