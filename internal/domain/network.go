package domain

import "time"

// Network module related models

// Node kinds
const (
	NodeKindIpran = "ipran"
	NodeKindGpon  = "gpon"
)

// NodeKinds lists the accepted node kinds.
var NodeKinds = []string{NodeKindIpran, NodeKindGpon}

// IsValidNodeKind reports whether kind is an accepted node kind.
func IsValidNodeKind(kind string) bool {
	for _, k := range NodeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// NetNode transport network node: an IPRAN aggregation node or a GPON OLT.
type NetNode struct {
	ID        int64     `json:"id,string" form:"id"`
	Kind      string    `json:"kind" form:"kind" gorm:"index;size:10"`         // ipran or gpon
	Alias     string    `json:"alias" form:"alias" gorm:"uniqueIndex;size:50"` // Unique short alias
	Name      string    `json:"name" form:"name"`                              // Full node name
	Ipaddr    string    `json:"ipaddr" form:"ipaddr" gorm:"uniqueIndex;size:15"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (NetNode) TableName() string {
	return "net_node"
}

// NetScheduler scheduler task data model for managing scheduled jobs
type NetScheduler struct {
	ID          int64     `json:"id,string" form:"id"`
	Name        string    `json:"name" form:"name"`
	TaskType    string    `json:"task_type" form:"task_type"` // latency_check, snmp_model, config_backup
	Interval    int       `json:"interval" form:"interval"`   // Interval in seconds
	Status      string    `json:"status" form:"status"`       // enabled/disabled
	Config      string    `json:"config" form:"config"`       // Optional task parameters (JSON)
	LastRunAt   time.Time `json:"last_run_at"`
	NextRunAt   time.Time `json:"next_run_at"`
	LastResult  string    `json:"last_result" form:"last_result"`
	LastMessage string    `json:"last_message" form:"last_message"`
	Remark      string    `json:"remark" form:"remark"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (NetScheduler) TableName() string {
	return "net_scheduler"
}
