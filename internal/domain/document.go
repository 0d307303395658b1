package domain

import "time"

// Transaction types recorded on documents
const (
	TransactionUpgrade   = "UPGRADE"
	TransactionDowngrade = "DOWNGRADE"
)

// Document metadata of a generated bandwidth transaction report. The rendered
// layout itself is produced outside this system; only the record and its JSON
// payload are kept here.
type Document struct {
	ID              int64     `json:"id,string" form:"id"`
	Title           string    `json:"title" form:"title"`
	CustomerId      string    `json:"customer_id" form:"customer_id"`
	CustomerName    string    `json:"customer_name" form:"customer_name"`
	CustomerAddress string    `json:"customer_address" form:"customer_address"`
	Bandwidth       string    `json:"bandwidth" form:"bandwidth"`                                    // e.g. "100 Mbps"
	Transaction     string    `json:"transaction" form:"transaction" gorm:"column:transaction_type"` // UPGRADE or DOWNGRADE
	Topology        string    `json:"topology" form:"topology"`                                      // e.g. IPRAN+MIKROTIK
	Engineer        string    `json:"engineer" form:"engineer"`
	NodeId          int64     `json:"node_id,string" form:"node_id"`           // Optional NetNode reference
	DeviceIp        string    `json:"device_ip" form:"device_ip"`              // MikroTik IP when topology includes one
	Content         string    `json:"content" form:"content" gorm:"type:text"` // JSON payload
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Document) TableName() string {
	return "document"
}
