package domain

import "time"

// Device status values
const (
	DeviceStatusActive      = "active"
	DeviceStatusInactive    = "inactive"
	DeviceStatusMaintenance = "maintenance"
	DeviceStatusError       = "error"
)

// DeviceStatuses is the closed set of valid device status values.
var DeviceStatuses = []string{
	DeviceStatusActive,
	DeviceStatusInactive,
	DeviceStatusMaintenance,
	DeviceStatusError,
}

// NetDevice is a managed MikroTik router under the system's supervision.
type NetDevice struct {
	ID            int64     `json:"id,string" form:"id"`
	Name          string    `json:"name" form:"name" gorm:"uniqueIndex;size:100"`    // Unique device alias
	Ipaddr        string    `json:"ipaddr" form:"ipaddr" gorm:"uniqueIndex;size:15"` // Dotted-quad IPv4 address
	Model         string    `json:"model" form:"model"`                              // Hardware model, e.g. RB750Gr3
	Firmware      string    `json:"firmware" form:"firmware"`                        // RouterOS version
	Username      string    `json:"username" form:"username"`                        // API login username
	Password      string    `json:"-" form:"password"`                               // Encrypted API password (never serialized)
	Location      string    `json:"location" form:"location"`
	Status        string    `json:"status" form:"status"`           // active/inactive/maintenance/error
	Reachable     bool      `json:"reachable" form:"reachable"`     // Last probed reachability
	LastExport    string    `json:"last_export" gorm:"type:text"`   // Last configuration export blob
	CustomerId    string    `json:"customer_id" form:"customer_id"` // Loose billing reference
	CustomerName  string    `json:"customer_name" form:"customer_name"`
	Notes         string    `json:"notes" form:"notes" gorm:"type:text"`
	SnmpPort      int       `json:"snmp_port" form:"snmp_port"`           // SNMP port, 161 when zero
	SnmpCommunity string    `json:"snmp_community" form:"snmp_community"` // SNMP community, probe skipped when empty
	LastProbeAt   time.Time `json:"last_probe_at"`                        // Last reachability probe time
	LastProbeMsg  string    `json:"last_probe_msg"`                       // Last probe result or error
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (NetDevice) TableName() string {
	return "net_device"
}

// HasCredentials reports whether the device has API credentials configured.
func (d NetDevice) HasCredentials() bool {
	return d.Username != "" && d.Password != ""
}

// IsValidDeviceStatus reports whether s is one of the enumerated status values.
func IsValidDeviceStatus(s string) bool {
	for _, v := range DeviceStatuses {
		if v == s {
			return true
		}
	}
	return false
}
