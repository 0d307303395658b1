package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// Network
	&NetNode{},
	&NetDevice{},
	&NetScheduler{},
	// Customer facing
	&MailTemplate{},
	&Document{},
}
