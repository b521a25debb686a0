package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	&SysScheduler{},
	&SysCounter{},
	// Registry
	&Patient{},
	&Doctor{},
	&Service{},
	// Clinic
	&Appointment{},
	&WaitlistEntry{},
	&FollowUp{},
	&Referral{},
	&Surgery{},
	&Feedback{},
	// Billing
	&Invoice{},
	&InvoiceItem{},
	&Payment{},
	&Expense{},
	// Operations
	&Shift{},
	&Equipment{},
	&MaintenanceRecord{},
	&Document{},
	&Notification{},
}
