package auth

// Operator permissions. internal.PermissionAdmin implies all of them; routes
// list the admin permission alongside the specific one.
const (
	PermissionAssignRooms  = "rooms:assign"
	PermissionIssueRefunds = "payments:refund"
	PermissionViewReports  = "payments:report"
)
