package domain

// ClientRole identifies service callers of the ops API. User and staff
// identity lives in the main platform; this core only distinguishes the
// chat bridge from operator tooling.
type ClientRole string

const (
	ClientRoleChatBridge ClientRole = "CHAT_BRIDGE"
	ClientRoleOperator   ClientRole = "OPERATOR"
)
