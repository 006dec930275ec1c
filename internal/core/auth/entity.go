package auth

import "time"

// Role は認証済みユーザーの役割を表します。
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Capability は役割に対して一括で付与される操作権限の名前です。
type Capability string

const (
	CapabilityCreateEmployee    Capability = "CREATE_EMPLOYEE"
	CapabilityUpdateEmployee    Capability = "UPDATE_EMPLOYEE"
	CapabilityDeleteEmployee    Capability = "DELETE_EMPLOYEE"
	CapabilityUpdateSalary      Capability = "UPDATE_SALARY"
	CapabilityGenerateReports   Capability = "GENERATE_REPORTS"
	CapabilityViewAllEmployees  Capability = "VIEW_ALL_EMPLOYEES"
	CapabilityViewOwnData       Capability = "VIEW_OWN_DATA"
	CapabilityViewPayStatements Capability = "VIEW_PAY_STATEMENTS"
)

// memberCapabilities は member 役割が持つ権限の集合です。
var memberCapabilities = map[Capability]struct{}{
	CapabilityViewOwnData:       {},
	CapabilityViewPayStatements: {},
}

// adminCapabilities は admin 役割が持つ権限の集合です。member の集合を包含します。
var adminCapabilities = func() map[Capability]struct{} {
	caps := map[Capability]struct{}{
		CapabilityCreateEmployee:   {},
		CapabilityUpdateEmployee:   {},
		CapabilityDeleteEmployee:   {},
		CapabilityUpdateSalary:     {},
		CapabilityGenerateReports:  {},
		CapabilityViewAllEmployees: {},
	}
	for c := range memberCapabilities {
		caps[c] = struct{}{}
	}
	return caps
}()

// Session は認証に成功したプリンシパルを表すインメモリのハンドルです。
// 永続化されず、ログアウトまたはプロセス終了で破棄されます。
type Session struct {
	ID               string
	UserID           string
	Username         string
	Role             Role
	LinkedEmployeeID *string
	CreatedAt        time.Time
}

// Credential は認証情報のレコードです。物理削除は行わず、無効化のみ行います。
type Credential struct {
	ID               string
	Username         string
	PasswordHash     string
	Role             Role
	LinkedEmployeeID *string
	Active           bool
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func isValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}
