package auth

// Permission represents a named capability in the system.
//
// Permission names are part of the wire contract: the frontend keys
// its UI visibility off these exact strings, so they are snake_case
// verbs rather than the usual noun:verb style.
type Permission string

// Permission constants.
const (
	PermViewDevices       Permission = "view_devices"
	PermToggleDevice      Permission = "toggle_device"
	PermViewRooms         Permission = "view_rooms"
	PermCreateRoom        Permission = "create_room"
	PermDeleteRoom        Permission = "delete_room"
	PermViewBoards        Permission = "view_boards"
	PermCreateBoard       Permission = "create_board"
	PermDeleteBoard       Permission = "delete_board"
	PermUpdateBoardOrder  Permission = "update_board_order"
	PermUpdateRoomOrder   Permission = "update_room_order"
	PermStartDiscovery    Permission = "start_discovery"
	PermViewLogs          Permission = "view_logs"
	PermEditDashboard     Permission = "edit_dashboard"
	PermCreateUser        Permission = "create_user"
	PermDeleteDashboard   Permission = "delete_dashboard"
	PermDeleteHabitacion  Permission = "delete_habitacion" // legacy alias kept for old clients
	PermRenameBoard       Permission = "rename_board"
	PermStreamLogs        Permission = "stream_logs"
	PermViewStatistics    Permission = "view_statistics"
	PermDiscoverDevices   Permission = "discover_devices"
	PermManageUsers       Permission = "manage_users"
	PermViewConsumption   Permission = "view_consumption"
	PermUpdateDeviceOrder Permission = "update_device_order"
	PermControlDevices    Permission = "control_devices"
	PermManageDevices     Permission = "manage_devices"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermViewDevices,
		PermToggleDevice,
		PermViewRooms,
	},
	RoleAdmin: {
		PermViewDevices,
		PermToggleDevice,
		PermViewRooms,
		PermCreateRoom,
		PermDeleteRoom,
		PermViewBoards,
		PermCreateBoard,
		PermDeleteBoard,
		PermUpdateBoardOrder,
		PermUpdateRoomOrder,
		PermStartDiscovery,
		PermViewLogs,
		PermEditDashboard,
		PermCreateUser,
		PermDeleteDashboard,
		PermDeleteHabitacion,
		PermRenameBoard,
		PermStreamLogs,
		PermViewStatistics,
		PermDiscoverDevices,
		PermManageUsers,
		PermViewConsumption,
		PermUpdateDeviceOrder,
		PermControlDevices,
		PermManageDevices,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// IsRoomScoped returns true if the role's room visibility is limited
// to explicit grants. Admins see every room.
func IsRoomScoped(role Role) bool {
	return role == RoleUser
}
