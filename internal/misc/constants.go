package misc

const (
	FilePermissions = 0600 // user read + write
	DirPermissions  = 0700 // user read + write + traverse
)
