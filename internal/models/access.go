package models

// Access is the permission scope a function is granted on a resource.
type Access string

const (
	// AccessRead allows reading items or objects.
	AccessRead Access = "read"
	// AccessWrite allows creating, updating and deleting items or objects.
	AccessWrite Access = "write"
	// AccessReadWrite is the union of AccessRead and AccessWrite.
	AccessReadWrite Access = "readwrite"
	// AccessFull allows every action of the service on the resource.
	AccessFull Access = "full"
)

// IsValid checks if the access value is valid
func (a Access) IsValid() bool {
	switch a {
	case AccessRead, AccessWrite, AccessReadWrite, AccessFull:
		return true
	default:
		return false
	}
}

// String returns the string representation of the access level
func (a Access) String() string {
	return string(a)
}
