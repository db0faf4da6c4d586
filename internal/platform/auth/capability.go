package auth

import (
	"sort"
	"strings"
)

// Capability names one thing a caller may do.
type Capability string

const (
	CapBookingRead      Capability = "booking:read"
	CapBookingWrite     Capability = "booking:write"
	CapPatientsSearch   Capability = "patients:search"
	CapSupervisionRead  Capability = "supervision:read"
	CapSupervisionWrite Capability = "supervision:write"
	CapDirectoryRead    Capability = "directory:read"
	CapDirectoryWrite   Capability = "directory:write"
	CapNetworksWrite    Capability = "networks:write"
	CapRosterRead       Capability = "roster:read"
	CapRosterRebuild    Capability = "roster:rebuild"
	CapPartnersRead     Capability = "partners:read"
	CapPartnersWrite    Capability = "partners:write"
	CapRolesManage      Capability = "roles:manage"
)

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleProvider = "provider"
	RolePartner  = "partner"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapBookingRead, CapBookingWrite, CapPatientsSearch,
	CapSupervisionRead, CapSupervisionWrite,
	CapDirectoryRead, CapDirectoryWrite, CapNetworksWrite,
	CapRosterRead, CapRosterRebuild,
	CapPartnersRead, CapPartnersWrite,
	CapRolesManage,
}

// RoleTable maps a role name to the capabilities it grants.
type RoleTable map[string][]Capability

// DefaultRoleTable is the built-in role definition.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		RoleAdmin: AllCapabilities,
		RoleStaff: {
			CapBookingRead, CapBookingWrite, CapPatientsSearch,
			CapSupervisionRead, CapSupervisionWrite,
			CapDirectoryRead, CapDirectoryWrite, CapNetworksWrite,
			CapRosterRead, CapRosterRebuild,
			CapPartnersRead, CapPartnersWrite,
		},
		RoleProvider: {
			CapBookingRead, CapSupervisionRead, CapDirectoryRead, CapRosterRead,
		},
		RolePartner: {
			CapBookingRead, CapBookingWrite, CapDirectoryRead, CapPartnersRead,
		},
	}
}

// KnownRole reports whether the table defines role.
func (t RoleTable) KnownRole(role string) bool {
	_, ok := t[role]
	return ok
}

// CapabilitySet is the resolved grant for one caller.
type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c, ok := range s {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve computes the caller's capabilities from token roles and stored
// roles. Unknown roles grant nothing. Resolve has no side effects.
func Resolve(id Identity, stored []string, table RoleTable) CapabilitySet {
	set := CapabilitySet{}
	if id.Subject == "" && id.Email == "" {
		return set
	}
	grant := func(role string) {
		for _, c := range table[strings.ToLower(strings.TrimSpace(role))] {
			set[c] = true
		}
	}
	for _, r := range id.Roles {
		grant(r)
	}
	for _, r := range stored {
		grant(r)
	}
	return set
}
