package models

import (
	"fmt"
	"net"
	"strings"
)

// IdentityKind discriminates what an identity key was derived from
type IdentityKind string

const (
	IdentityKindIP       IdentityKind = "ip"
	IdentityKindUser     IdentityKind = "user"
	IdentityKindCombined IdentityKind = "combined"
)

// IdentityKey is the unit of admission-control accounting: an IP address,
// an authenticated user, or the pair
type IdentityKey struct {
	Kind  IdentityKind `json:"kind"`
	Value string       `json:"value"`
}

// IPIdentity builds an identity key from a network address alone
func IPIdentity(ip string) IdentityKey {
	return IdentityKey{Kind: IdentityKindIP, Value: normalizeIP(ip)}
}

// UserIdentity builds an identity key from an authenticated principal alone
func UserIdentity(userID string) IdentityKey {
	return IdentityKey{Kind: IdentityKindUser, Value: userID}
}

// CombinedIdentity builds an identity key from both the network address and
// the authenticated principal. Derivation is deterministic: the same inputs
// always produce the same key.
func CombinedIdentity(ip, userID string) IdentityKey {
	if userID == "" {
		return IPIdentity(ip)
	}
	if ip == "" {
		return UserIdentity(userID)
	}
	return IdentityKey{
		Kind:  IdentityKindCombined,
		Value: fmt.Sprintf("%s|%s", normalizeIP(ip), userID),
	}
}

// String returns the storage key for this identity
func (k IdentityKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

// IP returns the network-address component of the identity, or "" if the
// identity was derived from a principal alone
func (k IdentityKey) IP() string {
	switch k.Kind {
	case IdentityKindIP:
		return k.Value
	case IdentityKindCombined:
		if idx := strings.IndexByte(k.Value, '|'); idx != -1 {
			return k.Value[:idx]
		}
	}
	return ""
}

// IsZero reports whether the key carries no usable identity
func (k IdentityKey) IsZero() bool {
	return k.Value == ""
}

// normalizeIP strips brackets and a trailing port so the same host always
// maps to the same key regardless of how the transport reported it
func normalizeIP(ip string) string {
	if ip == "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return strings.Trim(ip, "[]")
}
