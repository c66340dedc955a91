// Package domain contains core concepts of the chat system.
// This file defines the authenticated Identity and the live Connection bound to it.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/samber/lo"

type IdentityID string

// Identity is asserted by a verified token. ID is stable across reconnects,
// DisplayName is presentation-only.
type Identity struct {
	ID          IdentityID
	DisplayName string
}

// Set is a string-keyed membership set.
type Set[K comparable] map[K]struct{}

func (s Set[K]) Add(k K) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

func (s Set[K]) Remove(k K) bool {
	if _, ok := s[k]; !ok {
		return false
	}
	delete(s, k)
	return true
}

func (s Set[K]) Has(k K) bool {
	_, ok := s[k]
	return ok
}

func (s Set[K]) Keys() []K {
	return lo.Keys(s)
}
