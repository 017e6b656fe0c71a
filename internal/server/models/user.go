// Package models holds the persistence-level types shared by repositories
// and services.
package models

import "time"

// User is a stored account with its VIP membership window.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsVIP        bool
	VIPLevel     int
	VIPStartTime *time.Time
	VIPEndTime   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActiveVIP reports whether the membership window covers now.
// An open start or end is treated as unbounded on that side.
func (u *User) ActiveVIP(now time.Time) bool {
	if !u.IsVIP {
		return false
	}
	if u.VIPStartTime != nil && now.Before(*u.VIPStartTime) {
		return false
	}
	if u.VIPEndTime != nil && !now.Before(*u.VIPEndTime) {
		return false
	}
	return true
}

// ListFilter selects a page of users.
type ListFilter struct {
	// Email matches users whose email contains the value, case-insensitively.
	Email    string
	Page     int
	PageSize int
}

// Offset returns the row offset of the page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// UserPage is one page of a filtered user listing.
type UserPage struct {
	Users    []*User
	Total    int
	Page     int
	PageSize int
}
