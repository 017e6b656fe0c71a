// Package common contains shared constants and sentinel errors used across
// vipkeeper components.
package common

// SessionCookieName is the cookie that carries the signed session token
// between the browser and the server.
const SessionCookieName = "jwt_token"

// FragmentHeaderName marks requests that only want the partial HTML of a
// page (the table body of the user list) instead of the full document.
const FragmentHeaderName = "X-Fragment-Header"
