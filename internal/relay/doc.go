// Package relay forwards requests to the engagement stats backend and
// relays its JSON response. A refresh is a single bodiless POST to
// <backend>/api/stats/refresh; a 2xx JSON answer is passed back unchanged
// with status 200, anything else becomes the fixed
// {"success":false,"error":"Failed to refresh engagement data"} envelope
// with status 500.
package relay
