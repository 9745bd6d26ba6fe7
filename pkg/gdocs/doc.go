// Package gdocs talks to Google Docs, Drive and the OAuth2 userinfo endpoint
// on behalf of a signed-in user.
package gdocs
