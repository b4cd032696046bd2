package common

import (
	"net/http"
	"strings"
)

// ReservedSubdomains can never belong to a restaurant.
var ReservedSubdomains = map[string]bool{
	"www": true, "admin": true, "api": true, "mail": true,
	"ftp": true, "smtp": true, "static": true, "app": true,
}

// RestaurantSubdomain returns the restaurant part of host when host is a
// subdomain of baseDomain.
func RestaurantSubdomain(host, baseDomain string) (string, bool) {
	// Remove port if present (for local development)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	sub, ok := strings.CutSuffix(strings.ToLower(host), "."+baseDomain)
	if !ok || sub == "" || strings.Contains(sub, ".") || ReservedSubdomains[sub] {
		return "", false
	}
	return sub, true
}

// SubdomainHandler rewrites pizzaria.<baseDomain>/x to /@/pizzaria/x before
// routing, so the storefront routes serve restaurant subdomains.
func SubdomainHandler(baseDomain string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := RestaurantSubdomain(r.Host, baseDomain); ok {
			r.Header.Set("X-Original-Path", r.URL.Path)
			r.URL.Path = "/@/" + sub + r.URL.Path
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}
