package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// PageURL appends the page number to a category URL, preserving any query
// string the category URL already carries.
func PageURL(categoryURL string, page int) string {
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", categoryURL, sep, page)
}

// ResolveLink resolves a product href against the base site origin.
// Absolute links pass through untouched.
func ResolveLink(baseURL, href string) (string, error) {
	if href == "" {
		return "", fmt.Errorf("empty href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
